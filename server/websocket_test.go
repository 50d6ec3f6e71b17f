package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/cadence/run"
	"github.com/teranos/cadence/sales"
)

// dialTestSocket starts the hub goroutines and connects a client through
// the test server
func dialTestSocket(t *testing.T, s *Server, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	s.startBackgroundServices()
	t.Cleanup(s.cancel)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelope reads one message and decodes it generically
func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &envelope))
	return envelope
}

// readUntil discards messages until one of the wanted type arrives
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]interface{} {
	t.Helper()

	for i := 0; i < 20; i++ {
		envelope := readEnvelope(t, conn)
		if envelope["type"] == msgType {
			return envelope
		}
	}
	t.Fatalf("no %q message arrived", msgType)
	return nil
}

func seedQueuedRun(t *testing.T, s *Server) *run.Job {
	t.Helper()

	lead := sales.NewLead("Acme Robotics", "jordan@acme.example")
	require.NoError(t, s.leads.Create(lead))
	campaign := sales.NewCampaign("Q3 outbound", "A")
	require.NoError(t, s.campaigns.Create(campaign))

	job, err := run.NewJob(campaign.ID, "A", []string{lead.ID}, 0.002, "test")
	require.NoError(t, err)
	require.NoError(t, s.queue.Enqueue(job))
	return job
}

func TestWebSocket_WelcomeStatus(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dialTestSocket(t, s, ts)

	envelope := readUntil(t, conn, "status")
	assert.Equal(t, "running", envelope["server_state"])
	assert.EqualValues(t, 1, envelope["workers"])
	assert.InDelta(t, 3.0, envelope["budget_daily_limit"].(float64), 1e-9)
}

func TestWebSocket_JobUpdateOnEnqueue(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dialTestSocket(t, s, ts)
	readUntil(t, conn, "status") // welcome snapshot

	job := seedQueuedRun(t, s)

	envelope := readUntil(t, conn, "job_update")
	payload, ok := envelope["job"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, job.ID, payload["id"])
	assert.Equal(t, string(run.JobStatusQueued), payload["status"])
}

func TestWebSocket_JobControl(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dialTestSocket(t, s, ts)
	readUntil(t, conn, "status")

	job := seedQueuedRun(t, s)
	readUntil(t, conn, "job_update") // the enqueue notification

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "job_control", Action: "pause", JobID: job.ID}))

	envelope := readUntil(t, conn, "job_update")
	payload, ok := envelope["job"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, string(run.JobStatusPaused), payload["status"])
	assert.Equal(t, run.PauseReasonUserRequested, payload["pause_reason"])
}

func TestWebSocket_JobControlUnknownJob(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dialTestSocket(t, s, ts)
	readUntil(t, conn, "status")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "job_control", Action: "pause", JobID: "no-such-job"}))

	envelope := readUntil(t, conn, "error")
	assert.Equal(t, "job_control", envelope["request"])
	assert.NotEmpty(t, envelope["message"])
}

func TestWebSocket_BudgetUpdate(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dialTestSocket(t, s, ts)
	readUntil(t, conn, "status")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "budget_update", DailyBudget: 9}))

	// The update forces a status broadcast carrying the new limit
	envelope := readUntil(t, conn, "status")
	assert.InDelta(t, 9.0, envelope["budget_daily_limit"].(float64), 1e-9)

	limits := s.budget.GetBudgetLimits()
	assert.InDelta(t, 9.0, limits.DailyBudgetUSD, 1e-9)
	assert.InDelta(t, 7.0, limits.WeeklyBudgetUSD, 1e-9)
}
