package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/teranos/cadence/run"
)

// WebSocket timeout constants following Gorilla best practices
// See: https://github.com/gorilla/websocket/blob/master/examples/chat/client.go
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Client represents a WebSocket client connection
type Client struct {
	server    *Server
	conn      *websocket.Conn
	send      chan interface{}
	id        string
	closeOnce sync.Once
	mu        sync.Mutex // guards closed against concurrent trySend/close
	closed    bool
}

// HandleWebSocket upgrades the connection and runs the client pumps. The
// handler returns when the read pump exits, which unregisters the client.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	client := &Client{
		server: s,
		conn:   conn,
		send:   make(chan interface{}, MaxClientMessageQueueSize),
		id:     uuid.NewString()[:8],
	}

	select {
	case s.register <- client:
	case <-s.ctx.Done():
		conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}

// trySend queues a message for the client without blocking. Returns false
// when the queue is full or the client is closed.
func (c *Client) trySend(msg interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close shuts the send channel and the connection exactly once
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.send)
		c.conn.Close()
	})
}

// readPump handles reading messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.ctx.Done():
			c.close()
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.server.logger.Debugw("Read pump started", "client_id", c.id)

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.server.logger.Warnw("WebSocket read error", "error", err, "client_id", c.id)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			c.server.logger.Warnw("JSON unmarshal error", "error", err, "client_id", c.id)
			continue
		}

		c.routeMessage(&msg)
	}
}

// routeMessage dispatches incoming WebSocket messages to handlers
func (c *Client) routeMessage(msg *ClientMessage) {
	switch msg.Type {
	case "ping":
		// Deadline already refreshed by the pong handler
	case "job_control":
		c.handleJobControl(msg)
	case "budget_update":
		c.handleBudgetUpdate(msg)
	default:
		c.server.logger.Debugw("Unknown message type",
			"type", msg.Type,
			"client_id", c.id,
		)
	}
}

// handleJobControl applies a pause/resume/cancel request. Success is
// reported through the queue's subscriber fanout, so every client sees
// the resulting job update; only failures are answered directly.
func (c *Client) handleJobControl(msg *ClientMessage) {
	if msg.JobID == "" {
		c.trySend(ErrorMessage{Type: "error", Request: "job_control", Message: "job_id is required"})
		return
	}

	var err error
	switch msg.Action {
	case "pause":
		reason := msg.Reason
		if reason == "" {
			reason = run.PauseReasonUserRequested
		}
		err = c.server.queue.PauseJob(msg.JobID, reason)
	case "resume":
		err = c.server.queue.ResumeJob(msg.JobID)
	case "cancel":
		reason := msg.Reason
		if reason == "" {
			reason = "cancelled by user"
		}
		err = c.server.queue.CancelJob(msg.JobID, reason)
	default:
		c.trySend(ErrorMessage{Type: "error", Request: "job_control", Message: "unknown action: " + msg.Action})
		return
	}

	if err != nil {
		c.server.logger.Warnw("Job control failed",
			"client_id", c.id,
			"action", msg.Action,
			"job_id", shortID(msg.JobID),
			"error", err,
		)
		c.trySend(ErrorMessage{Type: "error", Request: "job_control", Message: err.Error()})
	}
}

// handleBudgetUpdate adjusts spend limits at runtime. Zero-valued fields
// are left untouched so a client can update one window at a time.
func (c *Client) handleBudgetUpdate(msg *ClientMessage) {
	if c.server.budget == nil {
		c.trySend(ErrorMessage{Type: "error", Request: "budget_update", Message: "budget tracking is not enabled"})
		return
	}
	if msg.DailyBudget <= 0 && msg.WeeklyBudget <= 0 && msg.MonthlyBudget <= 0 {
		c.trySend(ErrorMessage{Type: "error", Request: "budget_update", Message: "a positive daily_budget, weekly_budget, or monthly_budget is required"})
		return
	}

	apply := func(value float64, update func(float64) error) bool {
		if value <= 0 {
			return true
		}
		if err := update(value); err != nil {
			c.trySend(ErrorMessage{Type: "error", Request: "budget_update", Message: err.Error()})
			return false
		}
		return true
	}

	if !apply(msg.DailyBudget, c.server.budget.UpdateDailyBudget) ||
		!apply(msg.WeeklyBudget, c.server.budget.UpdateWeeklyBudget) ||
		!apply(msg.MonthlyBudget, c.server.budget.UpdateMonthlyBudget) {
		return
	}

	c.server.logger.Infow("Budget limits updated",
		"client_id", c.id,
		"daily", msg.DailyBudget,
		"weekly", msg.WeeklyBudget,
		"monthly", msg.MonthlyBudget,
	)

	// Push the new limits to everyone without waiting for the ticker
	c.server.broadcastStatus(true)
}

// writePump writes queued messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	c.server.logger.Debugw("Write pump started", "client_id", c.id)

	for {
		select {
		case <-c.server.ctx.Done():
			c.server.logger.Debugw("Write pump stopping due to server shutdown", "client_id", c.id)
			return
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.server.logger.Warnw("WebSocket write error", "error", err, "client_id", c.id)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
