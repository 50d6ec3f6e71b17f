// Package server exposes the cadence pipeline over HTTP: lead and
// campaign CRUD, one-shot qualification and outreach, CSV import, batch
// run control, analytics, and a WebSocket feed of run progress.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/teranos/cadence/agent"
	"github.com/teranos/cadence/ai/tracker"
	"github.com/teranos/cadence/config"
	"github.com/teranos/cadence/run"
	"github.com/teranos/cadence/run/budget"
	"github.com/teranos/cadence/sales"
	"go.uber.org/zap"
)

// Server owns the HTTP surface and the WebSocket hub. Store handles all
// share one *sql.DB; the worker pool and budget tracker are the same
// instances the CLI wires, so pausing a run over the API is visible to
// workers immediately.
type Server struct {
	db     *sql.DB
	cfg    *config.Config
	logger *zap.SugaredLogger

	leads        *sales.LeadStore
	campaigns    *sales.CampaignStore
	interactions *sales.InteractionStore
	analytics    *sales.Analytics
	importer     *sales.Importer
	usage        *tracker.UsageTracker
	sdr          *agent.Agent
	pool         *run.WorkerPool
	queue        *run.Queue
	budget       *budget.Tracker

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan interface{}
	mu         sync.RWMutex
	lastStatus *statusSnapshot

	httpServer *http.Server

	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	broadcastDrops atomic.Int64
	state          atomic.Int32
	poolRunning    atomic.Bool
}

// New builds a Server around an opened database and a wired agent, pool,
// and budget tracker. The pool is not started here; Start does that.
func New(db *sql.DB, cfg *config.Config, sdr *agent.Agent, pool *run.WorkerPool, budgetTracker *budget.Tracker, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())

	leadStore := sales.NewLeadStore(db)
	return &Server{
		db:           db,
		cfg:          cfg,
		logger:       logger.Named("server"),
		leads:        leadStore,
		campaigns:    sales.NewCampaignStore(db),
		interactions: sales.NewInteractionStore(db),
		analytics:    sales.NewAnalytics(db),
		importer:     sales.NewImporter(leadStore, logger),
		usage:        tracker.NewUsageTracker(db, logger),
		sdr:          sdr,
		pool:         pool,
		queue:        pool.GetQueue(),
		budget:       budgetTracker,
		clients:      make(map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		broadcast:    make(chan interface{}, MaxClientMessageQueueSize),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Run is the hub event loop: client registration, unregistration, and
// message fanout all pass through here so the clients map has a single
// writer path per event.
func (s *Server) Run() {
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debugw("Server hub stopping due to context cancellation")
			return
		case client := <-s.register:
			s.handleClientRegister(client)
		case client := <-s.unregister:
			s.handleClientUnregister(client)
		case msg := <-s.broadcast:
			s.handleBroadcast(msg)
		}
	}
}

// handleClientRegister handles a new client connection
func (s *Server) handleClientRegister(client *Client) {
	s.mu.Lock()
	if len(s.clients) >= MaxClients {
		s.mu.Unlock()
		s.logger.Warnw("Max clients reached, rejecting connection",
			"client_id", client.id,
			"max_clients", MaxClients,
		)
		client.close()
		return
	}
	s.clients[client] = true
	totalClients := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client connected",
		"client_id", client.id,
		"total_clients", totalClients,
	)

	// A fresh client gets the current status immediately rather than
	// waiting out the broadcast interval
	if status := s.currentStatus(); status != nil {
		client.trySend(status)
	}
}

// handleClientUnregister handles a client disconnection
func (s *Server) handleClientUnregister(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, client)
	totalClients := len(s.clients)
	s.mu.Unlock()

	client.close()

	s.logger.Infow("Client disconnected",
		"client_id", client.id,
		"total_clients", totalClients,
	)
}

// handleBroadcast fans a message out to every connected client. Clients
// whose send queues are full are dropped; a consumer that stalls for 256
// messages is not coming back.
func (s *Server) handleBroadcast(msg interface{}) {
	s.mu.RLock()
	targets := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		targets = append(targets, client)
	}
	s.mu.RUnlock()

	for _, client := range targets {
		if !client.trySend(msg) {
			s.broadcastDrops.Add(1)
			s.removeSlowClient(client)
		}
	}
}

// removeSlowClient removes a client that can't keep up with broadcasts
func (s *Server) removeSlowClient(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, client)
	s.mu.Unlock()

	client.close()

	s.logger.Warnw("Client send queue full, removing client",
		"client_id", client.id,
		"total_drops", s.broadcastDrops.Load(),
	)
}

// broadcastMessage queues a message for fanout without blocking the caller
func (s *Server) broadcastMessage(msg interface{}) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Warnw("Broadcast queue full, dropping message")
	}
}

// getState returns the current server state
func (s *Server) getState() ServerState {
	return ServerState(s.state.Load())
}

// setState atomically updates the server state
func (s *Server) setState(newState ServerState) {
	s.state.Store(int32(newState))
	s.logger.Infow("Server state changed", "new_state", stateString(newState))
}

// stateString returns the human-readable state name
func stateString(state ServerState) string {
	switch state {
	case ServerStateRunning:
		return "running"
	case ServerStateDraining:
		return "draining"
	case ServerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
