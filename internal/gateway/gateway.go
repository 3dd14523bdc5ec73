// Package gateway exposes the workflow model and run history over HTTP.
// Routing uses Go 1.22 method patterns on a plain ServeMux; handlers map
// store errors onto status codes and everything else is delegated to the
// core packages.
package gateway

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flowplane/flowplane/core/graph"
	"github.com/flowplane/flowplane/core/history"
	"github.com/flowplane/flowplane/core/workflow"
	"github.com/flowplane/flowplane/internal/infra/bus"
	"github.com/flowplane/flowplane/internal/infra/config"
	"github.com/flowplane/flowplane/internal/infra/logging"
	"github.com/flowplane/flowplane/internal/infra/metrics"
)

const defaultListLimit = 100

// Publisher is the outbound half of the event bus the gateway needs.
type Publisher interface {
	PublishRunTrigger(bus.RunTrigger) error
	PublishEdgeDelete(graph.EdgeDeleteCommand) error
}

// ConnStatus is implemented by bus backends that can report their link state.
type ConnStatus interface {
	IsConnected() bool
	Status() string
	ConnectedURL() string
}

// Server holds the wired dependencies behind the HTTP surface.
type Server struct {
	store   workflow.Store
	runs    history.RunRepository
	engine  *history.Engine
	columns *history.Resolver

	pub          Publisher
	metrics      metrics.GatewayMetrics
	storeMetrics metrics.StoreMetrics
	histMetrics  metrics.HistoryMetrics
	defaults     config.Defaults
	started      time.Time

	viewsMu sync.Mutex
	views   map[string]*history.View

	clients   map[*websocket.Conn]chan bus.RunEvent
	clientsMu sync.RWMutex
	eventsCh  chan bus.RunEvent
}

// New builds a server over a workflow store and run repository. Metrics
// default to no-ops; wire real backends with the With* methods.
func New(store workflow.Store, runs history.RunRepository) *Server {
	s := &Server{
		store:        store,
		runs:         runs,
		engine:       history.NewEngine(runs),
		columns:      history.NewResolver(store),
		metrics:      metrics.Noop{},
		storeMetrics: metrics.Noop{},
		histMetrics:  metrics.Noop{},
		started:      time.Now(),
		views:        make(map[string]*history.View),
		clients:      make(map[*websocket.Conn]chan bus.RunEvent),
		eventsCh:     make(chan bus.RunEvent, 256),
	}
	go s.broadcastLoop()
	return s
}

// WithPublisher attaches the event bus used for run triggers and graph
// edit commands.
func (s *Server) WithPublisher(p Publisher) *Server {
	s.pub = p
	return s
}

// WithMetrics attaches request, store, and query instrumentation.
func (s *Server) WithMetrics(gw metrics.GatewayMetrics, store metrics.StoreMetrics, hist metrics.HistoryMetrics) *Server {
	if gw != nil {
		s.metrics = gw
	}
	if store != nil {
		s.storeMetrics = store
	}
	if hist != nil {
		s.histMetrics = hist
	}
	return s
}

// WithDefaults applies operator-tuned page and buffer sizes.
func (s *Server) WithDefaults(d config.Defaults) *Server {
	s.defaults = d
	return s
}

// Handler assembles the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/v1/status", s.instrumented("/api/v1/status", s.handleStatus))

	mux.HandleFunc("GET /api/v1/workflows", s.instrumented("/api/v1/workflows", s.handleListWorkflows))
	mux.HandleFunc("POST /api/v1/workflows", s.instrumented("/api/v1/workflows", s.handleCreateWorkflow))
	mux.HandleFunc("GET /api/v1/workflows/{id}", s.instrumented("/api/v1/workflows/{id}", s.handleGetWorkflow))
	mux.HandleFunc("PATCH /api/v1/workflows/{id}", s.instrumented("/api/v1/workflows/{id}", s.handleUpdateWorkflow))
	mux.HandleFunc("DELETE /api/v1/workflows/{id}", s.instrumented("/api/v1/workflows/{id}", s.handleDeleteWorkflow))
	mux.HandleFunc("POST /api/v1/workflows/{id}/duplicate", s.instrumented("/api/v1/workflows/{id}/duplicate", s.handleDuplicateWorkflow))
	mux.HandleFunc("POST /api/v1/workflows/{id}/publish", s.instrumented("/api/v1/workflows/{id}/publish", s.handlePublishWorkflow))

	mux.HandleFunc("GET /api/v1/workflows/{id}/versions", s.instrumented("/api/v1/workflows/{id}/versions", s.handleListVersions))
	mux.HandleFunc("POST /api/v1/workflows/{id}/versions", s.instrumented("/api/v1/workflows/{id}/versions", s.handleSaveVersion))
	mux.HandleFunc("GET /api/v1/workflows/{id}/versions/{version}", s.instrumented("/api/v1/workflows/{id}/versions/{version}", s.handleGetVersion))
	mux.HandleFunc("POST /api/v1/workflows/{id}/versions/{version}/restore", s.instrumented("/api/v1/workflows/{id}/versions/{version}/restore", s.handleRestoreVersion))
	mux.HandleFunc("POST /api/v1/workflows/{id}/versions/{version}/default", s.instrumented("/api/v1/workflows/{id}/versions/{version}/default", s.handleSetDefaultVersion))

	mux.HandleFunc("POST /api/v1/workflows/{id}/runs", s.instrumented("/api/v1/workflows/{id}/runs", s.handleStartRun))
	mux.HandleFunc("GET /api/v1/workflows/{id}/runs", s.instrumented("/api/v1/workflows/{id}/runs", s.handleQueryRuns))
	mux.HandleFunc("GET /api/v1/workflows/{id}/runs/{run_id}", s.instrumented("/api/v1/workflows/{id}/runs/{run_id}", s.handleGetRun))
	mux.HandleFunc("GET /api/v1/workflows/{id}/columns", s.instrumented("/api/v1/workflows/{id}/columns", s.handleColumns))
	mux.HandleFunc("DELETE /api/v1/workflows/{id}/edges/{edge_id}", s.instrumented("/api/v1/workflows/{id}/edges/{edge_id}", s.handleDeleteEdge))

	mux.HandleFunc("GET /api/v1/stream", s.instrumented("/api/v1/stream", s.handleStream))

	return corsMiddleware(mux)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	uptimeSeconds := int64(0)
	if !s.started.IsZero() {
		uptimeSeconds = int64(now.Sub(s.started).Seconds())
	}

	natsConnected := false
	natsStatus := "UNKNOWN"
	natsURL := ""
	if cs, ok := s.pub.(ConnStatus); ok {
		natsConnected = cs.IsConnected()
		natsStatus = cs.Status()
		natsURL = cs.ConnectedURL()
	}

	s.clientsMu.RLock()
	streamClients := len(s.clients)
	s.clientsMu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"time":           now.Format(time.RFC3339),
		"uptime_seconds": uptimeSeconds,
		"stream_clients": streamClients,
		"nats": map[string]any{
			"connected": natsConnected,
			"status":    natsStatus,
			"url":       natsURL,
		},
	})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// BroadcastRunEvent fans a run status change out to connected stream
// clients. Called from the bus subscription; drops when the buffer is
// full rather than blocking the bus callback.
func (s *Server) BroadcastRunEvent(ev bus.RunEvent) {
	select {
	case s.eventsCh <- ev:
	default:
	}
}

func (s *Server) broadcastLoop() {
	for evt := range s.eventsCh {
		var slowClients []*websocket.Conn
		s.clientsMu.RLock()
		for conn, ch := range s.clients {
			select {
			case ch <- evt:
			default:
				slowClients = append(slowClients, conn)
			}
		}
		s.clientsMu.RUnlock()

		if len(slowClients) > 0 {
			s.clientsMu.Lock()
			for _, conn := range slowClients {
				delete(s.clients, conn)
			}
			s.clientsMu.Unlock()
			for _, conn := range slowClients {
				if err := conn.Close(); err != nil {
					logging.Error("gateway", "ws client close failed", "error", err)
				}
			}
		}
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("gateway", "ws upgrade failed", "error", err)
		return
	}
	defer ws.Close()
	logging.Info("gateway", "ws connected", "remote", r.RemoteAddr)

	buffer := s.defaults.StreamBuffer
	if buffer <= 0 {
		buffer = 100
	}
	clientCh := make(chan bus.RunEvent, buffer)
	s.clientsMu.Lock()
	s.clients[ws] = clientCh
	s.clientsMu.Unlock()
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, ws)
		s.clientsMu.Unlock()
	}()

	for {
		select {
		case msg := <-clientCh:
			data, err := json.Marshal(msg)
			if err != nil {
				logging.Error("gateway", "event marshal failed", "error", err)
				continue
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// view returns the supersession guard for one workflow's history panel.
func (s *Server) view(workflowID string) *history.View {
	s.viewsMu.Lock()
	defer s.viewsMu.Unlock()
	v, ok := s.views[workflowID]
	if !ok {
		v = &history.View{}
		s.views[workflowID] = v
	}
	return v
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack forwards websocket hijacking support to the underlying writer when available.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("hijacker not supported")
	}
	return hj.Hijack()
}

// Flush preserves streaming support if the wrapped writer implements it.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// instrumented wraps handlers to record metrics.
func (s *Server) instrumented(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)
		s.metrics.ObserveRequest(r.Method, route, fmt.Sprintf("%d", rec.status), time.Since(start).Seconds())
	}
}

// storeOutcome counts a store operation by result.
func (s *Server) storeOutcome(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.storeMetrics.IncStoreOp(op, outcome)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeStoreError maps the core error taxonomy onto HTTP status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound), errors.Is(err, history.ErrRecordNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, workflow.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, graph.ErrIntegrity):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
