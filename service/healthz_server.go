package service

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"
)

// RunStatus is the last completed run as reported by /healthz.
type RunStatus struct {
	RunID    string    `json:"run_id,omitempty"`
	Result   string    `json:"result,omitempty"`
	Finished *time.Time `json:"finished,omitempty"`
}

type HealthzServer struct {
	log    log.Logger
	ctx    context.Context
	server *http.Server

	mu   sync.RWMutex
	last RunStatus
}

func NewHealthzServer(logger log.Logger) *HealthzServer {
	if logger == nil {
		logger = log.New()
	}
	return &HealthzServer{log: logger}
}

// SetLastRun records the outcome of the most recent run.
func (h *HealthzServer) SetLastRun(runID, result string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	h.last = RunStatus{RunID: runID, Result: result, Finished: &now}
}

func (h *HealthzServer) Handler() http.Handler {
	hdlr := http.NewServeMux()
	hdlr.HandleFunc("/healthz", h.Handle)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return c.Handler(hdlr)
}

// Start serves on addr until Shutdown is called.
func (h *HealthzServer) Start(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.server = &http.Server{
		Handler:           h.Handler(),
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
	}
	h.ctx = ctx
	server := h.server
	h.mu.Unlock()
	return server.Serve(listener)
}

func (h *HealthzServer) Shutdown() error {
	h.mu.RLock()
	server, ctx := h.server, h.ctx
	h.mu.RUnlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(context.WithoutCancel(ctx))
}

func (h *HealthzServer) Handle(w http.ResponseWriter, r *http.Request) {
	h.log.Debug("Received health check request", "path", r.URL.Path)

	h.mu.RLock()
	status := struct {
		Status string `json:"status"`
		RunStatus
	}{Status: "OK", RunStatus: h.last}
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.log.Warn("Failed to write health check response", "err", err)
	}
}
