package service

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer exposes a prometheus gatherer on /metrics.
type MetricsServer struct {
	gatherer prometheus.Gatherer

	mu     sync.Mutex
	ctx    context.Context
	server *http.Server
}

// NewMetricsServer serves gatherer, or the default registry when nil.
func NewMetricsServer(gatherer prometheus.Gatherer) *MetricsServer {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &MetricsServer{gatherer: gatherer}
}

func (m *MetricsServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
	return mux
}

func (m *MetricsServer) Start(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.ctx = ctx
	m.server = &http.Server{
		Handler:           m.Handler(),
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := m.server
	m.mu.Unlock()
	return server.Serve(listener)
}

func (m *MetricsServer) Shutdown() error {
	m.mu.Lock()
	server, ctx := m.server, m.ctx
	m.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(context.WithoutCancel(ctx))
}
