package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/browser-acceptor/metrics"
)

const (
	HealthzHost = "0.0.0.0"
	HealthzPort = 8080
)

type Config struct {
	Log            log.Logger
	HealthzAddr    string
	HealthzPort    int
	MetricsEnabled bool
	MetricsAddr    string
	MetricsPort    int
}

type Service struct {
	cfg     Config
	log     log.Logger
	Healthz *HealthzServer
	Metrics *MetricsServer
}

func New(cfg Config) *Service {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.HealthzAddr == "" {
		cfg.HealthzAddr = HealthzHost
	}
	if cfg.HealthzPort == 0 {
		cfg.HealthzPort = HealthzPort
	}
	s := &Service{
		cfg:     cfg,
		log:     cfg.Log,
		Healthz: NewHealthzServer(cfg.Log),
		Metrics: NewMetricsServer(nil),
	}
	return s
}

func (s *Service) Start(ctx context.Context) {
	s.log.Info("service starting")

	go func() {
		addr := net.JoinHostPort(s.cfg.HealthzAddr, strconv.Itoa(s.cfg.HealthzPort))
		s.log.Info("starting healthz server", "addr", addr)
		if err := s.Healthz.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("error starting healthz server", "err", err)
			metrics.RecordErrorDetails("error starting healthz server", err)
		}
	}()

	if s.cfg.MetricsEnabled {
		go func() {
			addr := net.JoinHostPort(s.cfg.MetricsAddr, strconv.Itoa(s.cfg.MetricsPort))
			s.log.Info("starting metrics server", "addr", addr)
			if err := s.Metrics.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("error starting metrics server", "err", err)
				metrics.RecordErrorDetails("error starting metrics server", err)
			}
		}()
	}

	s.log.Info("service started")
}

func (s *Service) Shutdown() {
	s.log.Info("service shutting down")

	_ = s.Healthz.Shutdown()
	s.log.Info("healthz stopped")

	_ = s.Metrics.Shutdown()
	s.log.Info("metrics stopped")

	s.log.Info("service stopped")
}
