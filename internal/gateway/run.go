package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/flowplane/flowplane/core/history"
	"github.com/flowplane/flowplane/core/workflow"
	"github.com/flowplane/flowplane/internal/infra/bus"
	"github.com/flowplane/flowplane/internal/infra/config"
	"github.com/flowplane/flowplane/internal/infra/logging"
	"github.com/flowplane/flowplane/internal/infra/metrics"
)

// Run wires the Redis stores, the NATS bus, and metrics, then serves HTTP
// until the listener fails.
func Run(cfg *config.Config) error {
	if cfg == nil {
		cfg = config.Load()
	}
	defaults, err := config.LoadDefaults(cfg.DefaultsPath)
	if err != nil {
		return fmt.Errorf("load defaults: %w", err)
	}

	store, err := workflow.NewRedisStore(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis workflow store: %w", err)
	}
	defer store.Close()

	runs, err := history.NewRedisRepository(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis run repository: %w", err)
	}
	defer runs.Close()

	natsBus, err := bus.New(cfg.NatsURL)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer natsBus.Close()

	prom := metrics.NewProm("flowplane")
	s := New(store, runs).
		WithPublisher(natsBus).
		WithMetrics(metrics.NewGatewayProm("flowplane"), prom, prom).
		WithDefaults(*defaults)

	// Executor status changes feed the websocket stream.
	if _, err := natsBus.SubscribeRunEvents(s.BroadcastRunEvent); err != nil {
		logging.Error("gateway", "run event subscribe failed", "error", err)
	}
	// Edge-delete commands from other surfaces land on the stored model
	// the same way HTTP deletions do.
	if _, err := natsBus.SubscribeEdgeDeletes(s.ApplyEdgeDeleteCommand); err != nil {
		logging.Error("gateway", "edge delete subscribe failed", "error", err)
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	go func() {
		srv := &http.Server{
			Addr:         cfg.MetricsAddr,
			Handler:      metricsMux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		logging.Info("gateway", "metrics listening", "addr", cfg.MetricsAddr+"/metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("gateway", "metrics server error", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	logging.Info("gateway", "http listening", "addr", cfg.HTTPAddr)
	return srv.ListenAndServe()
}
