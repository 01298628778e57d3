package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves /health and /metrics.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	return mux
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	stats := a.status.GetStats()

	status := "ok"
	code := http.StatusOK
	if !a.status.Healthy() {
		status = "error"
		code = http.StatusServiceUnavailable
	}

	breakers := make(map[string]string, len(a.guards))
	budget := make(map[string]bool, len(a.guards))
	for _, g := range a.guards {
		breakers[g.Name()] = g.State()
		budget[g.Name()] = a.limiter.CanUse(g.Name())
	}

	response := map[string]interface{}{
		"status":        status,
		"last_run":      stats["last_run_time"],
		"last_error":    stats["last_error"],
		"stats":         stats,
		"flags":         a.flags.All(),
		"ai_limits":     a.limiter.GetStats(),
		"ai_breakers":   breakers,
		"ai_available":  budget,
		"keyword_mode":  a.classifier.Degraded(),
		"store_backend": a.cfg.StoreBackend,
	}
	if a.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		response["redis"] = "ok"
		if err := a.redis.Ping(ctx).Err(); err != nil {
			response["redis"] = err.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(response)
}

// ServeMonitoring runs the monitoring server on MONITORING_PORT until ctx is done.
func (a *App) ServeMonitoring(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.cfg.MonitoringPort,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.log.Info("starting monitoring server", "port", a.cfg.MonitoringPort)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
