package obs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthFunc reports readiness of one dependency.
type HealthFunc func(context.Context) error

// AllHealthy fails on the first failing check. Nil checks are skipped.
func AllHealthy(checks ...HealthFunc) HealthFunc {
	return func(ctx context.Context) error {
		for _, c := range checks {
			if c == nil {
				continue
			}
			if err := c(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// BootstrapMetricsServer serves /metrics, /livez and /healthz on addr in the
// background. The caller shuts the returned server down.
func BootstrapMetricsServer(addr string, health HealthFunc, l *zap.Logger) *http.Server {
	ms := &http.Server{
		Addr:         addr,
		Handler:      opsMux(health, l),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	go func() {
		l.Info("metrics listening", zap.String("addr", addr))
		if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("metrics server error", zap.Error(err))
		}
	}()
	return ms
}

func opsMux(health HealthFunc, l *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok", "")
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if health == nil {
			writeStatus(w, http.StatusOK, "ok", "")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := health(ctx); err != nil {
			l.Warn("health check failed", zap.Error(err))
			writeStatus(w, http.StatusServiceUnavailable, "unhealthy", err.Error())
			return
		}
		writeStatus(w, http.StatusOK, "ok", "")
	})
	return mux
}

func writeStatus(w http.ResponseWriter, code int, status, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}{status, reason})
}
