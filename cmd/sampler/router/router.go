// Package router wires the sampler's status server routes:
//   - GET /runs/current?run=<id>: latest progress snapshot of a run
//   - GET /healthz: liveness, 503 once the run has failed or the store is unreachable
//   - GET /metrics: Prometheus metrics
//
// Snapshots of finished runs carry an X-Dwisc-Done: true header.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lanl-ansi/dwisc/pkg/httpx"
	"github.com/lanl-ansi/dwisc/pkg/storage"
)

// SetupRoutes returns the status handler. health may be nil.
func SetupRoutes(store storage.Store, health func() error, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth(store, health))
	mux.HandleFunc("GET /runs/current", handleGetSnapshot(store, logger))
	mux.Handle("GET /metrics", promhttp.Handler())

	return httpx.Chain(mux,
		httpx.RecoveryMiddleware(logger),
		httpx.LoggingMiddleware(logger),
	)
}

// pinger is implemented by stores backed by a remote server.
type pinger interface {
	Ping(ctx context.Context) error
}

func handleHealth(store storage.Store, health func() error) http.HandlerFunc {
	p, _ := store.(pinger)
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.HealthHandler(func() error {
			if health != nil {
				if err := health(); err != nil {
					return err
				}
			}
			if p == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				return fmt.Errorf("snapshot store: %w", err)
			}
			return nil
		})(w, r)
	}
}

func handleGetSnapshot(store storage.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := r.URL.Query().Get("run")
		if runID == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "run parameter required")
			return
		}
		if err := storage.ValidateRunID(runID); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		snapshot, found, err := store.GetLatest(ctx, runID)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				httpx.WriteErrorMessage(w, http.StatusGatewayTimeout, "snapshot store timed out")
				return
			}
			logger.Error("failed to get snapshot", "run", runID, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !found {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("no snapshot for run %q", runID))
			return
		}

		if snapshot.Done {
			w.Header().Set("X-Dwisc-Done", "true")
		}
		if err := httpx.WriteJSON(w, http.StatusOK, snapshot); err != nil {
			logger.Error("failed to write snapshot", "run", runID, "error", err)
		}
	}
}
