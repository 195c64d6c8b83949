package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/five82/devsyslog/internal/state"
)

const shutdownTimeout = 3 * time.Second

// StatusResponse is the JSON body of /status.
type StatusResponse struct {
	Target          string    `json:"target,omitempty"`
	State           string    `json:"state"`
	SessionID       string    `json:"sessionId,omitempty"`
	ConnectedAt     time.Time `json:"connectedAt,omitzero"`
	SessionsStarted int       `json:"sessionsStarted"`
	LinesRelayed    int64     `json:"linesRelayed"`
	BytesRelayed    int64     `json:"bytesRelayed"`
	LastError       string    `json:"lastError,omitempty"`
}

// NewRouter returns the HTTP handler serving /metrics, /healthz and /status.
func NewRouter(gatherer prometheus.Gatherer, store *state.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statusFrom(store.Snapshot()))
	})
	return r
}

func statusFrom(snap state.Snapshot) StatusResponse {
	resp := StatusResponse{
		Target:          snap.Target,
		State:           snap.StateName(),
		SessionID:       snap.SessionID,
		ConnectedAt:     snap.ConnectedAt,
		SessionsStarted: snap.SessionsStarted,
		LinesRelayed:    snap.LinesRelayed,
		BytesRelayed:    snap.BytesRelayed,
	}
	if snap.LastError != nil {
		resp.LastError = snap.LastError.Error()
	}
	return resp
}

// Serve listens on addr and serves the router until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
