package status

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	orchestration "github.com/koscakluka/ema-edge/core"
)

const shutdownTimeout = 5 * time.Second

// Source reports the state of the voice session.
type Source interface {
	Status() orchestration.Status
}

// Server exposes /healthz and /metrics.
type Server struct {
	source    Source
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
	startTime time.Time
}

func NewServer(source Source, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		source:    source,
		gatherer:  gatherer,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Handler returns the instrumented routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return otelhttp.NewHandler(mux, "status",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("failed to shut down status server", "error", err)
		}
	})
	defer stop()

	s.logger.Info("status server listening", "address", listener.Addr().String())
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Health is the /healthz payload.
type Health struct {
	Status      string `json:"status"`
	State       string `json:"state"`
	SessionID   string `json:"session_id,omitempty"`
	Capturing   bool   `json:"capturing"`
	Playing     bool   `json:"playing"`
	PendingSend int    `json:"pending_send"`
	Uptime      string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	current := s.source.Status()
	health := Health{
		Status:      "ok",
		State:       current.State.String(),
		SessionID:   current.SessionID,
		Capturing:   current.Capturing,
		Playing:     current.Playing,
		PendingSend: current.PendingSend,
		Uptime:      time.Since(s.startTime).Round(time.Second).String(),
	}

	code := http.StatusOK
	switch current.State {
	case orchestration.StateDisconnected:
		health.Status = "disconnected"
		code = http.StatusServiceUnavailable
	case orchestration.StateConnecting, orchestration.StateAwaitingHandshakeAck:
		health.Status = "connecting"
	}

	body, err := sonic.ConfigStd.Marshal(health)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
