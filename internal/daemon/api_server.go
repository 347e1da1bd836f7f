package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stageflow/internal/api"
	"stageflow/internal/config"
	"stageflow/internal/flowerr"
	"stageflow/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// apiServer exposes read-only daemon state and Prometheus metrics over HTTP.
type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

// statusError carries the HTTP status a handler wants to answer with.
type statusError struct {
	code int
	msg  string
}

func (e statusError) Error() string { return e.msg }

// jsonEndpoint is a read-only handler whose result is encoded as JSON.
type jsonEndpoint func(r *http.Request) (any, error)

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.MetricsBind)
	if bind == "" {
		return nil
	}
	srv := &apiServer{
		bind:   bind,
		token:  cfg.Paths.APIToken,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /api/status", s.serveJSON(s.status))
	mux.Handle("GET /api/items/{id}", s.serveJSON(s.item))
	mux.Handle("GET /api/violations", s.serveJSON(s.violations))
	return authMiddleware(s.token, mux)
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server stopped", logging.Error(err))
		}
	}()
	context.AfterFunc(ctx, s.shutdown)

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.shutdown()
}

func (s *apiServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = s.server.Shutdown(ctx)
}

// address reports the bound address, or the configured bind before start.
func (s *apiServer) address() string {
	switch {
	case s == nil:
		return ""
	case s.listener != nil:
		return s.listener.Addr().String()
	default:
		return s.bind
	}
}

func (s *apiServer) status(*http.Request) (any, error) {
	return s.daemon.Status(), nil
}

func (s *apiServer) item(r *http.Request) (any, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return nil, statusError{http.StatusBadRequest, "invalid work item id"}
	}
	state, err := s.daemon.engine.GetWorkflowState(r.Context(), id)
	if errors.Is(err, flowerr.ErrNotFound) {
		return nil, statusError{http.StatusNotFound, "work item not found"}
	}
	if err != nil {
		return nil, err
	}
	return api.FromState(state, time.Now()), nil
}

func (s *apiServer) violations(r *http.Request) (any, error) {
	var scope int64
	if raw := strings.TrimSpace(r.URL.Query().Get("scope")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			return nil, statusError{http.StatusBadRequest, "invalid scope"}
		}
		scope = parsed
	}
	violations, err := s.daemon.engine.GetSLAViolations(r.Context(), scope)
	if err != nil {
		return nil, err
	}
	return api.FromViolations(violations, time.Now()), nil
}

func (s *apiServer) serveJSON(endpoint jsonEndpoint) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, err := endpoint(r)
		code := http.StatusOK
		if err != nil {
			var se statusError
			if !errors.As(err, &se) {
				s.logger.Error("api request failed", logging.String("path", r.URL.Path), logging.Error(err))
				se = statusError{http.StatusInternalServerError, err.Error()}
			}
			code, payload = se.code, map[string]string{"error": se.msg}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Warn("encode api response", logging.Error(err))
		}
	})
}
