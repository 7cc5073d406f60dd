package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/atomic"

	"github.com/flashbots/quantagg/common"
	"github.com/flashbots/quantagg/metrics"
)

// RouteRegistrar is implemented by services that contribute endpoints
// to the server's router.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// Config holds the HTTP server settings shared by all QuantAgg
// services.
type Config struct {
	// ListenAddr is the address the API listens on.
	ListenAddr string

	// MetricsAddr is the metrics listener address; empty disables the
	// metrics server.
	MetricsAddr string

	// EnablePprof mounts the pprof API under /debug when true.
	EnablePprof bool

	// Log is the structured logger for server lifecycle events.
	Log *slog.Logger

	// DrainDuration is how long the server stays up after /drain
	// before load balancers are expected to have noticed.
	DrainDuration time.Duration

	// GracefulShutdownDuration bounds the wait for in-flight requests
	// during Shutdown.
	GracefulShutdownDuration time.Duration

	// ReadTimeout and WriteTimeout bound request reads and response
	// writes.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// BaseServer is the reusable HTTP shell: router, health endpoints,
// metrics and lifecycle management.
type BaseServer struct {
	cfg     *Config
	log     *slog.Logger
	isReady atomic.Bool

	srv        *http.Server
	metricsSrv *metrics.MetricsServer
}

// New builds a server and registers every registrar's routes.
func New(cfg *Config, registrars ...RouteRegistrar) (*BaseServer, error) {
	metricsSrv, err := metrics.New(common.PackageName, cfg.MetricsAddr)
	if err != nil {
		return nil, err
	}

	srv := &BaseServer{
		cfg:        cfg,
		log:        cfg.Log,
		metricsSrv: metricsSrv,
	}
	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.router(registrars),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	srv.isReady.Store(true)
	return srv, nil
}

func (s *BaseServer) router(registrars []RouteRegistrar) http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)

	for _, registrar := range registrars {
		registrar.RegisterRoutes(mux)
	}

	mux.With(s.requestLogger).Get("/livez", s.handleLiveness)
	mux.With(s.requestLogger).Get("/readyz", s.handleReadiness)
	mux.With(s.requestLogger).Get("/drain", s.handleDrain)
	mux.With(s.requestLogger).Get("/undrain", s.handleUndrain)

	if s.cfg.EnablePprof {
		s.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}
	return mux
}

func (s *BaseServer) requestLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(s.log, next)
}

func writeJSONStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"status":"` + status + `"}`))
}

func (s *BaseServer) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSONStatus(w, http.StatusOK, "alive")
}

func (s *BaseServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if !s.isReady.Load() {
		writeJSONStatus(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSONStatus(w, http.StatusOK, "ready")
}

func (s *BaseServer) handleDrain(w http.ResponseWriter, r *http.Request) {
	if !s.isReady.Swap(false) {
		writeJSONStatus(w, http.StatusOK, "already draining")
		return
	}
	s.log.Info("Server marked as not ready")
	go func() {
		time.Sleep(s.cfg.DrainDuration)
		s.log.Info("Drain period completed")
	}()
	writeJSONStatus(w, http.StatusOK, "draining")
}

func (s *BaseServer) handleUndrain(w http.ResponseWriter, r *http.Request) {
	if s.isReady.Swap(true) {
		writeJSONStatus(w, http.StatusOK, "already ready")
		return
	}
	s.log.Info("Server marked as ready")
	writeJSONStatus(w, http.StatusOK, "ready")
}

// RunInBackground starts the API and metrics listeners.
func (s *BaseServer) RunInBackground() {
	if s.cfg.MetricsAddr != "" {
		go func() {
			s.log.Info("Starting metrics server", "metricsAddress", s.cfg.MetricsAddr)
			if err := s.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("Metrics server failed", "err", err)
			}
		}()
	}
	go func() {
		s.log.Info("Starting HTTP server", "listenAddress", s.cfg.ListenAddr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server failed", "err", err)
		}
	}()
}

// Shutdown gracefully stops both listeners.
func (s *BaseServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Error("Graceful HTTP server shutdown failed", "err", err)
	} else {
		s.log.Info("HTTP server gracefully stopped")
	}

	if s.cfg.MetricsAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GracefulShutdownDuration)
		defer cancel()
		if err := s.metricsSrv.Shutdown(ctx); err != nil {
			s.log.Error("Graceful metrics server shutdown failed", "err", err)
		} else {
			s.log.Info("Metrics server gracefully stopped")
		}
	}
}
