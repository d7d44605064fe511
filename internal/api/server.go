// Package api serves the Control API over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/tamzrod/panel-keeper/internal/keeper"
	"github.com/tamzrod/panel-keeper/internal/schedule"
	"github.com/tamzrod/panel-keeper/internal/status"
	"github.com/tamzrod/panel-keeper/internal/telemetry"
)

// Controller is what the handlers drive. *keeper.Keeper implements it.
type Controller interface {
	Ready() bool
	Status(ctx context.Context) status.Snapshot
	Start(ctx context.Context) (keeper.Result, error)
	Stop(ctx context.Context) (keeper.Result, error)
	SetAutoCheck(ctx context.Context, active bool) (keeper.Result, error)
	SetInterval(ctx context.Context, b schedule.Bounds) (keeper.Result, error)
	ForceCheck(ctx context.Context) (status.Snapshot, keeper.Result, error)
	Reset(ctx context.Context) (keeper.Result, error)
}

// Config configures the server.
type Config struct {
	Listen string

	// ManualPerMinute and ManualBurst limit manual start/stop.
	// ManualPerMinute <= 0 disables the limit.
	ManualPerMinute float64
	ManualBurst     int

	RequestTimeout time.Duration
}

// Server is the Control API.
type Server struct {
	cfg     Config
	ctl     Controller
	log     *slog.Logger
	limiter *rate.Limiter
	router  chi.Router
}

// New builds the router. Routes are served at the root and under /api.
func New(cfg Config, ctl Controller, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	s := &Server{cfg: cfg, ctl: ctl, log: log}
	if cfg.ManualPerMinute > 0 {
		burst := cfg.ManualBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.ManualPerMinute/60), burst)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(s.logMiddleware)

	router.Get("/healthz", s.handleHealthz)
	router.Method(http.MethodGet, "/metrics", telemetry.MetricsHandler())

	routes := func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Get("/status", s.handleStatus)
		r.With(s.limitManual).Post("/start", s.handleStart)
		r.With(s.limitManual).Post("/stop", s.handleStop)
		r.Post("/toggle_auto_check", s.handleToggleAutoCheck)
		r.Post("/set_check_interval", s.handleSetCheckInterval)
		r.Post("/force_check", s.handleForceCheck)
		r.Post("/reset", s.handleReset)
	}
	router.Group(routes)
	router.Route("/api", routes)

	s.router = router
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Serve listens on cfg.Listen until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx ends.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("control api listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) limitManual(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			respondResult(w, http.StatusTooManyRequests, keeper.Result{Message: "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
