package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"snapdiff/internal/api"
	"snapdiff/internal/capture"
	"snapdiff/internal/comparison"
	"snapdiff/internal/config"
	"snapdiff/internal/logging"
	"snapdiff/internal/notify"
	"snapdiff/internal/store"
)

// Capturer submits one screenshot request; *capture.Pool satisfies it.
type Capturer interface {
	Submit(ctx context.Context, req capture.Request) (capture.Result, error)
}

// BatchRunner accepts comparison batches; *comparison.Batch satisfies it.
type BatchRunner interface {
	RunBatch(ctx context.Context, jobs []comparison.Job, generateBaselines bool) (string, error)
}

// EventSource replays and waits for per-site notifications; *notify.Hub
// satisfies it.
type EventSource interface {
	Fetch(ctx context.Context, scope string, since uint64, wait bool) ([]notify.Event, uint64, error)
}

// StatusFunc reports daemon runtime state for GET /api/status.
type StatusFunc func(ctx context.Context) api.DaemonStatus

// Options wires the server's collaborators.
type Options struct {
	Config   *config.Config
	Store    *store.Store
	Capturer Capturer
	Batch    BatchRunner
	Events   EventSource
	Status   StatusFunc
	Logger   *slog.Logger
}

// Server is the HTTP front end of the daemon.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	capturer Capturer
	batch    BatchRunner
	events   EventSource
	status   StatusFunc
	logger   *slog.Logger

	// longPollWait bounds how long a follow=true request blocks.
	longPollWait time.Duration

	router   chi.Router
	listener net.Listener
	server   *http.Server
}

// New builds the router. Start must be called to accept connections.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("server: config is required")
	}
	if opts.Store == nil {
		return nil, errors.New("server: store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		cfg:          opts.Config,
		store:        opts.Store,
		capturer:     opts.Capturer,
		batch:        opts.Batch,
		events:       opts.Events,
		status:       opts.Status,
		logger:       logging.NewComponentLogger(logger, "api-server"),
		longPollWait: 25 * time.Second,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(bearerAuth(s.cfg.Paths.APIToken))

		r.Get("/status", s.handleStatus)
		r.Post("/take-screenshot", s.handleTakeScreenshot)
		r.Post("/run-comparison", s.handleRunComparison)
		r.Post("/get-site", s.handleGetSite)

		r.Route("/sites", func(r chi.Router) {
			r.Get("/", s.handleListSites)
			r.Post("/", s.handleCreateSite)
			r.Route("/{site}", func(r chi.Router) {
				r.Get("/", s.handleSiteDetail)
				r.Delete("/", s.handleDeleteSite)
				r.Put("/threshold", s.handleSetThreshold)
				r.Get("/pages", s.handleListPages)
				r.Post("/pages", s.handleAddPage)
				r.Delete("/pages/{pageID}", s.handleDeletePage)
				r.Get("/devices", s.handleListDevices)
				r.Post("/devices", s.handleAddDevice)
				r.Post("/compare", s.handleCompareSite)
				r.Get("/events", s.handleEvents)
			})
		})
	})

	files := http.StripPrefix(comparison.WebRoot+"/", http.FileServer(http.Dir(s.cfg.Paths.ScreenshotsDir)))
	r.Get(comparison.WebRoot+"/*", files.ServeHTTP)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Start listens on the configured bind address and serves until ctx ends or
// Stop is called.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Paths.APIBind)
	if bind == "" {
		return errors.New("server: api_bind is empty")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	// No WriteTimeout: captures and event streams outlive any fixed bound.
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.shutdown()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr reports the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the listener down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	s.shutdown()
}

func (s *Server) shutdown() {
	if s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		s.logger.Debug("api server shutdown", logging.Error(err))
	}
}
