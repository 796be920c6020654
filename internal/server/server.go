// Package server provides the HTTP server and routing for Magpie.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/auth"
	"github.com/corvidlabs/magpie/internal/config"
	"github.com/corvidlabs/magpie/internal/database"
	"github.com/corvidlabs/magpie/internal/events"
	fieldhandlers "github.com/corvidlabs/magpie/internal/modules/fields/handlers"
	filterhandlers "github.com/corvidlabs/magpie/internal/modules/filters/handlers"
	jobhandlers "github.com/corvidlabs/magpie/internal/modules/jobs/handlers"
	ledgerhandlers "github.com/corvidlabs/magpie/internal/modules/ledger/handlers"
	selectorhandlers "github.com/corvidlabs/magpie/internal/modules/selectors/handlers"
	strategyhandlers "github.com/corvidlabs/magpie/internal/modules/strategies/handlers"
	userhandlers "github.com/corvidlabs/magpie/internal/modules/users/handlers"
)

// Handlers collects the per-module handler instances mounted by the server.
type Handlers struct {
	Users      *userhandlers.Handler
	Selectors  *selectorhandlers.Handler
	Fields     *fieldhandlers.Handler
	Filters    *filterhandlers.Handler
	Strategies *strategyhandlers.Handler
	Ledger     *ledgerhandlers.Handler
	Jobs       *jobhandlers.Handler
}

// Config holds server configuration
type Config struct {
	Log      zerolog.Logger
	Config   *config.Config
	CoreDB   *database.DB
	LedgerDB *database.DB
	Tokens   *auth.Tokens
	Events   *events.Bus
	Handlers Handlers
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	coreDB         *database.DB
	ledgerDB       *database.DB
	tokens         *auth.Tokens
	handlers       Handlers
	systemHandlers *SystemHandlers
	jobStream      *JobStreamHandler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "server").Logger(),
		cfg:      cfg.Config,
		coreDB:   cfg.CoreDB,
		ledgerDB: cfg.LedgerDB,
		tokens:   cfg.Tokens,
		handlers: cfg.Handlers,
	}

	s.systemHandlers = NewSystemHandlers(cfg.Log, map[string]*database.DB{
		cfg.CoreDB.Name():   cfg.CoreDB,
		cfg.LedgerDB.Name(): cfg.LedgerDB,
	})
	s.jobStream = NewJobStreamHandler(cfg.Events, cfg.Log)

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	// Registration and token issuance are reachable without a credential.
	s.handlers.Users.RegisterPublicRoutes(s.router)

	// Everything else requires a bearer token. The websocket stream sits
	// inside the same group; consoles pass the token on the handshake.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.tokens, s.log))

		s.handlers.Users.RegisterRoutes(r)
		s.handlers.Selectors.RegisterRoutes(r)
		s.handlers.Fields.RegisterRoutes(r)
		s.handlers.Filters.RegisterRoutes(r)
		s.handlers.Strategies.RegisterRoutes(r)
		s.handlers.Ledger.RegisterRoutes(r)
		s.handlers.Jobs.RegisterRoutes(r)

		r.Get("/ws/jobs", s.jobStream.ServeHTTP)
	})

	s.router.Route("/api/system", func(r chi.Router) {
		r.Get("/status", s.systemHandlers.HandleSystemStatus)
		r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	s.jobStream.Close()
	return s.server.Shutdown(ctx)
}

// handleHealth reports liveness plus database health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, db := range []*database.DB{s.coreDB, s.ledgerDB} {
		if err := db.HealthCheck(ctx); err != nil {
			s.log.Error().Err(err).Str("database", db.Name()).Msg("Health check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"unhealthy","database":%q}`, db.Name())
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
