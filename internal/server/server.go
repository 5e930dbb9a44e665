// Package server provides the HTTP server and routing for the analytics
// service.
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

	"github.com/sidnei-almeida/groq-finance-inference/internal/config"
	"github.com/sidnei-almeida/groq-finance-inference/internal/database"
	analysishandlers "github.com/sidnei-almeida/groq-finance-inference/internal/modules/quant/handlers"
)

// Config holds server configuration.
type Config struct {
	Log             zerolog.Logger
	Config          *config.Config
	StandardDB      *database.DB
	CacheDB         *database.DB
	AnalysisHandler *analysishandlers.Handler
}

// Server is the HTTP server.
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	standardDB     *database.DB
	cacheDB        *database.DB
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		cfg:        cfg.Config,
		standardDB: cfg.StandardDB,
		cacheDB:    cfg.CacheDB,
	}
	s.systemHandlers = NewSystemHandlers(cfg.Log, cfg.Config.DataDir)

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes(cfg.AnalysisHandler)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // analyses run synchronously
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware.
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(120 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes(analysisHandler *analysishandlers.Handler) {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		analysisHandler.RegisterRoutes(r)

		r.Get("/health", s.handleDeepHealth)
		r.Get("/system/status", s.systemHandlers.HandleSystemStatus)
	})
}

// handleHealth is the fast liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.log, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "portfolio-analytics",
		"version": "1.0.0",
	})
}

// handleDeepHealth also verifies both databases.
func (s *Server) handleDeepHealth(w http.ResponseWriter, r *http.Request) {
	databases := map[string]string{}
	status := "healthy"
	code := http.StatusOK

	for name, db := range map[string]*database.DB{
		"standard": s.standardDB,
		"cache":    s.cacheDB,
	} {
		if err := db.QuickCheck(r.Context()); err != nil {
			s.log.Error().Err(err).Str("database", name).Msg("Database health check failed")
			databases[name] = "unhealthy"
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			databases[name] = "healthy"
		}
	}

	writeJSON(w, s.log, code, map[string]interface{}{
		"status":    status,
		"databases": databases,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests.
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
