package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/snapsolve/snapsolve/internal/api/handlers"
	appMiddleware "github.com/snapsolve/snapsolve/internal/api/middlewares"
	"github.com/snapsolve/snapsolve/internal/config"
	"github.com/snapsolve/snapsolve/internal/core/cache"
	"github.com/snapsolve/snapsolve/internal/core/session"
	"github.com/snapsolve/snapsolve/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(
	cfg *config.Config,
	sessions *session.Manager,
	c *cache.TTLCache,
	users *services.UserService,
	problems *services.ProblemService,
	classifier *services.ClassifierService,
	embeddings *services.EmbeddingService,
	analysis *services.AnalysisService,
) *Server {
	authHandler := handlers.NewAuthHandler(users, sessions)
	csrfHandler := handlers.NewCSRFHandler(sessions)
	problemHandler := handlers.NewProblemHandler(analysis, problems, embeddings, cfg.MaxUploadBytes)
	adminHandler := handlers.NewAdminHandler(c, classifier, embeddings, problems)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(appMiddleware.LoadSession(sessions))

		// login bootstrap is CSRF-exempt: no secret exists yet
		api.Post("/auth/session", authHandler.CreateSession)

		api.Get("/subjects", problemHandler.Subjects)
		api.Get("/problems", problemHandler.List)
		api.Get("/problems/{id}", problemHandler.Get)
		api.Get("/problems/{id}/similar", problemHandler.Similar)

		api.Get("/cache/stats", adminHandler.CacheStats)
		api.Get("/stats", adminHandler.Stats)
		api.Post("/admin/repair-subjects", adminHandler.RepairSubjects)
		api.Post("/admin/backfill-embeddings", adminHandler.BackfillEmbeddings)

		api.With(appMiddleware.VerifyCSRF(sessions)).Post("/cache/clear", adminHandler.CacheClear)

		// session-bound endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.RequireUser)
			protected.Get("/csrf-token", csrfHandler.IssueToken)
			protected.Get("/auth/me", authHandler.Me)

			protected.Group(func(mutating chi.Router) {
				mutating.Use(appMiddleware.VerifyCSRF(sessions))
				mutating.Post("/auth/logout", authHandler.Logout)
				mutating.Post("/problems/analyze", problemHandler.Analyze)
				mutating.Put("/problems/{id}/rating", problemHandler.SetRating)
				mutating.Delete("/problems/{id}", problemHandler.Delete)
			})
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
