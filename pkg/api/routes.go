package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Sets up chi router, middlewares and defines all api endpoints
func (s *Server) routes() {
	s.r = chi.NewRouter()

	// Basic CORS
	s.r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	// Injects a request ID into the context of each request
	s.r.Use(middleware.RequestID)
	// Sets a http.Request's RemoteAddr to either X-Real-IP or X-Forwarded-For
	s.r.Use(middleware.RealIP)
	// Logs the start and end of each request with the elapsed processing time
	s.r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(s.log.Handler(), slog.LevelDebug),
		NoColor: true,
	}))
	// Gracefully absorb panics and prints the stack trace
	s.r.Use(middleware.Recoverer)

	s.r.Route("/v1", func(r chi.Router) {
		// the stream outlives any request timeout
		r.Get("/deposits/stream", s.handleDepositStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.SetHeader("Content-Type", "application/json"))
			r.Use(middleware.Timeout(60 * time.Second))

			// health
			r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
				JSON(w, http.StatusOK, map[string]interface{}{"health_status": "online"})
			})

			r.Get("/strategies", s.handleStrategiesGet)
			r.Get("/wallet", s.handleWalletGet)

			// deposits
			r.Post("/deposits", s.handleDepositsPost)
			r.Get("/deposits/current", s.handleCurrentGet)
			r.Delete("/deposits/current", s.handleCurrentDelete)
			r.Post("/deposits/current/reconcile", s.handleCurrentReconcile)
		})
	})
}
