package server

import (
	"github.com/go-chi/chi/v5"

	"cinerec/internal/auth"
)

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(limitBody)
		r.Use(jsonContentType)
		r.Use(corsMiddleware(s.corsOrigin))
		r.Use(auth.Middleware(s.verifier))

		r.Get("/recommendations", s.handleGetRecommendations)
		r.Post("/recommendations", s.handlePostRecommendations)
	})
}
