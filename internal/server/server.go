package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"cinerec/internal/auth"
	"cinerec/internal/recommend"
)

// Recommender computes one recommendation request.
type Recommender interface {
	Recommend(ctx context.Context, req *recommend.Request) *recommend.Result
}

type Server struct {
	router     chi.Router
	engine     Recommender
	verifier   auth.Verifier
	corsOrigin string
}

func NewServer(engine Recommender, opts ...Option) *Server {
	srv := &Server{
		router:   chi.NewRouter(),
		engine:   engine,
		verifier: auth.AllowAll{},
	}
	for _, o := range opts {
		o(srv)
	}
	srv.router.Use(middleware.Logger)
	srv.router.Use(middleware.Recoverer)
	srv.routes()
	return srv
}

type Option func(*Server)

func WithCORSOrigin(origin string) Option {
	return func(s *Server) { s.corsOrigin = origin }
}

func WithVerifier(v auth.Verifier) Option {
	return func(s *Server) { s.verifier = v }
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
