package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"staysense/internal/adapters/session"
)

type Server struct {
	mux      *chi.Mux
	sessions *session.Manager
}

// New builds the router. All middleware is registered here, before any route.
func New(sessions *session.Manager) *Server {
	m := chi.NewRouter()

	m.Use(chimw.RealIP)
	m.Use(chimw.RequestID)
	m.Use(chimw.Recoverer)
	m.Use(Timeout(15 * time.Second))
	m.Use(MethodOverride)
	m.Use(sessions.Middleware)
	m.Use(Metrics)
	m.Use(Logger(log.Logger))

	return &Server{mux: m, sessions: sessions}
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches any extra handler (e.g., /metrics) to the router.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}
