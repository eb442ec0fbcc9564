package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	apimw "github.com/avolkov/webtracker/internal/httpapi/middleware"
	"github.com/avolkov/webtracker/internal/tracker"
)

// Server maps the CRUD surface 1:1 onto the lifecycle manager's
// operations; no business logic lives here.
type Server struct {
	Logger  *zap.Logger
	Tracker *tracker.Tracker
}

func NewServer(l *zap.Logger, t *tracker.Tracker) *Server {
	return &Server{Logger: l, Tracker: t}
}

func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, publicRPM, publicBurst, adminRPM, adminBurst int) http.Handler {
	r := chi.NewRouter()

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE"},
			AllowedHeaders: []string{"Authorization", "X-API-Key", "Content-Type"},
		}))
	} else {
		r.Use(cors.AllowAll().Handler)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// read routes
	r.Group(func(r chi.Router) {
		r.Use(apimw.RequireAny(keys))
		r.Use(apimw.RateLimit(publicRPM, publicBurst))
		r.Get("/api/resources/by-user/{userID}", s.handleListByUser)
		r.Get("/api/resources/{resourceID}/logs", s.handleLogs)
	})

	// mutating routes
	r.Group(func(r chi.Router) {
		r.Use(apimw.RequireAdmin(keys))
		r.Use(apimw.RateLimit(adminRPM, adminBurst))
		r.Post("/api/resources", s.handleAddResource)
		r.Patch("/api/resources/{resourceID}", s.handleUpdateResource)
		r.Delete("/api/resources/{resourceID}", s.handleDeleteResource)
	})

	return r
}
