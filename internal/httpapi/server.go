package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/pingzy/internal/domain"
	apimw "github.com/hamed0406/pingzy/internal/httpapi/middleware"
	"github.com/hamed0406/pingzy/internal/repo"
)

// Monitor is the part of the monitor the API reads from.
type Monitor interface {
	Snapshot() []domain.Website
	SendSummary(ctx context.Context)
}

type Server struct {
	Logger  *zap.Logger
	Monitor Monitor
	Results repo.ResultStore
}

func NewServer(l *zap.Logger, m Monitor, rs repo.ResultStore) *Server {
	return &Server{Logger: l, Monitor: m, Results: rs}
}

// Router serves the read-only status API. An empty allowedOrigins allows
// any origin; rpm <= 0 disables rate limiting.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, rpm, burst int) http.Handler {
	r := chi.NewRouter()
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RateLimit(rpm, burst))

		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAny(keys))
			r.Get("/websites", s.handleListWebsites)
			r.Get("/results/latest", s.handleLatestResults)
		})

		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAdmin(keys))
			r.Post("/summary", s.handleSendSummary)
		})
	})

	return r
}

func (s *Server) handleListWebsites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Monitor.Snapshot())
}

func (s *Server) handleLatestResults(w http.ResponseWriter, r *http.Request) {
	if s.Results == nil {
		writeJSON(w, http.StatusOK, []domain.CheckResult{})
		return
	}
	rows, err := s.Results.Latest(r.Context())
	if err != nil {
		s.Logger.Warn("api_latest_error", zap.Error(err))
		http.Error(w, "latest error", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []domain.CheckResult{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleSendSummary(w http.ResponseWriter, r *http.Request) {
	s.Monitor.SendSummary(r.Context())
	s.Logger.Info("api_summary_requested", zap.String("remote", r.RemoteAddr))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
