// Package api serves the read-only operations endpoints. It has no
// authentication and is meant to be reachable from the internal network only.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/academybot/internal/models"
	"github.com/Kerhoff/academybot/internal/service"
)

// Server provides the HTTP ops API.
type Server struct {
	svc    *service.Service
	logger *logrus.Logger
	mux    *http.ServeMux
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, logger *logrus.Logger) *Server {
	s := &Server{svc: svc, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /api/report/daily", s.handleDailyReport)
	s.mux.HandleFunc("GET /api/finance", s.handleFinance)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.svc.Ping(ctx); err != nil {
		s.logger.WithError(err).Warn("health check failed")
		s.respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDailyReport returns the report of ?date=YYYY-MM-DD, today by default.
func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	day := s.svc.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, s.svc.Location())
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	report, err := s.svc.BuildDailyReport(r.Context(), day)
	if err != nil {
		s.logger.WithError(err).Error("failed to build daily report")
		s.respondError(w, http.StatusInternalServerError, "failed to build daily report")
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

type financeResponse struct {
	models.MoneyTotals
	Total string `json:"total"`
}

func (s *Server) handleFinance(w http.ResponseWriter, r *http.Request) {
	totals, err := s.svc.Stats.PaymentTotals(r.Context(), models.PaymentFilter{})
	if err != nil {
		s.logger.WithError(err).Error("failed to get payment totals")
		s.respondError(w, http.StatusInternalServerError, "failed to get payment totals")
		return
	}
	s.respondJSON(w, http.StatusOK, financeResponse{MoneyTotals: totals, Total: totals.Total().String()})
}
