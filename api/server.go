package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gregtusar/driftarb/pkg/detector"
	"github.com/gregtusar/driftarb/pkg/ledger"
)

// Server exposes a read-only status API for dashboards: recent detected
// opportunities and currently open positions.
type Server struct {
	detector *detector.Detector
	ledger   *ledger.Ledger
	logger   *logrus.Logger
	srv      *http.Server
}

func NewServer(det *detector.Detector, ldg *ledger.Ledger, logger *logrus.Logger, port string) *Server {
	s := &Server{
		detector: det,
		ledger:   ldg,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/opportunities", s.handleOpportunities)
	mux.HandleFunc("/api/positions", s.handlePositions)

	s.srv = &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Infof("Starting API server on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	window := time.Hour
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			http.Error(w, "invalid window", http.StatusBadRequest)
			return
		}
		window = parsed
	}

	s.writeJSON(w, http.StatusOK, s.detector.Recent(window))
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     s.ledger.Count(),
		"positions": s.ledger.All(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}
