package httpapi

import (
	"net/http"

	"github.com/jordansnyder/maestra-core/internal/domain"
)

func (s *Server) registerIngestRoutes() {
	s.router.HandleFunc("/metrics", s.handleIngestMetric).Methods(http.MethodPost)
	s.router.HandleFunc("/metrics/batch", s.handleIngestMetricBatch).Methods(http.MethodPost)
	s.router.HandleFunc("/events", s.handleIngestEvent).Methods(http.MethodPost)
}

func (s *Server) handleIngestMetric(w http.ResponseWriter, r *http.Request) {
	var payload domain.JSON
	if err := decodeJSONBody(r, &payload); err != nil {
		s.writeError(w, err)

		return
	}

	if err := s.store.InsertMetric(r.Context(), payload); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, nil)
}

func (s *Server) handleIngestMetricBatch(w http.ResponseWriter, r *http.Request) {
	var batch []domain.JSON
	if err := decodeJSONBody(r, &batch); err != nil {
		s.writeError(w, err)

		return
	}

	for _, payload := range batch {
		if err := s.store.InsertMetric(r.Context(), payload); err != nil {
			s.writeError(w, err)

			return
		}
	}

	writeJSON(w, http.StatusCreated, map[string]int{"inserted": len(batch)})
}

func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var payload domain.JSON
	if err := decodeJSONBody(r, &payload); err != nil {
		s.writeError(w, err)

		return
	}

	if err := s.store.InsertEvent(r.Context(), payload); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, nil)
}
