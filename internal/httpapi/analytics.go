package httpapi

import (
	"encoding/csv"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jordansnyder/maestra-core/internal/domain"
	"github.com/jordansnyder/maestra-core/internal/store"
)

func (s *Server) registerAnalyticsRoutes() {
	s.router.HandleFunc("/analytics/annotations", s.handleListAnnotations).Methods(http.MethodGet)
	s.router.HandleFunc("/analytics/annotations", s.handleCreateAnnotation).Methods(http.MethodPost)
	s.router.HandleFunc("/analytics/annotations/{id}", s.handleUpdateAnnotation).Methods(http.MethodPut)
	s.router.HandleFunc("/analytics/annotations/{id}", s.handleDeleteAnnotation).Methods(http.MethodDelete)

	s.router.HandleFunc("/analytics/summary", s.handleAnalyticsSummary).Methods(http.MethodGet)
	s.router.HandleFunc("/analytics/export/{kind}", s.handleAnalyticsExport).Methods(http.MethodGet)

	s.router.HandleFunc("/analytics/collection-config", s.handleListCollectionConfig).Methods(http.MethodGet)
	s.router.HandleFunc("/analytics/collection-config", s.handleUpsertCollectionConfig).Methods(http.MethodPut)
}

// parseTimeRange resolves the ?since&until query parameters (RFC3339),
// defaulting to the last 24 hours when absent.
func parseTimeRange(r *http.Request) (since, until time.Time) {
	until = time.Now().UTC()
	since = until.Add(-24 * time.Hour)

	q := r.URL.Query()

	if v := q.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			since = t
		}
	}

	if v := q.Get("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			until = t
		}
	}

	return since, until
}

func (s *Server) handleListAnnotations(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.ListAnnotations(r.Context())
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateAnnotation(w http.ResponseWriter, r *http.Request) {
	var a domain.Annotation
	if err := decodeJSONBody(r, &a); err != nil {
		s.writeError(w, err)

		return
	}

	if err := s.store.CreateAnnotation(r.Context(), &a); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleUpdateAnnotation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var a domain.Annotation
	if err := decodeJSONBody(r, &a); err != nil {
		s.writeError(w, err)

		return
	}

	a.ID = id

	if err := s.store.UpdateAnnotation(r.Context(), &a); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.store.DeleteAnnotation(r.Context(), id); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	since, until := parseTimeRange(r)

	summary, err := s.store.AnalyticsSummary(r.Context(), since, until)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListCollectionConfig(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.ListCollectionConfigs(r.Context())
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpsertCollectionConfig(w http.ResponseWriter, r *http.Request) {
	var cc domain.CollectionConfig
	if err := decodeJSONBody(r, &cc); err != nil {
		s.writeError(w, err)

		return
	}

	if err := s.store.UpsertCollectionConfig(r.Context(), &cc); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, cc)
}

func (s *Server) handleAnalyticsExport(w http.ResponseWriter, r *http.Request) {
	kind := store.ExportKind(mux.Vars(r)["kind"])
	since, until := parseTimeRange(r)

	rows, err := s.store.ExportRows(r.Context(), kind, since, until)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=\""+string(kind)+".csv\"")

		cw := csv.NewWriter(w)

		if err := store.EncodeExportCSV(cw, rows); err != nil {
			s.log.Error().Err(err).Str("kind", string(kind)).Msg("failed to encode csv export")
		}

		return
	}

	writeJSON(w, http.StatusOK, rows)
}
