package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jordansnyder/maestra-core/internal/domain"
)

func (s *Server) registerStateRoutes() {
	s.router.HandleFunc("/entities/state/bulk-get", s.handleStateBulkGet).Methods(http.MethodPost)
	s.router.HandleFunc("/entities/state/bulk-update", s.handleStateBulkUpdate).Methods(http.MethodPost)

	s.router.HandleFunc("/entities/{id}/state", s.handleGetState).Methods(http.MethodGet)
	s.router.HandleFunc("/entities/{id}/state", s.handlePatchState).Methods(http.MethodPatch)
	s.router.HandleFunc("/entities/{id}/state", s.handlePutState).Methods(http.MethodPut)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	paths := r.URL.Query()["paths"]

	state, updatedAt, err := s.engine.GetState(r.Context(), id, paths)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":           state,
		"state_updated_at": updatedAt,
	})
}

func (s *Server) handlePatchState(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var partial domain.JSON
	if err := decodeJSONBody(r, &partial); err != nil {
		s.writeError(w, err)

		return
	}

	entity, err := s.engine.PatchState(r.Context(), id, partial, requestSource(r))
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, entity)
}

func (s *Server) handlePutState(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var newState domain.JSON
	if err := decodeJSONBody(r, &newState); err != nil {
		s.writeError(w, err)

		return
	}

	entity, err := s.engine.PutState(r.Context(), id, newState, requestSource(r))
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, entity)
}

func (s *Server) handleStateBulkGet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slugs []string `json:"slugs"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, s.engine.BulkGet(r.Context(), req.Slugs))
}

func (s *Server) handleStateBulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Updates map[string]domain.JSON `json:"updates"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		s.writeError(w, err)

		return
	}

	results := s.engine.BulkUpdate(r.Context(), req.Updates, requestSource(r))

	writeJSON(w, http.StatusOK, results)
}

// requestSource reports the http front as the origin of a state write, or
// an explicit ?source= override, for the state_changed event's source
// field.
func requestSource(r *http.Request) string {
	if src := r.URL.Query().Get("source"); src != "" {
		return src
	}

	return "http"
}
