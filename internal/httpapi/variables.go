package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jordansnyder/maestra-core/internal/domain"
	"github.com/jordansnyder/maestra-core/internal/stateengine"
)

func (s *Server) registerVariableRoutes() {
	s.router.HandleFunc("/entities/{id}/variables/validate", s.handleValidateVariables).Methods(http.MethodPost)

	s.router.HandleFunc("/entities/{id}/variables", s.handleGetVariables).Methods(http.MethodGet)
	s.router.HandleFunc("/entities/{id}/variables", s.handlePutVariables).Methods(http.MethodPut)

	s.router.HandleFunc("/entities/{id}/variables/{name}", s.handleUpsertVariable).Methods(http.MethodPost, http.MethodPut)
	s.router.HandleFunc("/entities/{id}/variables/{name}", s.handleDeleteVariable).Methods(http.MethodDelete)
}

// variablesFromMetadata parses entity.Metadata["variables"], which is
// stored as a generic domain.JSON value, into a VariableSet. A missing or
// malformed key is treated as an empty set rather than an error — variable
// definitions are optional.
func variablesFromMetadata(metadata domain.JSON) domain.VariableSet {
	var vars domain.VariableSet

	raw, ok := metadata["variables"]
	if !ok {
		return vars
	}

	body, err := json.Marshal(raw)
	if err != nil {
		return vars
	}

	_ = json.Unmarshal(body, &vars)

	return vars
}

func (s *Server) handleGetVariables(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	e, err := s.store.GetEntity(r.Context(), id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, variablesFromMetadata(e.Metadata))
}

func (s *Server) handlePutVariables(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var vars domain.VariableSet
	if err := decodeJSONBody(r, &vars); err != nil {
		s.writeError(w, err)

		return
	}

	e, err := s.store.GetEntity(r.Context(), id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if e.Metadata == nil {
		e.Metadata = domain.JSON{}
	}

	e.Metadata["variables"] = vars

	if err := s.store.UpdateEntity(r.Context(), e); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, vars)
}

func (s *Server) handleUpsertVariable(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, name := vars["id"], vars["name"]

	var def domain.VariableDefinition
	if err := decodeJSONBody(r, &def); err != nil {
		s.writeError(w, err)

		return
	}

	def.Name = name

	e, err := s.store.GetEntity(r.Context(), id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if e.Metadata == nil {
		e.Metadata = domain.JSON{}
	}

	set := variablesFromMetadata(e.Metadata)
	set = upsertVariable(set, def)
	e.Metadata["variables"] = set

	if err := s.store.UpdateEntity(r.Context(), e); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, def)
}

func upsertVariable(set domain.VariableSet, def domain.VariableDefinition) domain.VariableSet {
	list, other := &set.Inputs, &set.Outputs
	if def.Direction == domain.DirectionOutput {
		list, other = &set.Outputs, &set.Inputs
	}

	// Names are unique across both lists.
	*other = removeVariable(*other, def.Name)

	for i, existing := range *list {
		if existing.Name == def.Name {
			(*list)[i] = def

			return set
		}
	}

	*list = append(*list, def)

	return set
}

func (s *Server) handleDeleteVariable(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, name := vars["id"], vars["name"]

	e, err := s.store.GetEntity(r.Context(), id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if e.Metadata == nil {
		e.Metadata = domain.JSON{}
	}

	set := variablesFromMetadata(e.Metadata)
	set.Inputs = removeVariable(set.Inputs, name)
	set.Outputs = removeVariable(set.Outputs, name)
	e.Metadata["variables"] = set

	if err := s.store.UpdateEntity(r.Context(), e); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

func removeVariable(list []domain.VariableDefinition, name string) []domain.VariableDefinition {
	out := make([]domain.VariableDefinition, 0, len(list))

	for _, v := range list {
		if v.Name != name {
			out = append(out, v)
		}
	}

	return out
}

func (s *Server) handleValidateVariables(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	e, err := s.store.GetEntity(r.Context(), id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	state := e.State

	if r.ContentLength != 0 {
		var body struct {
			State domain.JSON `json:"state"`
		}

		if err := decodeJSONBody(r, &body); err != nil {
			s.writeError(w, err)

			return
		}

		if body.State != nil {
			state = body.State
		}
	}

	result := stateengine.ValidateVariables(state, variablesFromMetadata(e.Metadata))

	writeJSON(w, http.StatusOK, result)
}
