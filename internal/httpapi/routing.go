package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jordansnyder/maestra-core/internal/domain"
)

func (s *Server) registerRoutingRoutes() {
	s.router.HandleFunc("/routing/state", s.handleRoutingState).Methods(http.MethodGet)

	s.router.HandleFunc("/routing/devices", s.handleListRoutingDevices).Methods(http.MethodGet)
	s.router.HandleFunc("/routing/devices", s.handleCreateRoutingDevice).Methods(http.MethodPost)
	s.router.HandleFunc("/routing/devices/{id}", s.handleGetRoutingDevice).Methods(http.MethodGet)

	s.router.HandleFunc("/routing/routes", s.handleListRoutes).Methods(http.MethodGet)
	s.router.HandleFunc("/routing/routes", s.handleCreateRoute).Methods(http.MethodPost)
	s.router.HandleFunc("/routing/routes/{id}", s.handleDeleteRoute).Methods(http.MethodDelete)

	s.router.HandleFunc("/routing/presets", s.handleListPresets).Methods(http.MethodGet)
	s.router.HandleFunc("/routing/presets", s.handleCreatePreset).Methods(http.MethodPost)
	s.router.HandleFunc("/routing/presets/{id}/save", s.handleSavePreset).Methods(http.MethodPost)
	s.router.HandleFunc("/routing/presets/{id}/recall", s.handleRecallPreset).Methods(http.MethodPost)
}

func (s *Server) handleRoutingState(w http.ResponseWriter, r *http.Request) {
	devices, err := s.store.ListRoutingDevices(r.Context())
	if err != nil {
		s.writeError(w, err)

		return
	}

	routes, err := s.store.ActiveRoutes(r.Context())
	if err != nil {
		s.writeError(w, err)

		return
	}

	presets, err := s.store.ListPresets(r.Context())
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"devices": devices,
		"routes":  routes,
		"presets": presets,
	})
}

func (s *Server) handleListRoutingDevices(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.ListRoutingDevices(r.Context())
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateRoutingDevice(w http.ResponseWriter, r *http.Request) {
	var rd domain.RoutingDevice
	if err := decodeJSONBody(r, &rd); err != nil {
		s.writeError(w, err)

		return
	}

	if err := s.store.CreateRoutingDevice(r.Context(), &rd); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, rd)
}

func (s *Server) handleGetRoutingDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rd, err := s.store.GetRoutingDevice(r.Context(), id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, rd)
}

func (s *Server) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.ActiveRoutes(r.Context())
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateRoute(w http.ResponseWriter, r *http.Request) {
	var rt domain.Route
	if err := decodeJSONBody(r, &rt); err != nil {
		s.writeError(w, err)

		return
	}

	if err := s.store.CreateRoute(r.Context(), &rt); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, rt)
}

func (s *Server) handleDeleteRoute(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.store.DeleteRoute(r.Context(), id); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.ListPresets(r.Context())
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePreset(w http.ResponseWriter, r *http.Request) {
	var p domain.RoutePreset
	if err := decodeJSONBody(r, &p); err != nil {
		s.writeError(w, err)

		return
	}

	if err := s.store.CreatePreset(r.Context(), &p); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleSavePreset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.store.SavePreset(r.Context(), id); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, nil)
}

// handleRecallPreset recalls a saved patch and emits the single
// routing_preset_recalled event the store layer defers to its caller.
func (s *Server) handleRecallPreset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.store.RecallPreset(r.Context(), id); err != nil {
		s.writeError(w, err)

		return
	}

	body, _ := json.Marshal(map[string]string{"type": "routing_preset_recalled", "preset_id": id})
	s.bus.PublishSubject("maestra.routing.preset_recalled", body)
	s.bus.PublishTopic("maestra.to_mqtt.routing.preset_recalled", body)

	writeJSON(w, http.StatusOK, nil)
}
