package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jordansnyder/maestra-core/internal/domain"
)

func (s *Server) registerDeviceRoutes() {
	s.router.HandleFunc("/devices/register", s.handleRegisterDevice).Methods(http.MethodPost)
	s.router.HandleFunc("/devices/heartbeat", s.handleDeviceHeartbeat).Methods(http.MethodPost)
	s.router.HandleFunc("/devices", s.handleListDevices).Methods(http.MethodGet)
	s.router.HandleFunc("/devices/{id}", s.handleGetDevice).Methods(http.MethodGet)
	s.router.HandleFunc("/devices/{id}", s.handleDeleteDevice).Methods(http.MethodDelete)
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var d domain.Device
	if err := decodeJSONBody(r, &d); err != nil {
		s.writeError(w, err)

		return
	}

	if err := s.store.RegisterDevice(r.Context(), &d); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, d)
}

type heartbeatRequest struct {
	HardwareID string `json:"hardware_id"`
}

func (s *Server) handleDeviceHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.writeError(w, err)

		return
	}

	d, err := s.store.Heartbeat(r.Context(), req.HardwareID)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.store.ListDevices(r.Context())
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	d, err := s.store.GetDevice(r.Context(), id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.store.DeleteDevice(r.Context(), id); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}
