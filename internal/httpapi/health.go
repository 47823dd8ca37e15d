package httpapi

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jordansnyder/maestra-core/internal/store"
)

func (s *Server) registerHealthRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   s.serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	devices, err := s.store.ListDevices(ctx)
	if err != nil {
		s.writeError(w, err)

		return
	}

	entities, err := s.store.ListEntities(ctx, store.EntityFilter{})
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"devices":       len(devices),
		"entities":      len(entities),
		"bus_connected": s.bus != nil,
		"uptime_seconds": time.Since(s.startedAt).Seconds(),
	})
}
