package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jordansnyder/maestra-core/internal/domain"
)

func (s *Server) registerStreamRoutes() {
	// Static prefixes under /streams/sessions must precede the
	// /streams/{id} catch-all.
	s.router.HandleFunc("/streams/sessions/history", s.handleSessionHistory).Methods(http.MethodGet)
	s.router.HandleFunc("/streams/sessions", s.handleListSessions).Methods(http.MethodGet)
	s.router.HandleFunc("/streams/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	s.router.HandleFunc("/streams/sessions/{id}/heartbeat", s.handleSessionHeartbeat).Methods(http.MethodPost)

	s.router.HandleFunc("/streams/advertise", s.handleAdvertiseStream).Methods(http.MethodPost)
	s.router.HandleFunc("/streams", s.handleListStreams).Methods(http.MethodGet)

	s.router.HandleFunc("/streams/{id}", s.handleWithdrawStream).Methods(http.MethodDelete)
	s.router.HandleFunc("/streams/{id}/heartbeat", s.handleStreamHeartbeat).Methods(http.MethodPost)
	s.router.HandleFunc("/streams/{id}/request", s.handleNegotiateStream).Methods(http.MethodPost)
	s.router.HandleFunc("/streams/{id}/preview", s.handleStreamPreview).Methods(http.MethodGet)
}

func (s *Server) handleAdvertiseStream(w http.ResponseWriter, r *http.Request) {
	var stream domain.Stream
	if err := decodeJSONBody(r, &stream); err != nil {
		s.writeError(w, err)

		return
	}

	out, err := s.streams.Advertise(r.Context(), stream)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleListStreams(w http.ResponseWriter, r *http.Request) {
	streamType := r.URL.Query().Get("stream_type")

	out, err := s.streams.List(r.Context(), streamType)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWithdrawStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.streams.Withdraw(r.Context(), id); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleStreamHeartbeat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	out, err := s.streams.Heartbeat(r.Context(), id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleNegotiateStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req domain.NegotiationRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.writeError(w, err)

		return
	}

	offer, err := s.negotiator.Request(r.Context(), id, req)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, offer)
}

func (s *Server) handleStreamPreview(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.proxy.Serve(w, r, id)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	streamID := r.URL.Query().Get("stream_id")
	if streamID == "" {
		writeJSON(w, http.StatusOK, []domain.Session{})

		return
	}

	out, err := s.negotiator.ListByStream(r.Context(), streamID)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.negotiator.Stop(r.Context(), id); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleSessionHeartbeat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.negotiator.Heartbeat(r.Context(), id); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, nil)
}

// handleSessionHistory reports the durable session_history ledger, unlike
// /streams/sessions which reports only currently-live ephemeral sessions.
func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	since, until := parseTimeRange(r)

	rows, err := s.store.ListSessionHistory(r.Context(), since, until)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, rows)
}
