package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/jordansnyder/maestra-core/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if payload == nil {
		return
	}

	_ = json.NewEncoder(w).Encode(payload)
}

// errorBody is the shape every 4xx/5xx response carries, per §6: "all
// return 4xx with {detail}".
type errorBody struct {
	Detail string `json:"detail"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindUpstreamTimeout:
		status = http.StatusGatewayTimeout
	case apperr.KindUpstreamRejection:
		status = http.StatusBadGateway
	case apperr.KindDependencyDown:
		status = http.StatusServiceUnavailable
	case apperr.KindInternal:
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}

	writeJSON(w, status, errorBody{Detail: err.Error()})
}

func decodeJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(v); err != nil {
		return apperr.Validationf("malformed request body: %v", err)
	}

	return nil
}
