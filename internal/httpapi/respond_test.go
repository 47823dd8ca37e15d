package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jordansnyder/maestra-core/internal/apperr"
	"github.com/jordansnyder/maestra-core/internal/logger"
)

func TestWriteError_MapsKindToStatus(t *testing.T) {
	s := &Server{log: logger.NewTestLogger()}

	cases := []struct {
		err    error
		status int
	}{
		{apperr.NotFound("x"), http.StatusNotFound},
		{apperr.Conflict("x"), http.StatusConflict},
		{apperr.Validation("x"), http.StatusBadRequest},
		{apperr.UpstreamTimeout("x"), http.StatusGatewayTimeout},
		{apperr.UpstreamRejection("x"), http.StatusBadGateway},
		{apperr.DependencyDown("x", nil), http.StatusServiceUnavailable},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		s.writeError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code)
		require.Contains(t, rec.Body.String(), `"detail"`)
	}
}

func TestWriteJSON_EncodesPayload(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]string{"a": "b"})

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"a":"b"}`, rec.Body.String())
}

func TestWriteJSON_NilPayloadWritesNoBody(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusNoContent, nil)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Body.String())
}
