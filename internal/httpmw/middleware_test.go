package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jordansnyder/maestra-core/internal/logger"
)

func TestCommonMiddleware_CORS(t *testing.T) {
	log := logger.NewTestLogger()

	corsConfig := CORSConfig{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
	}

	handler := CommonMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, err := w.Write([]byte("OK"))
		if err != nil {
			t.Errorf("Error writing response: %v", err)

			return
		}
	}), corsConfig, log)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Origin", "http://localhost:3000")

	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	if rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Errorf("CORS origin not set correctly: got %v", rr.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Origin", "http://evil.com")

	rr = httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Header().Get("Access-Control-Allow-Origin") == "http://evil.com" {
		t.Errorf("CORS allowed an unpermitted origin")
	}

	if status := rr.Code; status != http.StatusForbidden {
		t.Errorf("handler returned wrong status code for unpermitted origin: got %v want %v", status, http.StatusForbidden)
	}
}

func TestCommonMiddleware_NoOriginPassesThrough(t *testing.T) {
	log := logger.NewTestLogger()

	handler := CommonMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), CORSConfig{}, log)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
}
