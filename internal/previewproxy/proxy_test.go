package previewproxy

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jordansnyder/maestra-core/internal/domain"
)

func TestShortID_TruncatesToEightChars(t *testing.T) {
	require.Equal(t, "abcdefgh", shortID("abcdefghijklmnop"))
	require.Equal(t, "short", shortID("short"))
}

func TestBestEffortLANIP_ReturnsNonEmpty(t *testing.T) {
	require.NotEmpty(t, bestEffortLANIP())
}

func TestWriteSSE_WritesEventAndDataLines(t *testing.T) {
	rec := httptest.NewRecorder()

	writeSSE(rec, rec, "preview", domain.JSON{"_seq": 1})

	body := rec.Body.String()
	require.Contains(t, body, "event: preview\n")
	require.Contains(t, body, `"_seq":1`)
}
