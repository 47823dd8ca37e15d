package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTimeRange_DefaultsToLast24Hours(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/analytics/summary", http.NoBody)

	since, until := parseTimeRange(req)
	require.WithinDuration(t, time.Now().UTC(), until, time.Minute)
	require.WithinDuration(t, until.Add(-24*time.Hour), since, time.Minute)
}

func TestParseTimeRange_ParsesExplicitBounds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/analytics/summary?since=2026-01-01T00:00:00Z&until=2026-01-02T00:00:00Z", http.NoBody)

	since, until := parseTimeRange(req)
	require.Equal(t, "2026-01-01T00:00:00Z", since.Format(time.RFC3339))
	require.Equal(t, "2026-01-02T00:00:00Z", until.Format(time.RFC3339))
}
