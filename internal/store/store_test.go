package store

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeTags_DedupesPreservingOrder(t *testing.T) {
	got := normalizeTags([]string{"a", "b", "a", "c", "b"})
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestNormalizeTags_EmptyInput(t *testing.T) {
	require.Empty(t, normalizeTags(nil))
}

func TestNullIfEmpty(t *testing.T) {
	require.Nil(t, nullIfEmpty(""))
	require.Equal(t, "x", nullIfEmpty("x"))
}

func TestEncodeExportCSV_EmptyRowsWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	require.NoError(t, EncodeExportCSV(w, nil))
	require.Empty(t, buf.String())
}

func TestEncodeExportCSV_SortsHeaderAndWritesRows(t *testing.T) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := []map[string]string{
		{"title": "a", "id": "1"},
		{"title": "b", "id": "2"},
	}

	require.NoError(t, EncodeExportCSV(w, rows))

	r := csv.NewReader(&buf)
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Equal(t, []string{"id", "title"}, records[0])
	require.Equal(t, []string{"1", "a"}, records[1])
	require.Equal(t, []string{"2", "b"}, records[2])
}
