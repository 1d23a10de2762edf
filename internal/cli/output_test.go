package cli

import (
	"bytes"
	"strings"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSearch() *models.SearchResponse {
	return &models.SearchResponse{
		Query:     "tides",
		Model:     "mock-64",
		QueryTime: 42,
		Total:     2,
		Results: []models.SearchHit{
			{NoteID: "n1", Score: 0.9123, Text: "ocean tides"},
			{NoteID: "n2", Score: 0.5, Text: strings.Repeat("long ", 100)},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputText, "text": OutputText, "JSON": OutputJSON} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("yaml")
	assert.Error(t, err)
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSearchResults(&buf, sampleSearch(), OutputJSON))

	var decoded models.SearchResponse
	require.NoError(t, gojson.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "tides", decoded.Query)
	assert.EqualValues(t, 42, decoded.QueryTime)
	require.Len(t, decoded.Results, 2)
	assert.Equal(t, "n1", decoded.Results[0].NoteID)
	assert.Contains(t, buf.String(), `"note_id"`)
}

func TestWriteSearchResults_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSearchResults(&buf, sampleSearch(), OutputText))
	out := buf.String()
	assert.Contains(t, out, "Found 2 results in 42ms")
	assert.Contains(t, out, "Rank: 1 | Score: 0.9123 | ID: n1")
	assert.Contains(t, out, "...", "long notes are truncated")
}

func TestWriteClusters(t *testing.T) {
	resp := &models.ClusterResponse{
		Model: "mock-64",
		Notes: 3,
		Clusters: []models.ClusterView{{
			ClusterID:       1,
			Size:            3,
			Keywords:        []string{"ocean currents", "ocean"},
			Representatives: []models.SearchHit{{NoteID: "n1", Score: 0.97, Text: "ocean currents"}},
		}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteClusters(&buf, resp, OutputText))
	assert.Contains(t, buf.String(), "Cluster 1 | 3 notes")
	assert.Contains(t, buf.String(), "Keywords: ocean currents, ocean")

	buf.Reset()
	require.NoError(t, WriteClusters(&buf, resp, OutputJSON))
	assert.Contains(t, buf.String(), `"cluster_id": 1`)
}

func TestWriteStatus(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStatus(&buf, &models.Status{Notes: 4, Model: "mock-64", Dimensions: 64, StorageDriver: "sqlite", DiskUsageBytes: 2048}, OutputText))
	assert.Contains(t, buf.String(), "Notes:          4")
	assert.Contains(t, buf.String(), "2.0 KiB")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "1.0 MiB", formatBytes(1<<20))
}
