// Package cli renders shiori results for the command line.
package cli

import (
	"fmt"
	"io"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const previewRunes = 200

const separator = "─────────────────────────────────────────────────────────"

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := gojson.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms (model %s)\n\n", len(response.Results), response.QueryTime, response.Model)
	for i, hit := range response.Results {
		fmt.Fprintln(w, separator)
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | ID: %s\n", i+1, hit.Score, hit.NoteID)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(hit.Text, previewRunes))
	}
	return nil
}

// WriteClusters writes cluster summaries to w in the given format.
func WriteClusters(w io.Writer, response *models.ClusterResponse, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, response)
	}
	fmt.Fprintf(w, "\n%d clusters over %d notes in %dms (model %s)\n\n",
		len(response.Clusters), response.Notes, response.QueryTime, response.Model)
	for _, c := range response.Clusters {
		fmt.Fprintln(w, separator)
		fmt.Fprintf(w, "Cluster %d | %d notes\n", c.ClusterID, c.Size)
		if len(c.Keywords) > 0 {
			fmt.Fprintf(w, "Keywords: %s\n", strings.Join(c.Keywords, ", "))
		}
		for _, r := range c.Representatives {
			fmt.Fprintf(w, "  %.4f  %s\n", r.Score, utils.Truncate(r.Text, 80))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// WriteNote writes a single note to w in the given format.
func WriteNote(w io.Writer, note *models.Note, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, note)
	}
	fmt.Fprintf(w, "Added note %s\n", note.ID)
	return nil
}

// WriteStatus writes store and encoder status to w in the given format.
func WriteStatus(w io.Writer, status *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, status)
	}
	fmt.Fprintf(w, "Notes:          %d\n", status.Notes)
	fmt.Fprintf(w, "Books:          %d\n", status.Books)
	fmt.Fprintf(w, "Embedded notes: %d\n", status.EmbeddedNotes)
	fmt.Fprintf(w, "Model:          %s (%d dims)\n", status.Model, status.Dimensions)
	fmt.Fprintf(w, "Storage:        %s\n", status.StorageDriver)
	if status.DiskUsageBytes > 0 {
		fmt.Fprintf(w, "Disk usage:     %s\n", formatBytes(status.DiskUsageBytes))
	}
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
