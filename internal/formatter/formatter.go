// package formatter renders play history and track times for the CLI (plain text, Markdown, CSV, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/tunedeck/internal/models"
	"github.com/desertthunder/tunedeck/internal/shared"
	"github.com/dustin/go-humanize"
)

// Format is an output format for history exports.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name, case-insensitively. "md" is an alias for markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// FormatDuration renders milliseconds as m:ss. Negative values render as 0:00.
func FormatDuration(ms int) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// History renders plays in format. now anchors the relative times.
func History(format Format, plays []*models.Play, now time.Time) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		return HistoryToMarkdown(plays, now)
	case FormatCSV:
		return HistoryToCSV(plays)
	case FormatJSON:
		if plays == nil {
			plays = []*models.Play{}
		}
		return shared.MarshalJSON(plays, true)
	default:
		return HistoryToText(plays, now)
	}
}

// HistoryToCSV converts plays to CSV with columns: Played At, Track ID, Name, Artists, Album, Duration, URI
func HistoryToCSV(plays []*models.Play) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Played At", "Track ID", "Name", "Artists", "Album", "Duration", "URI"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, p := range plays {
		record := []string{
			p.PlayedAt.UTC().Format(time.RFC3339),
			p.TrackID,
			p.Name,
			p.Artists,
			p.Album,
			strconv.Itoa(p.DurationMs / 1000),
			p.URI,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// HistoryToMarkdown converts plays to a Markdown list.
func HistoryToMarkdown(plays []*models.Play, now time.Time) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Play History\n\n")
	buf.WriteString(fmt.Sprintf("**Plays**: %s\n\n", humanize.Comma(int64(len(plays)))))

	for i, p := range plays {
		albumPart := ""
		if p.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", p.Album)
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s [%s], %s\n",
			i+1, p.Artists, p.Name, albumPart, FormatDuration(p.DurationMs), relative(p.PlayedAt, now)))
	}

	return buf.Bytes(), nil
}

// HistoryToText converts plays to plain text, one per line.
func HistoryToText(plays []*models.Play, now time.Time) ([]byte, error) {
	var buf bytes.Buffer

	if len(plays) == 0 {
		buf.WriteString("No plays recorded yet.\n")
		return buf.Bytes(), nil
	}

	for i, p := range plays {
		buf.WriteString(fmt.Sprintf("%3d. %-16s %s - %s [%s]\n",
			i+1, relative(p.PlayedAt, now), p.Artists, p.Name, FormatDuration(p.DurationMs)))
	}

	return buf.Bytes(), nil
}

func relative(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

// WriteExport writes data to path, creating or truncating it.
func WriteExport(path string, data []byte) error {
	if path == "" {
		return fmt.Errorf("%w: output path", shared.ErrMissingArgument)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}
