// package formatter renders save outcomes, playlists and history as text, CSV and Markdown
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/desertthunder/tracksaver/internal/models"
	"github.com/desertthunder/tracksaver/internal/services"
)

const timeLayout = "2006-01-02 15:04"

// Format names an export format accepted by [Export].
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
)

// ParseFormat accepts "text", "csv", "md" or "markdown"; empty means text.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "text", "txt":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, csv or md)", s)
}

// RenderOutcome returns a one-line styled status for interactive output.
func RenderOutcome(p *Palette, o Outcome) string {
	if o.OK {
		return p.OK("✓ Saved") + fmt.Sprintf(" %s by %s", o.TrackName, o.ArtistName)
	}
	if o.Status == models.StatusDuplicate {
		return p.Warn("• " + o.Reason)
	}
	return p.Err("✗ " + o.Reason)
}

// PlaylistsToCSV converts playlists to CSV with columns: ID, Name, Owner, Tracks, Collaborative, Image
func PlaylistsToCSV(playlists []services.Playlist) ([]byte, error) {
	rows := make([][]string, 0, len(playlists))
	for _, pl := range playlists {
		collab := ""
		if pl.Collaborative != nil {
			collab = strconv.FormatBool(*pl.Collaborative)
		}
		image := ""
		if urls := pl.ImageURLs(); len(urls) > 0 {
			image = urls[0]
		}
		rows = append(rows, []string{pl.ID, pl.Name, pl.OwnerID, strconv.Itoa(pl.TrackCount), collab, image})
	}
	return writeCSV([]string{"ID", "Name", "Owner", "Tracks", "Collaborative", "Image"}, rows)
}

// PlaylistsToText lists playlists one per line. marks maps playlist ids to a label shown
// after the name, e.g. the slots that select it.
func PlaylistsToText(playlists []services.Playlist, marks map[string]string) []byte {
	var buf bytes.Buffer
	for i, pl := range playlists {
		fmt.Fprintf(&buf, "%d. %s (%d tracks) [%s]", i+1, pl.Name, pl.TrackCount, pl.ID)
		if m := marks[pl.ID]; m != "" {
			fmt.Fprintf(&buf, " ← %s", m)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// PlaylistsToMarkdown renders playlists as a Markdown table.
func PlaylistsToMarkdown(playlists []services.Playlist) []byte {
	var buf bytes.Buffer
	buf.WriteString("# Playlists\n\n| Name | Tracks | Owner | ID |\n|---|---|---|---|\n")
	for _, pl := range playlists {
		fmt.Fprintf(&buf, "| %s | %d | %s | `%s` |\n", pl.Name, pl.TrackCount, pl.OwnerID, pl.ID)
	}
	return buf.Bytes()
}

// HistoryToCSV converts entries to CSV with columns: Time, Status, Track, Artist, Playlist, TrackID, PlaylistID
func HistoryToCSV(entries []*models.HistoryEntry) ([]byte, error) {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.CreatedAt.Format(time.RFC3339),
			string(e.Status),
			e.TrackName,
			e.ArtistName,
			e.PlaylistName,
			e.TrackID,
			e.PlaylistID,
		})
	}
	return writeCSV([]string{"Time", "Status", "Track", "Artist", "Playlist", "TrackID", "PlaylistID"}, rows)
}

// HistoryToText lists entries one per line in local time.
func HistoryToText(entries []*models.HistoryEntry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&buf, "%s  %-9s  %s - %s → %s\n",
			e.CreatedAt.Local().Format(timeLayout), e.Status, e.ArtistName, e.TrackName, playlistLabel(e))
	}
	return buf.Bytes()
}

// HistoryToMarkdown renders entries under a heading with a track count.
func HistoryToMarkdown(entries []*models.HistoryEntry, title string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n**Entries**: %d\n\n", title, len(entries))
	for i, e := range entries {
		fmt.Fprintf(&buf, "%d. %s - %s (%s) [%s] %s\n",
			i+1, e.ArtistName, e.TrackName, playlistLabel(e), e.Status, e.CreatedAt.Local().Format(timeLayout))
	}
	return buf.Bytes()
}

// ExportHistory renders entries in format.
func ExportHistory(entries []*models.HistoryEntry, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return HistoryToCSV(entries)
	case FormatMarkdown:
		return HistoryToMarkdown(entries, "Save history"), nil
	default:
		return HistoryToText(entries), nil
	}
}

// ExportPlaylists renders playlists in format.
func ExportPlaylists(playlists []services.Playlist, marks map[string]string, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return PlaylistsToCSV(playlists)
	case FormatMarkdown:
		return PlaylistsToMarkdown(playlists), nil
	default:
		return PlaylistsToText(playlists, marks), nil
	}
}

// WriteExport writes data to path, creating parent directories.
func WriteExport(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}

func playlistLabel(e *models.HistoryEntry) string {
	if e.PlaylistName != "" {
		return e.PlaylistName
	}
	return e.PlaylistID
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, record := range rows {
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
