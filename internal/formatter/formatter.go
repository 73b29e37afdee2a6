// package formatter renders playlist snapshots and the job queue as text, CSV, Markdown or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/trackbot/internal/models"
	"github.com/desertthunder/trackbot/internal/shared"
)

// Format selects an output encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatCSV, FormatMarkdown, FormatJSON}

// ParseFormat maps a flag value to a Format. "md" is accepted for Markdown and "" means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// SnapshotView is the JSON shape of a playlist snapshot.
type SnapshotView struct {
	PlaylistID string   `json:"playlist_id"`
	Tracks     int      `json:"tracks"`
	Pages      int      `json:"pages"`
	Truncated  bool     `json:"truncated"`
	URIs       []string `json:"uris"`
}

// JobView is the JSON shape of a queued job.
type JobView struct {
	ID       string            `json:"id"`
	Sequence int               `json:"sequence"`
	Type     string            `json:"type"`
	State    string            `json:"state"`
	Room     string            `json:"room"`
	Question string            `json:"question"`
	Meta     map[string]string `json:"meta,omitempty"`
	AskedAt  *time.Time        `json:"asked_at,omitempty"`
	Created  time.Time         `json:"created_at"`
}

// RenderSnapshot encodes snap in format.
func RenderSnapshot(format Format, playlistID string, snap models.Snapshot) ([]byte, error) {
	switch format {
	case FormatText, "":
		return SnapshotToText(playlistID, snap), nil
	case FormatCSV:
		return SnapshotToCSV(snap)
	case FormatMarkdown:
		return SnapshotToMarkdown(playlistID, snap), nil
	case FormatJSON:
		return marshal(SnapshotView{
			PlaylistID: playlistID,
			Tracks:     snap.Len(),
			Pages:      snap.Pages,
			Truncated:  snap.Truncated,
			URIs:       nonNil(snap.URIs),
		})
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// RenderJobs encodes jobs in format. now is used to show how long the processing job has been waiting.
func RenderJobs(format Format, jobs []*models.Job, now time.Time) ([]byte, error) {
	switch format {
	case FormatText, "":
		return JobsToText(jobs, now), nil
	case FormatCSV:
		return JobsToCSV(jobs)
	case FormatMarkdown:
		return JobsToMarkdown(jobs, now), nil
	case FormatJSON:
		views := make([]JobView, 0, len(jobs))
		for _, j := range jobs {
			views = append(views, JobView{
				ID:       j.ID,
				Sequence: j.Sequence,
				Type:     string(j.Type),
				State:    jobState(j),
				Room:     j.Room,
				Question: j.Question,
				Meta:     j.Meta,
				AskedAt:  j.AskedAt,
				Created:  j.CreatedAt,
			})
		}
		return marshal(views)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// unavailable labels playlist items whose track can no longer be resolved.
const unavailable = "(unavailable)"

// SnapshotToCSV writes one row per track with columns: Position, URI
func SnapshotToCSV(snap models.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Position", "URI"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, uri := range snap.URIs {
		if err := writer.Write([]string{strconv.Itoa(i), uri}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// SnapshotToMarkdown renders the snapshot as a numbered list under a heading.
func SnapshotToMarkdown(playlistID string, snap models.Snapshot) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Playlist %s\n\n", playlistID)
	fmt.Fprintf(&buf, "**Tracks**: %d\n", snap.Len())
	fmt.Fprintf(&buf, "**Pages**: %d\n\n", snap.Pages)
	if snap.Truncated {
		buf.WriteString("> ⚠ The fetch stopped early; later tracks may be missing.\n\n")
	}

	buf.WriteString("## Tracks\n\n")
	for i, uri := range snap.URIs {
		if uri == "" {
			fmt.Fprintf(&buf, "%d. _%s_\n", i+1, unavailable)
			continue
		}
		fmt.Fprintf(&buf, "%d. `%s`\n", i+1, uri)
	}

	return buf.Bytes()
}

// SnapshotToText renders the snapshot as plain text.
func SnapshotToText(playlistID string, snap models.Snapshot) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", playlistID)
	fmt.Fprintf(&buf, "Tracks: %d\n", snap.Len())
	if snap.Truncated {
		fmt.Fprintf(&buf, "Warning: fetch truncated after %d pages\n", snap.Pages)
	}
	buf.WriteString("\n")

	for i, uri := range snap.URIs {
		if uri == "" {
			uri = unavailable
		}
		fmt.Fprintf(&buf, "%d. %s\n", i+1, uri)
	}

	return buf.Bytes()
}

// JobsToCSV writes one row per job with columns: ID, Sequence, Type, State, Room, TrackID, AskedAt
func JobsToCSV(jobs []*models.Job) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "Sequence", "Type", "State", "Room", "TrackID", "AskedAt"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, j := range jobs {
		askedAt := ""
		if j.AskedAt != nil {
			askedAt = j.AskedAt.UTC().Format(time.RFC3339)
		}
		record := []string{j.ID, strconv.Itoa(j.Sequence), string(j.Type), jobState(j), j.Room, j.TrackID(), askedAt}
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

// JobsToMarkdown renders the queue as a Markdown table.
func JobsToMarkdown(jobs []*models.Job, now time.Time) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Job Queue\n\n**Jobs**: %d\n\n", len(jobs))
	if len(jobs) == 0 {
		return buf.Bytes()
	}

	buf.WriteString("| # | State | Type | Room | Question |\n")
	buf.WriteString("|---|-------|------|------|----------|\n")
	for _, j := range jobs {
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s |\n",
			j.Sequence, describeState(j, now), j.Type, j.Room, strings.ReplaceAll(j.Question, "|", `\|`))
	}

	return buf.Bytes()
}

// JobsToText renders the queue as plain text, processing job first.
func JobsToText(jobs []*models.Job, now time.Time) []byte {
	var buf bytes.Buffer

	if len(jobs) == 0 {
		buf.WriteString("Queue is empty\n")
		return buf.Bytes()
	}

	fmt.Fprintf(&buf, "Jobs: %d\n\n", len(jobs))
	for _, j := range jobs {
		fmt.Fprintf(&buf, "%d. [%s] %s\n", j.Sequence, describeState(j, now), j.Question)
		fmt.Fprintf(&buf, "   ID: %s\n", j.ID)
		fmt.Fprintf(&buf, "   Room: %s\n", j.Room)
	}

	return buf.Bytes()
}

func jobState(j *models.Job) string {
	if j.Processing() {
		return "processing"
	}
	return "queued"
}

func describeState(j *models.Job, now time.Time) string {
	if !j.Processing() {
		return "queued"
	}
	return fmt.Sprintf("processing, asked %s ago", now.Sub(*j.AskedAt).Truncate(time.Second))
}

func marshal(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
