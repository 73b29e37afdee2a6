package playlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackbot/internal/metrics"
	"github.com/desertthunder/trackbot/internal/models"
	"github.com/desertthunder/trackbot/internal/services"
	"github.com/desertthunder/trackbot/internal/shared"
)

// PageSize is the number of playlist items requested per page.
const PageSize = 100

// maxPages bounds a snapshot fetch in case the catalog never returns an empty page.
const maxPages = 1000

// Catalog is the subset of the Spotify API the reconciler needs. [services.SpotifyService] implements it.
type Catalog interface {
	Track(ctx context.Context, trackID string) (*services.SpotifyTrack, error)
	PlaylistTracks(ctx context.Context, playlistID string, offset, limit int) (*services.SpotifyPlaylistTracks, error)
	AddTracksToPlaylist(ctx context.Context, playlistID string, uris []string, position int) (string, error)
	ReorderPlaylistTracks(ctx context.Context, playlistID string, rangeStart, insertBefore int) (string, error)
}

// Outcome is the result of a reconciliation.
type Outcome int

const (
	OutcomeAlreadyFirst Outcome = iota
	OutcomeMoved
	OutcomeAdded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMoved:
		return "moved"
	case OutcomeAdded:
		return "added"
	default:
		return "already_first"
	}
}

// Message is the chat text reported for the outcome. It is empty when nothing changed.
func (o Outcome) Message() string {
	switch o {
	case OutcomeMoved:
		return "Track already in playlist, moved it to the top."
	case OutcomeAdded:
		return "Track added to playlist!"
	default:
		return ""
	}
}

// FailureMessage is the chat text reported when a reconciliation fails.
func FailureMessage(err error) string {
	return fmt.Sprintf("Failed to add track to playlist 😓  \"%s\"", err.Error())
}

// Progress describes one step of a snapshot fetch.
type Progress struct {
	Page    int
	Count   int
	Message string
}

// Reconciler inserts or promotes tracks to the front of one playlist.
type Reconciler struct {
	catalog    Catalog
	playlistID string
	logger     *log.Logger
	metrics    *metrics.Collector
	progress   chan<- Progress
}

// New creates a Reconciler for playlistID. A nil logger uses [shared.NewLogger]; a nil collector disables metrics.
func New(catalog Catalog, playlistID string, logger *log.Logger, m *metrics.Collector) *Reconciler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Reconciler{
		catalog:    catalog,
		playlistID: playlistID,
		logger:     shared.WithLogger(logger, "component", "reconciler"),
		metrics:    m,
	}
}

// WithProgress sets a channel that receives page fetch updates. Updates are dropped when it is full.
func (r *Reconciler) WithProgress(ch chan<- Progress) *Reconciler {
	r.progress = ch
	return r
}

// PlaylistID returns the playlist being managed.
func (r *Reconciler) PlaylistID() string {
	return r.playlistID
}

func (r *Reconciler) sendProgress(p Progress) {
	if r.progress == nil {
		return
	}
	select {
	case r.progress <- p:
	default:
	}
}

// Snapshot fetches the playlist's track URIs in order. It never fails; see the package docs for truncation.
func (r *Reconciler) Snapshot(ctx context.Context) models.Snapshot {
	var snap models.Snapshot

	for offset := 0; snap.Pages < maxPages; offset += PageSize {
		page, err := r.catalog.PlaylistTracks(ctx, r.playlistID, offset, PageSize)
		if err != nil {
			snap.Truncated = true
			r.metrics.RecordTruncatedFetch()
			r.logger.Warn("playlist fetch truncated", "offset", offset, "tracks", len(snap.URIs), "err", err)
			return snap
		}

		snap.Pages++
		if len(page.Items) == 0 {
			return snap
		}

		snap.URIs = append(snap.URIs, page.URIs()...)
		r.sendProgress(Progress{
			Page:    snap.Pages,
			Count:   len(snap.URIs),
			Message: fmt.Sprintf("fetched %d tracks", len(snap.URIs)),
		})
	}

	snap.Truncated = true
	r.metrics.RecordTruncatedFetch()
	r.logger.Warn("playlist fetch stopped at page limit", "pages", snap.Pages)
	return snap
}

// Reconcile moves uri to position 0, inserting it if the playlist does not contain it.
func (r *Reconciler) Reconcile(ctx context.Context, uri string) (Outcome, error) {
	if uri == "" {
		return OutcomeAlreadyFirst, fmt.Errorf("%w: empty track uri", shared.ErrInvalidArgument)
	}

	outcome, err := r.apply(ctx, uri, r.Snapshot(ctx))
	if err != nil {
		r.metrics.RecordReconcile("failed")
		return outcome, err
	}

	r.metrics.RecordReconcile(outcome.String())
	r.logger.Info("reconciled", "uri", uri, "outcome", outcome)
	return outcome, nil
}

func (r *Reconciler) apply(ctx context.Context, uri string, snap models.Snapshot) (Outcome, error) {
	switch pos := snap.IndexOf(uri); {
	case pos == 0:
		return OutcomeAlreadyFirst, nil
	case pos > 0:
		if _, err := r.catalog.ReorderPlaylistTracks(ctx, r.playlistID, pos, 0); err != nil {
			return OutcomeMoved, fmt.Errorf("failed to move track: %w", err)
		}
		return OutcomeMoved, nil
	default:
		if _, err := r.catalog.AddTracksToPlaylist(ctx, r.playlistID, []string{uri}, 0); err != nil {
			return OutcomeAdded, fmt.Errorf("failed to add track: %w", err)
		}
		return OutcomeAdded, nil
	}
}

// ReconcileTrack resolves trackID to its canonical URI and reconciles it.
func (r *Reconciler) ReconcileTrack(ctx context.Context, trackID string) (Outcome, error) {
	track, err := r.catalog.Track(ctx, trackID)
	if err != nil {
		r.metrics.RecordReconcile("failed")
		return OutcomeAlreadyFirst, err
	}
	return r.Reconcile(ctx, track.URI)
}

// Report reconciles trackID and returns the text to send to the room, or "" when nothing changed.
//
// Failures are turned into [FailureMessage] text and also returned for logging.
func (r *Reconciler) Report(ctx context.Context, trackID string) (string, error) {
	outcome, err := r.ReconcileTrack(ctx, trackID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return FailureMessage(err), err
	}
	return outcome.Message(), nil
}
