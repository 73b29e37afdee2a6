// Package watcher reacts to catalog links posted in chat.
//
// Each message carrying a link passes the dedup gate twice, by message id and by link and room, before the
// link is parsed. Only track links are acted on. Depending on configuration the track is either reconciled
// into the playlist at once or queued as a confirmation job for the room to answer.
package watcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackbot/internal/chat"
	"github.com/desertthunder/trackbot/internal/dedup"
	"github.com/desertthunder/trackbot/internal/metrics"
	"github.com/desertthunder/trackbot/internal/models"
	"github.com/desertthunder/trackbot/internal/shared"
)

// Reporter reconciles a track and returns the text to post. [playlist.Reconciler] implements it.
type Reporter interface {
	Report(ctx context.Context, trackID string) (string, error)
}

// Enqueuer adds confirmation jobs to the queue. [repositories.JobRepository] implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *models.Job) (string, error)
}

// Replier sends a message to a chat room.
type Replier interface {
	SendToRoom(ctx context.Context, room, text string) error
}

// Options configures a [LinkWatcher].
type Options struct {
	// Confirm queues a question instead of adding the track directly.
	Confirm bool
	Logger  *log.Logger
	Metrics *metrics.Collector
}

// LinkWatcher handles messages that contain catalog links.
type LinkWatcher struct {
	gate     *dedup.Gate
	reporter Reporter
	queue    Enqueuer
	reply    Replier
	confirm  bool
	logger   *log.Logger
	metrics  *metrics.Collector
}

// New creates a LinkWatcher. queue is only used when opts.Confirm is set.
func New(gate *dedup.Gate, reporter Reporter, queue Enqueuer, reply Replier, opts Options) *LinkWatcher {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &LinkWatcher{
		gate:     gate,
		reporter: reporter,
		queue:    queue,
		reply:    reply,
		confirm:  opts.Confirm,
		logger:   shared.WithLogger(logger, "component", "watcher"),
		metrics:  opts.Metrics,
	}
}

// Handle processes msg if it contains a link that has not been seen recently.
//
// Messages without links, duplicates and non-track links are ignored without error. Reconcile failures are
// reported to the room rather than returned.
func (w *LinkWatcher) Handle(ctx context.Context, msg chat.Message) error {
	link := MatchLink(msg.Text)
	if link == "" {
		return nil
	}

	if msg.ID != "" {
		ok, err := w.gate.AllowMessage(ctx, msg.ID)
		if err != nil {
			return err
		}
		if !ok {
			w.logger.Debug("duplicate message", "id", msg.ID)
			return nil
		}
	}

	ok, err := w.gate.AllowLink(ctx, link, msg.Room)
	if err != nil {
		return err
	}
	if !ok {
		w.logger.Debug("link seen recently", "link", link, "room", msg.Room)
		return nil
	}

	ref, err := ParseLink(link)
	if err != nil {
		w.logger.Warn("unparseable link", "link", link, "error", err)
		return nil
	}
	if !ref.IsTrack() {
		w.logger.Warn("only track links are supported", "link", link, "type", ref.Type)
		return nil
	}

	if w.confirm {
		return w.enqueue(ctx, ref, msg.Room)
	}
	return w.add(ctx, ref, msg.Room)
}

func (w *LinkWatcher) enqueue(ctx context.Context, ref models.TrackRef, room string) error {
	job := models.NewConfirmAddJob(ref.ID, room)
	id, err := w.queue.Enqueue(ctx, job)
	if err != nil {
		return fmt.Errorf("failed to enqueue confirmation for %s: %w", ref.URI, err)
	}

	w.metrics.RecordEnqueue()
	w.logger.Info("confirmation queued", "id", id, "uri", ref.URI, "room", room)
	return nil
}

func (w *LinkWatcher) add(ctx context.Context, ref models.TrackRef, room string) error {
	text, err := w.reporter.Report(ctx, ref.ID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		w.logger.Warn("failed to add track", "uri", ref.URI, "error", err)
	}
	if text == "" {
		return nil
	}
	return w.reply.SendToRoom(ctx, room, text)
}
