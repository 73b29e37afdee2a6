package confirm

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackbot/internal/chat"
	"github.com/desertthunder/trackbot/internal/metrics"
	"github.com/desertthunder/trackbot/internal/shared"
)

// Answerer treats inbound chat messages as answers to the processing job.
type Answerer struct {
	queue    Queue
	registry *Registry
	reply    Replier
	botName  string
	logger   *log.Logger
	metrics  *metrics.Collector
}

// NewAnswerer creates an Answerer. botName is stripped from the front of answers, see [ParseAnswer].
func NewAnswerer(queue Queue, registry *Registry, reply Replier, botName string, logger *log.Logger, m *metrics.Collector) *Answerer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Answerer{
		queue:    queue,
		registry: registry,
		reply:    reply,
		botName:  botName,
		logger:   shared.WithLogger(logger, "component", "answerer"),
		metrics:  m,
	}
}

// HandleAnswer offers msg to the processing job's handler and removes the job if the handler resolves it.
//
// It reports whether a job was removed. With nothing processing it does nothing. A job whose type has no
// handler is logged and left in place for the scheduler to evict.
func (a *Answerer) HandleAnswer(ctx context.Context, msg chat.Message) (bool, error) {
	job, err := a.queue.CurrentlyProcessing(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load processing job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	answer := ParseAnswer(msg.Text, a.botName)

	resolved, err := a.registry.Dispatch(ctx, answer, job, a.reply)
	if err != nil {
		if errors.Is(err, shared.ErrUnknownJobType) {
			a.logger.Error("cannot handle job", "id", job.ID, "error", err)
			return false, nil
		}
		a.logger.Error("handler failed", "id", job.ID, "type", job.Type, "error", err)
	}
	if !resolved {
		return false, nil
	}

	removed, err := a.queue.ResolveProcessing(ctx, job.ID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve job %s: %w", job.ID, err)
	}
	if !removed {
		a.logger.Debug("answered job already gone", "id", job.ID)
		return false, nil
	}

	a.metrics.RecordResolve()
	a.logger.Info("job resolved", "id", job.ID, "user", msg.User, "room", msg.Room)
	return true, nil
}
