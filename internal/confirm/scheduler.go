package confirm

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackbot/internal/metrics"
	"github.com/desertthunder/trackbot/internal/models"
	"github.com/desertthunder/trackbot/internal/shared"
)

const (
	DefaultInterval   = time.Second
	DefaultStaleAfter = 10 * time.Second
)

// Scheduler promotes queued jobs one at a time and evicts the processing job once it goes unanswered.
type Scheduler struct {
	queue      Queue
	reply      Replier
	logger     *log.Logger
	metrics    *metrics.Collector
	now        func() time.Time
	interval   time.Duration
	staleAfter time.Duration
}

// NewScheduler creates a Scheduler with [DefaultInterval] and [DefaultStaleAfter].
func NewScheduler(queue Queue, reply Replier, logger *log.Logger, m *metrics.Collector) *Scheduler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Scheduler{
		queue:      queue,
		reply:      reply,
		logger:     shared.WithLogger(logger, "component", "scheduler"),
		metrics:    m,
		now:        time.Now,
		interval:   DefaultInterval,
		staleAfter: DefaultStaleAfter,
	}
}

// WithTimings overrides the poll interval and staleness window. Non-positive values keep the current setting.
func (s *Scheduler) WithTimings(interval, staleAfter time.Duration) *Scheduler {
	if interval > 0 {
		s.interval = interval
	}
	if staleAfter > 0 {
		s.staleAfter = staleAfter
	}
	return s
}

// WithClock replaces the scheduler's time source.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Interval is how often the owner should call [Scheduler.Tick].
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// StaleAfter is how long a processing job may go unanswered.
func (s *Scheduler) StaleAfter() time.Duration {
	return s.staleAfter
}

// Tick evicts a stale processing job, then promotes the next queued job if none is processing.
//
// Chat delivery failures are logged and do not fail the tick; queue errors are returned. The processing
// gauge follows the queue state observed by the tick.
func (s *Scheduler) Tick(ctx context.Context) error {
	started := time.Now()
	defer func() { s.metrics.ObserveTick(time.Since(started)) }()

	now := s.now()

	current, err := s.queue.CurrentlyProcessing(ctx)
	if err != nil {
		return fmt.Errorf("failed to load processing job: %w", err)
	}

	if current != nil && current.Stale(now, s.staleAfter) {
		if err := s.evict(ctx, current); err != nil {
			return err
		}
		current = nil
	}

	if current != nil {
		s.metrics.SetProcessing(true)
		return nil
	}

	next, err := s.queue.StartProcessingNext(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to promote next job: %w", err)
	}
	s.metrics.SetProcessing(next != nil)
	if next == nil {
		return nil
	}

	s.metrics.RecordPromote()
	s.logger.Info("job promoted", "id", next.ID, "type", next.Type, "room", next.Room)
	s.send(ctx, next.Room, next.Question)
	return nil
}

func (s *Scheduler) evict(ctx context.Context, job *models.Job) error {
	removed, err := s.queue.ResolveProcessing(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("failed to evict job %s: %w", job.ID, err)
	}
	if !removed {
		s.logger.Debug("stale job already gone", "id", job.ID)
		return nil
	}

	s.metrics.RecordEvict()
	s.logger.Info("job evicted", "id", job.ID, "asked_at", job.AskedAt, "room", job.Room)
	s.send(ctx, job.Room, job.OnTimeoutMessage)
	return nil
}

func (s *Scheduler) send(ctx context.Context, room, text string) {
	if text == "" {
		return
	}
	if err := s.reply.SendToRoom(ctx, room, text); err != nil {
		s.logger.Error("failed to send message", "room", room, "error", err)
	}
}
