package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackbot/internal/shared"
	"github.com/robfig/cron/v3"
)

// PurgeSchedule is the cron spec for removing expired dedup markers.
const PurgeSchedule = "@every 1m"

// Purger deletes expired entries. [repositories.MarkerRepository] implements it.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// Maintenance runs the bot's housekeeping on a cron schedule: the marker purge and the uptime watchdog.
type Maintenance struct {
	cron      *cron.Cron
	purger    Purger
	maxUptime time.Duration
	logger    *log.Logger

	once    sync.Once
	expired chan struct{}
}

// NewMaintenance creates the housekeeping schedule. A zero maxUptime disables the watchdog.
func NewMaintenance(purger Purger, maxUptime time.Duration, logger *log.Logger) *Maintenance {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "component", "maintenance")

	cl := cronLogger{logger}
	return &Maintenance{
		cron:      cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		purger:    purger,
		maxUptime: maxUptime,
		logger:    logger,
		expired:   make(chan struct{}),
	}
}

// Run starts the schedule and blocks until ctx is done or the uptime limit is reached.
//
// Reaching the limit returns [shared.ErrUptimeExceeded] so the caller can exit and be restarted.
func (m *Maintenance) Run(ctx context.Context) error {
	if _, err := m.cron.AddFunc(PurgeSchedule, func() { m.Purge(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule purge: %w", err)
	}
	if m.maxUptime > 0 {
		m.cron.Schedule(cron.Every(m.maxUptime), cron.FuncJob(m.expire))
	}

	m.cron.Start()
	defer func() { <-m.cron.Stop().Done() }()

	select {
	case <-ctx.Done():
		return nil
	case <-m.expired:
		m.logger.Warn("uptime limit reached", "max_uptime", m.maxUptime)
		return fmt.Errorf("%w: %s", shared.ErrUptimeExceeded, m.maxUptime)
	}
}

// Purge deletes expired markers and returns how many were removed. Errors are logged.
func (m *Maintenance) Purge(ctx context.Context) int64 {
	n, err := m.purger.Purge(ctx)
	if err != nil {
		m.logger.Error("marker purge failed", "error", err)
		return 0
	}
	if n > 0 {
		m.logger.Debug("purged markers", "count", n)
	}
	return n
}

func (m *Maintenance) expire() {
	m.once.Do(func() { close(m.expired) })
}

// cronLogger adapts a charm logger to [cron.Logger].
type cronLogger struct {
	l *log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
