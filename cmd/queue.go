package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/trackbot/internal/confirm"
	"github.com/desertthunder/trackbot/internal/formatter"
	"github.com/desertthunder/trackbot/internal/models"
	"github.com/desertthunder/trackbot/internal/repositories"
	"github.com/urfave/cli/v3"
)

// printReplier writes bot messages to the runner's output instead of a chat room.
type printReplier struct {
	r *Runner
}

func (p printReplier) SendToRoom(ctx context.Context, room, text string) error {
	return p.r.writePlain("[%s] %s\n", room, text)
}

func (r *Runner) jobs() (*repositories.JobRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewJobRepository(db), nil
}

// QueueList prints the queued and processing jobs.
func (r *Runner) QueueList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	repo, err := r.jobs()
	if err != nil {
		return err
	}

	jobs, err := repo.List(ctx)
	if err != nil {
		return err
	}

	data, err := formatter.RenderJobs(format, jobs, time.Now())
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}

// QueueEnqueue queues a confirmation question for a track.
func (r *Runner) QueueEnqueue(ctx context.Context, cmd *cli.Command) error {
	trackID, err := parseTrack(cmd.String("track"))
	if err != nil {
		return err
	}

	room := cmd.String("room")
	if room == "" {
		room = r.config.Bot.Room
	}

	repo, err := r.jobs()
	if err != nil {
		return err
	}

	id, err := repo.Enqueue(ctx, models.NewConfirmAddJob(trackID, room))
	if err != nil {
		return err
	}
	r.metrics.RecordEnqueue()

	return r.writePlain("✓ Queued job %s for %s in %s\n", id, trackID, room)
}

// QueueClear deletes every job.
func (r *Runner) QueueClear(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.jobs()
	if err != nil {
		return err
	}

	n, err := repo.Clear(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Removed %d jobs\n", n)
}

// QueueTick runs one scheduler step. Questions and timeout notices are printed.
func (r *Runner) QueueTick(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.jobs()
	if err != nil {
		return err
	}

	scheduler := confirm.NewScheduler(repo, printReplier{r: r}, r.logger, r.metrics).
		WithTimings(r.config.Bot.PollInterval, r.config.Bot.StaleAfter)
	if err := scheduler.Tick(ctx); err != nil {
		return fmt.Errorf("tick failed: %w", err)
	}

	current, err := repo.CurrentlyProcessing(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		return r.writePlain("Queue is empty\n")
	}
	return r.writePlain("Processing %s: %s\n", current.ID, current.Question)
}

// QueueMarkers lists dedup markers, optionally purging expired ones first.
func (r *Runner) QueueMarkers(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}
	markers := repositories.NewMarkerRepository(db)

	if cmd.Bool("purge") {
		n, err := markers.Purge(ctx)
		if err != nil {
			return err
		}
		r.writePlain("✓ Purged %d expired markers\n", n)
	}

	all, err := markers.List(ctx)
	if err != nil {
		return err
	}

	if len(all) == 0 {
		return r.writePlain("No markers\n")
	}

	now := time.Now()
	for _, m := range all {
		state := "expires"
		if !m.Live(now) {
			state = "expired"
		}
		r.writePlain("%s\t%s\t%s %s\n", m.Key, m.Value, state, m.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}
