package confirm

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/trackbot/internal/chat"
	"github.com/desertthunder/trackbot/internal/metrics"
	"github.com/desertthunder/trackbot/internal/models"
	"github.com/desertthunder/trackbot/internal/playlist"
	"github.com/desertthunder/trackbot/internal/repositories"
	"github.com/desertthunder/trackbot/internal/shared"
	"github.com/desertthunder/trackbot/internal/testing/fakes"
)

var base = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

type clock struct{ now time.Time }

func newClock() *clock { return &clock{now: base} }

func (c *clock) Now() time.Time { return c.now }

// Set moves the clock to base plus d.
func (c *clock) Set(d time.Duration) { c.now = base.Add(d) }

func enqueue(t *testing.T, q *repositories.JobRepository, trackID string) *models.Job {
	t.Helper()

	job := models.NewConfirmAddJob(trackID, "general")
	if _, err := q.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}
	return job
}

// resolvedElsewhere removes the job, then reports it as already gone.
type resolvedElsewhere struct{ *repositories.JobRepository }

func (q resolvedElsewhere) ResolveProcessing(ctx context.Context, id string) (bool, error) {
	if _, err := q.JobRepository.ResolveProcessing(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func processingGauge(t *testing.T, m *metrics.Collector) float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("failed to gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "trackbot_job_processing" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("processing gauge not registered")
	return 0
}

func processing(t *testing.T, q *repositories.JobRepository) *models.Job {
	t.Helper()

	job, err := q.CurrentlyProcessing(context.Background())
	if err != nil {
		t.Fatalf("failed to load processing job: %v", err)
	}
	return job
}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		botName string
		want    string
	}{
		{"Prefixed", "trackbot y", "trackbot", "y"},
		{"Plain", "y", "trackbot", "y"},
		{"No Space After Name", "trackboty", "trackbot", "trackboty"},
		{"Name Only", "trackbot", "trackbot", "trackbot"},
		{"Name Mid Sentence", "hey trackbot y", "trackbot", "hey trackbot y"},
		{"Only First Prefix", "trackbot trackbot n", "trackbot", "trackbot n"},
		{"Empty Bot Name", " y", "", " y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseAnswer(tt.text, tt.botName); got != tt.want {
				t.Errorf("ParseAnswer(%q, %q) = %q, want %q", tt.text, tt.botName, got, tt.want)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	rec := &fakes.Recorder{}

	t.Run("dispatches by type", func(t *testing.T) {
		r := NewRegistry()

		var gotAnswer string
		r.Register("PING", func(ctx context.Context, answer string, job *models.Job, reply Replier) (bool, error) {
			gotAnswer = answer
			return true, nil
		})

		resolved, err := r.Dispatch(ctx, "pong", &models.Job{Type: "PING"}, rec)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !resolved || gotAnswer != "pong" {
			t.Errorf("expected resolved dispatch with answer pong, got %v %q", resolved, gotAnswer)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		r := NewRegistry()

		_, err := r.Dispatch(ctx, "y", &models.Job{Type: "MYSTERY"}, rec)
		if !errors.Is(err, shared.ErrUnknownJobType) {
			t.Fatalf("expected ErrUnknownJobType, got %v", err)
		}
		if !strings.Contains(err.Error(), "MYSTERY") {
			t.Errorf("expected error to name the type, got %v", err)
		}
	})

	t.Run("types", func(t *testing.T) {
		r := NewRegistry()
		noop := func(context.Context, string, *models.Job, Replier) (bool, error) { return false, nil }
		r.Register("B", noop)
		r.Register("A", noop)

		types := r.Types()
		if len(types) != 2 || types[0] != "A" || types[1] != "B" {
			t.Errorf("expected [A B], got %v", types)
		}
	})
}

func TestConfirmAddToPlaylist(t *testing.T) {
	ctx := context.Background()

	setup := func(uris ...string) (*fakes.FakeCatalog, *fakes.Recorder, HandlerFunc) {
		catalog := fakes.NewFakeCatalog(uris...)
		rec := &fakes.Recorder{}
		return catalog, rec, ConfirmAddToPlaylist(playlist.New(catalog, "pl", nil, nil), nil)
	}

	t.Run("yes adds track", func(t *testing.T) {
		for _, answer := range []string{"y", "Y"} {
			catalog, rec, handle := setup("spotify:track:other")

			resolved, err := handle(ctx, answer, models.NewConfirmAddJob("abc", "general"), rec)
			if err != nil {
				t.Fatalf("%q: unexpected error: %v", answer, err)
			}
			if !resolved {
				t.Errorf("%q: expected job to be resolved", answer)
			}
			if len(catalog.Adds) != 1 || catalog.Adds[0].URIs[0] != "spotify:track:abc" || catalog.Adds[0].Position != 0 {
				t.Errorf("%q: expected one add at the top, got %+v", answer, catalog.Adds)
			}

			sent := rec.Sent()
			if len(sent) != 1 || sent[0].Room != "general" || sent[0].Text != "Track added to playlist!" {
				t.Errorf("%q: unexpected messages: %+v", answer, sent)
			}
		}
	})

	t.Run("yes moves existing track", func(t *testing.T) {
		catalog, rec, handle := setup("spotify:track:a", "spotify:track:abc")

		resolved, _ := handle(ctx, "y", models.NewConfirmAddJob("abc", "general"), rec)
		if !resolved {
			t.Error("expected job to be resolved")
		}
		if len(catalog.Moves) != 1 || catalog.Moves[0] != (fakes.Move{From: 1, To: 0}) {
			t.Errorf("expected one move 1->0, got %+v", catalog.Moves)
		}
		if texts := rec.Texts(); len(texts) != 1 || texts[0] != "Track already in playlist, moved it to the top." {
			t.Errorf("unexpected messages: %v", texts)
		}
	})

	t.Run("yes with track already first", func(t *testing.T) {
		catalog, rec, handle := setup("spotify:track:abc", "spotify:track:b")

		resolved, err := handle(ctx, "y", models.NewConfirmAddJob("abc", "general"), rec)
		if err != nil || !resolved {
			t.Fatalf("expected resolved without error, got %v %v", resolved, err)
		}
		if catalog.Mutations() != 0 {
			t.Errorf("expected no mutations, got %d", catalog.Mutations())
		}
		if len(rec.Sent()) != 0 {
			t.Errorf("expected no messages, got %v", rec.Texts())
		}
	})

	t.Run("yes with failure reports and resolves", func(t *testing.T) {
		catalog, rec, handle := setup()
		catalog.TrackErr = errors.New("invalid id")

		resolved, err := handle(ctx, "y", models.NewConfirmAddJob("abc", "general"), rec)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !resolved {
			t.Error("expected job to be resolved after a failure")
		}

		texts := rec.Texts()
		want := "Failed to add track to playlist 😓  \"invalid id\""
		if len(texts) != 1 || texts[0] != want {
			t.Errorf("expected %q, got %v", want, texts)
		}
	})

	t.Run("no declines", func(t *testing.T) {
		for _, answer := range []string{"n", "N"} {
			catalog, rec, handle := setup()

			resolved, err := handle(ctx, answer, models.NewConfirmAddJob("abc", "general"), rec)
			if err != nil || !resolved {
				t.Fatalf("%q: expected resolved without error, got %v %v", answer, resolved, err)
			}
			if catalog.TrackCalls != 0 || catalog.PageCalls != 0 {
				t.Errorf("%q: expected no catalog calls", answer)
			}
			if texts := rec.Texts(); len(texts) != 1 || texts[0] != "Ok won't add it." {
				t.Errorf("%q: unexpected messages: %v", answer, texts)
			}
		}
	})

	t.Run("other answers keep job", func(t *testing.T) {
		for _, answer := range []string{"", "yes", "no", "maybe", "y n", " y ", "y\n", " n", "🎵"} {
			catalog, rec, handle := setup()

			resolved, err := handle(ctx, answer, models.NewConfirmAddJob("abc", "general"), rec)
			if err != nil {
				t.Fatalf("%q: unexpected error: %v", answer, err)
			}
			if resolved {
				t.Errorf("%q: expected job to stay", answer)
			}
			if catalog.TrackCalls != 0 || len(rec.Sent()) != 0 {
				t.Errorf("%q: expected no side effects", answer)
			}
		}
	})

	t.Run("missing track ID", func(t *testing.T) {
		_, rec, handle := setup()

		resolved, err := handle(ctx, "y", &models.Job{Type: models.JobConfirmAddToPlaylist, Room: "general"}, rec)
		if !errors.Is(err, shared.ErrInvalidJob) {
			t.Errorf("expected ErrInvalidJob, got %v", err)
		}
		if !resolved {
			t.Error("expected malformed job to be resolved")
		}

		sent := rec.Sent()
		if len(sent) != 1 || sent[0].Room != "general" || !strings.HasPrefix(sent[0].Text, "Failed to add track to playlist") {
			t.Errorf("expected failure reported to the job's room, got %+v", sent)
		}
	})
}

func TestScheduler(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*repositories.JobRepository, *fakes.Recorder, *clock, *Scheduler) {
		q := repositories.NewJobRepository(setupTestDB(t))
		rec := &fakes.Recorder{}
		clk := newClock()
		return q, rec, clk, NewScheduler(q, rec, nil, nil).WithClock(clk.Now)
	}

	t.Run("defaults", func(t *testing.T) {
		s := NewScheduler(nil, nil, nil, nil)
		if s.Interval() != time.Second || s.StaleAfter() != 10*time.Second {
			t.Errorf("unexpected defaults: %v %v", s.Interval(), s.StaleAfter())
		}

		s.WithTimings(0, 30*time.Second)
		if s.Interval() != time.Second || s.StaleAfter() != 30*time.Second {
			t.Errorf("unexpected timings: %v %v", s.Interval(), s.StaleAfter())
		}
	})

	t.Run("empty queue", func(t *testing.T) {
		_, rec, _, s := setup(t)

		if err := s.Tick(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rec.Sent()) != 0 {
			t.Errorf("expected no messages, got %v", rec.Texts())
		}
	})

	t.Run("promotes one job at a time", func(t *testing.T) {
		q, rec, clk, s := setup(t)
		first := enqueue(t, q, "a")
		enqueue(t, q, "b")
		enqueue(t, q, "c")

		for _, at := range []time.Duration{0, time.Second, 5 * time.Second, 10 * time.Second} {
			clk.Set(at)
			if err := s.Tick(ctx); err != nil {
				t.Fatalf("tick at %v: %v", at, err)
			}
		}

		current := processing(t, q)
		if current == nil || current.ID != first.ID {
			t.Fatalf("expected first job to be processing, got %+v", current)
		}
		if !current.AskedAt.Equal(base) {
			t.Errorf("expected asked_at %v, got %v", base, current.AskedAt)
		}

		sent := rec.Sent()
		if len(sent) != 1 || sent[0].Room != "general" || sent[0].Text != first.Question {
			t.Errorf("expected only the first question, got %+v", sent)
		}
	})

	t.Run("evicts stale job and promotes next", func(t *testing.T) {
		q, rec, clk, s := setup(t)
		first := enqueue(t, q, "a")
		second := enqueue(t, q, "b")

		if err := s.Tick(ctx); err != nil {
			t.Fatalf("tick failed: %v", err)
		}

		clk.Set(10*time.Second + time.Millisecond)
		if err := s.Tick(ctx); err != nil {
			t.Fatalf("tick failed: %v", err)
		}

		want := []string{first.Question, "No answer, won't add it.", second.Question}
		texts := rec.Texts()
		if len(texts) != len(want) {
			t.Fatalf("expected %v, got %v", want, texts)
		}
		for i := range want {
			if texts[i] != want[i] {
				t.Errorf("message %d: expected %q, got %q", i, want[i], texts[i])
			}
		}

		if _, err := q.Get(ctx, first.ID); !errors.Is(err, shared.ErrJobNotFound) {
			t.Errorf("expected evicted job to be gone, got %v", err)
		}
		if current := processing(t, q); current == nil || current.ID != second.ID {
			t.Errorf("expected second job processing, got %+v", current)
		}
	})

	t.Run("evicted job never returns", func(t *testing.T) {
		q, rec, clk, s := setup(t)
		job := enqueue(t, q, "a")

		s.Tick(ctx)
		clk.Set(11 * time.Second)
		s.Tick(ctx)
		clk.Set(30 * time.Second)
		s.Tick(ctx)

		jobs, err := q.List(ctx)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(jobs) != 0 {
			t.Errorf("expected empty queue, got %d jobs", len(jobs))
		}

		count := 0
		for _, text := range rec.Texts() {
			if text == job.Question {
				count++
			}
		}
		if count != 1 {
			t.Errorf("expected the question once, got %d", count)
		}
	})

	t.Run("send failure keeps promotion", func(t *testing.T) {
		q, rec, _, s := setup(t)
		rec.Err = errors.New("chat down")
		job := enqueue(t, q, "a")

		if err := s.Tick(ctx); err != nil {
			t.Fatalf("expected send failure to be swallowed, got %v", err)
		}
		if current := processing(t, q); current == nil || current.ID != job.ID {
			t.Errorf("expected job to be processing, got %+v", current)
		}
	})

	t.Run("custom staleness", func(t *testing.T) {
		q, rec, clk, s := setup(t)
		s.WithTimings(0, 2*time.Second)
		enqueue(t, q, "a")

		s.Tick(ctx)
		clk.Set(3 * time.Second)
		s.Tick(ctx)

		if texts := rec.Texts(); len(texts) != 2 || texts[1] != "No answer, won't add it." {
			t.Errorf("expected eviction after 2s, got %v", texts)
		}
	})

	t.Run("gauge reflects a job left by an earlier run", func(t *testing.T) {
		q := repositories.NewJobRepository(setupTestDB(t))
		enqueue(t, q, "a")
		if _, err := q.StartProcessingNext(ctx, base); err != nil {
			t.Fatalf("failed to start job: %v", err)
		}

		m := metrics.NewCollector()
		s := NewScheduler(q, &fakes.Recorder{}, nil, m).WithClock(newClock().Now)
		if err := s.Tick(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := processingGauge(t, m); got != 1 {
			t.Errorf("expected processing gauge 1, got %v", got)
		}
	})

	t.Run("gauge cleared when stale job is already gone", func(t *testing.T) {
		q := repositories.NewJobRepository(setupTestDB(t))
		enqueue(t, q, "a")

		m := metrics.NewCollector()
		clk := newClock()
		rec := &fakes.Recorder{}
		s := NewScheduler(resolvedElsewhere{q}, rec, nil, m).WithClock(clk.Now)

		s.Tick(ctx)
		if got := processingGauge(t, m); got != 1 {
			t.Fatalf("expected processing gauge 1 after promotion, got %v", got)
		}

		clk.Set(11 * time.Second)
		if err := s.Tick(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := processingGauge(t, m); got != 0 {
			t.Errorf("expected processing gauge 0, got %v", got)
		}
		if texts := rec.Texts(); len(texts) != 1 {
			t.Errorf("expected no timeout message for a job resolved elsewhere, got %v", texts)
		}
	})
}

func TestAnswerer(t *testing.T) {
	ctx := context.Background()

	type env struct {
		q       *repositories.JobRepository
		rec     *fakes.Recorder
		catalog *fakes.FakeCatalog
		reg     *Registry
		a       *Answerer
		s       *Scheduler
	}

	setup := func(t *testing.T) *env {
		e := &env{
			q:       repositories.NewJobRepository(setupTestDB(t)),
			rec:     &fakes.Recorder{},
			catalog: fakes.NewFakeCatalog(),
			reg:     NewRegistry(),
		}
		e.reg.Register(models.JobConfirmAddToPlaylist, ConfirmAddToPlaylist(playlist.New(e.catalog, "pl", nil, nil), nil))
		e.a = NewAnswerer(e.q, e.reg, e.rec, "trackbot", nil, nil)
		e.s = NewScheduler(e.q, e.rec, nil, nil)
		return e
	}

	msg := func(text string) chat.Message {
		return chat.Message{ID: shared.GenerateID(), Room: "general", User: "ann", Text: text}
	}

	t.Run("nothing processing", func(t *testing.T) {
		e := setup(t)
		enqueue(t, e.q, "a")

		resolved, err := e.a.HandleAnswer(ctx, msg("y"))
		if err != nil || resolved {
			t.Fatalf("expected no-op, got %v %v", resolved, err)
		}
		if e.catalog.TrackCalls != 0 || len(e.rec.Sent()) != 0 {
			t.Error("expected no side effects for a queued job")
		}
	})

	t.Run("resolves with prefixed answer", func(t *testing.T) {
		e := setup(t)
		job := enqueue(t, e.q, "a")
		e.s.Tick(ctx)

		resolved, err := e.a.HandleAnswer(ctx, msg("trackbot y"))
		if err != nil || !resolved {
			t.Fatalf("expected resolved, got %v %v", resolved, err)
		}

		if _, err := e.q.Get(ctx, job.ID); !errors.Is(err, shared.ErrJobNotFound) {
			t.Errorf("expected job removed, got %v", err)
		}
		if e.catalog.Mutations() != 1 {
			t.Errorf("expected one mutation, got %d", e.catalog.Mutations())
		}

		texts := e.rec.Texts()
		if len(texts) != 2 || texts[1] != "Track added to playlist!" {
			t.Errorf("unexpected messages: %v", texts)
		}
	})

	t.Run("unrecognised answer keeps job", func(t *testing.T) {
		e := setup(t)
		job := enqueue(t, e.q, "a")
		e.s.Tick(ctx)

		resolved, err := e.a.HandleAnswer(ctx, msg("what is this?"))
		if err != nil || resolved {
			t.Fatalf("expected unresolved, got %v %v", resolved, err)
		}
		if current := processing(t, e.q); current == nil || current.ID != job.ID {
			t.Error("expected job to stay processing")
		}
	})

	t.Run("unknown job type left in place", func(t *testing.T) {
		e := setup(t)
		job := &models.Job{Type: "MYSTERY", Room: "general", Question: "?"}
		if _, err := e.q.Enqueue(ctx, job); err != nil {
			t.Fatalf("failed to enqueue: %v", err)
		}
		e.s.Tick(ctx)

		resolved, err := e.a.HandleAnswer(ctx, msg("y"))
		if err != nil || resolved {
			t.Fatalf("expected logged no-op, got %v %v", resolved, err)
		}
		if current := processing(t, e.q); current == nil || current.ID != job.ID {
			t.Error("expected unknown job to stay processing")
		}
	})

	t.Run("late resolution is no-op", func(t *testing.T) {
		e := setup(t)
		enqueue(t, e.q, "a")
		next := enqueue(t, e.q, "b")
		e.s.Tick(ctx)

		// The handler evicts its own job and lets the next one in before the answerer resolves.
		e.reg.Register(models.JobConfirmAddToPlaylist, func(ctx context.Context, answer string, job *models.Job, reply Replier) (bool, error) {
			if _, err := e.q.ResolveProcessing(ctx, job.ID); err != nil {
				return false, err
			}
			if _, err := e.q.StartProcessingNext(ctx, time.Now()); err != nil {
				return false, err
			}
			return true, nil
		})

		resolved, err := e.a.HandleAnswer(ctx, msg("n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resolved {
			t.Error("expected late resolution to report nothing removed")
		}
		if current := processing(t, e.q); current == nil || current.ID != next.ID {
			t.Errorf("expected the next job to be untouched, got %+v", current)
		}
	})
}
