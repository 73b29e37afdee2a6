package playlist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/desertthunder/trackbot/internal/metrics"
	"github.com/desertthunder/trackbot/internal/shared"
	"github.com/desertthunder/trackbot/internal/testing/fakes"
)

func newReconciler(catalog Catalog) *Reconciler {
	return New(catalog, "pl", shared.NewLogger(&bytes.Buffer{}), metrics.NewCollector())
}

func uris(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("spotify:track:%03d", i)
	}
	return out
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("pages until an empty page", func(t *testing.T) {
		catalog := fakes.NewFakeCatalog(uris(250)...)
		progress := make(chan Progress, 10)

		snap := newReconciler(catalog).WithProgress(progress).Snapshot(ctx)

		if snap.Len() != 250 || snap.Truncated {
			t.Fatalf("expected 250 tracks untruncated, got %d (truncated=%v)", snap.Len(), snap.Truncated)
		}
		if catalog.PageCalls != 4 || snap.Pages != 4 {
			t.Errorf("expected 4 page requests (3 full + 1 empty), got %d", catalog.PageCalls)
		}
		if snap.URIs[249] != "spotify:track:249" {
			t.Errorf("expected order to be preserved, last = %s", snap.URIs[249])
		}
		if len(progress) != 3 {
			t.Errorf("expected 3 progress updates, got %d", len(progress))
		}
	})

	t.Run("unavailable items hold their position", func(t *testing.T) {
		catalog := fakes.NewFakeCatalog("spotify:track:A", "", "spotify:track:B")
		snap := newReconciler(catalog).Snapshot(ctx)

		if snap.Len() != 3 || snap.IndexOf("spotify:track:B") != 2 {
			t.Errorf("expected B at position 2 of 3, got %v", snap.URIs)
		}
	})

	t.Run("empty playlist", func(t *testing.T) {
		catalog := fakes.NewFakeCatalog()
		snap := newReconciler(catalog).Snapshot(ctx)

		if snap.Len() != 0 || snap.Truncated || catalog.PageCalls != 1 {
			t.Errorf("unexpected snapshot %+v after %d calls", snap, catalog.PageCalls)
		}
	})

	t.Run("failed page keeps what was fetched", func(t *testing.T) {
		catalog := fakes.NewFakeCatalog(uris(250)...)
		catalog.FailAtOffset = 100

		snap := newReconciler(catalog).Snapshot(ctx)

		if !snap.Truncated {
			t.Error("expected snapshot to be marked truncated")
		}
		if snap.Len() != 100 {
			t.Errorf("expected the first page to survive, got %d tracks", snap.Len())
		}
	})

	t.Run("full progress channel never blocks", func(t *testing.T) {
		catalog := fakes.NewFakeCatalog(uris(350)...)
		progress := make(chan Progress)

		snap := newReconciler(catalog).WithProgress(progress).Snapshot(ctx)
		if snap.Len() != 350 {
			t.Errorf("expected 350 tracks, got %d", snap.Len())
		}
	})
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	const (
		A = "spotify:track:A"
		B = "spotify:track:B"
		C = "spotify:track:C"
		D = "spotify:track:D"
	)

	tc := []struct {
		name    string
		target  string
		outcome Outcome
		moves   []fakes.Move
		adds    []fakes.Add
		after   []string
		message string
	}{
		{
			name:    "present further down is moved",
			target:  B,
			outcome: OutcomeMoved,
			moves:   []fakes.Move{{From: 1, To: 0}},
			after:   []string{B, A, C},
			message: "Track already in playlist, moved it to the top.",
		},
		{
			name:    "absent is inserted",
			target:  D,
			outcome: OutcomeAdded,
			adds:    []fakes.Add{{URIs: []string{D}, Position: 0}},
			after:   []string{D, A, B, C},
			message: "Track added to playlist!",
		},
		{
			name:    "already first is a no-op",
			target:  A,
			outcome: OutcomeAlreadyFirst,
			after:   []string{A, B, C},
			message: "",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			catalog := fakes.NewFakeCatalog(A, B, C)

			outcome, err := newReconciler(catalog).Reconcile(ctx, tt.target)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if outcome != tt.outcome {
				t.Errorf("expected outcome %v, got %v", tt.outcome, outcome)
			}
			if !reflect.DeepEqual(catalog.Moves, tt.moves) {
				t.Errorf("expected moves %v, got %v", tt.moves, catalog.Moves)
			}
			if !reflect.DeepEqual(catalog.Adds, tt.adds) {
				t.Errorf("expected adds %v, got %v", tt.adds, catalog.Adds)
			}
			if !reflect.DeepEqual(catalog.Playlist, tt.after) {
				t.Errorf("expected playlist %v, got %v", tt.after, catalog.Playlist)
			}
			if outcome.Message() != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, outcome.Message())
			}
		})
	}

	t.Run("second call is idempotent", func(t *testing.T) {
		catalog := fakes.NewFakeCatalog(A, B, C)
		r := newReconciler(catalog)

		for _, target := range []string{C, C} {
			if _, err := r.Reconcile(ctx, target); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		outcome, err := r.Reconcile(ctx, C)
		if err != nil || outcome != OutcomeAlreadyFirst {
			t.Errorf("expected already first, got %v (%v)", outcome, err)
		}
		if catalog.Mutations() != 1 {
			t.Errorf("expected exactly one mutation across calls, got %d", catalog.Mutations())
		}
	})

	t.Run("duplicates use the first occurrence", func(t *testing.T) {
		catalog := fakes.NewFakeCatalog(A, B, C, B)

		if _, err := newReconciler(catalog).Reconcile(ctx, B); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(catalog.Moves) != 1 || catalog.Moves[0].From != 1 {
			t.Errorf("expected move from position 1, got %v", catalog.Moves)
		}
	})

	t.Run("unavailable items keep their positions", func(t *testing.T) {
		catalog := fakes.NewFakeCatalog(A, "", B)

		outcome, err := newReconciler(catalog).Reconcile(ctx, B)
		if err != nil || outcome != OutcomeMoved {
			t.Fatalf("expected moved, got %v (%v)", outcome, err)
		}
		if !reflect.DeepEqual(catalog.Moves, []fakes.Move{{From: 2, To: 0}}) {
			t.Errorf("expected move from position 2, got %v", catalog.Moves)
		}
		if !reflect.DeepEqual(catalog.Playlist, []string{B, A, ""}) {
			t.Errorf("expected target first, got %v", catalog.Playlist)
		}
	})

	t.Run("mutation failure", func(t *testing.T) {
		catalog := fakes.NewFakeCatalog(A)
		catalog.AddErr = fmt.Errorf("%w: status 403: forbidden", shared.ErrAPIRequest)

		_, err := newReconciler(catalog).Reconcile(ctx, D)
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected wrapped API error, got %v", err)
		}
	})

	t.Run("empty uri", func(t *testing.T) {
		catalog := fakes.NewFakeCatalog(A)

		if _, err := newReconciler(catalog).Reconcile(ctx, ""); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if catalog.PageCalls != 0 {
			t.Error("empty uri should not fetch the playlist")
		}
	})
}

func TestReport(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves the track id first", func(t *testing.T) {
		catalog := fakes.NewFakeCatalog("spotify:track:A")

		msg, err := newReconciler(catalog).Report(ctx, "B")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if msg != "Track added to playlist!" || catalog.TrackCalls != 1 {
			t.Errorf("unexpected message %q after %d lookups", msg, catalog.TrackCalls)
		}
	})

	t.Run("lookup failure becomes a chat message", func(t *testing.T) {
		catalog := fakes.NewFakeCatalog()
		catalog.TrackErr = errors.New("boom")

		msg, err := newReconciler(catalog).Report(ctx, "B")
		if err == nil {
			t.Fatal("expected error to be returned alongside the message")
		}
		if msg != `Failed to add track to playlist 😓  "boom"` {
			t.Errorf("unexpected failure message %q", msg)
		}
		if catalog.Mutations() != 0 {
			t.Error("no mutation expected after a failed lookup")
		}
	})

	t.Run("cancelled context is not reported", func(t *testing.T) {
		catalog := fakes.NewFakeCatalog()
		catalog.TrackErr = context.Canceled

		msg, err := newReconciler(catalog).Report(ctx, "B")
		if !errors.Is(err, context.Canceled) || msg != "" {
			t.Errorf("expected silent cancellation, got %q (%v)", msg, err)
		}
	})
}

func TestOutcome(t *testing.T) {
	for o, want := range map[Outcome]string{OutcomeAdded: "added", OutcomeMoved: "moved", OutcomeAlreadyFirst: "already_first"} {
		if o.String() != want {
			t.Errorf("expected %s, got %s", want, o.String())
		}
	}

	if !strings.HasPrefix(FailureMessage(errors.New("x")), "Failed to add track to playlist") {
		t.Error("unexpected failure message prefix")
	}
}
