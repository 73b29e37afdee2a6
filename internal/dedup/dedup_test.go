package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/trackbot/internal/repositories"
	"github.com/desertthunder/trackbot/internal/shared"
	"github.com/desertthunder/trackbot/internal/testing/fakes"
)

func TestKeys(t *testing.T) {
	if got := LinkKey("https://open.spotify.com/track/abc", "general"); got != "https://open.spotify.com/track/abc¡general" {
		t.Errorf("unexpected link key %q", got)
	}
	if MessageKey("42") == LinkKey("42", "") {
		t.Error("message and link keys should not collide")
	}
}

func TestGate(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("get-then-set cache", func(t *testing.T) {
		cache := fakes.NewMemoryCache(base)
		gate := NewGate(cache, nil)

		if ok, err := gate.AllowMessage(ctx, "m1"); !ok || err != nil {
			t.Fatalf("first delivery should proceed, got %v, %v", ok, err)
		}
		if ok, _ := gate.AllowMessage(ctx, "m1"); ok {
			t.Error("redelivery within the window should be suppressed")
		}

		cache.Advance(MessageTTL)
		if ok, _ := gate.AllowMessage(ctx, "m1"); !ok {
			t.Error("delivery after the window should proceed")
		}
		if cache.Sets != 2 {
			t.Errorf("suppressed calls must not refresh the marker, saw %d sets", cache.Sets)
		}
	})

	t.Run("link window is per room", func(t *testing.T) {
		gate := NewGate(fakes.NewMemoryCache(base), nil)
		link := "https://open.spotify.com/track/abc"

		if ok, _ := gate.AllowLink(ctx, link, "a"); !ok {
			t.Error("first link should proceed")
		}
		if ok, _ := gate.AllowLink(ctx, link, "b"); !ok {
			t.Error("same link in another room should proceed")
		}
		if ok, _ := gate.AllowLink(ctx, link, "a"); ok {
			t.Error("same link in the same room should be suppressed")
		}
	})

	t.Run("custom windows", func(t *testing.T) {
		cache := fakes.NewMemoryCache(base)
		gate := NewGate(cache, nil).WithTTLs(time.Second, 0)

		gate.AllowMessage(ctx, "m")
		cache.Advance(time.Second)
		if ok, _ := gate.AllowMessage(ctx, "m"); !ok {
			t.Error("expected the shortened message window to have passed")
		}
		if gate.linkTTL != LinkTTL {
			t.Errorf("zero link ttl should keep the default, got %v", gate.linkTTL)
		}
	})

	t.Run("cache errors are returned", func(t *testing.T) {
		cache := fakes.NewMemoryCache(base)
		cache.GetErr = errors.New("down")

		if _, err := NewGate(cache, nil).AllowMessage(ctx, "m"); err == nil {
			t.Error("expected cache error")
		}

		cache.GetErr = nil
		cache.SetErr = errors.New("full")
		if ok, err := NewGate(cache, nil).ShouldProcess(ctx, "k", time.Second); ok || err == nil {
			t.Errorf("expected set error to block processing, got %v, %v", ok, err)
		}
	})

	t.Run("sqlite marker repository", func(t *testing.T) {
		db, err := shared.OpenMigrated(shared.DatabaseConfig{Path: ":memory:"})
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		now := base
		repo := repositories.NewMarkerRepository(db).WithClock(func() time.Time { return now })
		gate := NewGate(repo, nil)

		if ok, err := gate.AllowMessage(ctx, "m1"); !ok || err != nil {
			t.Fatalf("first delivery should proceed, got %v, %v", ok, err)
		}

		now = base.Add(19 * time.Second)
		if ok, _ := gate.AllowMessage(ctx, "m1"); ok {
			t.Error("redelivery within 20s should be suppressed")
		}

		now = base.Add(20 * time.Second)
		if ok, _ := gate.AllowMessage(ctx, "m1"); !ok {
			t.Error("delivery at 20s should proceed")
		}
	})
}
