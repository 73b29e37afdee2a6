// Package dedup drops repeated chat events within a time window.
//
// The gate is used twice per inbound message: once keyed by the transport's message id to absorb
// redelivery, and once keyed by link and room so a pasted link is only handled once per window.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/trackbot/internal/metrics"
)

// Default windows for the two gate keys.
const (
	MessageTTL = 20 * time.Second
	LinkTTL    = 120 * time.Second
)

// Cache is a TTL key/value store. [repositories.MarkerRepository] implements it.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Claimer is implemented by caches that can check-and-set in one step.
type Claimer interface {
	Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// Gate decides whether an event should be processed.
type Gate struct {
	cache      Cache
	metrics    *metrics.Collector
	messageTTL time.Duration
	linkTTL    time.Duration
}

// NewGate creates a Gate backed by cache with the default windows. A nil collector disables metrics.
func NewGate(cache Cache, m *metrics.Collector) *Gate {
	return &Gate{cache: cache, metrics: m, messageTTL: MessageTTL, linkTTL: LinkTTL}
}

// WithTTLs overrides the message and link windows. Non-positive values keep the current window.
func (g *Gate) WithTTLs(message, link time.Duration) *Gate {
	if message > 0 {
		g.messageTTL = message
	}
	if link > 0 {
		g.linkTTL = link
	}
	return g
}

// MessageKey is the gate key for a transport message id.
func MessageKey(id string) string {
	return "msg:" + id
}

// LinkKey is the gate key for a link seen in a room.
func LinkKey(link, room string) string {
	return link + "¡" + room
}

// AllowMessage gates a transport message id.
func (g *Gate) AllowMessage(ctx context.Context, id string) (bool, error) {
	return g.shouldProcess(ctx, "message", MessageKey(id), g.messageTTL)
}

// AllowLink gates a link posted in room.
func (g *Gate) AllowLink(ctx context.Context, link, room string) (bool, error) {
	return g.shouldProcess(ctx, "link", LinkKey(link, room), g.linkTTL)
}

// ShouldProcess reports whether key has not been seen within ttl, marking it seen if so.
//
// A suppressed key keeps its original expiry.
func (g *Gate) ShouldProcess(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return g.shouldProcess(ctx, "other", key, ttl)
}

func (g *Gate) shouldProcess(ctx context.Context, kind, key string, ttl time.Duration) (bool, error) {
	ok, err := g.claim(ctx, key, ttl)
	if err != nil {
		return false, fmt.Errorf("dedup %s: %w", kind, err)
	}
	if !ok {
		g.metrics.RecordSuppressed(kind)
	}
	return ok, nil
}

func (g *Gate) claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if c, ok := g.cache.(Claimer); ok {
		return c.Claim(ctx, key, "1", ttl)
	}

	if _, found, err := g.cache.Get(ctx, key); err != nil {
		return false, err
	} else if found {
		return false, nil
	}

	if err := g.cache.Set(ctx, key, "1", ttl); err != nil {
		return false, err
	}
	return true, nil
}
