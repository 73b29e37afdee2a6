// Package fakes provides in-memory stand-ins for the catalog, chat and cache collaborators.
package fakes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/trackbot/internal/services"
	"github.com/desertthunder/trackbot/internal/shared"
)

// Move records a ReorderPlaylistTracks call.
type Move struct {
	From, To int
}

// Add records an AddTracksToPlaylist call.
type Add struct {
	URIs     []string
	Position int
}

// FakeCatalog is an in-memory playlist catalog.
//
// Track ids resolve to "spotify:track:<id>" unless overridden in Tracks. Mutations are applied to Playlist,
// so a second reconcile sees the result of the first. An empty entry in Playlist is served as an item
// with a null track.
type FakeCatalog struct {
	mu sync.Mutex

	Playlist []string
	Tracks   map[string]string

	// FailAtOffset makes the page request at that offset fail; negative disables it.
	FailAtOffset int
	TrackErr     error
	AddErr       error
	ReorderErr   error

	TrackCalls int
	PageCalls  int
	Adds       []Add
	Moves      []Move
}

// NewFakeCatalog creates a catalog whose playlist holds uris in order.
func NewFakeCatalog(uris ...string) *FakeCatalog {
	return &FakeCatalog{Playlist: append([]string(nil), uris...), FailAtOffset: -1}
}

func (f *FakeCatalog) Track(ctx context.Context, trackID string) (*services.SpotifyTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.TrackCalls++
	if f.TrackErr != nil {
		return nil, f.TrackErr
	}

	uri := "spotify:track:" + trackID
	if f.Tracks != nil {
		u, ok := f.Tracks[trackID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, trackID)
		}
		uri = u
	}

	return &services.SpotifyTrack{ID: trackID, URI: uri}, nil
}

func (f *FakeCatalog) PlaylistTracks(ctx context.Context, playlistID string, offset, limit int) (*services.SpotifyPlaylistTracks, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.PageCalls++
	if f.FailAtOffset >= 0 && offset == f.FailAtOffset {
		return nil, fmt.Errorf("%w: status 502: bad gateway", shared.ErrServiceUnavailable)
	}

	page := &services.SpotifyPlaylistTracks{Total: len(f.Playlist), Limit: limit, Offset: offset}
	for i := offset; i < len(f.Playlist) && i < offset+limit; i++ {
		item := services.SpotifyPlaylistTrack{}
		if f.Playlist[i] != "" {
			item.Track = &services.SpotifyTrack{URI: f.Playlist[i]}
		}
		page.Items = append(page.Items, item)
	}
	return page, nil
}

func (f *FakeCatalog) AddTracksToPlaylist(ctx context.Context, playlistID string, uris []string, position int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Adds = append(f.Adds, Add{URIs: append([]string(nil), uris...), Position: position})
	if f.AddErr != nil {
		return "", f.AddErr
	}

	next := make([]string, 0, len(f.Playlist)+len(uris))
	next = append(next, f.Playlist[:position]...)
	next = append(next, uris...)
	f.Playlist = append(next, f.Playlist[position:]...)
	return "snapshot", nil
}

func (f *FakeCatalog) ReorderPlaylistTracks(ctx context.Context, playlistID string, rangeStart, insertBefore int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Moves = append(f.Moves, Move{From: rangeStart, To: insertBefore})
	if f.ReorderErr != nil {
		return "", f.ReorderErr
	}

	item := f.Playlist[rangeStart]
	rest := append(append([]string(nil), f.Playlist[:rangeStart]...), f.Playlist[rangeStart+1:]...)
	if insertBefore > rangeStart {
		insertBefore--
	}
	next := append(append([]string(nil), rest[:insertBefore]...), item)
	f.Playlist = append(next, rest[insertBefore:]...)
	return "snapshot", nil
}

// Mutations returns the number of add and reorder calls made so far.
func (f *FakeCatalog) Mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Adds) + len(f.Moves)
}

// Sent is one message captured by a [Recorder].
type Sent struct {
	Room string
	Text string
}

// Recorder captures outbound chat messages.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

func (r *Recorder) SendToRoom(ctx context.Context, room, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, Sent{Room: room, Text: text})
	return nil
}

// Sent returns a copy of everything sent so far.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Texts returns the text of every message sent so far.
func (r *Recorder) Texts() []string {
	var out []string
	for _, s := range r.Sent() {
		out = append(out, s.Text)
	}
	return out
}

// MemoryCache is a map-backed TTL cache driven by a settable clock.
type MemoryCache struct {
	mu      sync.Mutex
	now     time.Time
	entries map[string]memoryEntry

	GetErr error
	SetErr error
	Sets   int
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// NewMemoryCache creates a cache whose clock starts at now.
func NewMemoryCache(now time.Time) *MemoryCache {
	return &MemoryCache{now: now, entries: make(map[string]memoryEntry)}
}

// Advance moves the cache clock forward by d.
func (c *MemoryCache) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.GetErr != nil {
		return "", false, c.GetErr
	}

	e, ok := c.entries[key]
	if !ok || !c.now.Before(e.expires) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.SetErr != nil {
		return c.SetErr
	}

	c.Sets++
	c.entries[key] = memoryEntry{value: value, expires: c.now.Add(ttl)}
	return nil
}
