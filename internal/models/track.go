package models

import "fmt"

// RefType is the kind of catalog object a link points at.
type RefType string

const (
	RefTrack    RefType = "track"
	RefAlbum    RefType = "album"
	RefPlaylist RefType = "playlist"
	RefArtist   RefType = "artist"
	RefEpisode  RefType = "episode"
	RefShow     RefType = "show"
)

// TrackRef is a parsed catalog reference. URI is the canonical "spotify:<type>:<id>" form.
type TrackRef struct {
	ID   string
	URI  string
	Type RefType
}

// NewTrackRef builds a reference and its canonical URI.
func NewTrackRef(t RefType, id string) TrackRef {
	return TrackRef{ID: id, Type: t, URI: fmt.Sprintf("spotify:%s:%s", t, id)}
}

// IsTrack reports whether the reference points at a single track.
func (r TrackRef) IsTrack() bool { return r.Type == RefTrack }

// SameTrack compares two references by canonical URI.
func SameTrack(a, b TrackRef) bool {
	return a.URI != "" && a.URI == b.URI
}

// Snapshot is the ordered list of track URIs in the playlist as last fetched.
//
// Truncated is set when a page fetch failed and the list may be missing entries.
type Snapshot struct {
	URIs      []string
	Truncated bool
	Pages     int
}

// IndexOf returns the first position of uri, or -1.
func (s Snapshot) IndexOf(uri string) int {
	for i, u := range s.URIs {
		if u == uri {
			return i
		}
	}
	return -1
}

// Len returns the number of tracks in the snapshot.
func (s Snapshot) Len() int { return len(s.URIs) }
