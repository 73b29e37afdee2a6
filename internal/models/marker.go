package models

import "time"

// Marker is a deduplication marker that stops counting once ExpiresAt passes.
type Marker struct {
	Key       string
	Value     string
	ExpiresAt time.Time
}

// Live reports whether the marker is still in effect at now.
func (m Marker) Live(now time.Time) bool {
	return now.Before(m.ExpiresAt)
}
