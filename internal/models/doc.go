// Package models defines the domain entities shared by the trackbot packages.
//
// The package contains two categories of types:
//
// 1. Value types describing catalog data:
//   - [TrackRef] : a parsed catalog reference with its canonical URI
//   - [Snapshot] : an ordered view of the managed playlist
//
// 2. Persistent entities stored by the repositories package:
//   - [Job] : a pending confirmation awaiting a yes/no reply
//   - [Marker] : a short-lived deduplication marker
//
// Storage access lives behind interfaces declared by the consuming packages.
package models
