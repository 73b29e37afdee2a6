package watcher

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/desertthunder/trackbot/internal/models"
	"github.com/desertthunder/trackbot/internal/shared"
)

var linkPattern = regexp.MustCompile(`(https?://(open|play)\.spotify\.com/(intl-[a-z]+/)?(track|album|playlist|artist|episode|show)/|spotify:(track|album|playlist|artist|episode|show):)\S+`)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9]+`)

// MatchLink returns the first catalog link in text with any query string removed, or "".
func MatchLink(text string) string {
	link := linkPattern.FindString(text)
	link, _, _ = strings.Cut(link, "?")
	return link
}

// ParseLink parses an open.spotify.com URL or a spotify: URI into a reference.
//
// Trailing characters that cannot be part of an id, such as the ">" of a chat-formatted link, are ignored.
func ParseLink(link string) (models.TrackRef, error) {
	var kind, rest string

	if after, ok := strings.CutPrefix(link, "spotify:"); ok {
		kind, rest, ok = strings.Cut(after, ":")
		if !ok {
			return models.TrackRef{}, fmt.Errorf("%w: %s", shared.ErrInvalidLink, link)
		}
	} else {
		u, err := url.Parse(link)
		if err != nil {
			return models.TrackRef{}, fmt.Errorf("%w: %s: %v", shared.ErrInvalidLink, link, err)
		}

		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segments) > 0 && strings.HasPrefix(segments[0], "intl-") {
			segments = segments[1:]
		}
		if len(segments) < 2 {
			return models.TrackRef{}, fmt.Errorf("%w: %s", shared.ErrInvalidLink, link)
		}
		kind, rest = segments[0], segments[1]
	}

	switch t := models.RefType(kind); t {
	case models.RefTrack, models.RefAlbum, models.RefPlaylist, models.RefArtist, models.RefEpisode, models.RefShow:
		id := idPattern.FindString(rest)
		if id == "" {
			return models.TrackRef{}, fmt.Errorf("%w: missing id in %s", shared.ErrInvalidLink, link)
		}
		return models.NewTrackRef(t, id), nil
	default:
		return models.TrackRef{}, fmt.Errorf("%w: unsupported type %q", shared.ErrInvalidLink, kind)
	}
}
