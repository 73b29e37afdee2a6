package main

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/desertthunder/trackbot/internal/formatter"
	"github.com/desertthunder/trackbot/internal/playlist"
	"github.com/desertthunder/trackbot/internal/shared"
	"github.com/desertthunder/trackbot/internal/watcher"
	"github.com/urfave/cli/v3"
)

var trackIDPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// parseTrack accepts a track link, a spotify:track: URI or a bare track id and returns the id.
func parseTrack(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", fmt.Errorf("%w: track link or id", shared.ErrMissingArgument)
	}

	if link := watcher.MatchLink(arg); link != "" {
		ref, err := watcher.ParseLink(link)
		if err != nil {
			return "", err
		}
		if !ref.IsTrack() {
			return "", fmt.Errorf("%w: %s is a %s link", shared.ErrInvalidLink, link, ref.Type)
		}
		return ref.ID, nil
	}

	if !trackIDPattern.MatchString(arg) {
		return "", fmt.Errorf("%w: %q is not a track link or id", shared.ErrInvalidArgument, arg)
	}
	return arg, nil
}

// PlaylistShow prints the managed playlist in the requested format.
func (r *Runner) PlaylistShow(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	rec, err := r.reconciler()
	if err != nil {
		return err
	}

	snap := rec.Snapshot(ctx)
	if snap.Truncated {
		r.logger.Warn("playlist fetch was truncated", "pages", snap.Pages, "tracks", snap.Len())
	}

	data, err := formatter.RenderSnapshot(format, rec.PlaylistID(), snap)
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}

// PlaylistAdd moves a track to the top of the playlist, adding it first if needed.
func (r *Runner) PlaylistAdd(ctx context.Context, cmd *cli.Command) error {
	trackID, err := parseTrack(cmd.StringArg("track"))
	if err != nil {
		return err
	}

	rec, err := r.reconciler()
	if err != nil {
		return err
	}

	outcome, err := rec.ReconcileTrack(ctx, trackID)
	if err != nil {
		return fmt.Errorf("%s: %w", playlist.FailureMessage(err), err)
	}

	switch outcome {
	case playlist.OutcomeAlreadyFirst:
		return r.writePlain("✓ Track is already at the top of the playlist.\n")
	default:
		return r.writePlain("✓ %s\n", outcome.Message())
	}
}
