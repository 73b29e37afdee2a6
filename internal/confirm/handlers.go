package confirm

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackbot/internal/models"
	"github.com/desertthunder/trackbot/internal/playlist"
	"github.com/desertthunder/trackbot/internal/shared"
	"golang.org/x/text/cases"
)

// Reporter reconciles a track and returns the chat text describing the result. [playlist.Reconciler] implements it.
type Reporter interface {
	Report(ctx context.Context, trackID string) (string, error)
}

const declinedMessage = "Ok won't add it."

// ConfirmAddToPlaylist handles [models.JobConfirmAddToPlaylist] answers.
//
// "y" reconciles the job's track and reports the outcome; "n" declines. Both resolve the job, including
// when the reconcile fails. Answers are matched after lower-casing only, so " y" is not "y". Any other
// answer leaves the job waiting. Replies go to the job's room.
func ConfirmAddToPlaylist(reporter Reporter, logger *log.Logger) HandlerFunc {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	fold := cases.Fold()

	return func(ctx context.Context, answer string, job *models.Job, reply Replier) (bool, error) {
		switch fold.String(answer) {
		case "y":
			trackID := job.TrackID()
			if trackID == "" {
				err := fmt.Errorf("%w: job %s has no %s", shared.ErrInvalidJob, job.ID, models.MetaTrackID)
				if sendErr := reply.SendToRoom(ctx, job.Room, playlist.FailureMessage(err)); sendErr != nil {
					logger.Warn("failed to report malformed job", "job", job.ID, "error", sendErr)
				}
				return true, err
			}

			text, err := reporter.Report(ctx, trackID)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return false, err
				}
				logger.Warn("failed to add track", "track_id", trackID, "error", err)
			}
			if text == "" {
				return true, nil
			}
			return true, reply.SendToRoom(ctx, job.Room, text)
		case "n":
			return true, reply.SendToRoom(ctx, job.Room, declinedMessage)
		default:
			return false, nil
		}
	}
}
