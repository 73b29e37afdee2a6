package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/trackbot/internal/shared"
)

// JobType selects the handler that resolves a job.
type JobType string

// JobConfirmAddToPlaylist asks the room whether a track should be added to the playlist.
const JobConfirmAddToPlaylist JobType = "CONFIRM_ADD_TO_PLAYLIST"

// MetaTrackID is the [Job.Meta] key holding the catalog track id for [JobConfirmAddToPlaylist].
const MetaTrackID = "track_id"

// Job is a pending unit of work awaiting a human yes/no answer.
//
// A job is queued while AskedAt is nil. The queue promotes at most one job at a time by setting
// AskedAt; a promoted job is deleted on resolution or eviction and never returns to the queue.
type Job struct {
	ID               string
	Sequence         int
	Type             JobType
	Meta             map[string]string
	Room             string
	Question         string
	OnTimeoutMessage string
	AskedAt          *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewConfirmAddJob builds an unsaved confirmation job for trackID.
func NewConfirmAddJob(trackID, room string) *Job {
	now := time.Now()
	return &Job{
		Type:             JobConfirmAddToPlaylist,
		Meta:             map[string]string{MetaTrackID: trackID},
		Room:             room,
		Question:         fmt.Sprintf("Add spotify:track:%s to the playlist? (y/n)", trackID),
		OnTimeoutMessage: "No answer, won't add it.",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Processing reports whether the job is the one currently presented to the room.
func (j *Job) Processing() bool {
	return j.AskedAt != nil
}

// Stale reports whether a processing job was asked more than after ago.
func (j *Job) Stale(now time.Time, after time.Duration) bool {
	return j.AskedAt != nil && now.Sub(*j.AskedAt) > after
}

// TrackID returns the track id carried in Meta, if any.
func (j *Job) TrackID() string {
	if j.Meta == nil {
		return ""
	}
	return j.Meta[MetaTrackID]
}

// Validate checks the fields every job needs before it can be enqueued.
func (j *Job) Validate() error {
	switch {
	case j.Type == "":
		return fmt.Errorf("%w: type is required", shared.ErrInvalidJob)
	case j.Room == "":
		return fmt.Errorf("%w: room is required", shared.ErrInvalidJob)
	case j.Question == "":
		return fmt.Errorf("%w: question is required", shared.ErrInvalidJob)
	case j.Type == JobConfirmAddToPlaylist && j.TrackID() == "":
		return fmt.Errorf("%w: %s requires %s in meta", shared.ErrInvalidJob, j.Type, MetaTrackID)
	}
	return nil
}
