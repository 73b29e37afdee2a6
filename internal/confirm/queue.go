package confirm

import (
	"context"
	"time"

	"github.com/desertthunder/trackbot/internal/models"
)

// Queue is the job store the scheduler and answerer work against. [repositories.JobRepository] implements it.
type Queue interface {
	CurrentlyProcessing(ctx context.Context) (*models.Job, error)
	StartProcessingNext(ctx context.Context, now time.Time) (*models.Job, error)
	ResolveProcessing(ctx context.Context, id string) (bool, error)
}
