package confirm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/desertthunder/trackbot/internal/models"
	"github.com/desertthunder/trackbot/internal/shared"
)

// Replier sends a message to a chat room.
type Replier interface {
	SendToRoom(ctx context.Context, room, text string) error
}

// HandlerFunc interprets answer for job. It returns true when the job is done and should leave the queue.
type HandlerFunc func(ctx context.Context, answer string, job *models.Job, reply Replier) (bool, error)

// Registry maps job types to their handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[models.JobType]HandlerFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[models.JobType]HandlerFunc)}
}

// Register sets the handler for jobType, replacing any previous one.
func (r *Registry) Register(jobType models.JobType, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = fn
}

// Types returns the registered job types in sorted order.
func (r *Registry) Types() []models.JobType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]models.JobType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Dispatch runs the handler registered for job.Type.
//
// It returns [shared.ErrUnknownJobType] when no handler is registered.
func (r *Registry) Dispatch(ctx context.Context, answer string, job *models.Job, reply Replier) (bool, error) {
	r.mu.RLock()
	fn, ok := r.handlers[job.Type]
	r.mu.RUnlock()

	if !ok {
		return false, fmt.Errorf("%w: %s", shared.ErrUnknownJobType, job.Type)
	}
	return fn(ctx, answer, job, reply)
}

// ParseAnswer strips a leading "<botName> " from text.
//
// Some adapters deliver direct messages prefixed with the bot's name. An empty botName never strips.
func ParseAnswer(text, botName string) string {
	if botName == "" {
		return text
	}
	return strings.TrimPrefix(text, botName+" ")
}
