package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/oshokin/media-grabber/internal/model"
)

// maxFinishedJobs bounds the number of finished jobs kept for late status queries.
const maxFinishedJobs = 10_000

// MemoryRegistry keeps active jobs in a map and finished jobs in an expiring LRU cache.
type MemoryRegistry struct {
	// active holds jobs that have not reached a terminal status.
	active map[string]*model.Job
	// finished holds terminal jobs until they are observed or their grace period ends.
	finished *expirable.LRU[string, *model.Job]
	// mu protects active and the move between the two stores.
	mu *sync.RWMutex
	// now returns the current time.
	now func() time.Time
}

// NewMemoryRegistry creates an in-process registry.
// Finished jobs are forgotten after gracePeriod if nobody deletes them earlier.
func NewMemoryRegistry(gracePeriod time.Duration) *MemoryRegistry {
	return &MemoryRegistry{
		active:   make(map[string]*model.Job),
		finished: expirable.NewLRU[string, *model.Job](maxFinishedJobs, nil, gracePeriod),
		mu:       new(sync.RWMutex),
		now:      time.Now,
	}
}

// Create registers a new queued job for url and returns its snapshot.
func (r *MemoryRegistry) Create(_ context.Context, url string) (*model.Job, error) {
	id, err := newJobID()
	if err != nil {
		return nil, err
	}

	now := r.now()
	job := &model.Job{
		ID:        id,
		URL:       url,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.active[id] = job
	r.mu.Unlock()

	return job.Clone(), nil
}

// Update merges patch into the job with the given id.
// A job reaching a terminal status moves to the finished store.
func (r *MemoryRegistry) Update(_ context.Context, id string, patch *model.JobPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.active[id]
	if !ok {
		if finished, found := r.finished.Peek(id); found {
			return fmt.Errorf("%w: job is already %s", ErrInvalidTransition, finished.Status)
		}

		return ErrJobNotFound
	}

	if err := applyPatch(job, patch, r.now); err != nil {
		return err
	}

	if job.Status.IsTerminal() {
		delete(r.active, id)
		r.finished.Add(id, job)
	}

	return nil
}

// Get returns a snapshot of the job.
func (r *MemoryRegistry) Get(_ context.Context, id string) (*model.Job, error) {
	r.mu.RLock()
	job, ok := r.active[id]

	if ok {
		defer r.mu.RUnlock()

		return job.Clone(), nil
	}

	r.mu.RUnlock()

	if finished, found := r.finished.Get(id); found {
		return finished.Clone(), nil
	}

	return nil, ErrJobNotFound
}

// Delete removes the job from both stores.
func (r *MemoryRegistry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	_, wasActive := r.active[id]
	delete(r.active, id)
	r.mu.Unlock()

	if wasFinished := r.finished.Remove(id); !wasActive && !wasFinished {
		return ErrJobNotFound
	}

	return nil
}

// CountActive returns the number of jobs that have not reached a terminal status.
func (r *MemoryRegistry) CountActive(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.active), nil
}
