package registry

//go:generate $MOCKGEN -source=registry.go -destination=mocks/registry_mock.go

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/media-grabber/internal/model"
)

var (
	// ErrJobNotFound is returned for ids that were never created or were already removed.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when an update would move a job backwards or out of a terminal status.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Registry is the single source of truth for job state.
// Each job has one writer, the download task that owns it; readers always receive copies.
type Registry interface {
	// Create registers a new queued job for url and returns its snapshot.
	Create(ctx context.Context, url string) (*model.Job, error)
	// Update merges patch into the job with the given id.
	Update(ctx context.Context, id string, patch *model.JobPatch) error
	// Get returns a snapshot of the job.
	Get(ctx context.Context, id string) (*model.Job, error)
	// Delete removes the job.
	Delete(ctx context.Context, id string) error
	// CountActive returns the number of jobs that have not reached a terminal status.
	CountActive(ctx context.Context) (int, error)
}

// newJobID returns a time-ordered unique identifier.
func newJobID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate job id: %w", err)
	}

	return id.String(), nil
}

// applyPatch validates the status transition and merges patch into job.
func applyPatch(job *model.Job, patch *model.JobPatch, now func() time.Time) error {
	if patch.Status != nil && !job.Status.CanTransitionTo(*patch.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, *patch.Status)
	}

	if patch.Status == nil && job.Status.IsTerminal() {
		return fmt.Errorf("%w: job is already %s", ErrInvalidTransition, job.Status)
	}

	patch.Apply(job, now())

	return nil
}
