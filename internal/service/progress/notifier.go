package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/model"
	"github.com/oshokin/media-grabber/internal/registry"
)

// EventType names a progress event.
type EventType string

// Progress event types.
const (
	// EventProgress carries the snapshot of a running job.
	EventProgress EventType = "progress"
	// EventCompleted carries the snapshot of a completed job.
	EventCompleted EventType = "completed"
	// EventError carries the snapshot of a failed job.
	EventError EventType = "error"
	// EventKeepalive is sent after the terminal event so proxies flush the stream.
	EventKeepalive EventType = "keepalive"
	// EventNotFound reports an id that is unknown or already cleaned up.
	EventNotFound EventType = "not_found"
)

// Event is one message of a progress stream.
type Event struct {
	// Type is the event type.
	Type EventType `json:"type"`
	// Job is the job snapshot, absent for keepalive and not_found events.
	Job *model.Job `json:"job,omitempty"`
	// Message describes not_found events.
	Message string `json:"message,omitempty"`
}

// EmitFunc delivers one event to the client. An error ends the watch.
type EmitFunc func(event *Event) error

// Notifier polls the registry on behalf of one subscriber at a time.
type Notifier struct {
	// registry is the job state source.
	registry registry.Registry
	// interval is the delay between two polls.
	interval time.Duration
	// keepalives is the number of keepalive events sent after the terminal one.
	keepalives int
}

// NewNotifier creates a notifier polling every interval.
func NewNotifier(jobs registry.Registry, interval time.Duration, keepalives int64) *Notifier {
	return &Notifier{
		registry:   jobs,
		interval:   interval,
		keepalives: int(max(keepalives, 0)),
	}
}

// Watch streams the status of the job with the given id until it is terminal.
// The snapshot is emitted on every poll. Once the terminal event has been delivered,
// keepalive events follow and the job is removed from the registry.
// An unknown id emits a not_found event and returns registry.ErrJobNotFound.
// When ctx is done the watch returns ctx.Err() and leaves the job untouched.
func (n *Notifier) Watch(ctx context.Context, id string, emit EmitFunc) error {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		job, err := n.registry.Get(ctx, id)

		switch {
		case errors.Is(err, registry.ErrJobNotFound):
			if emitErr := emit(&Event{Type: EventNotFound, Message: fmt.Sprintf("download %s not found", id)}); emitErr != nil {
				return fmt.Errorf("failed to emit event: %w", emitErr)
			}

			return err
		case err != nil:
			return fmt.Errorf("failed to read job: %w", err)
		case job.Status.IsTerminal():
			return n.finish(ctx, job, emit)
		}

		if err = emit(&Event{Type: EventProgress, Job: job}); err != nil {
			return fmt.Errorf("failed to emit event: %w", err)
		}

		if err = wait(ctx, ticker); err != nil {
			return err
		}
	}
}

// finish emits the terminal event and keepalives, then forgets the job.
func (n *Notifier) finish(ctx context.Context, job *model.Job, emit EmitFunc) error {
	eventType := EventCompleted
	if job.Status == model.JobStatusError {
		eventType = EventError
	}

	if err := emit(&Event{Type: eventType, Job: job}); err != nil {
		return fmt.Errorf("failed to emit event: %w", err)
	}

	// The client has seen the outcome; the job is removed even if keepalives fail.
	defer func() {
		if err := n.registry.Delete(context.WithoutCancel(ctx), job.ID); err != nil &&
			!errors.Is(err, registry.ErrJobNotFound) {
			logger.Warnf(ctx, "Failed to remove job %s: %v", job.ID, err)
		}
	}()

	for range n.keepalives {
		if err := emit(&Event{Type: EventKeepalive}); err != nil {
			return fmt.Errorf("failed to emit event: %w", err)
		}

		// Keepalives are spaced a quarter of the poll interval apart.
		timer := time.NewTimer(n.interval / 4) //nolint:mnd // Fraction of the poll interval.

		select {
		case <-ctx.Done():
			timer.Stop()

			return ctx.Err()
		case <-timer.C:
		}
	}

	return nil
}

func wait(ctx context.Context, ticker *time.Ticker) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ticker.C:
		return nil
	}
}
