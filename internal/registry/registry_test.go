package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/media-grabber/internal/model"
)

const testGracePeriod = time.Minute

// registryFactories builds every registry implementation for the shared contract tests.
func registryFactories() map[string]func(t *testing.T) Registry {
	return map[string]func(t *testing.T) Registry{
		"memory": func(_ *testing.T) Registry {
			return NewMemoryRegistry(testGracePeriod)
		},
		"redis": func(t *testing.T) Registry {
			t.Helper()

			server := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: server.Addr()})

			t.Cleanup(func() {
				_ = client.Close()
			})

			return NewRedisRegistryWithClient(client, time.Hour, testGracePeriod)
		},
	}
}

// TestRegistryContract runs the same scenarios against every implementation.
//
//nolint:gocognit // The contract covers every registry operation.
func TestRegistryContract(t *testing.T) {
	t.Parallel()

	for name, factory := range registryFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			t.Run("create returns a queued job", func(t *testing.T) {
				t.Parallel()

				ctx := context.Background()
				r := factory(t)

				job, err := r.Create(ctx, "https://example.com/watch?v=1")
				require.NoError(t, err)

				assert.NotEmpty(t, job.ID)
				assert.Equal(t, model.JobStatusQueued, job.Status)
				assert.Equal(t, 0, job.Progress)
				assert.Equal(t, "https://example.com/watch?v=1", job.URL)

				other, err := r.Create(ctx, "https://example.com/watch?v=2")
				require.NoError(t, err)
				assert.NotEqual(t, job.ID, other.ID)

				active, err := r.CountActive(ctx)
				require.NoError(t, err)
				assert.Equal(t, 2, active)
			})

			t.Run("update is visible to the next read", func(t *testing.T) {
				t.Parallel()

				ctx := context.Background()
				r := factory(t)

				job, err := r.Create(ctx, "u")
				require.NoError(t, err)

				require.NoError(t, r.Update(ctx, job.ID, model.StatusPatch(model.JobStatusDownloading)))
				require.NoError(t, r.Update(ctx, job.ID, model.ProgressPatch(42, "1MiB/s", "00:05")))

				got, err := r.Get(ctx, job.ID)
				require.NoError(t, err)

				assert.Equal(t, model.JobStatusDownloading, got.Status)
				assert.Equal(t, 42, got.Progress)
				assert.Equal(t, "1MiB/s", got.Speed)
				assert.Equal(t, "00:05", got.ETA)
			})

			t.Run("get returns a copy", func(t *testing.T) {
				t.Parallel()

				ctx := context.Background()
				r := factory(t)

				job, err := r.Create(ctx, "u")
				require.NoError(t, err)

				got, err := r.Get(ctx, job.ID)
				require.NoError(t, err)

				got.Progress = 99

				again, err := r.Get(ctx, job.ID)
				require.NoError(t, err)
				assert.Equal(t, 0, again.Progress)
			})

			t.Run("terminal jobs stay readable and reject writes", func(t *testing.T) {
				t.Parallel()

				ctx := context.Background()
				r := factory(t)

				job, err := r.Create(ctx, "u")
				require.NoError(t, err)

				result := &model.JobResult{Filename: "clip.mp4", Size: 10, Kind: model.ArtifactKindVideo}
				require.NoError(t, r.Update(ctx, job.ID, model.CompletedPatch(result)))

				got, err := r.Get(ctx, job.ID)
				require.NoError(t, err)
				assert.Equal(t, model.JobStatusCompleted, got.Status)
				assert.Equal(t, 100, got.Progress)
				require.NotNil(t, got.Result)
				assert.Equal(t, "clip.mp4", got.Result.Filename)

				err = r.Update(ctx, job.ID, model.FailedPatch("generic", "late failure"))
				require.ErrorIs(t, err, ErrInvalidTransition)

				err = r.Update(ctx, job.ID, model.ProgressPatch(10, "", ""))
				require.ErrorIs(t, err, ErrInvalidTransition)

				active, err := r.CountActive(ctx)
				require.NoError(t, err)
				assert.Equal(t, 0, active)
			})

			t.Run("status never moves backwards", func(t *testing.T) {
				t.Parallel()

				ctx := context.Background()
				r := factory(t)

				job, err := r.Create(ctx, "u")
				require.NoError(t, err)

				require.NoError(t, r.Update(ctx, job.ID, model.StatusPatch(model.JobStatusProcessing)))

				err = r.Update(ctx, job.ID, model.StatusPatch(model.JobStatusQueued))
				require.ErrorIs(t, err, ErrInvalidTransition)

				got, err := r.Get(ctx, job.ID)
				require.NoError(t, err)
				assert.Equal(t, model.JobStatusProcessing, got.Status)
			})

			t.Run("unknown ids are not found", func(t *testing.T) {
				t.Parallel()

				ctx := context.Background()
				r := factory(t)

				_, err := r.Get(ctx, "missing")
				require.ErrorIs(t, err, ErrJobNotFound)

				err = r.Update(ctx, "missing", model.StatusPatch(model.JobStatusStarting))
				require.ErrorIs(t, err, ErrJobNotFound)

				err = r.Delete(ctx, "missing")
				require.ErrorIs(t, err, ErrJobNotFound)
			})

			t.Run("delete removes active and finished jobs", func(t *testing.T) {
				t.Parallel()

				ctx := context.Background()
				r := factory(t)

				active, err := r.Create(ctx, "u")
				require.NoError(t, err)

				finished, err := r.Create(ctx, "u")
				require.NoError(t, err)
				require.NoError(t, r.Update(ctx, finished.ID, model.FailedPatch("generic", "boom")))

				require.NoError(t, r.Delete(ctx, active.ID))
				require.NoError(t, r.Delete(ctx, finished.ID))

				_, err = r.Get(ctx, active.ID)
				require.ErrorIs(t, err, ErrJobNotFound)

				_, err = r.Get(ctx, finished.ID)
				require.ErrorIs(t, err, ErrJobNotFound)

				require.ErrorIs(t, r.Delete(ctx, finished.ID), ErrJobNotFound)

				count, err := r.CountActive(ctx)
				require.NoError(t, err)
				assert.Equal(t, 0, count)
			})
		})
	}
}

// TestMemoryRegistryConcurrentAccess tests concurrent writers and readers on distinct jobs.
func TestMemoryRegistryConcurrentAccess(t *testing.T) {
	t.Parallel()

	const jobsCount = 20

	ctx := context.Background()
	r := NewMemoryRegistry(testGracePeriod)

	var wg sync.WaitGroup

	ids := make([]string, jobsCount)

	for i := range jobsCount {
		job, err := r.Create(ctx, "u")
		require.NoError(t, err)

		ids[i] = job.ID
	}

	for _, id := range ids {
		wg.Add(2)

		go func() {
			defer wg.Done()

			_ = r.Update(ctx, id, model.StatusPatch(model.JobStatusDownloading))

			for progress := range 101 {
				_ = r.Update(ctx, id, model.ProgressPatch(progress, "", ""))
			}

			_ = r.Update(ctx, id, model.CompletedPatch(&model.JobResult{Filename: id}))
		}()

		go func() {
			defer wg.Done()

			last := 0

			for range 50 {
				job, err := r.Get(ctx, id)
				if err != nil {
					continue
				}

				assert.GreaterOrEqual(t, job.Progress, last)
				last = job.Progress
			}
		}()
	}

	wg.Wait()

	for _, id := range ids {
		job, err := r.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, job.Status)
	}
}

// TestMemoryRegistryGracePeriod tests that finished jobs expire.
func TestMemoryRegistryGracePeriod(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewMemoryRegistry(50 * time.Millisecond)

	job, err := r.Create(ctx, "u")
	require.NoError(t, err)
	require.NoError(t, r.Update(ctx, job.ID, model.FailedPatch("generic", "boom")))

	require.Eventually(t, func() bool {
		_, getErr := r.Get(ctx, job.ID)

		return getErr != nil
	}, 2*time.Second, 20*time.Millisecond)
}

// TestRedisRegistryGracePeriod tests that finished jobs get the grace TTL.
func TestRedisRegistryGracePeriod(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
	})

	r := NewRedisRegistryWithClient(client, time.Hour, testGracePeriod)

	job, err := r.Create(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, server.TTL(jobKey(job.ID)))

	require.NoError(t, r.Update(ctx, job.ID, model.FailedPatch("generic", "boom")))
	assert.Equal(t, testGracePeriod, server.TTL(jobKey(job.ID)))

	server.FastForward(testGracePeriod + time.Second)

	_, err = r.Get(ctx, job.ID)
	require.ErrorIs(t, err, ErrJobNotFound)
}
