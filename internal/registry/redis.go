package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oshokin/media-grabber/internal/model"
)

const (
	// redisKeyPrefix namespaces job keys.
	redisKeyPrefix = "media-grabber:job:"
	// redisActiveSetKey holds the ids of unfinished jobs.
	redisActiveSetKey = "media-grabber:jobs:active"
	// redisMaxUpdateRetries bounds optimistic-lock retries of Update.
	redisMaxUpdateRetries = 5
)

// stringGetter is the part of a Redis client or transaction used to read documents.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisRegistry stores jobs as JSON documents in Redis.
// Unfinished jobs expire after jobTTL, finished ones after gracePeriod.
type RedisRegistry struct {
	// client is the Redis connection pool.
	client redis.UniversalClient
	// jobTTL bounds the lifetime of unfinished jobs.
	jobTTL time.Duration
	// gracePeriod bounds the lifetime of finished jobs.
	gracePeriod time.Duration
	// now returns the current time.
	now func() time.Time
}

// RedisOptions configures a RedisRegistry connection.
type RedisOptions struct {
	// Address is host:port of the server.
	Address string
	// Password is the server password.
	Password string
	// DB is the logical database.
	DB int
	// JobTTL bounds the lifetime of unfinished jobs.
	JobTTL time.Duration
	// GracePeriod bounds the lifetime of finished jobs.
	GracePeriod time.Duration
}

// redisPingTimeout bounds the connectivity check performed on startup.
const redisPingTimeout = 5 * time.Second

// NewRedisRegistry connects to Redis and verifies the connection.
func NewRedisRegistry(ctx context.Context, opts *RedisOptions) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  redisPingTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewRedisRegistryWithClient(client, opts.JobTTL, opts.GracePeriod), nil
}

// NewRedisRegistryWithClient wraps an existing client.
func NewRedisRegistryWithClient(client redis.UniversalClient, jobTTL, gracePeriod time.Duration) *RedisRegistry {
	return &RedisRegistry{
		client:      client,
		jobTTL:      jobTTL,
		gracePeriod: gracePeriod,
		now:         time.Now,
	}
}

// Close releases the connection pool.
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

// Create registers a new queued job for url and returns its snapshot.
func (r *RedisRegistry) Create(ctx context.Context, url string) (*model.Job, error) {
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

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, jobKey(id), data, r.jobTTL)
		pipe.SAdd(ctx, redisActiveSetKey, id)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store job: %w", err)
	}

	return job, nil
}

// Update merges patch into the job with the given id using optimistic locking.
func (r *RedisRegistry) Update(ctx context.Context, id string, patch *model.JobPatch) error {
	key := jobKey(id)

	update := func(tx *redis.Tx) error {
		job, err := r.load(ctx, tx, key)
		if err != nil {
			return err
		}

		if err = applyPatch(job, patch, r.now); err != nil {
			return err
		}

		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to encode job: %w", err)
		}

		ttl := r.jobTTL
		if job.Status.IsTerminal() {
			ttl = r.gracePeriod
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)

			if job.Status.IsTerminal() {
				pipe.SRem(ctx, redisActiveSetKey, id)
			}

			return nil
		})

		return err
	}

	for range redisMaxUpdateRetries {
		err := r.client.Watch(ctx, update, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return err
	}

	return fmt.Errorf("failed to update job %s: too many concurrent modifications", id)
}

// Get returns a snapshot of the job.
func (r *RedisRegistry) Get(ctx context.Context, id string) (*model.Job, error) {
	return r.load(ctx, r.client, jobKey(id))
}

// Delete removes the job.
func (r *RedisRegistry) Delete(ctx context.Context, id string) error {
	var deleted *redis.IntCmd

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, jobKey(id))
		pipe.SRem(ctx, redisActiveSetKey, id)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	if deleted.Val() == 0 {
		return ErrJobNotFound
	}

	return nil
}

// CountActive returns the number of jobs that have not reached a terminal status.
func (r *RedisRegistry) CountActive(ctx context.Context) (int, error) {
	count, err := r.client.SCard(ctx, redisActiveSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count active jobs: %w", err)
	}

	return int(count), nil
}

// load reads and decodes a job document.
func (r *RedisRegistry) load(ctx context.Context, cmd stringGetter, key string) (*model.Job, error) {
	data, err := cmd.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read job: %w", err)
	}

	var job model.Job
	if err = json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}

	return &job, nil
}

func jobKey(id string) string {
	return redisKeyPrefix + id
}
