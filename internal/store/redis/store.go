// Package redisstore backs the cache, job registry and job result store
// with Redis. All three share one client; keys are namespaced by prefix.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/ivoox-scraper/internal/jobs"
)

// Key prefixes. Registrations intentionally live apart from cache entries so
// clearing one never disturbs the other.
const (
	cachePrefix    = "scrape:"
	registryPrefix = "task_id_for_"
	jobPrefix      = "jobs:"
)

// Config holds Redis connection configuration.
type Config struct {
	Address  string
	Password string
	DB       int
}

// ErrEmptyAddress is returned when the Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// connectionTimeout bounds the startup ping.
const connectionTimeout = 5 * time.Second

// NewClient creates a Redis client and verifies connectivity.
func NewClient(cfg Config) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// Store implements jobs.Cache, jobs.Registry and jobs.ResultStore.
type Store struct {
	client *redis.Client
}

// New wraps an existing Redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Get reads a cached payload.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, error) {
	data, err := s.client.Get(ctx, cachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, jobs.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return data, nil
}

// Set writes a cached payload with a TTL. Redis owns eviction.
func (s *Store) Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error {
	if err := s.client.Set(ctx, cachePrefix+key, []byte(value), ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Delete removes a cached payload.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, cachePrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// Register performs the atomic check-and-set that keeps at most one live job
// per key: SETNX succeeds only when no unexpired registration exists.
func (s *Store) Register(ctx context.Context, key, jobID string, ttl time.Duration) (bool, error) {
	won, err := s.client.SetNX(ctx, registryPrefix+key, jobID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %q: %w", key, err)
	}
	return won, nil
}

// RegisteredJob returns the job ID registered for the key, or "" when none.
func (s *Store) RegisteredJob(ctx context.Context, key string) (string, error) {
	jobID, err := s.client.Get(ctx, registryPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get registration %q: %w", key, err)
	}
	return jobID, nil
}

// ClearRegistration drops the registration for the key.
func (s *Store) ClearRegistration(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, registryPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del registration %q: %w", key, err)
	}
	return nil
}

// PutJob writes a job record with a TTL.
func (s *Store) PutJob(ctx context.Context, rec jobs.Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal job record %q: %w", rec.ID, err)
	}
	if err := s.client.Set(ctx, jobPrefix+rec.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis put job %q: %w", rec.ID, err)
	}
	return nil
}

// GetJob reads a job record by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (jobs.Record, error) {
	data, err := s.client.Get(ctx, jobPrefix+jobID).Bytes()
	if errors.Is(err, redis.Nil) {
		return jobs.Record{}, jobs.ErrJobNotFound
	}
	if err != nil {
		return jobs.Record{}, fmt.Errorf("redis get job %q: %w", jobID, err)
	}
	var rec jobs.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return jobs.Record{}, fmt.Errorf("unmarshal job record %q: %w", jobID, err)
	}
	return rec, nil
}
