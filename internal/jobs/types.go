// Package jobs implements the cache-first job orchestration protocol: for
// each logical scrape request it serves a cached result, attaches the caller
// to an in-flight job, or launches a new background job, and lets clients
// poll job state to completion.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Kind identifies which scrape operation a request maps to.
type Kind string

// Request kinds, one per engine operation.
const (
	KindSearch   Kind = "search"
	KindEpisodes Kind = "episodes"
	KindAudio    Kind = "audio"
)

// Request is a logical scrape request independent of transport. Exactly one
// of Query, PodcastID or ListingURL is meaningful, selected by Kind.
type Request struct {
	Kind       Kind   `json:"kind"`
	Query      string `json:"query,omitempty"`
	PodcastID  string `json:"podcast_id,omitempty"`
	ListingURL string `json:"listing_url,omitempty"`
}

// State is the lifecycle state of a scrape job. Pending transitions exactly
// once to Succeeded or Failed; terminal records are never reused.
type State string

// Job states persisted in the result store.
const (
	StatePending   State = "pending"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Record is the persisted job record. Result holds the marshaled payload
// once the job succeeds; Error holds the captured cause once it fails.
type Record struct {
	ID        string          `json:"id"`
	Key       string          `json:"key"`
	Kind      Kind            `json:"kind"`
	State     State           `json:"state"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Submitted time.Time       `json:"submitted_at"`
	Finished  *time.Time      `json:"finished_at,omitempty"`
}

// Task wraps a scheduled job ready to run on a worker.
type Task struct {
	JobID     string  `json:"job_id"`
	Request   Request `json:"request"`
	Submitted int64   `json:"submitted_at"`
}

// SubmittedTime converts the queue-borne unix timestamp back to time.Time.
func (t Task) SubmittedTime() time.Time {
	return time.Unix(t.Submitted, 0).UTC()
}

// OutcomeStatus classifies what HandleRequest decided for a request.
type OutcomeStatus string

// Outcome statuses.
const (
	OutcomeReady      OutcomeStatus = "ready"
	OutcomeProcessing OutcomeStatus = "processing"
	OutcomeFailed     OutcomeStatus = "failed"
)

// Outcome is the orchestrator's answer to one logical request: data when a
// result is available, a pollable job ID while scraping is in flight, or the
// captured cause when the registered job failed.
type Outcome struct {
	Status OutcomeStatus   `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	JobID  string          `json:"job_id,omitempty"`
	Cause  string          `json:"cause,omitempty"`
}

// Sentinel errors shared by store implementations.
var (
	ErrCacheMiss   = errors.New("cache miss")
	ErrJobNotFound = errors.New("job not found")
)

// Cache stores completed scrape payloads under a job key with a TTL.
// Eviction belongs to the store; the orchestrator only sets TTLs on write.
type Cache interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Registry maps a job key to the ID of the job currently scraping it.
// Register is a compare-and-set: it succeeds only when no live registration
// exists, which keeps concurrent requests from scheduling duplicate jobs.
type Registry interface {
	Register(ctx context.Context, key, jobID string, ttl time.Duration) (bool, error)
	RegisteredJob(ctx context.Context, key string) (string, error)
	ClearRegistration(ctx context.Context, key string) error
}

// ResultStore persists job records keyed by job ID.
type ResultStore interface {
	PutJob(ctx context.Context, rec Record, ttl time.Duration) error
	GetJob(ctx context.Context, jobID string) (Record, error)
}

// Queue provides enqueue/dequeue semantics for scrape tasks.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Dequeue(ctx context.Context) (Task, error)
}
