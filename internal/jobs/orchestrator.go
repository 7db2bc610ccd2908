package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/ivoox-scraper/internal/metrics"
	"github.com/JakeFAU/ivoox-scraper/internal/scraper"
)

// Orchestrator owns the job lifecycle for logical scrape requests. It is the
// only component that writes the cache and the registry; the scraping engine
// stays stateless underneath it.
type Orchestrator struct {
	cache    Cache
	registry Registry
	results  ResultStore
	queue    Queue
	idGen    scraper.IDGenerator
	clock    scraper.Clock
	ttl      TTLPolicy
	logger   *zap.Logger
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(
	cache Cache,
	registry Registry,
	results ResultStore,
	queue Queue,
	idGen scraper.IDGenerator,
	clock scraper.Clock,
	ttl TTLPolicy,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		cache:    cache,
		registry: registry,
		results:  results,
		queue:    queue,
		idGen:    idGen,
		clock:    clock,
		ttl:      ttl,
		logger:   logger,
	}
}

// HandleRequest decides, in priority order, whether the request is served
// from cache, attached to the job already scraping its key, resolved from
// that job's terminal state, or scheduled as a brand-new job.
func (o *Orchestrator) HandleRequest(ctx context.Context, req Request) (Outcome, error) {
	key := KeyFor(req)

	// Fast path: a live cache entry bypasses the job machinery entirely.
	data, err := o.cache.Get(ctx, key)
	switch {
	case err == nil:
		metrics.ObserveCacheLookup("hit")
		o.logger.Debug("cache hit", zap.String("key", key))
		return Outcome{Status: OutcomeReady, Data: data}, nil
	case !errors.Is(err, ErrCacheMiss):
		return Outcome{}, fmt.Errorf("cache get %q: %w", key, err)
	}
	metrics.ObserveCacheLookup("miss")

	jobID, err := o.registry.RegisteredJob(ctx, key)
	if err != nil {
		return Outcome{}, fmt.Errorf("registry get %q: %w", key, err)
	}
	if jobID != "" {
		outcome, handled, err := o.resolveRegistered(ctx, key, jobID, req.Kind)
		if err != nil || handled {
			return outcome, err
		}
		// Registration pointed at a reaped job record; fall through and
		// schedule afresh.
	}

	return o.scheduleJob(ctx, key, req)
}

// resolveRegistered applies rules 2-4 of the request state machine against
// the job currently registered for the key. handled=false means the
// registration was stale and has been cleared.
func (o *Orchestrator) resolveRegistered(ctx context.Context, key, jobID string, kind Kind) (Outcome, bool, error) {
	rec, err := o.results.GetJob(ctx, jobID)
	if errors.Is(err, ErrJobNotFound) {
		o.logger.Warn("registered job record is gone, clearing registration",
			zap.String("key", key), zap.String("job_id", jobID))
		if clearErr := o.registry.ClearRegistration(ctx, key); clearErr != nil {
			return Outcome{}, false, fmt.Errorf("clear stale registration %q: %w", key, clearErr)
		}
		return Outcome{}, false, nil
	}
	if err != nil {
		return Outcome{}, false, fmt.Errorf("result store get %q: %w", jobID, err)
	}

	switch rec.State {
	case StatePending:
		o.logger.Debug("attaching to in-flight job",
			zap.String("key", key), zap.String("job_id", jobID))
		return Outcome{Status: OutcomeProcessing, JobID: jobID}, true, nil

	case StateSucceeded:
		// Materialize so the next request takes the fast path, then retire
		// the registration.
		if err := o.cache.Set(ctx, key, rec.Result, o.ttl.CacheTTL(kind)); err != nil {
			return Outcome{}, false, fmt.Errorf("materialize cache %q: %w", key, err)
		}
		if err := o.registry.ClearRegistration(ctx, key); err != nil {
			return Outcome{}, false, fmt.Errorf("clear registration %q: %w", key, err)
		}
		return Outcome{Status: OutcomeReady, Data: rec.Result, JobID: jobID}, true, nil

	case StateFailed:
		// Report the failure once, then forget it so a fresh attempt is
		// always possible.
		if err := o.registry.ClearRegistration(ctx, key); err != nil {
			return Outcome{}, false, fmt.Errorf("clear failed registration %q: %w", key, err)
		}
		return Outcome{Status: OutcomeFailed, JobID: jobID, Cause: rec.Error}, true, nil

	default:
		return Outcome{}, false, fmt.Errorf("job %q in unknown state %q", jobID, rec.State)
	}
}

// scheduleJob creates a fresh pending job and registers it for the key. The
// registration is a compare-and-set; when a concurrent request wins the race
// the loser attaches to the winner's job instead of scheduling a second one.
func (o *Orchestrator) scheduleJob(ctx context.Context, key string, req Request) (Outcome, error) {
	jobID, err := o.idGen.NewID()
	if err != nil {
		return Outcome{}, fmt.Errorf("generate job id: %w", err)
	}
	rec := Record{
		ID:        jobID,
		Key:       key,
		Kind:      req.Kind,
		State:     StatePending,
		Submitted: o.clock.Now(),
	}
	if err := o.results.PutJob(ctx, rec, o.ttl.JobRecord); err != nil {
		return Outcome{}, fmt.Errorf("create job record: %w", err)
	}

	won, err := o.registry.Register(ctx, key, jobID, o.ttl.Pending)
	if err != nil {
		return Outcome{}, fmt.Errorf("register job %q: %w", key, err)
	}
	if !won {
		// Lost the check-and-set; the winner's registration must be visible.
		winnerID, err := o.registry.RegisteredJob(ctx, key)
		if err != nil {
			return Outcome{}, fmt.Errorf("read winning registration %q: %w", key, err)
		}
		if winnerID == "" {
			return Outcome{}, fmt.Errorf("lost registration race for %q but no winner is registered", key)
		}
		o.logger.Debug("lost scheduling race, attaching",
			zap.String("key", key), zap.String("job_id", winnerID))
		return Outcome{Status: OutcomeProcessing, JobID: winnerID}, nil
	}

	task := Task{JobID: jobID, Request: req, Submitted: rec.Submitted.Unix()}
	if err := o.queue.Enqueue(ctx, task); err != nil {
		if clearErr := o.registry.ClearRegistration(ctx, key); clearErr != nil {
			o.logger.Error("clear registration after enqueue failure",
				zap.String("key", key), zap.Error(clearErr))
		}
		return Outcome{}, fmt.Errorf("enqueue job %q: %w", jobID, err)
	}

	o.logger.Info("scheduled scrape job",
		zap.String("key", key), zap.String("job_id", jobID), zap.String("kind", string(req.Kind)))
	return Outcome{Status: OutcomeProcessing, JobID: jobID}, nil
}

// GetJobStatus is the polling contract: a read-only lookup of the job record
// by ID. It deliberately never touches the registry; only the
// request-handling path above clears registrations.
func (o *Orchestrator) GetJobStatus(ctx context.Context, jobID string) (Record, error) {
	rec, err := o.results.GetJob(ctx, jobID)
	if err != nil {
		return Record{}, fmt.Errorf("get job %q: %w", jobID, err)
	}
	return rec, nil
}

// RecordSuccess marks the task's job Succeeded with the marshaled payload and
// writes the payload through to the cache under the task's key.
func (o *Orchestrator) RecordSuccess(ctx context.Context, task Task, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal job result: %w", err)
	}
	key := KeyFor(task.Request)
	now := o.clock.Now()
	rec := Record{
		ID:        task.JobID,
		Key:       key,
		Kind:      task.Request.Kind,
		State:     StateSucceeded,
		Result:    data,
		Submitted: task.SubmittedTime(),
		Finished:  &now,
	}
	if err := o.results.PutJob(ctx, rec, o.ttl.JobRecord); err != nil {
		return fmt.Errorf("store job result: %w", err)
	}
	if err := o.cache.Set(ctx, key, data, o.ttl.CacheTTL(task.Request.Kind)); err != nil {
		return fmt.Errorf("cache job result %q: %w", key, err)
	}
	metrics.ObserveJob(string(StateSucceeded))
	return nil
}

// RecordFailure marks the task's job Failed with the captured cause. The
// registration is left in place; the next request for the key observes the
// failure, surfaces it once and clears the way for a fresh attempt.
func (o *Orchestrator) RecordFailure(ctx context.Context, task Task, cause error) error {
	now := o.clock.Now()
	rec := Record{
		ID:        task.JobID,
		Key:       KeyFor(task.Request),
		Kind:      task.Request.Kind,
		State:     StateFailed,
		Error:     cause.Error(),
		Submitted: task.SubmittedTime(),
		Finished:  &now,
	}
	if err := o.results.PutJob(ctx, rec, o.ttl.JobRecord); err != nil {
		return fmt.Errorf("store job failure: %w", err)
	}
	metrics.ObserveJob(string(StateFailed))
	return nil
}
