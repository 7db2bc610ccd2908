// Package worker implements the scrape task execution loop.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ivoox-scraper/internal/jobs"
	"github.com/JakeFAU/ivoox-scraper/internal/metrics"
	"github.com/JakeFAU/ivoox-scraper/internal/scraper"
)

// Engine is the slice of the scraping engine a worker drives.
type Engine interface {
	SearchPodcasts(ctx context.Context, query string, page int) ([]scraper.Podcast, error)
	ListEpisodes(ctx context.Context, podcastID string, page int) (scraper.EpisodeList, error)
	ExtractAudioLinks(ctx context.Context, listingURL string, page int) ([]scraper.AudioLink, error)
	Close()
}

// EngineFactory builds a fresh engine (and its HTTP session) for one task.
// The worker closes the engine on every exit path, so session state never
// leaks across tasks.
type EngineFactory func() (Engine, error)

// Recorder persists a task's terminal state. Implemented by jobs.Orchestrator.
type Recorder interface {
	RecordSuccess(ctx context.Context, task jobs.Task, payload any) error
	RecordFailure(ctx context.Context, task jobs.Task, cause error) error
}

// Publisher pushes completion events (Pub/Sub or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// CompletionEvent is published once per finished task.
type CompletionEvent struct {
	JobID      string     `json:"job_id"`
	Key        string     `json:"key"`
	Kind       jobs.Kind  `json:"kind"`
	State      jobs.State `json:"state"`
	FinishedAt time.Time  `json:"finished_at"`
}

// Config controls Worker behavior.
type Config struct {
	Topic string
}

// Worker consumes queued scrape tasks and executes them to a terminal state.
type Worker struct {
	queue     jobs.Queue
	recorder  Recorder
	engines   EngineFactory
	publisher Publisher
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	queue jobs.Queue,
	recorder Recorder,
	engines EngineFactory,
	publisher Publisher,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		queue:     queue,
		recorder:  recorder,
		engines:   engines,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming tasks until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued task", zap.String("job_id", task.JobID))
		w.processTask(ctx, task)
	}
}

func (w *Worker) processTask(ctx context.Context, task jobs.Task) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	payload, err := w.runScrape(ctx, task)
	if err != nil {
		w.logger.Error("scrape task failed",
			zap.String("job_id", task.JobID),
			zap.String("kind", string(task.Request.Kind)),
			zap.Error(err))
		if recErr := w.recorder.RecordFailure(ctx, task, err); recErr != nil {
			w.logger.Error("record task failure", zap.String("job_id", task.JobID), zap.Error(recErr))
		}
		w.publishCompletion(ctx, task, jobs.StateFailed)
		return
	}

	if err := w.recorder.RecordSuccess(ctx, task, payload); err != nil {
		w.logger.Error("record task success", zap.String("job_id", task.JobID), zap.Error(err))
		return
	}
	w.logger.Info("scrape task finished",
		zap.String("job_id", task.JobID),
		zap.String("kind", string(task.Request.Kind)))
	w.publishCompletion(ctx, task, jobs.StateSucceeded)
}

// runScrape owns the engine session for exactly one task.
func (w *Worker) runScrape(ctx context.Context, task jobs.Task) (any, error) {
	engine, err := w.engines()
	if err != nil {
		return nil, err
	}
	defer engine.Close()

	switch task.Request.Kind {
	case jobs.KindSearch:
		return engine.SearchPodcasts(ctx, task.Request.Query, 0)
	case jobs.KindEpisodes:
		return engine.ListEpisodes(ctx, task.Request.PodcastID, 0)
	case jobs.KindAudio:
		return engine.ExtractAudioLinks(ctx, task.Request.ListingURL, 0)
	default:
		return nil, &UnknownKindError{Kind: task.Request.Kind}
	}
}

func (w *Worker) publishCompletion(ctx context.Context, task jobs.Task, state jobs.State) {
	if w.publisher == nil {
		return
	}
	event := CompletionEvent{
		JobID:      task.JobID,
		Key:        jobs.KeyFor(task.Request),
		Kind:       task.Request.Kind,
		State:      state,
		FinishedAt: time.Now().UTC(),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, event); err != nil {
		w.logger.Warn("publish completion event", zap.String("job_id", task.JobID), zap.Error(err))
	}
}

// UnknownKindError reports a queued task whose kind no engine operation maps to.
type UnknownKindError struct {
	Kind jobs.Kind
}

func (e *UnknownKindError) Error() string {
	return "unknown task kind " + string(e.Kind)
}
