package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/ivoox-scraper/internal/jobs"
	queuememory "github.com/JakeFAU/ivoox-scraper/internal/queue/memory"
	storememory "github.com/JakeFAU/ivoox-scraper/internal/store/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGen) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("job-%d", g.n), nil
}

type harness struct {
	orch  *jobs.Orchestrator
	store *storememory.Store
	queue *queuememory.Queue
}

func newHarness(t *testing.T) harness {
	t.Helper()
	store := storememory.NewStore()
	queue := queuememory.NewQueue(16)
	t.Cleanup(queue.Close)
	orch := jobs.NewOrchestrator(
		store, store, store, queue,
		&seqIDGen{},
		fixedClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		jobs.DefaultTTLPolicy(),
		zap.NewNop(),
	)
	return harness{orch: orch, store: store, queue: queue}
}

var searchReq = jobs.Request{Kind: jobs.KindSearch, Query: "historia"}

func TestHandleRequest_CacheHitBypassesScheduling(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	payload := json.RawMessage(`[{"name":"Horizonte"}]`)
	require.NoError(t, h.store.Set(ctx, jobs.KeyFor(searchReq), payload, time.Hour))

	outcome, err := h.orch.HandleRequest(ctx, searchReq)
	require.NoError(t, err)
	require.Equal(t, jobs.OutcomeReady, outcome.Status)
	require.JSONEq(t, string(payload), string(outcome.Data))
	require.Zero(t, h.queue.Len())
}

func TestHandleRequest_SchedulesNewJobOnMiss(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	outcome, err := h.orch.HandleRequest(ctx, searchReq)
	require.NoError(t, err)
	require.Equal(t, jobs.OutcomeProcessing, outcome.Status)
	require.NotEmpty(t, outcome.JobID)

	task, err := h.queue.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, outcome.JobID, task.JobID)
	require.Equal(t, searchReq, task.Request)

	rec, err := h.orch.GetJobStatus(ctx, outcome.JobID)
	require.NoError(t, err)
	require.Equal(t, jobs.StatePending, rec.State)
}

func TestHandleRequest_AttachesToPendingJob(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	first, err := h.orch.HandleRequest(ctx, searchReq)
	require.NoError(t, err)
	// Same query with different casing joins the same in-flight job.
	second, err := h.orch.HandleRequest(ctx, jobs.Request{Kind: jobs.KindSearch, Query: "  HISTORIA "})
	require.NoError(t, err)

	require.Equal(t, jobs.OutcomeProcessing, second.Status)
	require.Equal(t, first.JobID, second.JobID)
	require.Equal(t, 1, h.queue.Len())
}

func TestHandleRequest_MaterializesSucceededJob(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	scheduled, err := h.orch.HandleRequest(ctx, searchReq)
	require.NoError(t, err)
	task, err := h.queue.Dequeue(ctx)
	require.NoError(t, err)

	// Simulate the worker finishing: the record flips to succeeded while the
	// registration stays in place, and the cache entry has since expired.
	payload := json.RawMessage(`[{"name":"Horizonte"}]`)
	rec := jobs.Record{
		ID: task.JobID, Key: jobs.KeyFor(searchReq), Kind: jobs.KindSearch,
		State: jobs.StateSucceeded, Result: payload, Submitted: task.SubmittedTime(),
	}
	require.NoError(t, h.store.PutJob(ctx, rec, time.Hour))
	require.NoError(t, h.store.Delete(ctx, jobs.KeyFor(searchReq)))

	outcome, err := h.orch.HandleRequest(ctx, searchReq)
	require.NoError(t, err)
	require.Equal(t, jobs.OutcomeReady, outcome.Status)
	require.JSONEq(t, string(payload), string(outcome.Data))
	require.Equal(t, scheduled.JobID, outcome.JobID)

	// Registration retired: the key is free and the cache is warm, so the
	// next request is a pure cache hit with no new job.
	id, err := h.store.RegisteredJob(ctx, jobs.KeyFor(searchReq))
	require.NoError(t, err)
	require.Empty(t, id)

	again, err := h.orch.HandleRequest(ctx, searchReq)
	require.NoError(t, err)
	require.Equal(t, jobs.OutcomeReady, again.Status)
	require.Zero(t, h.queue.Len())
}

func TestHandleRequest_SurfacesFailureOnceThenRetries(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	first, err := h.orch.HandleRequest(ctx, searchReq)
	require.NoError(t, err)
	task, err := h.queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, h.orch.RecordFailure(ctx, task, errors.New("site unreachable")))

	failed, err := h.orch.HandleRequest(ctx, searchReq)
	require.NoError(t, err)
	require.Equal(t, jobs.OutcomeFailed, failed.Status)
	require.Equal(t, first.JobID, failed.JobID)
	require.Equal(t, "site unreachable", failed.Cause)

	// The failure cleared the registration, so the next request schedules a
	// fresh job rather than reporting the same failure again.
	retry, err := h.orch.HandleRequest(ctx, searchReq)
	require.NoError(t, err)
	require.Equal(t, jobs.OutcomeProcessing, retry.Status)
	require.NotEqual(t, first.JobID, retry.JobID)
}

func TestHandleRequest_StaleRegistrationIsClearedAndRescheduled(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	key := jobs.KeyFor(searchReq)

	// A registration pointing at a reaped job record.
	won, err := h.store.Register(ctx, key, "gone-job", time.Minute)
	require.NoError(t, err)
	require.True(t, won)

	outcome, err := h.orch.HandleRequest(ctx, searchReq)
	require.NoError(t, err)
	require.Equal(t, jobs.OutcomeProcessing, outcome.Status)
	require.NotEqual(t, "gone-job", outcome.JobID)
	require.Equal(t, 1, h.queue.Len())
}

func TestHandleRequest_ConcurrentRequestsScheduleExactlyOneJob(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	const callers = 16
	outcomes := make([]jobs.Outcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := h.orch.HandleRequest(ctx, searchReq)
			require.NoError(t, err)
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, h.queue.Len())
	winner := outcomes[0].JobID
	for _, outcome := range outcomes {
		require.Equal(t, jobs.OutcomeProcessing, outcome.Status)
		require.Equal(t, winner, outcome.JobID)
	}
}

func TestGetJobStatus_NeverTouchesRegistry(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	scheduled, err := h.orch.HandleRequest(ctx, searchReq)
	require.NoError(t, err)
	task, err := h.queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, h.orch.RecordSuccess(ctx, task, []string{"x"}))

	rec, err := h.orch.GetJobStatus(ctx, scheduled.JobID)
	require.NoError(t, err)
	require.Equal(t, jobs.StateSucceeded, rec.State)

	// Polling is read-only: the registration for the key must survive until
	// a request-handling call retires it.
	id, err := h.store.RegisteredJob(ctx, jobs.KeyFor(searchReq))
	require.NoError(t, err)
	require.Equal(t, scheduled.JobID, id)
}

func TestGetJobStatus_UnknownJob(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.orch.GetJobStatus(context.Background(), "nope")
	require.ErrorIs(t, err, jobs.ErrJobNotFound)
}

func TestRecordSuccess_WritesRecordAndCache(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	scheduled, err := h.orch.HandleRequest(ctx, searchReq)
	require.NoError(t, err)
	task, err := h.queue.Dequeue(ctx)
	require.NoError(t, err)

	require.NoError(t, h.orch.RecordSuccess(ctx, task, []map[string]string{{"name": "Horizonte"}}))

	rec, err := h.orch.GetJobStatus(ctx, scheduled.JobID)
	require.NoError(t, err)
	require.Equal(t, jobs.StateSucceeded, rec.State)
	require.NotNil(t, rec.Finished)

	cached, err := h.store.Get(ctx, jobs.KeyFor(searchReq))
	require.NoError(t, err)
	require.JSONEq(t, `[{"name":"Horizonte"}]`, string(cached))
}
