package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"nhp/internal/domain"
	"nhp/internal/logger"
	"nhp/internal/metrics"
	"nhp/internal/port"
)

type ingestJob struct {
	id     string
	file   domain.UploadedFile
	epoch  uint64
	queued time.Time
}

// IngestQueue runs monograph ingestion on a single background worker.
type IngestQueue struct {
	jobs      chan ingestJob
	extractor port.TextExtractor
	ingestor  *MonographIngestor
	store     port.KnowledgeStore
	state     *KnowledgeBaseState
	metrics   *metrics.Metrics

	epoch atomic.Uint64
	done  chan struct{}

	// pending counts submitted jobs that have not finished. idle is closed
	// whenever pending is zero and replaced when it becomes non-zero.
	pendingMu sync.Mutex
	pending   int
	idle      chan struct{}

	mu      sync.RWMutex
	started bool
	closed  bool
	onDone  []func(domain.JobOutcome)
}

// NewIngestQueue creates a queue holding up to size waiting jobs.
func NewIngestQueue(
	size int,
	extractor port.TextExtractor,
	ingestor *MonographIngestor,
	store port.KnowledgeStore,
	state *KnowledgeBaseState,
	m *metrics.Metrics,
) *IngestQueue {
	if size <= 0 {
		size = 1
	}
	idle := make(chan struct{})
	close(idle)
	return &IngestQueue{
		jobs:      make(chan ingestJob, size),
		extractor: extractor,
		ingestor:  ingestor,
		store:     store,
		state:     state,
		metrics:   m,
		done:      make(chan struct{}),
		idle:      idle,
	}
}

// OnDone registers fn to be called after every job, from the worker goroutine.
func (q *IngestQueue) OnDone(fn func(domain.JobOutcome)) {
	q.mu.Lock()
	q.onDone = append(q.onDone, fn)
	q.mu.Unlock()
}

// Start runs the worker until Close is called. ctx carries the logger and is passed to jobs.
func (q *IngestQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true

	go func() {
		defer close(q.done)
		for job := range q.jobs {
			q.metrics.SetQueueDepth(len(q.jobs))
			q.run(ctx, job)
		}
	}()
}

// Submit enqueues one file and returns its job ID.
func (q *IngestQueue) Submit(file domain.UploadedFile) (string, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return "", domain.ErrQueueClosed
	}

	job := ingestJob{
		id:     uuid.NewString(),
		file:   file,
		epoch:  q.epoch.Load(),
		queued: time.Now(),
	}

	q.acquire()
	q.state.Enqueued()
	select {
	case q.jobs <- job:
		q.metrics.SetQueueDepth(len(q.jobs))
		return job.id, nil
	default:
		q.release()
		q.state.Finished(domain.JobOutcome{
			ID:         job.id,
			Source:     file.Name,
			Status:     domain.JobDiscarded,
			Error:      domain.ErrQueueFull.Error(),
			FinishedAt: time.Now(),
		})
		return "", domain.ErrQueueFull
	}
}

// Invalidate makes every job submitted so far obsolete. Workers discard them.
func (q *IngestQueue) Invalidate() {
	q.epoch.Add(1)
}

// Wait blocks until every submitted job has finished or ctx is done.
// Jobs submitted while Wait is blocked extend the wait.
func (q *IngestQueue) Wait(ctx context.Context) error {
	for {
		q.pendingMu.Lock()
		if q.pending == 0 {
			q.pendingMu.Unlock()
			return nil
		}
		idle := q.idle
		q.pendingMu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (q *IngestQueue) acquire() {
	q.pendingMu.Lock()
	if q.pending == 0 {
		q.idle = make(chan struct{})
	}
	q.pending++
	q.pendingMu.Unlock()
}

func (q *IngestQueue) release() {
	q.pendingMu.Lock()
	q.pending--
	if q.pending == 0 {
		close(q.idle)
	}
	q.pendingMu.Unlock()
}

// Close stops accepting jobs and waits for a started worker to drain the queue.
func (q *IngestQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	started := q.started
	q.mu.Unlock()

	if started {
		<-q.done
	}
}

func (q *IngestQueue) run(ctx context.Context, job ingestJob) {
	defer q.release()
	log := logger.FromContext(ctx).With("job", job.id, "source", job.file.Name)

	outcome := domain.JobOutcome{ID: job.id, Source: job.file.Name}

	// The generation is read before the epoch check so that a reset between the two
	// either discards the job here or fails its upsert as stale.
	generation := q.store.Generation()
	if job.epoch != q.epoch.Load() {
		outcome.Status = domain.JobDiscarded
		outcome.Error = "knowledge base was reset before the job started"
		q.finish(log, outcome)
		return
	}

	text, err := q.extractor.Extract(ctx, job.file.Data)
	if err == nil {
		outcome.Chunks, err = q.ingestor.IngestAt(ctx, text, job.file.Name, generation)
	}

	switch {
	case err == nil:
		outcome.Status = domain.JobSucceeded
	case errors.Is(err, domain.ErrStaleBatch):
		outcome.Status = domain.JobDiscarded
		outcome.Error = err.Error()
	default:
		outcome.Status = domain.JobFailed
		outcome.Error = err.Error()
	}
	q.finish(log, outcome)
}

func (q *IngestQueue) finish(log logger.Logger, outcome domain.JobOutcome) {
	outcome.FinishedAt = time.Now()
	q.state.Finished(outcome)
	q.metrics.IngestJob(string(outcome.Status), outcome.Chunks)

	switch outcome.Status {
	case domain.JobSucceeded:
		log.Info("monograph added to knowledge base", "chunks", outcome.Chunks)
	case domain.JobFailed:
		log.Error("monograph ingestion failed", "error", outcome.Error)
	default:
		log.Warn("monograph ingestion discarded", "reason", outcome.Error)
	}

	q.mu.RLock()
	hooks := q.onDone
	q.mu.RUnlock()
	for _, fn := range hooks {
		fn(outcome)
	}
}
