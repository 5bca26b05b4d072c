package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ebernie/kode-context/internal/core"
)

// Indexer performs the actual incremental indexing for one job. The
// external indexing system implements it; this package only schedules.
type Indexer interface {
	IndexIncremental(ctx context.Context, job core.IndexingJob) (string, error)
}

// WorkerOptions parameterizes the background worker.
type WorkerOptions struct {
	PollInterval      time.Duration
	MaxConcurrentJobs int
}

// Worker is the singleton consumer of the indexing queue. It polls on an
// interval, drains at most MaxConcurrentJobs pending jobs per tick, and
// emits typed events for every lifecycle transition. Stop is cooperative:
// the poll loop exits and in-flight jobs run to completion.
type Worker struct {
	queue   *Queue
	indexer Indexer
	journal JobStore
	logger  *slog.Logger
	opts    WorkerOptions

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	kickCh    chan struct{}
	loopDone  chan struct{}
	jobs      sync.WaitGroup
	listeners []core.EventListener
}

// NewWorker creates a worker over the queue. journal may be nil.
func NewWorker(q *Queue, indexer Indexer, journal JobStore, opts WorkerOptions, logger *slog.Logger) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.MaxConcurrentJobs <= 0 {
		opts.MaxConcurrentJobs = 1
	}
	return &Worker{
		queue:   q,
		indexer: indexer,
		journal: journal,
		logger:  logger,
		opts:    opts,
	}
}

// Subscribe registers an event listener. Listeners registered after Start
// receive subsequent events only.
func (w *Worker) Subscribe(listener core.EventListener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, listener)
}

func (w *Worker) emit(event core.Event) {
	w.mu.Lock()
	listeners := make([]core.EventListener, len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.Unlock()

	for _, l := range listeners {
		l(event)
	}
}

// Start launches the poll loop. Starting a running worker is a no-op.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.kickCh = make(chan struct{}, 1)
	w.loopDone = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("background indexer started", "poll_interval", w.opts.PollInterval)
	w.emit(core.Event{Type: core.EventIndexerStarted})

	go w.loop(ctx)
}

// Stop halts polling and waits for in-flight jobs to finish. Stopping a
// stopped worker is a no-op.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	loopDone := w.loopDone
	w.mu.Unlock()

	<-loopDone
	w.jobs.Wait()

	w.logger.Info("background indexer stopped")
	w.emit(core.Event{Type: core.EventIndexerStopped})
}

// Notify wakes the worker for an immediate poll, used when a job is
// enqueued while the worker sits idle between ticks.
func (w *Worker) Notify() {
	w.mu.Lock()
	kickCh := w.kickCh
	w.mu.Unlock()
	if kickCh == nil {
		return
	}
	select {
	case kickCh <- struct{}{}:
	default:
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.loopDone)

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		case <-w.kickCh:
			w.drain(ctx)
		}
	}
}

// drain starts at most MaxConcurrentJobs pending jobs and waits for them,
// so one tick never overlaps the next tick's work.
func (w *Worker) drain(ctx context.Context) {
	started := 0
	for started < w.opts.MaxConcurrentJobs {
		job, ok := w.queue.NextPending()
		if !ok {
			break
		}
		if err := w.queue.MarkProcessing(job.ID); err != nil {
			w.logger.Debug("job claim lost", "job", job.ID, "error", err)
			continue
		}
		started++

		w.jobs.Add(1)
		go func(id string) {
			defer w.jobs.Done()
			w.runJob(ctx, id)
		}(job.ID)
	}
	if started > 0 {
		w.jobs.Wait()
	}
}

func (w *Worker) runJob(ctx context.Context, id string) {
	job, ok := w.queue.Get(id)
	if !ok {
		return
	}
	w.logger.Info("indexing job started", "job", job.ID, "repo", job.RepoURL, "branch", job.Branch, "files", job.FileCount)
	w.emit(core.Event{Type: core.EventJobStarted, Job: &job})
	w.record(ctx, job)

	result, err := w.indexer.IndexIncremental(ctx, job)
	if err != nil {
		if markErr := w.queue.MarkFailed(job.ID, err.Error()); markErr != nil {
			w.logger.Error("failed to mark job failed", "job", job.ID, "error", markErr)
		}
		failed, _ := w.queue.Get(job.ID)
		w.logger.Error("indexing job failed", "job", job.ID, "error", err)
		w.emit(core.Event{Type: core.EventJobFailed, Job: &failed})
		w.record(ctx, failed)
		return
	}

	if markErr := w.queue.MarkCompleted(job.ID, result); markErr != nil {
		w.logger.Error("failed to mark job completed", "job", job.ID, "error", markErr)
	}
	completed, _ := w.queue.Get(job.ID)
	w.logger.Info("indexing job completed", "job", job.ID, "duration", completed.CompletedAt.Sub(completed.StartedAt))
	w.emit(core.Event{Type: core.EventJobCompleted, Job: &completed})
	w.record(ctx, completed)
}

// record journals a job state best-effort; journal failures never affect
// the job.
func (w *Worker) record(ctx context.Context, job core.IndexingJob) {
	if w.journal == nil {
		return
	}
	if err := w.journal.RecordJob(ctx, job); err != nil {
		w.logger.Debug("job journal write failed", "job", job.ID, "error", err)
	}
}
