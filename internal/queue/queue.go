// Package queue implements the background indexing queue: a priority
// queue of indexing jobs and the singleton worker that drains it without
// blocking reviews.
package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebernie/kode-context/internal/core"
	"github.com/ebernie/kode-context/internal/gitutil"
)

// JobRequest describes the job to enqueue.
type JobRequest struct {
	RepoURL      string
	RepoPath     string
	Branch       string
	ChangedFiles []string
	FileCount    int
	Priority     core.JobPriority
}

// Queue is a mutex-guarded priority queue over indexing jobs. Priority
// order is high > normal > low with FIFO ties. Jobs live in the queue for
// their whole lifecycle; terminal jobs stay visible in snapshots.
type Queue struct {
	mu   sync.Mutex
	jobs []*core.IndexingJob
	seq  int64
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue creates a pending job and returns a snapshot of it.
func (q *Queue) Enqueue(req JobRequest) core.IndexingJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	job := &core.IndexingJob{
		ID:           fmt.Sprintf("job-%d-%d", q.seq, time.Now().UnixNano()),
		RepoURL:      gitutil.NormalizeRepoURL(req.RepoURL),
		RepoPath:     req.RepoPath,
		Branch:       req.Branch,
		ChangedFiles: append([]string(nil), req.ChangedFiles...),
		FileCount:    req.FileCount,
		Priority:     req.Priority,
		Status:       core.JobPending,
		CreatedAt:    time.Now(),
	}
	if job.Priority == "" {
		job.Priority = core.PriorityNormal
	}
	q.jobs = append(q.jobs, job)
	return *job
}

// HasExistingPending reports whether a pending job for the same
// (repo, branch) already exists. Repo URLs compare normalized.
func (q *Queue) HasExistingPending(repoURL, branch string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	normalized := gitutil.NormalizeRepoURL(repoURL)
	for _, job := range q.jobs {
		if job.Status == core.JobPending && job.RepoURL == normalized && job.Branch == branch {
			return true
		}
	}
	return false
}

// NextPending returns a snapshot of the highest-priority pending job,
// FIFO among equals, or false when none is pending.
func (q *Queue) NextPending() (core.IndexingJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var best *core.IndexingJob
	for _, job := range q.jobs {
		if job.Status != core.JobPending {
			continue
		}
		if best == nil || job.Priority.Rank() < best.Priority.Rank() {
			best = job
		}
	}
	if best == nil {
		return core.IndexingJob{}, false
	}
	return *best, true
}

// MarkProcessing transitions a pending job to processing.
func (q *Queue) MarkProcessing(id string) error {
	return q.transition(id, core.JobPending, func(job *core.IndexingJob) {
		job.Status = core.JobProcessing
		job.StartedAt = time.Now()
	})
}

// MarkCompleted transitions a processing job to completed.
func (q *Queue) MarkCompleted(id, result string) error {
	return q.transition(id, core.JobProcessing, func(job *core.IndexingJob) {
		job.Status = core.JobCompleted
		job.CompletedAt = time.Now()
		job.Result = result
	})
}

// MarkFailed transitions a processing job to failed.
func (q *Queue) MarkFailed(id, jobErr string) error {
	return q.transition(id, core.JobProcessing, func(job *core.IndexingJob) {
		job.Status = core.JobFailed
		job.CompletedAt = time.Now()
		job.Error = jobErr
	})
}

func (q *Queue) transition(id string, from core.JobStatus, apply func(*core.IndexingJob)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, job := range q.jobs {
		if job.ID != id {
			continue
		}
		if job.Status != from {
			return fmt.Errorf("job %s is %s, expected %s", id, job.Status, from)
		}
		apply(job)
		return nil
	}
	return fmt.Errorf("job %s not found", id)
}

// Get returns a snapshot of one job.
func (q *Queue) Get(id string) (core.IndexingJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, job := range q.jobs {
		if job.ID == id {
			return *job, true
		}
	}
	return core.IndexingJob{}, false
}

// PendingCount returns the number of pending jobs.
func (q *Queue) PendingCount() int {
	return q.countByStatus(core.JobPending)
}

// ProcessingCount returns the number of jobs currently processing.
func (q *Queue) ProcessingCount() int {
	return q.countByStatus(core.JobProcessing)
}

func (q *Queue) countByStatus(status core.JobStatus) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, job := range q.jobs {
		if job.Status == status {
			n++
		}
	}
	return n
}

// Snapshot returns copies of all jobs in insertion order.
func (q *Queue) Snapshot() []core.IndexingJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]core.IndexingJob, 0, len(q.jobs))
	for _, job := range q.jobs {
		out = append(out, *job)
	}
	return out
}
