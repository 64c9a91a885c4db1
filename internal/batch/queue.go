package batch

import (
	"sort"
	"sync"
)

// Queue owns the set of jobs for one batch. It is the exclusive owner
// of all job mutation: every operation, including the claim of the next
// pending job, runs under a single mutex so two workers can never claim
// the same job.
type Queue struct {
	mu          sync.Mutex
	order       []string // submission order (FIFO)
	jobs        map[string]*Job
	maxParallel int
}

// NewQueue creates an empty queue with the given concurrency bound.
// The bound is fixed for the queue's lifetime.
func NewQueue(maxParallel int) *Queue {
	if maxParallel <= 0 {
		maxParallel = 1
	}
	return &Queue{
		jobs:        make(map[string]*Job),
		maxParallel: maxParallel,
	}
}

// MaxParallel returns the queue's concurrency bound.
func (q *Queue) MaxParallel() int {
	return q.maxParallel
}

// Add appends a job to the queue in submission order and returns its ID.
func (q *Queue) Add(job *Job) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.order = append(q.order, job.ID)
	q.jobs[job.ID] = job
	return job.ID
}

// Job returns a snapshot of the job with the given ID.
func (q *Queue) Job(id string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// Jobs returns snapshots of all jobs in submission order.
func (q *Queue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Job, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, *q.jobs[id])
	}
	return out
}

// NextPending returns a snapshot of the earliest-submitted job that is
// still pending. Scheduling fairness is submission order, not chapter
// number.
func (q *Queue) NextPending() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if j := q.nextPendingLocked(); j != nil {
		return *j, true
	}
	return Job{}, false
}

func (q *Queue) nextPendingLocked() *Job {
	for _, id := range q.order {
		if j := q.jobs[id]; j.Status == StatusPending {
			return j
		}
	}
	return nil
}

// CanStartNew reports whether the number of running jobs is below the
// concurrency bound.
func (q *Queue) CanStartNew() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.countLocked(StatusRunning) < q.maxParallel
}

// ClaimNext atomically takes the earliest pending job and marks it
// running, provided there is concurrency headroom. This is the only
// claim path workers should use.
func (q *Queue) ClaimNext() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.countLocked(StatusRunning) >= q.maxParallel {
		return Job{}, false
	}
	j := q.nextPendingLocked()
	if j == nil {
		return Job{}, false
	}
	j.markRunning()
	return *j, true
}

// MarkRunning transitions a pending job to running. Unknown IDs are a
// no-op; a stale reference must never crash the scheduler.
func (q *Queue) MarkRunning(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if j, ok := q.jobs[id]; ok {
		j.markRunning()
	}
}

// MarkCompleted records a job's result text and word count.
func (q *Queue) MarkCompleted(id, result string, wordCount int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if j, ok := q.jobs[id]; ok {
		j.markCompleted(result, wordCount)
	}
}

// MarkFailed records a job's terminal error.
func (q *Queue) MarkFailed(id, message string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if j, ok := q.jobs[id]; ok {
		j.markFailed(message)
	}
}

// UpdateProgress stores a clamped progress value for a running job.
func (q *Queue) UpdateProgress(id string, v float64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if j, ok := q.jobs[id]; ok {
		j.updateProgress(v)
	}
}

// IncrementRetry bumps a job's retry counter.
func (q *Queue) IncrementRetry(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if j, ok := q.jobs[id]; ok {
		j.RetryCount++
	}
}

// CancelPending transitions every currently-pending job to cancelled
// and returns how many were cancelled. Running and terminal jobs are
// untouched.
func (q *Queue) CancelPending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	cancelled := 0
	for _, id := range q.order {
		if q.jobs[id].cancel() {
			cancelled++
		}
	}
	return cancelled
}

// Active reports whether any job is still pending or running.
func (q *Queue) Active() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.countLocked(StatusPending) > 0 || q.countLocked(StatusRunning) > 0
}

// CompletedBefore returns the results of completed chapters with a
// number lower than chapterNumber, ordered by chapter number. This is
// the continuity context handed to the generator: whatever
// lower-numbered chapters have completed so far.
func (q *Queue) CompletedBefore(chapterNumber int) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	type done struct {
		num  int
		text string
	}
	var completed []done
	for _, id := range q.order {
		j := q.jobs[id]
		if j.Status == StatusCompleted && j.ChapterNumber < chapterNumber {
			completed = append(completed, done{j.ChapterNumber, j.Result})
		}
	}
	// Submission order usually matches chapter order, but callers may
	// submit out of order, so sort explicitly.
	sort.Slice(completed, func(a, b int) bool { return completed[a].num < completed[b].num })
	out := make([]string, 0, len(completed))
	for _, d := range completed {
		out = append(out, d.text)
	}
	return out
}

func (q *Queue) countLocked(status Status) int {
	n := 0
	for _, j := range q.jobs {
		if j.Status == status {
			n++
		}
	}
	return n
}
