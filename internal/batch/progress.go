package batch

import (
	"math"
	"time"
)

// Progress is a point-in-time summary of a queue's aggregate state.
// It is computed fresh on every query and never mutated after return.
type Progress struct {
	TotalChapters      int `json:"total_chapters"`
	CompletedChapters  int `json:"completed_chapters"`
	FailedChapters     int `json:"failed_chapters"`
	InProgressChapters int `json:"in_progress_chapters"`

	// Fraction of jobs that have reached a terminal state, in [0,1].
	OverallProgress float64 `json:"overall_progress"`

	// Nil until at least one job has completed; there is no basis for
	// an estimate before that.
	EstimatedRemainingSeconds *float64 `json:"estimated_remaining_seconds,omitempty"`

	WordCountTotal int `json:"word_count_total"`
}

// Progress computes a fresh batch snapshot. O(n) over all jobs.
func (q *Queue) Progress() Progress {
	q.mu.Lock()
	defer q.mu.Unlock()

	var (
		p             Progress
		pending       int
		cancelled     int
		totalDuration time.Duration
		timed         int
	)

	p.TotalChapters = len(q.order)
	for _, id := range q.order {
		j := q.jobs[id]
		switch j.Status {
		case StatusPending:
			pending++
		case StatusRunning:
			p.InProgressChapters++
		case StatusCompleted:
			p.CompletedChapters++
			p.WordCountTotal += j.WordCount
			if d, ok := j.duration(); ok {
				totalDuration += d
				timed++
			}
		case StatusFailed:
			p.FailedChapters++
		case StatusCancelled:
			cancelled++
		}
	}

	// An empty batch reports itself as fully done.
	if p.TotalChapters == 0 {
		p.OverallProgress = 1.0
		return p
	}
	terminal := p.CompletedChapters + p.FailedChapters + cancelled
	p.OverallProgress = float64(terminal) / float64(p.TotalChapters)

	if timed > 0 {
		remaining := pending + p.InProgressChapters
		mean := totalDuration.Seconds() / float64(timed)
		waves := math.Ceil(float64(remaining) / float64(q.maxParallel))
		est := mean * waves
		p.EstimatedRemainingSeconds = &est
	}

	return p
}
