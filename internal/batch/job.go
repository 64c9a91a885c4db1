// Package batch implements the chapter generation batch lifecycle:
// jobs, the queue that owns them, and the service that drives a bounded
// worker pool over an injected Generator.
package batch

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether a job in this status can never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ChapterSpec describes one chapter a caller wants generated.
type ChapterSpec struct {
	ChapterNumber int    `json:"chapter_number" yaml:"number"`
	Outline       string `json:"outline" yaml:"outline"`
	StyleGuide    string `json:"style_guide" yaml:"style_guide"`
}

// Job is one unit of work: the generation of a single chapter.
// All mutation goes through the owning Queue; callers only ever see
// value snapshots.
type Job struct {
	ID            string     `json:"id"`
	ChapterNumber int        `json:"chapter_number"`
	Outline       string     `json:"outline"`
	StyleGuide    string     `json:"style_guide"`
	Status        Status     `json:"status"`
	Progress      float64    `json:"progress"`
	Result        string     `json:"result,omitempty"`
	Error         string     `json:"error,omitempty"`
	WordCount     int        `json:"word_count"`
	RetryCount    int        `json:"retry_count"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a pending job for a chapter spec.
func NewJob(spec ChapterSpec) *Job {
	return &Job{
		ID:            uuid.New().String(),
		ChapterNumber: spec.ChapterNumber,
		Outline:       spec.Outline,
		StyleGuide:    spec.StyleGuide,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}

// markRunning transitions pending -> running. Any other starting state
// is left untouched.
func (j *Job) markRunning() {
	if j.Status != StatusPending {
		return
	}
	now := time.Now().UTC()
	j.StartedAt = &now
	j.Status = StatusRunning
}

// markCompleted transitions running -> completed, recording the
// generated text. Any other starting state is left untouched.
func (j *Job) markCompleted(result string, wordCount int) {
	if j.Status != StatusRunning {
		return
	}
	now := time.Now().UTC()
	j.Result = result
	j.WordCount = wordCount
	j.Progress = 1.0
	j.CompletedAt = &now
	j.Status = StatusCompleted
}

// markFailed transitions running -> failed, recording the final error.
// Any other starting state is left untouched.
func (j *Job) markFailed(message string) {
	if j.Status != StatusRunning {
		return
	}
	now := time.Now().UTC()
	j.Error = message
	j.CompletedAt = &now
	j.Status = StatusFailed
}

// updateProgress clamps v into [0,1] and stores it. No-op once the job
// is terminal.
func (j *Job) updateProgress(v float64) {
	if j.Status.Terminal() {
		return
	}
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	j.Progress = v
}

// cancel transitions pending -> cancelled. Running and terminal jobs
// are untouched; in-flight work always finishes naturally.
func (j *Job) cancel() bool {
	if j.Status != StatusPending {
		return false
	}
	j.Status = StatusCancelled
	return true
}

// duration returns the wall-clock time the job spent running, and
// whether both timestamps were set.
func (j *Job) duration() (time.Duration, bool) {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0, false
	}
	return j.CompletedAt.Sub(*j.StartedAt), true
}
