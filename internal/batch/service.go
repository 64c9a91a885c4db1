package batch

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// ServiceConfig configures a generation service.
type ServiceConfig struct {
	// MaxParallel bounds the number of chapters generated at once.
	// Defaults to 1 if not positive.
	MaxParallel int

	// RetryOnFailure enables retrying a job's generation call after a
	// failure, up to MaxRetries extra attempts.
	RetryOnFailure bool
	MaxRetries     int

	Logger *slog.Logger
}

// Service drives a bounded worker pool over a queue of chapter jobs.
// One batch is active at a time; the queue from the most recent batch
// remains queryable until the next one starts.
type Service struct {
	mu         sync.Mutex
	queue      *Queue
	onProgress func(Progress)

	cfg    ServiceConfig
	gen    Generator
	logger *slog.Logger
}

// NewService creates a service around an injected generator.
func NewService(cfg ServiceConfig, gen Generator) *Service {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:    cfg,
		gen:    gen,
		logger: logger,
	}
}

// SetProgressCallback registers an observer invoked with a fresh
// Progress snapshot after every state-changing operation. Chainable.
func (s *Service) SetProgressCallback(fn func(Progress)) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onProgress = fn
	return s
}

// GenerateBatch creates one job per spec, loads them into a fresh
// queue, and runs the worker pool until every job reaches a terminal
// state. Individual failures never abort the batch; callers inspect
// the returned queue for the per-chapter outcome.
//
// prev supplies continuity context per chapter at job start. When nil,
// the service uses whatever lower-numbered chapters have completed so
// far in this batch.
func (s *Service) GenerateBatch(ctx context.Context, specs []ChapterSpec, characterBible any, prev ContextProvider) (*Queue, error) {
	queue := NewQueue(s.cfg.MaxParallel)
	for _, spec := range specs {
		queue.Add(NewJob(spec))
	}

	s.mu.Lock()
	s.queue = queue
	s.mu.Unlock()

	if prev == nil {
		prev = queue.CompletedBefore
	}

	s.logger.Info("batch started",
		"chapters", len(specs),
		"max_parallel", s.cfg.MaxParallel,
		"retry_on_failure", s.cfg.RetryOnFailure,
	)

	workers := s.cfg.MaxParallel
	if workers > len(specs) {
		workers = len(specs)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerNum int) {
			defer wg.Done()
			s.workerLoop(ctx, queue, characterBible, prev, workerNum)
		}(i)
	}
	wg.Wait()

	// A cancelled context leaves pending jobs behind; resolve them so
	// the batch always ends with every job terminal.
	if ctx.Err() != nil {
		if n := queue.CancelPending(); n > 0 {
			s.logger.Info("cancelled pending jobs on shutdown", "count", n)
			s.notify(queue)
		}
	}

	p := queue.Progress()
	s.logger.Info("batch finished",
		"completed", p.CompletedChapters,
		"failed", p.FailedChapters,
		"words", p.WordCountTotal,
	)

	return queue, ctx.Err()
}

// CurrentProgress returns the live progress of the active batch, or
// ok=false when no batch has been started.
func (s *Service) CurrentProgress() (Progress, bool) {
	s.mu.Lock()
	queue := s.queue
	s.mu.Unlock()

	if queue == nil {
		return Progress{}, false
	}
	return queue.Progress(), true
}

// Cancel cancels all pending jobs in the active batch and returns how
// many were cancelled. Running jobs finish naturally.
func (s *Service) Cancel() int {
	s.mu.Lock()
	queue := s.queue
	s.mu.Unlock()

	if queue == nil {
		return 0
	}
	n := queue.CancelPending()
	if n > 0 {
		s.logger.Info("pending jobs cancelled", "count", n)
		s.notify(queue)
	}
	return n
}

// ReportJobProgress stores a mid-generation progress value for a job
// in the active batch and notifies the observer. Unknown IDs and an
// absent batch are no-ops.
func (s *Service) ReportJobProgress(id string, v float64) {
	s.mu.Lock()
	queue := s.queue
	s.mu.Unlock()

	if queue == nil {
		return
	}
	queue.UpdateProgress(id, v)
	s.notify(queue)
}

// workerLoop claims and runs jobs until no pending work remains or the
// context is cancelled. Jobs are preloaded before the pool starts, so
// an empty claim means this worker is done.
func (s *Service) workerLoop(ctx context.Context, queue *Queue, characterBible any, prev ContextProvider, workerNum int) {
	logger := s.logger.With("worker", workerNum)
	logger.Debug("worker started")

	for {
		if ctx.Err() != nil {
			logger.Debug("worker stopping", "reason", "context cancelled")
			return
		}

		job, ok := queue.ClaimNext()
		if !ok {
			logger.Debug("worker stopping", "reason", "no pending jobs")
			return
		}
		s.notify(queue)

		s.runJob(ctx, queue, job, characterBible, prev(job.ChapterNumber), logger)
	}
}

// runJob executes one job's generation with a bounded retry loop:
// at most 1 + MaxRetries attempts. Errors never escape; the job ends
// completed or failed.
func (s *Service) runJob(ctx context.Context, queue *Queue, job Job, characterBible any, previous []string, logger *slog.Logger) {
	req := Request{
		ChapterNumber:    job.ChapterNumber,
		Outline:          job.Outline,
		StyleGuide:       job.StyleGuide,
		CharacterBible:   characterBible,
		PreviousChapters: previous,
	}

	logger.Info("generating chapter", "job_id", job.ID, "chapter", job.ChapterNumber)

	for attempt := 0; ; attempt++ {
		text, err := s.gen.GenerateChapter(ctx, req)
		if err == nil {
			wc := CountWords(text)
			queue.MarkCompleted(job.ID, text, wc)
			s.notify(queue)
			logger.Info("chapter completed",
				"job_id", job.ID,
				"chapter", job.ChapterNumber,
				"words", wc,
				"attempts", attempt+1,
			)
			return
		}

		if !s.cfg.RetryOnFailure || attempt >= s.cfg.MaxRetries {
			queue.MarkFailed(job.ID, err.Error())
			s.notify(queue)
			logger.Warn("chapter failed",
				"job_id", job.ID,
				"chapter", job.ChapterNumber,
				"attempts", attempt+1,
				"error", err,
			)
			return
		}

		queue.IncrementRetry(job.ID)
		logger.Warn("generation attempt failed, retrying",
			"job_id", job.ID,
			"chapter", job.ChapterNumber,
			"attempt", attempt+1,
			"error", err,
		)
	}
}

// notify pushes a fresh snapshot to the observer. A misbehaving
// callback must not corrupt scheduling, so panics are swallowed.
func (s *Service) notify(queue *Queue) {
	s.mu.Lock()
	fn := s.onProgress
	s.mu.Unlock()

	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("progress callback panicked", "panic", r)
		}
	}()
	fn(queue.Progress())
}

// CountWords counts whitespace-separated words in generated text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
