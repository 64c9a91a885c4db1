package providers

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackzampolin/quill/internal/batch"
)

const MockName = "mock"

// MockGenerator is a batch.Generator for testing and dry runs.
type MockGenerator struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailFirst    int    // Fail the first N calls, then succeed (0 = never)
	ResponseText string // Per-call response; chapter number is appended

	// State
	callCount atomic.Int64
}

// NewMockGenerator creates a mock with sensible defaults.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		Latency:      10 * time.Millisecond,
		ResponseText: "It was a dark and stormy night.",
	}
}

// Name returns the provider identifier.
func (g *MockGenerator) Name() string {
	return MockName
}

// Calls returns how many generation calls have been made.
func (g *MockGenerator) Calls() int {
	return int(g.callCount.Load())
}

// GenerateChapter returns canned text after the configured latency.
func (g *MockGenerator) GenerateChapter(ctx context.Context, req batch.Request) (string, error) {
	count := g.callCount.Add(1)

	if g.Latency > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(g.Latency):
		}
	}

	if g.ShouldFail {
		return "", fmt.Errorf("mock generation failed for chapter %d", req.ChapterNumber)
	}
	if g.FailFirst > 0 && count <= int64(g.FailFirst) {
		return "", fmt.Errorf("mock transient failure %d for chapter %d", count, req.ChapterNumber)
	}

	return fmt.Sprintf("%s (chapter %d)", g.ResponseText, req.ChapterNumber), nil
}

var _ batch.Generator = (*MockGenerator)(nil)
