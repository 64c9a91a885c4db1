package providers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/quill/internal/batch"
)

func TestMockGenerator(t *testing.T) {
	t.Run("returns canned text with chapter number", func(t *testing.T) {
		gen := NewMockGenerator()
		gen.Latency = 0

		text, err := gen.GenerateChapter(context.Background(), batch.Request{ChapterNumber: 7})
		if err != nil {
			t.Fatalf("GenerateChapter() error = %v", err)
		}
		if !strings.Contains(text, "chapter 7") {
			t.Errorf("text = %q, want chapter number included", text)
		}
		if gen.Calls() != 1 {
			t.Errorf("Calls() = %d, want 1", gen.Calls())
		}
	})

	t.Run("fails when configured", func(t *testing.T) {
		gen := NewMockGenerator()
		gen.Latency = 0
		gen.ShouldFail = true

		if _, err := gen.GenerateChapter(context.Background(), batch.Request{ChapterNumber: 1}); err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("fails first N calls then succeeds", func(t *testing.T) {
		gen := NewMockGenerator()
		gen.Latency = 0
		gen.FailFirst = 2

		for i := 0; i < 2; i++ {
			if _, err := gen.GenerateChapter(context.Background(), batch.Request{ChapterNumber: 1}); err == nil {
				t.Fatalf("call %d: expected error", i+1)
			}
		}
		if _, err := gen.GenerateChapter(context.Background(), batch.Request{ChapterNumber: 1}); err != nil {
			t.Errorf("call 3: unexpected error %v", err)
		}
	})

	t.Run("respects cancellation during latency", func(t *testing.T) {
		gen := NewMockGenerator()
		gen.Latency = 5 * time.Second

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() {
			_, err := gen.GenerateChapter(ctx, batch.Request{ChapterNumber: 1})
			done <- err
		}()

		time.Sleep(20 * time.Millisecond)
		cancel()

		if err := <-done; err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
