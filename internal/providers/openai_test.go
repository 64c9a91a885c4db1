package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/quill/internal/batch"
)

func chapterRequest() batch.Request {
	return batch.Request{
		ChapterNumber:    2,
		Outline:          "The heist goes wrong.",
		StyleGuide:       "Short sentences.",
		CharacterBible:   map[string]any{"protagonist": "Mira"},
		PreviousChapters: []string{"Chapter one text."},
	}
}

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "gpt-4o",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	})
	return string(b)
}

func TestOpenAIGenerateChapterSuccess(t *testing.T) {
	var payload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("The vault door would not open.")))
	}))
	defer server.Close()

	gen := NewOpenAIGenerator(OpenAIConfig{
		APIKey:    "test-key",
		Model:     "gpt-4o",
		MaxTokens: 4096,
		BaseURL:   server.URL,
	})

	text, err := gen.GenerateChapter(context.Background(), chapterRequest())
	if err != nil {
		t.Fatalf("GenerateChapter() error = %v", err)
	}
	if text != "The vault door would not open." {
		t.Errorf("unexpected text: %q", text)
	}

	if got, _ := payload["model"].(string); got != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", got)
	}
	msgs, _ := payload["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages len = %d, want 2 (system + user)", len(msgs))
	}
	user, _ := msgs[1].(map[string]any)
	content, _ := user["content"].(string)
	for _, want := range []string{"chapter 2", "The heist goes wrong.", "Short sentences.", "Mira", "Chapter one text."} {
		if !strings.Contains(content, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}

func TestOpenAIGenerateChapterRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error": {"message": "overloaded"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("Second try prose.")))
	}))
	defer server.Close()

	gen := NewOpenAIGenerator(OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		MaxRetries: 3,
		RetryDelay: 10 * time.Millisecond,
	})

	text, err := gen.GenerateChapter(context.Background(), chapterRequest())
	if err != nil {
		t.Fatalf("GenerateChapter() error = %v", err)
	}
	if text != "Second try prose." {
		t.Errorf("unexpected text: %q", text)
	}
	if calls.Load() != 2 {
		t.Errorf("upstream calls = %d, want 2", calls.Load())
	}
}

func TestOpenAIGenerateChapterDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad request"}}`))
	}))
	defer server.Close()

	gen := NewOpenAIGenerator(OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		MaxRetries: 3,
		RetryDelay: 10 * time.Millisecond,
	})

	_, err := gen.GenerateChapter(context.Background(), chapterRequest())
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1 (no retry on 4xx)", calls.Load())
	}
}

func TestOpenAIGenerateChapterEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "chatcmpl-test", "object": "chat.completion", "choices": []}`))
	}))
	defer server.Close()

	gen := NewOpenAIGenerator(OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
	})

	_, err := gen.GenerateChapter(context.Background(), chapterRequest())
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
	if !strings.Contains(err.Error(), "no content") {
		t.Errorf("error = %v, want a no-content error", err)
	}
}
