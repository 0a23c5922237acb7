package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/captionlens/pkg/provider/llm"
	"github.com/MrWong99/captionlens/pkg/provider/llm/mock"
)

func TestLLMFallback_Complete(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{Err: errTest}
	backup := &mock.Provider{Response: &llm.CompletionResponse{Content: "Summary."}}
	f := NewLLMFallback(primary, "openai", FallbackConfig{})
	f.AddFallback("ollama", backup)

	req := llm.CompletionRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "text"}}}
	resp, err := f.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Summary." {
		t.Errorf("Complete: got %q, want %q", resp.Content, "Summary.")
	}
	if n := len(primary.Calls()); n != 1 {
		t.Errorf("primary calls: got %d, want 1", n)
	}
	if calls := backup.Calls(); len(calls) != 1 || calls[0].Req.Messages[0].Content != "text" {
		t.Errorf("backup calls: got %+v", calls)
	}
	if b := f.Backends(); len(b) != 2 || b[1] != "ollama" {
		t.Errorf("Backends: got %v", b)
	}
}

func TestLLMFallback_NilResponseFailsOver(t *testing.T) {
	t.Parallel()

	f := NewLLMFallback(&mock.Provider{}, "empty", FallbackConfig{})
	f.AddFallback("good", &mock.Provider{Response: &llm.CompletionResponse{Content: "ok"}})

	resp, err := f.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil || resp.Content != "ok" {
		t.Errorf("Complete: got %v, %v", resp, err)
	}
}

func TestLLMFallback_Check(t *testing.T) {
	t.Parallel()

	f := NewLLMFallback(&mock.Provider{Err: errTest}, "bad", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1},
	})
	if err := f.Check(context.Background()); err != nil {
		t.Fatalf("Check before failures: %v", err)
	}
	if _, err := f.Complete(context.Background(), llm.CompletionRequest{}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("Complete: got %v, want ErrAllFailed", err)
	}
	if err := f.Check(context.Background()); !errors.Is(err, ErrAllFailed) {
		t.Errorf("Check: got %v, want ErrAllFailed", err)
	}
}
