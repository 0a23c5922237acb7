package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/captionlens/pkg/provider/llm"
)

func TestConvertMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role string
	}{
		{role: llm.RoleSystem},
		{role: llm.RoleUser},
		{role: llm.RoleAssistant},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			t.Parallel()
			msg, err := convertMessage(llm.Message{Role: tt.role, Content: "hello"})
			if err != nil {
				t.Fatalf("convertMessage(%q): %v", tt.role, err)
			}
			var set bool
			switch tt.role {
			case llm.RoleSystem:
				set = msg.OfSystem != nil
			case llm.RoleUser:
				set = msg.OfUser != nil
			case llm.RoleAssistant:
				set = msg.OfAssistant != nil
			}
			if !set {
				t.Errorf("convertMessage(%q): union member for role not set", tt.role)
			}
		})
	}
}

func TestConvertMessage_UnknownRole(t *testing.T) {
	t.Parallel()
	if _, err := convertMessage(llm.Message{Role: "tool", Content: "x"}); err == nil {
		t.Error("convertMessage(\"tool\"): got nil error")
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Error("New without key: got nil error")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("New without model: got nil error")
	}
	if _, err := New("sk-test", "gpt-4o-mini", WithBaseURL("http://localhost:1/"), WithOrganization("org"), WithTimeout(0)); err != nil {
		t.Errorf("New with options: %v", err)
	}
}

func TestComplete(t *testing.T) {
	t.Parallel()

	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		MaxCompletionTokens int `json:"max_completion_tokens"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "The team shipped it."}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
		}`)
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL+"/"), WithMaxRetries(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "Summarize.",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "we shipped the release today"}},
		MaxTokens:    64,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "The team shipped it." {
		t.Errorf("Complete: got content %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 17 || resp.FinishReason != "stop" {
		t.Errorf("Complete: got usage %+v finish %q", resp.Usage, resp.FinishReason)
	}
	if got.Model != "gpt-4o-mini" || len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("request: got %+v", got)
	}
	if got.MaxCompletionTokens != 64 {
		t.Errorf("request max_completion_tokens: got %d, want 64", got.MaxCompletionTokens)
	}
}

func TestComplete_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL+"/"), WithMaxRetries(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}},
	}); err == nil {
		t.Error("Complete: got nil error for 401")
	}
}
