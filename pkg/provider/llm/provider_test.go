package llm_test

import (
	"testing"

	"github.com/MrWong99/captionlens/pkg/provider/llm"
)

func TestEstimateTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msgs []llm.Message
		want int
	}{
		{name: "empty", msgs: nil, want: 0},
		{name: "one short", msgs: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, want: 5},
		{name: "two", msgs: []llm.Message{
			{Role: llm.RoleSystem, Content: "12345678"},
			{Role: llm.RoleUser, Content: "123456789"},
		}, want: 2 + 4 + 3 + 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := llm.EstimateTokens(tt.msgs); got != tt.want {
				t.Errorf("EstimateTokens(%s): got %d, want %d", tt.name, got, tt.want)
			}
		})
	}
}
