package resilience

import (
	"context"
	"fmt"

	"github.com/MrWong99/captionlens/pkg/provider/llm"
)

// LLMFallback is an llm.Provider that fails over across several backends.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred
// backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another backend.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete sends req to the first healthy backend. An empty reply counts as a
// failure so the next backend gets a chance.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		resp, err := p.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, fmt.Errorf("resilience: provider returned no response")
		}
		return resp, nil
	})
}

// Check returns an error when every backend's breaker is open. It is used as a
// readiness check.
func (f *LLMFallback) Check(context.Context) error {
	if !f.group.Available() {
		return fmt.Errorf("%w: every circuit breaker is open (%v)", ErrAllFailed, f.group.States())
	}
	return nil
}

// Backends returns the backend names in failover order.
func (f *LLMFallback) Backends() []string { return f.group.Names() }
