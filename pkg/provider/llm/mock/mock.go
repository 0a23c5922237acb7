// Package mock provides a test double for the llm.Provider interface.
//
// Set the response fields before the first call. Calls are recorded and can
// be read with [Provider.Calls] while other goroutines are still calling.
//
//	p := &mock.Provider{Response: &llm.CompletionResponse{Content: "Short."}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/captionlens/pkg/provider/llm"
)

// Call records a single invocation of Complete.
type Call struct {
	Ctx context.Context
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// Response is returned by Complete. May be nil.
	Response *llm.CompletionResponse
	// Err, if non-nil, is returned instead of Response.
	Err error
	// Block, if non-nil, makes Complete wait until it is closed or the
	// context ends.
	Block chan struct{}

	calls []Call
}

var _ llm.Provider = (*Provider)(nil)

// Complete records the call and returns Response, Err.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Ctx: ctx, Req: req})
	block, resp, err := p.Block, p.Response, p.Err
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return resp, err
}

// Calls returns a copy of the recorded calls.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// Set replaces the canned response and error.
func (p *Provider) Set(resp *llm.CompletionResponse, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Response, p.Err = resp, err
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}
