// Package mock provides a test double for [recognizer.Provider].
//
// Example:
//
//	r := &mock.Provider{Result: recognizer.Result{Spans: []slots.Span{
//	    {Type: slots.Thing, Canonical: "light", Text: "light"},
//	}}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicehac/pkg/provider/recognizer"
)

// Provider is a mock implementation of [recognizer.Provider].
type Provider struct {
	mu sync.Mutex

	// Result is returned by Process unless ProcessErr is set.
	Result recognizer.Result

	// Results, when non-nil, maps utterances to per-text results and takes
	// precedence over Result.
	Results map[string]recognizer.Result

	// ProcessErr, if non-nil, is returned as the error from Process.
	ProcessErr error

	// ProcessCalls records the text of every Process call.
	ProcessCalls []string
}

var _ recognizer.Provider = (*Provider)(nil)

// Process records the call and returns the configured result.
func (p *Provider) Process(_ context.Context, text string) (recognizer.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ProcessCalls = append(p.ProcessCalls, text)
	if p.ProcessErr != nil {
		return recognizer.Result{}, p.ProcessErr
	}
	if r, ok := p.Results[text]; ok {
		return r, nil
	}
	return p.Result, nil
}

// Calls returns a copy of the recorded Process texts.
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ProcessCalls...)
}
