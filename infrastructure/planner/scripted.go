package planner

import (
	"context"
	"sync"
)

// ScriptStep is one canned completion. Err, when set, is returned instead of Text.
type ScriptStep struct {
	Text string
	Err  error
}

// Reply returns a step producing text.
func Reply(text string) ScriptStep {
	return ScriptStep{Text: text}
}

// Fail returns a step producing err.
func Fail(err error) ScriptStep {
	return ScriptStep{Err: err}
}

// ScriptedProvider replays a predefined sequence of completions for
// deterministic testing and records every request it receives.
type ScriptedProvider struct {
	mu       sync.Mutex
	steps    []ScriptStep
	index    int
	requests []CompletionRequest
}

// NewScriptedProvider creates a scripted provider with the given steps.
func NewScriptedProvider(steps ...ScriptStep) *ScriptedProvider {
	return &ScriptedProvider{steps: steps}
}

// NewScriptedReplies creates a scripted provider from plain replies.
func NewScriptedReplies(replies ...string) *ScriptedProvider {
	steps := make([]ScriptStep, len(replies))
	for i, r := range replies {
		steps[i] = Reply(r)
	}
	return NewScriptedProvider(steps...)
}

// Name returns the provider name.
func (p *ScriptedProvider) Name() string {
	return "scripted"
}

// Complete returns the next scripted step.
func (p *ScriptedProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return CompletionResponse{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)
	if p.index >= len(p.steps) {
		return CompletionResponse{}, ErrScriptExhausted
	}

	step := p.steps[p.index]
	p.index++
	if step.Err != nil {
		return CompletionResponse{}, step.Err
	}
	return CompletionResponse{
		Model:   "scripted",
		Message: Message{Role: RoleAssistant, Content: step.Text},
	}, nil
}

// Requests returns a copy of the requests received so far.
func (p *ScriptedProvider) Requests() []CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompletionRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

// CurrentStep returns the current step index.
func (p *ScriptedProvider) CurrentStep() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

// IsComplete returns true if all steps have been consumed.
func (p *ScriptedProvider) IsComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index >= len(p.steps)
}

// Reset rewinds the script and forgets recorded requests.
func (p *ScriptedProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = 0
	p.requests = nil
}
