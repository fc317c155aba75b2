package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentrail/core"
)

// MockStep is one scripted turn of a MockModel.
type MockStep struct {
	Text  string
	Calls []core.FunctionCall
	Err   error
	// Func computes the response from the request when set.
	Func func(req Request) (core.Content, error)
}

// MockModel is a lightweight in-memory Model useful for tests and examples.
//
// Scripted steps queued via Enqueue are consumed first, one per Generate call.
// Once the script is exhausted it falls back to prompt keyed canned responses
// (AddResponse) and finally to an echo of the last user text.
type MockModel struct {
	info Info

	mu        sync.Mutex
	responses map[string]string
	script    []MockStep
	requests  []Request
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Enqueue appends scripted steps.
func (m *MockModel) Enqueue(steps ...MockStep) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, steps...)
	return m
}

// EnqueueText appends a step answering with text.
func (m *MockModel) EnqueueText(text string) *MockModel {
	return m.Enqueue(MockStep{Text: text})
}

// EnqueueCalls appends a step requesting the given function calls.
// Calls without an ID get a deterministic one.
func (m *MockModel) EnqueueCalls(calls ...core.FunctionCall) *MockModel {
	return m.Enqueue(MockStep{Calls: calls})
}

// Calls returns the number of Generate invocations.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of all received requests.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request.
func (m *MockModel) LastRequest() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return Request{}, false
	}
	return m.requests[len(m.requests)-1], true
}

func (m *MockModel) next(req Request) (MockStep, bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.requests)
	m.requests = append(m.requests, req)
	if len(m.script) > 0 {
		step := m.script[0]
		m.script = m.script[1:]
		return step, true, fmt.Sprintf("call_%d", n)
	}
	input := lastUserText(req.Contents)
	full := m.responses[input]
	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", input)
	}
	return MockStep{Text: full}, false, ""
}

// Generate implements Model; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}
		step, _, idPrefix := m.next(req)
		if step.Err != nil {
			errCh <- step.Err
			return
		}

		var content core.Content
		if step.Func != nil {
			c, err := step.Func(req)
			if err != nil {
				errCh <- err
				return
			}
			content = c
		} else {
			content = core.Content{Role: core.RoleAssistant}
			if step.Text != "" {
				content.Parts = append(content.Parts, core.TextPart{Text: step.Text})
			}
			for i, fc := range step.Calls {
				if fc.ID == "" {
					fc.ID = fmt.Sprintf("%s_%d", idPrefix, i)
				}
				content.Parts = append(content.Parts, core.FunctionCallPart{FunctionCall: fc})
			}
		}

		if req.Stream {
			for _, r := range content.Text() {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Content: core.Content{
						Role:  core.RoleAssistant,
						Parts: []core.Part{core.TextPart{Text: string(r)}},
					},
				}:
				}
			}
		}
		finish := "stop"
		if len(content.FunctionCalls()) > 0 {
			finish = "tool_calls"
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{Partial: false, Content: content, FinishReason: finish}:
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

func lastUserText(contents []core.Content) string {
	for i := len(contents) - 1; i >= 0; i-- {
		if contents[i].Role == core.RoleUser {
			return contents[i].Text()
		}
	}
	if len(contents) == 0 {
		return ""
	}
	return contents[len(contents)-1].Text()
}
