package llm

import (
	"context"
	"sync"
)

// MockClient is a Client for testing. It returns canned responses in order,
// or invokes a custom function when configured.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	index     int
	err       error
	fn        func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Requests records every request received, for assertions.
	Requests []CompletionRequest
}

// NewMockClient creates a mock returning the given fixed response.
func NewMockClient(response string) *MockClient {
	return &MockClient{responses: []string{response}}
}

// WithResponses replaces the canned responses. Responses are returned in
// order; the last one repeats once exhausted.
func (m *MockClient) WithResponses(responses ...string) *MockClient {
	m.responses = responses
	m.index = 0
	return m
}

// WithError makes every Complete call fail with err.
func (m *MockClient) WithError(err error) *MockClient {
	m.err = err
	return m
}

// WithCompleteFunc replaces Complete with a custom function.
func (m *MockClient) WithCompleteFunc(fn func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)) *MockClient {
	m.fn = fn
	return m
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)

	if m.fn != nil {
		return m.fn(ctx, req)
	}
	if m.err != nil {
		return nil, m.err
	}

	content := ""
	if len(m.responses) > 0 {
		if m.index < len(m.responses) {
			content = m.responses[m.index]
			m.index++
		} else {
			content = m.responses[len(m.responses)-1]
		}
	}

	return &CompletionResponse{Content: content, FinishReason: "stop"}, nil
}
