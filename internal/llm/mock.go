package llm

import (
	"context"
	"sync"

	"github.com/ashureev/prompt-labs/internal/domain"
)

// MockResponse is a canned response for the MockClient.
type MockResponse struct {
	Text  string
	Usage domain.Usage
	Err   error
}

// MockCall records one Complete invocation.
type MockCall struct {
	Purpose  string
	Messages []Message
	Params   Params
}

// MockClient is a deterministic Client for testing. Canned responses are
// returned in FIFO order; once the queue is empty Responder, if set,
// computes the reply from the request.
type MockClient struct {
	Responder func(ctx context.Context, messages []Message, params Params) (MockResponse, error)

	mu        sync.Mutex
	responses []MockResponse
	calls     []MockCall
}

// NewMockClient creates a MockClient with the given canned responses.
func NewMockClient(responses ...MockResponse) *MockClient {
	return &MockClient{responses: responses}
}

func (m *MockClient) Complete(ctx context.Context, messages []Message, params Params) (*Completion, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Purpose: PurposeFrom(ctx), Messages: messages, Params: params})

	var resp MockResponse
	switch {
	case len(m.responses) > 0:
		resp = m.responses[0]
		m.responses = m.responses[1:]
		m.mu.Unlock()
	case m.Responder != nil:
		m.mu.Unlock()
		var err error
		resp, err = m.Responder(ctx, messages, params)
		if err != nil {
			return nil, err
		}
	default:
		m.mu.Unlock()
		return nil, &ErrProviderUnavailable{}
	}

	if resp.Err != nil {
		return nil, resp.Err
	}
	return &Completion{Text: resp.Text, Usage: resp.Usage, Model: "mock"}, nil
}

func (m *MockClient) Name() string    { return "mock" }
func (m *MockClient) ModelID() string { return "mock" }

// AddResponse appends a canned response to the queue.
func (m *MockClient) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// Calls returns a copy of the recorded calls.
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Complete calls made.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
