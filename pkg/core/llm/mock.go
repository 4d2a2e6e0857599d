package llm

import (
	"context"
	"sync"
)

// MockProvider is a scripted Provider for tests.
type MockProvider struct {
	ProviderName string
	CompleteFunc func(ctx context.Context, req Request) (string, error)

	mu    sync.Mutex
	calls []Request
}

var _ Provider = (*MockProvider)(nil)

func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockProvider) Complete(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return "", nil
}

// Calls returns a copy of every request received so far.
func (m *MockProvider) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}
