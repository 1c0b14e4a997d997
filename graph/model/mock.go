package model

import (
	"context"
	"sync"
)

// MockChatModel is a deterministic ChatModel for tests: it returns
// configured Responses in order (repeating the last one once exhausted),
// or Err if set, and records every call it sees.
type MockChatModel struct {
	Responses []Response
	Err       error
	Calls     []MockChatCall

	mu        sync.Mutex
	callIndex int
}

// MockChatCall records one Generate or GenerateStreaming invocation.
type MockChatCall struct {
	Request Request
}

// Generate implements ChatModel.
func (m *MockChatModel) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockChatCall{Request: req})

	if m.Err != nil {
		return Response{}, m.Err
	}
	if len(m.Responses) == 0 {
		return Response{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// GenerateStreaming implements ChatModel by emitting the same response
// Generate would return as a single chunk.
func (m *MockChatModel) GenerateStreaming(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	resp, err := m.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan StreamChunk, 1)
	ch <- StreamChunk{Content: resp.Content}
	close(ch)
	return ch, nil
}

// Reset clears call history and rewinds the response index, for reuse
// across test cases.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns how many times Generate/GenerateStreaming has been called.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
