package llm

import (
	"context"
	"sync"

	"servechat/internal/domain"
)

// MockClient permite tests sin llamar a un endpoint real.
// Si Replies no esta vacio devuelve una respuesta por llamada, luego repite Reply.
type MockClient struct {
	Reply   Reply
	Replies []Reply
	Err     error
	Errs    []error

	mu    sync.Mutex
	Calls []MockCall
}

type MockCall struct {
	Endpoint string
	Messages []domain.ChatMessage
	Options  QueryOptions
}

func (m *MockClient) Query(ctx context.Context, endpoint string, messages []domain.ChatMessage, opts QueryOptions) (Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.Calls)
	m.Calls = append(m.Calls, MockCall{
		Endpoint: endpoint,
		Messages: append([]domain.ChatMessage(nil), messages...),
		Options:  opts,
	})

	if n < len(m.Errs) && m.Errs[n] != nil {
		return Reply{}, m.Errs[n]
	}
	if m.Err != nil {
		return Reply{}, m.Err
	}
	if n < len(m.Replies) {
		return m.Replies[n], nil
	}
	return m.Reply, nil
}

// CallCount devuelve cuantas veces se invoco Query.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
