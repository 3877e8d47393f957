package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func instantAfter(waits *[]time.Duration) func(time.Duration) <-chan time.Time {
	return func(d time.Duration) <-chan time.Time {
		*waits = append(*waits, d)
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
}

func TestRetryClient(t *testing.T) {
	t.Run("reintenta transitorios con backoff exponencial", func(t *testing.T) {
		mock := &MockClient{
			Errs:  []error{&StatusError{StatusCode: 503}, &StatusError{StatusCode: 429}},
			Reply: Reply{Content: "ok"},
		}
		var waits []time.Duration
		c := NewRetryClient(mock, 3, 100*time.Millisecond, nil)
		c.after = instantAfter(&waits)

		reply, err := c.Query(context.Background(), "ep", nil, QueryOptions{})
		if err != nil || reply.Content != "ok" {
			t.Fatalf("expected success, got %+v %v", reply, err)
		}
		if mock.CallCount() != 3 {
			t.Fatalf("expected 3 calls, got %d", mock.CallCount())
		}
		if len(waits) != 2 || waits[0] != 100*time.Millisecond || waits[1] != 200*time.Millisecond {
			t.Fatalf("unexpected backoff %v", waits)
		}
	})

	t.Run("no reintenta errores permanentes", func(t *testing.T) {
		mock := &MockClient{Err: &StatusError{StatusCode: 400}}
		var waits []time.Duration
		c := NewRetryClient(mock, 3, time.Millisecond, nil)
		c.after = instantAfter(&waits)

		if _, err := c.Query(context.Background(), "ep", nil, QueryOptions{}); err == nil {
			t.Fatalf("expected error")
		}
		if mock.CallCount() != 1 {
			t.Fatalf("expected a single call, got %d", mock.CallCount())
		}
	})

	t.Run("agota reintentos y devuelve el ultimo error", func(t *testing.T) {
		mock := &MockClient{Err: ErrTransient}
		var waits []time.Duration
		c := NewRetryClient(mock, 2, time.Millisecond, nil)
		c.after = instantAfter(&waits)

		_, err := c.Query(context.Background(), "ep", nil, QueryOptions{})
		if !errors.Is(err, ErrTransient) {
			t.Fatalf("expected ErrTransient, got %v", err)
		}
		if mock.CallCount() != 3 {
			t.Fatalf("expected 3 calls, got %d", mock.CallCount())
		}
	})

	t.Run("respeta la cancelacion", func(t *testing.T) {
		mock := &MockClient{Err: ErrTransient}
		ctx, cancel := context.WithCancel(context.Background())
		c := NewRetryClient(mock, 5, time.Hour, nil)
		c.after = func(time.Duration) <-chan time.Time {
			cancel()
			return make(chan time.Time)
		}
		if _, err := c.Query(ctx, "ep", nil, QueryOptions{}); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}
