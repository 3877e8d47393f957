package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"servechat/internal/domain"
)

// RetryClient reintenta fallas transitorias con backoff delay*2^intento.
type RetryClient struct {
	next       ServingClient
	maxRetries int
	delay      time.Duration
	logger     *zap.Logger
	after      func(time.Duration) <-chan time.Time
}

func NewRetryClient(next ServingClient, maxRetries int, delay time.Duration, logger *zap.Logger) *RetryClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryClient{
		next:       next,
		maxRetries: maxRetries,
		delay:      delay,
		logger:     logger,
		after:      time.After,
	}
}

func (c *RetryClient) Query(ctx context.Context, endpoint string, messages []domain.ChatMessage, opts QueryOptions) (Reply, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		reply, err := c.next.Query(ctx, endpoint, messages, opts)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !errors.Is(err, ErrTransient) || attempt == c.maxRetries {
			break
		}

		wait := c.delay * time.Duration(1<<attempt)
		c.logger.Warn("serving attempt failed, retrying",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return Reply{}, ctx.Err()
		case <-c.after(wait):
		}
	}
	return Reply{}, lastErr
}
