package llm

import (
	"context"
	"strings"
	"time"

	"github.com/pharmaboost/pharmaboost/internal/cmn/backoff"
	"github.com/pharmaboost/pharmaboost/internal/cmn/logger"
)

const (
	defaultMaxRetries      = 5
	defaultInitialInterval = 2 * time.Second
	defaultMaxInterval     = 60 * time.Second
)

// Executor drives generation calls with bounded exponential backoff on
// transient failures. Failure is signaled by the ok return, never by an
// error: agents built on top of it degrade instead of propagating.
type Executor struct {
	provider        Provider
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMaxRetries caps the total number of model calls per Execute.
func WithMaxRetries(n int) ExecutorOption {
	return func(e *Executor) {
		e.maxRetries = n
	}
}

// WithBackoffInterval overrides the initial and maximum backoff intervals.
func WithBackoffInterval(initial, max time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.initialInterval = initial
		e.maxInterval = max
	}
}

// NewExecutor creates an executor for the given provider.
func NewExecutor(provider Provider, opts ...ExecutorOption) *Executor {
	e := &Executor{
		provider:        provider,
		maxRetries:      defaultMaxRetries,
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute sends the prompt and returns the response text. Transient failures
// (rate limiting, unavailability, deadline expiry, empty responses) are
// retried with exponential backoff; fatal failures abort immediately. The
// budget counts model calls, so maxRetries is the total number of attempts.
// When the budget is exhausted or a fatal error occurs, ok is false.
func (e *Executor) Execute(ctx context.Context, prompt string, timeout time.Duration, disableSafety bool) (string, bool) {
	policy := backoff.NewExponentialBackoffPolicy(e.initialInterval)
	policy.MaxInterval = e.maxInterval
	policy.MaxRetries = e.maxRetries

	var text string
	attempt := 0

	op := func(ctx context.Context) error {
		attempt++
		logger.Debug(ctx, "Sending prompt to generation backend",
			"provider", e.provider.Name(),
			"attempt", attempt,
			"max_retries", e.maxRetries)

		resp, err := e.provider.Generate(ctx, &Request{
			Prompt:        prompt,
			DisableSafety: disableSafety,
			Timeout:       timeout,
		})
		if err != nil {
			return err
		}
		if resp == nil || strings.TrimSpace(resp.Text) == "" {
			return ErrEmptyResponse
		}
		text = resp.Text
		return nil
	}

	retriable := func(err error) bool {
		return IsTransient(err) && attempt < e.maxRetries
	}

	if err := backoff.Retry(ctx, op, policy, retriable); err != nil {
		if IsTransient(err) {
			logger.Error(ctx, "Generation retries exhausted",
				"provider", e.provider.Name(),
				"attempts", attempt,
				"err", err)
		} else {
			logger.Error(ctx, "Generation failed with non-retryable error",
				"provider", e.provider.Name(),
				"err", err)
		}
		return "", false
	}

	return text, true
}
