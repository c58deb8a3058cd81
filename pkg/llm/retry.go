package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"time"
)

// RetryConfig holds configuration for retry behavior. The attempt count
// is an explicit value so call sites own their failure-handling policy.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 3)
	MaxRetries int
	// InitialDelay is the delay before the first retry (default: 1s)
	InitialDelay time.Duration
	// MaxDelay caps the backoff delay (default: 30s)
	MaxDelay time.Duration
	// BackoffMultiplier is the exponential backoff factor (default: 2.0)
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryClient wraps a Client with bounded-attempt retry and exponential
// backoff. Only transient failures are retried; anything else fails
// immediately.
type RetryClient struct {
	client Client
	config *RetryConfig
}

// NewRetryClient creates a retry wrapper around client.
func NewRetryClient(client Client, config *RetryConfig) *RetryClient {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 1 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = 2.0
	}
	return &RetryClient{client: client, config: config}
}

// Chat implements Client with retry.
func (r *RetryClient) Chat(ctx context.Context, messages []Message) (*Response, error) {
	return r.do(ctx, func() (*Response, error) {
		return r.client.Chat(ctx, messages)
	})
}

// ChatJSON implements Client with retry.
func (r *RetryClient) ChatJSON(ctx context.Context, messages []Message) (*Response, error) {
	return r.do(ctx, func() (*Response, error) {
		return r.client.ChatJSON(ctx, messages)
	})
}

// Close closes the wrapped client.
func (r *RetryClient) Close() error {
	return r.client.Close()
}

func (r *RetryClient) do(ctx context.Context, call func() (*Response, error)) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(r.delay(attempt)):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
			}
		}

		resp, err := call()
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", r.config.MaxRetries, lastErr)
}

func (r *RetryClient) delay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}
	return time.Duration(delay)
}

// IsRetryable reports whether an error is worth retrying: network
// failures, timeouts, rate limits, and 5xx-class backend errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"rate limit", "too many requests", "429",
		"timeout", "connection refused", "connection reset",
		"500", "502", "503", "504",
		"temporarily unavailable", "overloaded",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
