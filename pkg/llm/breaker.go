package llm

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig holds configuration for the circuit breaker wrapper.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval is the cyclic period of the closed state.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// FailureRatio trips the breaker once at least 3 requests have been
	// seen in the current interval.
	FailureRatio float64
}

// DefaultBreakerConfig returns the default circuit breaker configuration.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.6,
	}
}

// BreakerClient wraps a Client with a circuit breaker so a failing
// language-model backend sheds load quickly instead of queueing retries.
type BreakerClient struct {
	client  Client
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerClient creates a circuit-breaking wrapper around client.
func NewBreakerClient(client Client, config *BreakerConfig) *BreakerClient {
	if config == nil {
		config = DefaultBreakerConfig()
	}

	settings := gobreaker.Settings{
		Name:        "llm",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= config.FailureRatio
		},
	}

	return &BreakerClient{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Chat implements Client through the breaker.
func (b *BreakerClient) Chat(ctx context.Context, messages []Message) (*Response, error) {
	return b.execute(func() (*Response, error) {
		return b.client.Chat(ctx, messages)
	})
}

// ChatJSON implements Client through the breaker.
func (b *BreakerClient) ChatJSON(ctx context.Context, messages []Message) (*Response, error) {
	return b.execute(func() (*Response, error) {
		return b.client.ChatJSON(ctx, messages)
	})
}

// Close closes the wrapped client.
func (b *BreakerClient) Close() error {
	return b.client.Close()
}

func (b *BreakerClient) execute(call func() (*Response, error)) (*Response, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return call()
	})
	if err != nil {
		return nil, err
	}
	return result.(*Response), nil
}
