package memcache

import (
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/cachelab/memcache/proto"
)

// CircuitBreaker guards request execution against a misbehaving server.
// One breaker is created per server address via Config.NewCircuitBreaker.
type CircuitBreaker interface {
	Execute(fn func() (*proto.Response, error)) (*proto.Response, error)
	State() CircuitBreakerState
}

// CircuitBreakerState mirrors the three standard breaker states.
type CircuitBreakerState int

const (
	CircuitClosed CircuitBreakerState = iota
	CircuitHalfOpen
	CircuitOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitHalfOpen:
		return "half-open"
	case CircuitOpen:
		return "open"
	default:
		return "unknown"
	}
}

// NewCircuitBreakerConfig returns a factory creating one gobreaker-backed
// breaker per server. The breaker trips when at least 3 requests were seen
// in the interval and 60% of them failed. Validation errors and normal
// outcome variants never count as failures because they never reach the
// breaker as errors.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(serverAddr string) CircuitBreaker {
	return func(serverAddr string) CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        serverAddr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		}
		return &sonyBreaker{cb: gobreaker.NewCircuitBreaker[*proto.Response](settings)}
	}
}

type sonyBreaker struct {
	cb *gobreaker.CircuitBreaker[*proto.Response]
}

func (b *sonyBreaker) Execute(fn func() (*proto.Response, error)) (*proto.Response, error) {
	return b.cb.Execute(fn)
}

func (b *sonyBreaker) State() CircuitBreakerState {
	switch b.cb.State() {
	case gobreaker.StateOpen:
		return CircuitOpen
	case gobreaker.StateHalfOpen:
		return CircuitHalfOpen
	default:
		return CircuitClosed
	}
}
