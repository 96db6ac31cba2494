package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"stock-dashboard/observability"
)

// ErrCircuitOpen is returned when a provider's breaker rejects a call
var ErrCircuitOpen = errors.New("circuit breaker open")

// Circuit breaker names, one per upstream provider
const (
	BreakerYahoo        = "yahoo"
	BreakerAlpaca       = "alpaca"
	BreakerNewsAPI      = "newsapi"
	BreakerAlphaVantage = "alphavantage"
)

// CircuitBreakerConfig is the trip policy of a provider breaker. A breaker
// opens once it has seen MinRequests calls in the current Interval and at
// least FailureRatio of them failed; it stays open for Timeout.
type CircuitBreakerConfig struct {
	MaxRequests  uint32        // probes allowed while half-open
	Interval     time.Duration // closed-state window after which counts reset
	Timeout      time.Duration // open-state duration before probing
	MinRequests  uint32
	FailureRatio float64
}

var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	MaxRequests:  5,
	Interval:     time.Minute,
	Timeout:      30 * time.Second,
	MinRequests:  5,
	FailureRatio: 0.5,
}

func (c CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	if c.MinRequests == 0 {
		c.MinRequests = DefaultCircuitBreakerConfig.MinRequests
	}
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		c.FailureRatio = DefaultCircuitBreakerConfig.FailureRatio
	}
	return c
}

// CircuitBreakerRegistry holds one breaker per provider, created on first use
type CircuitBreakerRegistry struct {
	mu        sync.RWMutex
	breakers  map[string]*gobreaker.CircuitBreaker[any]
	policy    CircuitBreakerConfig
	overrides map[string]CircuitBreakerConfig
}

// NewCircuitBreakerRegistry creates a registry whose breakers use policy
// unless overridden with Configure.
func NewCircuitBreakerRegistry(policy CircuitBreakerConfig) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		breakers:  make(map[string]*gobreaker.CircuitBreaker[any]),
		policy:    policy.withDefaults(),
		overrides: make(map[string]CircuitBreakerConfig),
	}
}

// Configure sets the policy for one provider. It only affects a breaker
// that has not been created yet.
func (r *CircuitBreakerRegistry) Configure(name string, policy CircuitBreakerConfig) *CircuitBreakerRegistry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[name] = policy.withDefaults()
	return r
}

// GetBreaker returns the breaker for name, creating it if needed
func (r *CircuitBreakerRegistry) GetBreaker(name string) *gobreaker.CircuitBreaker[any] {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok = r.breakers[name]; ok {
		return cb
	}

	policy, ok := r.overrides[name]
	if !ok {
		policy = r.policy
	}
	cb = gobreaker.NewCircuitBreaker[any](breakerSettings(name, policy))
	r.breakers[name] = cb
	return cb
}

func breakerSettings(name string, policy CircuitBreakerConfig) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: policy.MaxRequests,
		Interval:    policy.Interval,
		Timeout:     policy.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < policy.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= policy.FailureRatio
		},
		// A symbol without data is a healthy provider answer, and a caller
		// giving up is not the provider's fault.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoData) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.WithProvider(name).Warn("Circuit breaker state change",
				"from", from.String(),
				"to", to.String())

			metrics := observability.GetMetrics()
			metrics.SetCircuitBreakerState(name, stateToInt(to))
			if to == gobreaker.StateOpen {
				metrics.RecordCircuitBreakerTrip(name)
			}
		},
	}
}

// Execute runs fn through the named breaker. Rejections are reported as
// ErrCircuitOpen.
func (r *CircuitBreakerRegistry) Execute(ctx context.Context, name string, fn func() (any, error)) (any, error) {
	result, err := r.GetBreaker(name).Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})
	if err != nil {
		return nil, rejection(name, err)
	}
	return result, nil
}

func rejection(name string, err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		observability.WithProvider(name).Debug("Circuit breaker open, request rejected")
		return fmt.Errorf("%s unavailable: %w", name, ErrCircuitOpen)
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		observability.WithProvider(name).Debug("Circuit breaker half-open, probe limit reached")
		return fmt.Errorf("%s unavailable, probing: %w", name, ErrCircuitOpen)
	}
	return err
}

// CircuitBreakerStatus is the health view of one breaker
type CircuitBreakerStatus struct {
	Name             string `json:"name"`
	State            string `json:"state"`
	Requests         uint32 `json:"requests"`
	TotalSuccesses   uint32 `json:"total_successes"`
	TotalFailures    uint32 `json:"total_failures"`
	ConsecutiveSucc  uint32 `json:"consecutive_successes"`
	ConsecutiveFails uint32 `json:"consecutive_failures"`
}

// Status returns the state of every breaker created so far
func (r *CircuitBreakerRegistry) Status() map[string]CircuitBreakerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[string]CircuitBreakerStatus, len(r.breakers))
	for name, cb := range r.breakers {
		counts := cb.Counts()
		status[name] = CircuitBreakerStatus{
			Name:             name,
			State:            cb.State().String(),
			Requests:         counts.Requests,
			TotalSuccesses:   counts.TotalSuccesses,
			TotalFailures:    counts.TotalFailures,
			ConsecutiveSucc:  counts.ConsecutiveSuccesses,
			ConsecutiveFails: counts.ConsecutiveFailures,
		}
	}
	return status
}

// Open lists the providers whose breaker is currently open, sorted
func (r *CircuitBreakerRegistry) Open() []string {
	var open []string
	for name, s := range r.Status() {
		if s.State == gobreaker.StateOpen.String() {
			open = append(open, name)
		}
	}
	sort.Strings(open)
	return open
}

var (
	globalRegistry *CircuitBreakerRegistry
	registryMu     sync.Mutex
)

// GetGlobalRegistry returns the process-wide registry used by providers
// that were not given one explicitly.
func GetGlobalRegistry() *CircuitBreakerRegistry {
	registryMu.Lock()
	defer registryMu.Unlock()
	if globalRegistry == nil {
		globalRegistry = NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)
	}
	return globalRegistry
}

// SetGlobalRegistry replaces the process-wide registry
func SetGlobalRegistry(r *CircuitBreakerRegistry) {
	registryMu.Lock()
	defer registryMu.Unlock()
	globalRegistry = r
}

// ExecuteWithBreaker runs fn through the named breaker of r, or of the
// global registry when r is nil.
func ExecuteWithBreaker[T any](ctx context.Context, r *CircuitBreakerRegistry, name string, fn func() (T, error)) (T, error) {
	if r == nil {
		r = GetGlobalRegistry()
	}

	result, err := r.Execute(ctx, name, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// stateToInt maps a breaker state to the gauge value: 0 closed, 1 half-open, 2 open
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
