package redis

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("redis: circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// CircuitBreaker short-circuits publishes after threshold consecutive
// failures. After cooldown has passed since the most recent failure a single
// probe is allowed; its outcome closes or reopens the breaker.
type CircuitBreaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu          sync.Mutex
	state       State
	streak      int
	lastFailure time.Time

	// OnStateChange observes transitions. It runs with the breaker locked and
	// must not call back into it.
	OnStateChange func(from, to State)
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: max(threshold, 1),
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Execute calls fn if the breaker admits it and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != StateOpen {
		return true
	}
	if cb.now().Sub(cb.lastFailure) <= cb.cooldown {
		return false
	}
	cb.setState(StateHalfOpen)
	return true
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err == nil {
		cb.streak = 0
		cb.setState(StateClosed)
		return
	}
	cb.streak++
	cb.lastFailure = cb.now()
	if cb.state == StateHalfOpen || cb.streak >= cb.threshold {
		cb.setState(StateOpen)
	}
}

func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	slog.Debug("redis circuit breaker", "from", from.String(), "to", to.String())
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}
