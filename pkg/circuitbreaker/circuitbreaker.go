package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned without calling the wrapped function while the breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

type Settings struct {
	Name string
	// MaxFailures consecutive failures open the breaker.
	MaxFailures int
	// Timeout is how long the breaker stays open before allowing a probe.
	Timeout time.Duration
	// IsFailure decides which errors count; nil counts every error.
	IsFailure func(error) bool
}

type CircuitBreaker struct {
	name        string
	maxFailures int
	timeout     time.Duration
	isFailure   func(error) bool
	now         func() time.Time

	mu       sync.Mutex
	failures int
	openedAt time.Time
	state    State
	probing  bool
	// generation changes whenever the breaker opens or closes; results of
	// calls admitted under an older generation are ignored.
	generation uint64
}

func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	if settings.MaxFailures <= 0 {
		settings.MaxFailures = 5
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	return &CircuitBreaker{
		name:        settings.Name,
		maxFailures: settings.MaxFailures,
		timeout:     settings.Timeout,
		isFailure:   settings.IsFailure,
		now:         time.Now,
		state:       StateClosed,
	}
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.timeout {
		cb.state = StateHalfOpen
	}
	return cb.state
}

// Execute runs fn unless the breaker is open. In half-open state a single
// probe call is allowed through; only its outcome closes or re-opens the
// breaker. A panic in fn counts as a failure and is re-raised.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	generation, probe, err := cb.admit()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.settle(generation, probe, true)
			panic(r)
		}
	}()

	err = fn()
	cb.settle(generation, probe, err != nil && (cb.isFailure == nil || cb.isFailure(err)))
	return err
}

func (cb *CircuitBreaker) admit() (generation uint64, probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentState() {
	case StateOpen:
		return 0, false, ErrOpen
	case StateHalfOpen:
		if cb.probing {
			return 0, false, ErrOpen
		}
		cb.probing = true
		return cb.generation, true, nil
	}
	return cb.generation, false, nil
}

func (cb *CircuitBreaker) settle(generation uint64, probe, failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe {
		cb.probing = false
	}
	if generation != cb.generation {
		return
	}

	if failed {
		cb.failures++
		if probe || cb.failures >= cb.maxFailures {
			cb.transition(StateOpen)
		}
		return
	}
	cb.failures = 0
	if probe {
		cb.transition(StateClosed)
	}
}

func (cb *CircuitBreaker) transition(state State) {
	cb.state = state
	cb.generation++
	if state == StateOpen {
		cb.openedAt = cb.now()
	} else {
		cb.failures = 0
	}
}
