package inflight

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrInFlight is returned when the id is already held by a running request.
var ErrInFlight = errors.New("request is already in flight")

// Registry grants at most one holder per request id.
type Registry interface {
	// Acquire marks id as running. The returned release must be called once the
	// run ends, on every path. Calling it more than once is harmless.
	Acquire(ctx context.Context, id string) (release func(), err error)
}

// Local is an in-process registry.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

// Acquire implements Registry.
func (l *Local) Acquire(ctx context.Context, id string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("request id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[id]; ok {
		return nil, ErrInFlight
	}
	l.held[id] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, id)
			l.mu.Unlock()
		})
	}, nil
}

// Len returns the number of held ids.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}
