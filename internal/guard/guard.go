// Package guard keeps two requests from mutating the same order at once.
package guard

import (
	"context"
	"errors"
	"sync"
)

// ErrInFlight is returned when another request already holds the key.
var ErrInFlight = errors.New("another request for this order is in flight")

// Guard hands out short-lived exclusive claims on a key.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Local is an in-process Guard used when no Redis is configured.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocal creates an empty Local guard.
func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

func (l *Local) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrInFlight
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
