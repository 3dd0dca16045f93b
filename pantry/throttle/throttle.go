// pantry/throttle/throttle.go
// Package throttle enforces a minimum interval between admitted events per
// key (typically a client IP).
//
// Two stores are provided. Memory keeps state in the process: it is
// best-effort, resets on restart, and is not shared between instances.
// Redis keeps state in a shared server so every instance sees the same window.
// Neither is meant to be the only anti-abuse measure.
package throttle

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyKey is returned when Allow is called without a key.
var ErrEmptyKey = errors.New("throttle: empty key")

// Store decides whether key may proceed. Allow returns true and starts a new
// window when key has not been allowed within the last window; otherwise it
// returns false and leaves the running window untouched.
type Store interface {
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
}

// Nop allows everything. Used when throttling is disabled.
type Nop struct{}

func (Nop) Allow(context.Context, string, time.Duration) (bool, error) { return true, nil }
