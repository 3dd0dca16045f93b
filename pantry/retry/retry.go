// pantry/retry/retry.go
// Package retry re-runs an operation with jittered exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Config is a retry policy. Zero fields take the DefaultConfig values,
// except Jitter, where zero means none.
type Config struct {
	// MaxAttempts counts the first try.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter spreads each delay by +/- this fraction.
	Jitter float64

	// RetryIf decides whether an error is worth another attempt. The
	// default retries anything not wrapped by PermanentError.
	RetryIf func(error) bool

	// OnRetry runs before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig is three attempts starting at 100ms, doubling, capped at 5s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		Jitter:       0.1,
	}
}

// Do calls fn until it returns nil, RetryIf says stop, the attempts are
// used up, or ctx ends. The result is fn's last error, or ctx.Err() when
// fn never ran.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	cfg = cfg.normalized()

	var last error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return last
			}
			return err
		}

		last = fn(ctx)
		if last == nil {
			return nil
		}
		if attempt >= cfg.MaxAttempts || !cfg.RetryIf(last) {
			return last
		}

		wait := cfg.delay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, last, wait)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return last
		case <-t.C:
		}
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = def.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.Multiplier <= 0 {
		c.Multiplier = def.Multiplier
	}
	if c.RetryIf == nil {
		c.RetryIf = SkipPermanent
	}
	return c
}

// delay is the wait after the given (1-based) failed attempt.
func (c Config) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= c.Multiplier
		if d >= float64(c.MaxDelay) {
			d = float64(c.MaxDelay)
			break
		}
	}
	return addJitter(time.Duration(d), c.Jitter)
}

func addJitter(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return d
	}
	spread := float64(d) * jitter
	return time.Duration(float64(d) - spread + rand.Float64()*2*spread)
}

type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// PermanentError marks err so the default RetryIf gives up on it.
func PermanentError(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

// IsPermanent reports whether err, or anything it wraps, was marked by
// PermanentError.
func IsPermanent(err error) bool {
	var p permanent
	return errors.As(err, &p)
}

// SkipPermanent is the default RetryIf.
func SkipPermanent(err error) bool { return !IsPermanent(err) }
