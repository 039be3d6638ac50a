// Package retry runs an operation with exponential backoff. It is used for
// connection setup that can fail while a dependency such as NATS is still
// coming up.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Config controls Do. Zero fields take the defaults noted below.
type Config struct {
	MaxAttempts  int           // total attempts, default 1
	InitialDelay time.Duration // wait before the second attempt, default 100ms
	MaxDelay     time.Duration // cap for any wait, default 5s
	Multiplier   float64       // growth per attempt, default 2
	AddJitter    bool          // add up to 25% to each wait
}

// Quick suits startup: many short waits.
func Quick() Config {
	return Config{
		MaxAttempts:  10,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   1.5,
		AddJitter:    true,
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return "permanent: " + e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that Do gives up on it at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or anything it wraps, came from Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

func (c Config) withDefaults() (Config, error) {
	if c.InitialDelay < 0 || c.MaxDelay < 0 || c.Multiplier < 0 {
		return c, errors.New("retry: delays and multiplier cannot be negative")
	}
	c.MaxAttempts = max(c.MaxAttempts, 1)
	if c.InitialDelay == 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2
	}
	c.Multiplier = min(c.Multiplier, 1000)
	if c.MaxDelay < c.InitialDelay {
		return c, errors.New("retry: MaxDelay must be >= InitialDelay")
	}
	return c, nil
}

// backoff yields the successive waits for one Do call.
type backoff struct {
	cfg   Config
	delay time.Duration
}

func (b *backoff) next() time.Duration {
	wait := b.delay
	if b.cfg.AddJitter && wait >= 4 {
		wait += time.Duration(rand.Int64N(int64(wait / 4)))
	}

	grown := time.Duration(float64(b.delay) * b.cfg.Multiplier)
	if grown <= 0 || grown > b.cfg.MaxDelay {
		grown = b.cfg.MaxDelay
	}
	b.delay = grown
	return wait
}

// Do calls fn until it returns nil, returns a Permanent error, the attempts
// run out or ctx is done.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return err
	}
	b := &backoff{cfg: cfg, delay: cfg.InitialDelay}

	var last error
	for attempt := 1; ; attempt++ {
		if last = fn(); last == nil || IsPermanent(last) {
			return last
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled after attempt %d: %w", attempt, ctx.Err())
		}
		if attempt == cfg.MaxAttempts {
			return fmt.Errorf("retry failed after %d attempts: %w", attempt, last)
		}

		timer := time.NewTimer(b.next())
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled waiting for attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}
	}
}
