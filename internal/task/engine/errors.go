package engine

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrStopped     = errors.New("task engine stopped")
	ErrStopping    = errors.New("task engine stopping")
	ErrQueueFull   = errors.New("task engine queue full")
	ErrOverlapSkip = errors.New("task skipped due to overlap policy")
)

// RetryAfterError is implemented by errors that carry an explicit retry delay.
type RetryAfterError interface {
	error
	RetryAfter() time.Duration
}

// retryHint annotates a task error with how the engine should retry it.
type retryHint struct {
	err   error
	stop  bool
	after time.Duration
}

func (h retryHint) Error() string {
	if h.stop {
		return "no-retry: " + h.err.Error()
	}
	return fmt.Sprintf("retry-after(%s): %v", h.after, h.err)
}

func (h retryHint) Unwrap() error { return h.err }

// NoRetry marks a permanent failure; the engine stops retrying it.
//
//	return engine.NoRetry(fmt.Errorf("series %s: %w", key, storage.ErrNotFound))
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return retryHint{err: err, stop: true}
}

// IsNoRetry reports whether err is wrapped with NoRetry.
func IsNoRetry(err error) bool {
	_, ok := permanent(err)
	return ok
}

// permanent returns the error NoRetry wrapped.
func permanent(err error) (error, bool) {
	var h retryHint
	if errors.As(err, &h) && h.stop {
		return h.err, true
	}
	return nil, false
}

// RetryAfter carries a delay hint, e.g. Telegram's flood-wait. The engine
// waits at least that long, bounded by RetryMaxDelay.
func RetryAfter(err error, after time.Duration) error {
	if err == nil {
		return nil
	}
	return retryAfter{retryHint{err: err, after: max(after, 0)}}
}

// retryAfter is the only hint that satisfies RetryAfterError.
type retryAfter struct{ retryHint }

func (r retryAfter) RetryAfter() time.Duration { return r.after }
