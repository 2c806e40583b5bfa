package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrTransient marks failures worth retrying: rate limits and
	// temporarily unavailable backends.
	ErrTransient = errors.New("provider: transient failure")
	// ErrMalformedResponse means the model answered but its content is not
	// the requested structure. It is never retried.
	ErrMalformedResponse = errors.New("provider: malformed response")
	// ErrInvalidInput rejects empty embedding input.
	ErrInvalidInput = errors.New("provider: invalid input")
	// ErrModelUnavailable means the backing model cannot be reached or loaded.
	ErrModelUnavailable = errors.New("provider: model unavailable")
)

// RateLimitError is a 429 from a backend. Wait is zero when the server gave
// no hint.
type RateLimitError struct {
	Provider string
	Wait     time.Duration
	Err      error
}

func (e *RateLimitError) Error() string {
	msg := fmt.Sprintf("%s: rate limited", e.Provider)
	if e.Wait > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.Wait)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// Is makes every rate limit match ErrTransient.
func (e *RateLimitError) Is(target error) bool { return target == ErrTransient }

// RetryAfter satisfies retry.Hinter.
func (e *RateLimitError) RetryAfter() time.Duration { return e.Wait }

// fromStatus maps an HTTP status from any backend onto the error taxonomy.
// Statuses with no special meaning keep err as is.
func fromStatus(provider string, status int, header http.Header, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &RateLimitError{Provider: provider, Wait: parseRetryAfter(header, time.Now()), Err: err}
	case status == http.StatusServiceUnavailable, status == 529:
		return fmt.Errorf("%s: %w: %w", provider, ErrTransient, err)
	case status == http.StatusNotFound:
		return fmt.Errorf("%s: %w: %w", provider, ErrModelUnavailable, err)
	}
	return err
}

// parseRetryAfter reads a Retry-After header given either as seconds or as
// an HTTP date.
func parseRetryAfter(header http.Header, now time.Time) time.Duration {
	if header == nil {
		return 0
	}
	v := strings.TrimSpace(header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// IsRetryable reports whether err should be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
