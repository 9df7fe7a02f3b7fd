// Package retry wraps single external calls with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// StatusError is returned by HTTP clients for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Policy bounds the number of attempts and the delay between them.
type Policy struct {
	MaxAttempts int
	Backoff     gax.Backoff
}

// DefaultPolicy allows three attempts, waiting up to 1s and then up to 2s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff: gax.Backoff{
			Initial:    time.Second,
			Max:        4 * time.Second,
			Multiplier: 2,
		},
	}
}

// WithAttempts returns DefaultPolicy with the attempt limit replaced.
// Non-positive values keep the default.
func WithAttempts(n int) Policy {
	p := DefaultPolicy()
	if n > 0 {
		p.MaxAttempts = n
	}
	return p
}

// Do calls fn until it succeeds, returns a non-transient error, or the attempts run out.
func Do(ctx context.Context, p Policy, name string, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)
	bo := p.Backoff

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= attempts || !IsTransient(err) {
			return err
		}

		pause := bo.Pause()
		log.Printf("%s attempt %d/%d failed: %v; retrying in %s", name, attempt, attempts, err, pause)
		if serr := gax.Sleep(ctx, pause); serr != nil {
			return fmt.Errorf("%s: %w (last error: %v)", name, serr, err)
		}
	}
}

// IsTransient reports whether err is worth retrying: network timeouts,
// rate limiting and server-side failures.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return transientStatus(statusErr.StatusCode)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.Code)
	}

	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded:
		return true
	}
	return false
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
