// Package connector is the boundary to payment-processor and ad-platform
// APIs. Sources either return a fully normalized record sequence or fail the
// whole fetch; partial results are never returned.
package connector

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/records"
)

// maxErrorBody bounds the upstream body kept on an Error.
const maxErrorBody = 512

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrUnexpectedStatus   = errors.New("unexpected status")
	ErrMalformedResponse  = errors.New("malformed response body")
)

// PayoutSource fetches normalized payouts from one payment processor.
type PayoutSource interface {
	Platform() string
	FetchPayouts(ctx context.Context, w records.Window) ([]records.PayoutRecord, error)
}

// AdMetricSource fetches normalized ad metrics from one ad platform.
type AdMetricSource interface {
	Platform() string
	FetchAdMetrics(ctx context.Context, w records.Window) ([]records.AdMetricRecord, error)
}

// Error is a connector failure attributed to its platform.
type Error struct {
	Platform   string
	StatusCode int
	// Body is the upstream response body, truncated for diagnostics.
	Body string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Platform, e.Err)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error, truncating body.
func NewError(platform string, status int, body []byte, err error) *Error {
	return &Error{
		Platform:   platform,
		StatusCode: status,
		Body:       Truncate(string(body), maxErrorBody),
		Err:        err,
	}
}

// Truncate shortens s to at most n bytes, marking the cut. The cut never
// splits a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// Base carries the platform name and request throttle shared by sources.
type Base struct {
	platform string
	limiter  *rate.Limiter
}

// NewBase creates a Base allowing r requests per second with burst b.
// A zero r disables throttling.
func NewBase(platform string, r rate.Limit, b int) *Base {
	if r == 0 {
		r = rate.Inf
	}
	if b <= 0 {
		b = 1
	}
	return &Base{platform: platform, limiter: rate.NewLimiter(r, b)}
}

func (b *Base) Platform() string {
	return b.platform
}

// Wait blocks until the throttle admits a request.
func (b *Base) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}
