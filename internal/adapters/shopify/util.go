package shopify

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"
)

// StatusError wraps non-2xx HTTP responses from the upstream
type StatusError struct {
	Status int
	Body   string
	Err    error
}

// Error interface
func (e *StatusError) Error() string { return e.Err.Error() }

// Unwrap interface
func (e *StatusError) Unwrap() error { return e.Err }

// HTTPStatus interface
func (e *StatusError) HTTPStatus() int { return e.Status }

// parseRetryAfter reads the Retry-After header; the upstream sends it as
// seconds, occasionally fractional
func parseRetryAfter(h http.Header) time.Duration {
	s := h.Get("Retry-After")
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	return rc.Close()
}

// IsRateLimited reports whether err is a StatusError with 429 status
func IsRateLimited(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == 429
	}
	return false
}

// IsTransient reports whether err is a StatusError with a 5xx status
func IsTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= 500 && se.Status <= 599
	}
	return false
}
