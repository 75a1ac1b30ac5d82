package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("provider http %d: %s", e.StatusCode, e.Body)
}

// IsTimeout reports whether an attempt died on its deadline, either our own
// per-model timeout or a transport-level one.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsRateLimited matches explicit 429 responses plus the free-tier providers
// that report throttling only in the error body.
func IsRateLimited(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		return containsAny(httpErr.Body, "rate limit", "too many requests")
	}
	return false
}

// IsPaymentRequired matches 402 responses and the assorted balance/credit
// phrasings upstream providers use for exhausted quotas.
func IsPaymentRequired(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusPaymentRequired {
			return true
		}
		return containsAny(httpErr.Body, "insufficient", "payment", "balance")
	}
	return false
}

func containsAny(s string, terms ...string) bool {
	s = strings.ToLower(s)
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
