package rest

import (
	"math"
	"net/http"
	"time"
)

// RetryPolicy controls how failed requests are retried. The timeout
// growth reflects that repeated timeouts suggest the backend needs a
// longer window, not a shorter one; treat the multipliers as tuning
// knobs rather than contracts.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget per logical request,
	// first attempt included.
	MaxAttempts int

	// Delay between attempts grows exponentially from BaseDelay up to
	// MaxDelay: min(BaseDelay × DelayGrowth^(N−1), MaxDelay).
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	DelayGrowth float64

	// Timeout is the first attempt's deadline; each retry multiplies it
	// by TimeoutGrowth up to MaxTimeout.
	Timeout       time.Duration
	TimeoutGrowth float64
	MaxTimeout    time.Duration
}

// DefaultRetryPolicy returns the standard tuning.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		BaseDelay:     time.Second,
		MaxDelay:      10 * time.Second,
		DelayGrowth:   2.0,
		Timeout:       15 * time.Second,
		TimeoutGrowth: 1.5,
		MaxTimeout:    45 * time.Second,
	}
}

// retryableStatus reports whether a response status is worth retrying:
// request timeout, rate-limited, or any 5xx. Every other 4xx is final.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return status >= 500
}

// retryable reports whether a normalized failure should be retried.
func (p RetryPolicy) retryable(err *APIError) bool {
	if err.IsNetwork {
		return true
	}
	return retryableStatus(err.Status)
}

// delay returns the wait before attempt N+1, given N failed attempts.
func (p RetryPolicy) delay(attempt int) time.Duration {
	return growCapped(p.BaseDelay, p.MaxDelay, p.DelayGrowth, attempt)
}

// attemptTimeout returns the deadline for attempt N (1-based).
func (p RetryPolicy) attemptTimeout(attempt int) time.Duration {
	return growCapped(p.Timeout, p.MaxTimeout, p.TimeoutGrowth, attempt)
}

func growCapped(base, ceil time.Duration, growth float64, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if growth <= 0 {
		growth = 1
	}
	d := float64(base) * math.Pow(growth, float64(attempt-1))
	if ceil > 0 && d > float64(ceil) {
		return ceil
	}
	return time.Duration(d)
}
