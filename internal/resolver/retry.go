package resolver

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"

	"trackmatch/internal/providers/common"
)

// RetryConfig controls how often a provider call is repeated after a
// transient failure.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig allows 3 attempts spaced roughly 500ms and 1s apart.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// schedule yields successive jittered delays for a RetryConfig.
type schedule struct {
	cfg  RetryConfig
	base time.Duration
}

func (s *schedule) next() time.Duration {
	wait := capDelay(applyJitter(s.base), s.cfg.MaxDelay)
	s.base = capDelay(time.Duration(float64(s.base)*s.cfg.Multiplier), s.cfg.MaxDelay)
	return wait
}

func capDelay(d, limit time.Duration) time.Duration {
	if limit > 0 && d > limit {
		return limit
	}
	return d
}

// RetryWithBackoff calls fn until it succeeds, fails permanently or the
// attempts run out. Waiting between attempts stops early when ctx is done.
func RetryWithBackoff(ctx context.Context, cfg RetryConfig, fn func() error) error {
	attempts := max(cfg.MaxAttempts, 1)
	delays := schedule{cfg: cfg, base: cfg.InitialDelay}

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil || !isTransientError(err) || attempt >= attempts {
			return err
		}
		timer := time.NewTimer(delays.next())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// applyJitter scales d by a random factor in [0.75, 1.25).
func applyJitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.75 + rand.Float64()*0.5))
}

var transientMarkers = []string{
	"timeout",
	"deadline exceeded",
	"connection reset",
	"connection refused",
	"tls",
	"eof",
}

// isTransientError reports whether a search or album lookup may succeed
// when repeated. Throttling and upstream 5xx qualify; other statuses do not.
func isTransientError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *common.HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
