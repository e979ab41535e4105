package resolver

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"trackmatch/internal/domain"
	"trackmatch/internal/metrics"
)

const (
	providerFailureThreshold = 3
	providerBlockBase        = 2 * time.Minute
	providerBlockMax         = 15 * time.Minute
)

// breaker is the per-provider circuit state. Guarded by healthBoard.mu.
type breaker struct {
	failures  int
	openUntil time.Time
	lastErr   string
	lastOK    time.Time
	lastFail  time.Time
	latency   time.Duration
	timedOut  bool
	query     string
	calls     int64
	failed    int64
	timeouts  int64
}

func (b *breaker) open(now time.Time) bool {
	return !b.openUntil.IsZero() && !now.After(b.openUntil)
}

func (b *breaker) succeed(now time.Time) {
	b.failures = 0
	b.openUntil = time.Time{}
	b.lastErr = ""
	b.lastOK = now
}

// fail counts one failure and reports whether the breaker opened.
func (b *breaker) fail(err error, now time.Time) bool {
	b.failures++
	b.failed++
	b.lastFail = now
	b.lastErr = err.Error()
	if b.failures < providerFailureThreshold {
		return false
	}
	b.openUntil = now.Add(exponentialBlockDuration(b.failures))
	return true
}

func (b *breaker) diagnostics(into *domain.ProviderDiagnostics) {
	into.ConsecutiveFailures = b.failures
	into.BlockedUntil = timePtr(b.openUntil)
	into.LastError = b.lastErr
	into.LastSuccessAt = timePtr(b.lastOK)
	into.LastFailureAt = timePtr(b.lastFail)
	into.LastLatencyMS = b.latency.Milliseconds()
	into.LastTimeout = b.timedOut
	into.LastQuery = b.query
	into.TotalRequests = b.calls
	into.TotalFailures = b.failed
	into.TimeoutCount = b.timeouts
}

// healthBoard tracks a breaker for every provider that has been called.
type healthBoard struct {
	mu       sync.Mutex
	breakers map[string]*breaker
}

func newHealthBoard() *healthBoard {
	return &healthBoard{breakers: make(map[string]*breaker)}
}

func (h *healthBoard) blocked(name string, now time.Time) (bool, time.Time, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b := h.breakers[name]
	if b == nil || !b.open(now) {
		return false, time.Time{}, ""
	}
	return true, b.openUntil, b.lastErr
}

func (h *healthBoard) record(name, query string, err error, latency time.Duration, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b := h.breakers[name]
	if b == nil {
		b = &breaker{}
		h.breakers[name] = b
	}
	b.calls++
	if query != "" {
		b.query = query
	}
	if latency > 0 {
		b.latency = latency
		metrics.ProviderRequestDuration.WithLabelValues(name).Observe(latency.Seconds())
	}
	b.timedOut = isTimeoutLikeError(err)
	if b.timedOut {
		b.timeouts++
	}

	if err == nil {
		b.succeed(now)
		metrics.ProviderRequestsTotal.WithLabelValues(name, "ok").Inc()
		metrics.ProviderAvailable.WithLabelValues(name).Set(1)
		return
	}
	outcome := "error"
	if b.timedOut {
		outcome = "timeout"
	}
	metrics.ProviderRequestsTotal.WithLabelValues(name, outcome).Inc()
	if b.fail(err, now) {
		metrics.ProviderAvailable.WithLabelValues(name).Set(0)
	}
}

func (h *healthBoard) fill(item *domain.ProviderDiagnostics) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if b := h.breakers[item.Name]; b != nil {
		b.diagnostics(item)
	}
}

func (s *Service) isProviderBlocked(providerName string, now time.Time) (bool, time.Time, string) {
	name := strings.ToLower(strings.TrimSpace(providerName))
	if name == "" {
		return false, time.Time{}, ""
	}
	return s.health.blocked(name, now)
}

// recordProviderResult feeds one provider call into its breaker. Caller
// cancellation is not held against the provider.
func (s *Service) recordProviderResult(providerName, query string, err error, latency time.Duration, now time.Time) {
	name := strings.ToLower(strings.TrimSpace(providerName))
	if name == "" || errors.Is(err, context.Canceled) {
		return
	}
	s.health.record(name, strings.TrimSpace(query), err, latency, now)
}

// exponentialBlockDuration doubles the block for every failure past the
// threshold, starting at providerBlockBase and capped at providerBlockMax.
func exponentialBlockDuration(consecutiveFailures int) time.Duration {
	d := providerBlockBase
	for n := consecutiveFailures; n > providerFailureThreshold; n-- {
		d *= 2
		if d >= providerBlockMax {
			return providerBlockMax
		}
	}
	return d
}

func isTimeoutLikeError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded")
}

// ProviderDiagnostics reports the breaker state of every registered provider.
func (s *Service) ProviderDiagnostics() []domain.ProviderDiagnostics {
	infos := s.Providers()
	if len(infos) == 0 {
		return nil
	}
	items := make([]domain.ProviderDiagnostics, len(infos))
	for i, info := range infos {
		items[i] = domain.ProviderDiagnostics{
			Name:    info.Name,
			Label:   info.Label,
			Kind:    info.Kind,
			Enabled: info.Enabled,
		}
		s.health.fill(&items[i])
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
