package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"trackmatch/internal/domain"
	"trackmatch/internal/metrics"
)

const historyWriteTimeout = 3 * time.Second

// Resolve finds a link for one song, walking the provider chain until a
// provider yields a match. A response whose Match.Found is false is a normal
// outcome; an error means every provider failed or the request was invalid.
func (s *Service) Resolve(ctx context.Context, request domain.ResolveRequest) (domain.ResolveResponse, error) {
	if strings.TrimSpace(request.Song.Name) == "" {
		return domain.ResolveResponse{}, ErrInvalidSong
	}
	selected, err := s.resolveProviders(request.Providers)
	if err != nil {
		return domain.ResolveResponse{}, err
	}
	options := s.engineOptions(request.Options)
	return s.resolvePrepared(ctx, request.Song, selected, options, request.NoCache)
}

func (s *Service) resolvePrepared(ctx context.Context, song domain.Song, selected []Provider, options resolvedOptions, noCache bool) (domain.ResolveResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.ResolveResponse{}, err
	}
	startedAt := time.Now()
	names := providerKeys(selected)
	key := buildCacheKey(song, names, options)

	useCache := !s.cacheDisabled && !noCache
	if useCache {
		if cached, ok := s.cacheLookup(ctx, key, startedAt); ok {
			cached.Cached = true
			cached.ElapsedMS = time.Since(startedAt).Milliseconds()
			return cached, nil
		}
	}

	// The shared resolution belongs to no single caller: it runs detached
	// under the service timeout and still fills the cache and history when
	// every waiter has gone.
	results := s.flight.DoChan(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		response, err := s.resolveChain(runCtx, song, selected, options)
		if err != nil {
			return domain.ResolveResponse{}, err
		}
		if !s.cacheDisabled {
			s.cacheStore(runCtx, key, response, time.Now())
		}
		s.recordHistory(runCtx, response)
		return response, nil
	})
	select {
	case <-ctx.Done():
		return domain.ResolveResponse{}, ctx.Err()
	case result := <-results:
		if result.Err != nil {
			return domain.ResolveResponse{}, result.Err
		}
		return result.Val.(domain.ResolveResponse), nil
	}
}

func (s *Service) resolveChain(ctx context.Context, song domain.Song, selected []Provider, options resolvedOptions) (domain.ResolveResponse, error) {
	startedAt := time.Now()
	response := domain.ResolveResponse{
		ID:       uuid.NewString(),
		Song:     song,
		Attempts: make([]domain.ProviderAttempt, 0, len(selected)),
	}

	var (
		lastErr   error
		succeeded bool
	)
	for _, provider := range selected {
		if ctx.Err() != nil {
			break
		}
		match, attempt, err := s.attemptProvider(ctx, provider, song, options)
		response.Attempts = append(response.Attempts, attempt)
		if err != nil {
			lastErr = err
			continue
		}
		succeeded = true
		response.Match = match
		if match.Found {
			break
		}
	}
	response.ElapsedMS = time.Since(startedAt).Milliseconds()

	if !succeeded {
		if lastErr == nil {
			lastErr = ctx.Err()
		}
		if lastErr == nil {
			lastErr = ErrNoProviders
		}
		metrics.ResolutionsTotal.WithLabelValues("", "error").Inc()
		s.logger.Warn("resolution failed",
			slog.String("song", song.DisplayName()),
			slog.Int("providers", len(selected)),
			slog.String("error", lastErr.Error()),
		)
		return domain.ResolveResponse{}, fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
	}

	outcome := "none"
	switch {
	case response.Match.Found && response.Match.Accepted:
		outcome = "accepted"
	case response.Match.Found:
		outcome = "weak"
	}
	metrics.ResolutionsTotal.WithLabelValues(response.Match.Provider, outcome).Inc()
	if response.Match.Found {
		metrics.MatchScore.WithLabelValues(response.Match.Provider).Observe(response.Match.Score)
	}
	s.logger.Info("song resolved",
		slog.String("song", song.DisplayName()),
		slog.String("provider", response.Match.Provider),
		slog.String("outcome", outcome),
		slog.String("link", response.Match.Link),
		slog.Float64("score", response.Match.Score),
		slog.Int64("elapsedMs", response.ElapsedMS),
	)
	return response, nil
}

// attemptProvider runs one provider's engine with health gating, pacing and
// retries, and records the outcome.
func (s *Service) attemptProvider(ctx context.Context, provider Provider, song domain.Song, options resolvedOptions) (domain.Match, domain.ProviderAttempt, error) {
	name := providerKey(provider)
	attempt := domain.ProviderAttempt{Provider: name}
	startedAt := time.Now()
	fail := func(err error) (domain.Match, domain.ProviderAttempt, error) {
		attempt.Error = err.Error()
		attempt.ElapsedMS = time.Since(startedAt).Milliseconds()
		return domain.Match{}, attempt, err
	}

	if !provider.Info().Enabled {
		return fail(fmt.Errorf("provider %s is disabled", name))
	}
	if blocked, until, lastErr := s.isProviderBlocked(name, startedAt); blocked {
		return fail(fmt.Errorf("provider temporarily unhealthy until %s: %s", until.UTC().Format(time.RFC3339), lastErr))
	}
	if err := s.limiter.Wait(ctx, name); err != nil {
		return fail(fmt.Errorf("rate limit wait cancelled: %w", err))
	}

	engine := options.engine(provider, s.providerTimeout, s.logger)
	var match domain.Match
	err := RetryWithBackoff(ctx, s.retry, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
		defer cancel()
		var err error
		match, err = engine.Resolve(callCtx, song)
		return err
	})
	s.recordProviderResult(name, match.Query, err, time.Since(startedAt), time.Now())
	if err != nil {
		s.logger.Warn("provider resolution failed",
			slog.String("provider", name),
			slog.String("song", song.DisplayName()),
			slog.String("error", err.Error()),
		)
		return fail(err)
	}

	attempt.OK = true
	attempt.Found = match.Found
	attempt.Score = match.Score
	attempt.ElapsedMS = time.Since(startedAt).Milliseconds()
	return match, attempt, nil
}

func (s *Service) recordHistory(ctx context.Context, response domain.ResolveResponse) {
	if s.history == nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
	defer cancel()

	entry := domain.HistoryEntry{
		ID:        response.ID,
		Song:      response.Song,
		Provider:  response.Match.Provider,
		Link:      response.Match.Link,
		Score:     response.Match.Score,
		Accepted:  response.Match.Accepted,
		Found:     response.Match.Found,
		Method:    response.Match.Method,
		ElapsedMS: response.ElapsedMS,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.history.Record(writeCtx, entry); err != nil {
		s.logger.Warn("history write failed",
			slog.String("id", entry.ID),
			slog.String("error", err.Error()),
		)
	}
}

// History returns the newest recorded resolutions.
func (s *Service) History(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.history.Recent(ctx, limit)
}

func providerKeys(selected []Provider) []string {
	keys := make([]string, 0, len(selected))
	for _, provider := range selected {
		keys = append(keys, providerKey(provider))
	}
	return keys
}
