package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"trackmatch/internal/domain"
	"trackmatch/internal/metrics"
)

const (
	defaultCacheTTL        = 24 * time.Hour
	defaultCacheMaxEntries = 1000
	redisCacheTimeout      = 500 * time.Millisecond
)

type cachedResolution struct {
	response  domain.ResolveResponse
	updatedAt time.Time
	expiresAt time.Time
}

type resultCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]*cachedResolution
}

func newResultCache(ttl time.Duration, maxEntries int) *resultCache {
	return &resultCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*cachedResolution),
	}
}

func (c *resultCache) get(key string, now time.Time) (domain.ResolveResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return domain.ResolveResponse{}, false
	}
	if !now.Before(entry.expiresAt) {
		delete(c.entries, key)
		return domain.ResolveResponse{}, false
	}
	return cloneResponse(entry.response), true
}

func (c *resultCache) put(key string, response domain.ResolveResponse, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cachedResolution{
		response:  cloneResponse(response),
		updatedAt: now,
		expiresAt: now.Add(c.ttl),
	}
	c.trimLocked(now)
}

func (c *resultCache) trimLocked(now time.Time) {
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	if c.maxEntries <= 0 || len(c.entries) <= c.maxEntries {
		return
	}

	type pair struct {
		key   string
		entry *cachedResolution
	}
	items := make([]pair, 0, len(c.entries))
	for key, entry := range c.entries {
		items = append(items, pair{key: key, entry: entry})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].entry.updatedAt.Before(items[j].entry.updatedAt)
	})
	for i := 0; i < len(items)-c.maxEntries; i++ {
		delete(c.entries, items[i].key)
	}
}

func (s *Service) cacheLookup(ctx context.Context, key string, now time.Time) (domain.ResolveResponse, bool) {
	if s.redisCache != nil {
		redisCtx, cancel := context.WithTimeout(ctx, redisCacheTimeout)
		resp, found, err := s.redisCache.Get(redisCtx, key)
		cancel()
		if err != nil {
			s.logger.Debug("redis cache lookup failed", slog.String("error", err.Error()))
		}
		if err == nil && found {
			metrics.CacheHitsTotal.Inc()
			s.cache.put(key, resp, now)
			return resp, true
		}
	}

	if resp, ok := s.cache.get(key, now); ok {
		metrics.CacheHitsTotal.Inc()
		return resp, true
	}
	metrics.CacheMissesTotal.Inc()
	return domain.ResolveResponse{}, false
}

func (s *Service) cacheStore(ctx context.Context, key string, response domain.ResolveResponse, now time.Time) {
	if s.redisCache != nil {
		redisCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), redisCacheTimeout)
		if err := s.redisCache.Set(redisCtx, key, response, s.cache.ttl); err != nil {
			s.logger.Debug("redis cache store failed", slog.String("error", err.Error()))
		}
		cancel()
	}
	s.cache.put(key, response, now)
}

func cloneResponse(response domain.ResolveResponse) domain.ResolveResponse {
	cloned := response
	cloned.Song.Artists = append([]string(nil), response.Song.Artists...)
	cloned.Attempts = append([]domain.ProviderAttempt(nil), response.Attempts...)
	cloned.Match.Ranked = append([]domain.ScoredLink(nil), response.Match.Ranked...)
	cloned.Match.Evaluations = append([]domain.Evaluation(nil), response.Match.Evaluations...)
	return cloned
}

// buildCacheKey hashes every song field together with the provider chain and
// engine options, so two songs only share an entry when they are identical.
func buildCacheKey(song domain.Song, providers []string, options resolvedOptions) string {
	encodedSong, _ := json.Marshal(song)
	parts := []string{
		"s=" + string(encodedSong),
		"p=" + strings.Join(providers, ","),
		"q=" + strings.ToLower(options.searchQuery),
		"f=" + strconv.FormatBool(options.filter),
		"m=" + strconv.FormatFloat(options.minScore, 'f', -1, 64),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
