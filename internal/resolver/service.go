package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"trackmatch/internal/domain"
	"trackmatch/internal/matching"
)

var (
	ErrInvalidSong        = errors.New("song title is required")
	ErrEmptyBatch         = errors.New("batch contains no songs")
	ErrNoProviders        = errors.New("no audio providers configured")
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrAllProvidersFailed = errors.New("all providers failed")
	ErrHistoryDisabled    = errors.New("resolution history is not configured")
)

// Provider is an audio backend the service can resolve songs against.
type Provider interface {
	matching.Provider
	Info() domain.ProviderInfo
}

// HistoryStore persists completed resolutions.
type HistoryStore interface {
	Record(ctx context.Context, entry domain.HistoryEntry) error
	Recent(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
}

// Defaults are the engine settings used when a request does not override them.
type Defaults struct {
	SearchQuery   string
	FilterResults bool
	MinScore      float64
}

type Service struct {
	providers       map[string]Provider
	ordered         []Provider
	chain           []string
	timeout         time.Duration
	providerTimeout time.Duration
	defaults        Defaults
	retry           RetryConfig
	limiter         *RateLimiterMap
	cacheDisabled   bool
	cache           *resultCache
	redisCache      *RedisCacheBackend
	history         HistoryStore
	batchWorkers    int
	flight          singleflight.Group
	logger          *slog.Logger
	health          *healthBoard
}

type ServiceOption func(*Service)

func WithRedisCache(backend *RedisCacheBackend) ServiceOption {
	return func(s *Service) {
		s.redisCache = backend
	}
}

func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.cache.ttl = ttl
		}
	}
}

func WithCacheDisabled(disabled bool) ServiceOption {
	return func(s *Service) {
		s.cacheDisabled = disabled
	}
}

func WithHistory(store HistoryStore) ServiceOption {
	return func(s *Service) {
		s.history = store
	}
}

func WithDefaults(defaults Defaults) ServiceOption {
	return func(s *Service) {
		s.defaults = defaults
		if s.defaults.MinScore <= 0 {
			s.defaults.MinScore = matching.DefaultMinScore
		}
	}
}

// WithChain sets the default provider order used when a request names none.
func WithChain(names []string) ServiceOption {
	return func(s *Service) {
		s.chain = normalizeNames(names)
	}
}

func WithRetryConfig(cfg RetryConfig) ServiceOption {
	return func(s *Service) {
		s.retry = cfg
	}
}

func WithRateLimiter(limiter *RateLimiterMap) ServiceOption {
	return func(s *Service) {
		s.limiter = limiter
	}
}

func WithProviderTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		if timeout > 0 {
			s.providerTimeout = timeout
		}
	}
}

func WithBatchWorkers(workers int) ServiceOption {
	return func(s *Service) {
		if workers > 0 {
			s.batchWorkers = workers
		}
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func providerKey(provider Provider) string {
	return strings.ToLower(strings.TrimSpace(provider.Name()))
}

func NewService(providers []Provider, timeout time.Duration, opts ...ServiceOption) *Service {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	svc := &Service{
		providers:       make(map[string]Provider, len(providers)),
		timeout:         timeout,
		providerTimeout: timeout,
		defaults:        Defaults{FilterResults: true, MinScore: matching.DefaultMinScore},
		retry:           DefaultRetryConfig(),
		cache:           newResultCache(defaultCacheTTL, defaultCacheMaxEntries),
		batchWorkers:    defaultBatchWorkers,
		logger:          slog.Default(),
		health:          newHealthBoard(),
	}
	for _, provider := range providers {
		svc.register(provider)
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// register adds a provider under its name and aliases. A later provider with
// the same name replaces the earlier one; aliases never shadow a name.
func (s *Service) register(provider Provider) {
	if provider == nil {
		return
	}
	key := providerKey(provider)
	if key == "" {
		return
	}
	if previous, exists := s.providers[key]; exists {
		s.ordered = slices.DeleteFunc(s.ordered, func(p Provider) bool { return p == previous })
	} else {
		s.chain = append(s.chain, key)
	}
	s.providers[key] = provider
	s.ordered = append(s.ordered, provider)
	for _, alias := range normalizeNames(provider.Info().Aliases) {
		if _, taken := s.providers[alias]; !taken {
			s.providers[alias] = provider
		}
	}
}

// Providers lists every registered provider once, sorted by name.
func (s *Service) Providers() []domain.ProviderInfo {
	if len(s.ordered) == 0 {
		return nil
	}
	items := make([]domain.ProviderInfo, 0, len(s.ordered))
	for _, provider := range s.ordered {
		info := provider.Info()
		info.Name = providerKey(provider)
		if info.Label == "" {
			info.Label = info.Name
		}
		items = append(items, info)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}

// resolveProviders maps requested names or aliases, falling back to the
// default chain, to distinct providers in request order.
func (s *Service) resolveProviders(requested []string) ([]Provider, error) {
	if len(s.ordered) == 0 {
		return nil, ErrNoProviders
	}
	names := normalizeNames(requested)
	if len(names) == 0 {
		names = s.chain
	}

	selected := make([]Provider, 0, len(names))
	for _, name := range names {
		provider, ok := s.providers[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
		}
		if !slices.Contains(selected, provider) {
			selected = append(selected, provider)
		}
	}
	if len(selected) == 0 {
		return nil, ErrNoProviders
	}
	return selected, nil
}

// engineOptions merges request overrides over the service defaults.
func (s *Service) engineOptions(options domain.MatchOptions) resolvedOptions {
	resolved := resolvedOptions{
		searchQuery: strings.TrimSpace(s.defaults.SearchQuery),
		filter:      s.defaults.FilterResults,
		minScore:    s.defaults.MinScore,
	}
	if query := strings.TrimSpace(options.SearchQuery); query != "" {
		resolved.searchQuery = query
	}
	if options.FilterResults != nil {
		resolved.filter = *options.FilterResults
	}
	if options.MinScore != nil && *options.MinScore > 0 {
		resolved.minScore = *options.MinScore
	}
	return resolved
}

type resolvedOptions struct {
	searchQuery string
	filter      bool
	minScore    float64
}

func (o resolvedOptions) engine(provider Provider, timeout time.Duration, logger *slog.Logger) *matching.Engine {
	return matching.NewEngine(provider,
		matching.WithSearchQuery(o.searchQuery),
		matching.WithFilterResults(o.filter),
		matching.WithMinScore(o.minScore),
		matching.WithTimeout(timeout),
		matching.WithLogger(logger),
	)
}

func normalizeNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, raw := range names {
		value := strings.ToLower(strings.TrimSpace(raw))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
