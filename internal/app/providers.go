package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"trackmatch/internal/providers/soundcloud"
	"trackmatch/internal/providers/youtube"
	"trackmatch/internal/providers/ytmusic"
	"trackmatch/internal/resolver"
)

type providerFactory func(cfg Config, client *http.Client) resolver.Provider

// providerFactories is the full table of audio backends, keyed by canonical
// name. Aliases are declared by each provider's Info.
var providerFactories = map[string]providerFactory{
	"ytmusic": func(cfg Config, client *http.Client) resolver.Provider {
		return ytmusic.NewProvider(ytmusic.Config{
			Endpoint:  cfg.YTMusicEndpoint,
			UserAgent: cfg.UserAgent,
			Client:    client,
		})
	},
	"youtube": func(cfg Config, client *http.Client) resolver.Provider {
		return youtube.NewProvider(youtube.Config{
			Endpoint:  cfg.YouTubeEndpoint,
			UserAgent: cfg.UserAgent,
			Client:    client,
		})
	},
	"soundcloud": func(cfg Config, client *http.Client) resolver.Provider {
		return soundcloud.NewProvider(soundcloud.Config{
			Endpoint:  cfg.SoundCloudEndpoint,
			ClientID:  cfg.SoundCloudClientID,
			UserAgent: cfg.UserAgent,
			Client:    client,
		})
	},
}

// BuildProviders instantiates every known provider, those named in
// AudioProviders first and in that order.
func BuildProviders(cfg Config) ([]resolver.Provider, error) {
	order := make([]string, 0, len(providerFactories))
	seen := make(map[string]struct{}, len(providerFactories))
	for _, name := range cfg.AudioProviders {
		if _, ok := providerFactories[name]; !ok {
			return nil, fmt.Errorf("unknown audio provider %q", name)
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		order = append(order, name)
	}
	rest := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		if _, ok := seen[name]; !ok {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)

	providers := make([]resolver.Provider, 0, len(order))
	for _, name := range order {
		client := &http.Client{
			Timeout:   cfg.ProviderTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
		providers = append(providers, providerFactories[name](cfg, client))
	}
	return providers, nil
}

// ServiceOptions maps the configuration onto resolver options. Redis and
// history backends are attached by the caller.
func ServiceOptions(cfg Config, logger *slog.Logger) []resolver.ServiceOption {
	limiter := resolver.NewRateLimiterMap(cfg.ProviderRPS, 1)
	opts := []resolver.ServiceOption{
		resolver.WithLogger(logger),
		resolver.WithChain(cfg.AudioProviders),
		resolver.WithDefaults(resolver.Defaults{
			SearchQuery:   cfg.SearchQuery,
			FilterResults: cfg.FilterResults,
			MinScore:      cfg.MinScore,
		}),
		resolver.WithRateLimiter(limiter),
		resolver.WithProviderTimeout(cfg.ProviderTimeout),
		resolver.WithRetryConfig(retryConfig(cfg)),
		resolver.WithBatchWorkers(cfg.BatchWorkers),
		resolver.WithCacheDisabled(cfg.CacheDisabled),
	}
	if cfg.CacheTTL > 0 {
		opts = append(opts, resolver.WithCacheTTL(cfg.CacheTTL))
	}
	return opts
}

// retryConfig overlays the configured attempts and first delay on the
// resolver defaults.
func retryConfig(cfg Config) resolver.RetryConfig {
	retry := resolver.DefaultRetryConfig()
	if cfg.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.RetryAttempts
	}
	if cfg.RetryDelay > 0 {
		retry.InitialDelay = cfg.RetryDelay
	}
	return retry
}
