package matching

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"trackmatch/internal/domain"
)

// MaxResultsPerQuery caps every backend search issued by a Fetcher.
const MaxResultsPerQuery = 20

// Provider is a search backend for one audio site.
type Provider interface {
	Name() string
	Search(ctx context.Context, term string, limit int) ([]domain.RawResult, error)
}

// AlbumResolver is implemented by providers whose search results do not carry
// album information inline but can look it up per track.
type AlbumResolver interface {
	AlbumsFor(ctx context.Context, trackID string) ([]string, error)
}

// Fetcher turns a query into normalized track candidates.
type Fetcher struct {
	provider Provider
	logger   *slog.Logger
}

func NewFetcher(provider Provider, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{provider: provider, logger: logger}
}

// Fetch searches for query and for its stripped form, then keeps only track
// results. Primary results come first. A failing primary search or album
// lookup aborts the fetch; a failing stripped search is logged and ignored.
func (f *Fetcher) Fetch(ctx context.Context, query string, song domain.Song) ([]domain.Candidate, error) {
	raw, err := f.search(ctx, query)
	if err != nil {
		return nil, err
	}

	stripped := StripQuery(query)
	if stripped != "" && stripped != strings.TrimSpace(query) {
		extra, err := f.search(ctx, stripped)
		switch {
		case err == nil:
			raw = append(raw, extra...)
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return nil, err
		default:
			f.logger.Warn("stripped search failed",
				slog.String("provider", f.provider.Name()),
				slog.String("query", stripped),
				slog.String("error", err.Error()),
			)
		}
	}

	candidates, err := f.normalize(ctx, raw)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("candidates fetched",
		slog.String("provider", f.provider.Name()),
		slog.String("song", song.DisplayName()),
		slog.String("query", query),
		slog.String("strippedQuery", stripped),
		slog.Int("raw", len(raw)),
		slog.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

// FetchExact runs a single search for term without the stripped retry.
func (f *Fetcher) FetchExact(ctx context.Context, term string) ([]domain.Candidate, error) {
	raw, err := f.search(ctx, term)
	if err != nil {
		return nil, err
	}
	return f.normalize(ctx, raw)
}

func (f *Fetcher) search(ctx context.Context, term string) ([]domain.RawResult, error) {
	results, err := f.provider.Search(ctx, term, MaxResultsPerQuery)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		return nil, &ProviderError{Provider: f.provider.Name(), Stage: StageSearch, Err: err}
	}
	if len(results) > MaxResultsPerQuery {
		results = results[:MaxResultsPerQuery]
	}
	return results, nil
}

func (f *Fetcher) normalize(ctx context.Context, raw []domain.RawResult) ([]domain.Candidate, error) {
	resolver, _ := f.provider.(AlbumResolver)
	albums := make(map[string]string)

	candidates := make([]domain.Candidate, 0, len(raw))
	for _, item := range raw {
		if item.Kind != domain.KindTrack {
			continue
		}
		name := strings.TrimSpace(item.Name)
		link := strings.TrimSpace(item.Link)
		if name == "" || link == "" {
			continue
		}

		album := strings.TrimSpace(item.Album)
		if album == "" && resolver != nil && item.ID != "" {
			cached, seen := albums[item.ID]
			if !seen {
				found, err := resolver.AlbumsFor(ctx, item.ID)
				if err != nil {
					return nil, &ProviderError{Provider: f.provider.Name(), Stage: StageAlbum, Err: err}
				}
				if len(found) > 0 {
					cached = strings.TrimSpace(found[0])
				}
				albums[item.ID] = cached
			}
			album = cached
		}

		candidates = append(candidates, domain.Candidate{
			Name:     name,
			Kind:     domain.KindTrack,
			Link:     link,
			Album:    album,
			Duration: item.Duration,
			Artist:   strings.TrimSpace(item.Artist),
			Verified: item.Verified,
		})
	}
	return candidates, nil
}
