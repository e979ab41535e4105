package matching

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"trackmatch/internal/domain"
)

const (
	isrcNameMatch = 90.0
	isrcTimeMatch = 90.0
)

// Engine resolves songs against a single provider.
type Engine struct {
	provider Provider
	fetcher  *Fetcher
	template string
	filter   bool
	minScore float64
	timeout  time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
}

type Option func(*Engine)

// WithSearchQuery sets the query template. Empty means "artists - title".
func WithSearchQuery(template string) Option {
	return func(e *Engine) {
		e.template = strings.TrimSpace(template)
	}
}

// WithFilterResults toggles scoring. With filtering off the first track
// candidate is taken as is.
func WithFilterResults(enabled bool) Option {
	return func(e *Engine) {
		e.filter = enabled
	}
}

func WithMinScore(score float64) Option {
	return func(e *Engine) {
		if score > 0 {
			e.minScore = score
		}
	}
}

// WithTimeout bounds a resolution whose context carries no deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewEngine(provider Provider, opts ...Option) *Engine {
	e := &Engine{
		provider: provider,
		filter:   true,
		minScore: DefaultMinScore,
		logger:   slog.Default(),
		tracer:   otel.Tracer("trackmatch/matching"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.fetcher = NewFetcher(provider, e.logger)
	return e
}

func (e *Engine) Provider() string {
	return e.provider.Name()
}

// Resolve finds the best link for song on the engine's provider. A Match with
// Found=false means nothing usable came back; errors are reserved for provider
// and context failures.
func (e *Engine) Resolve(ctx context.Context, song domain.Song) (domain.Match, error) {
	started := time.Now()
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	ctx, span := e.tracer.Start(ctx, "matching.resolve", trace.WithAttributes(
		attribute.String("provider", e.provider.Name()),
		attribute.String("song", song.DisplayName()),
	))
	defer span.End()

	match, err := e.resolve(ctx, song)
	match.Provider = e.provider.Name()
	match.Elapsed = time.Since(started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return match, err
	}
	span.SetAttributes(
		attribute.Bool("found", match.Found),
		attribute.String("method", match.Method),
		attribute.Float64("score", match.Score),
		attribute.Int("candidates", match.Candidates),
	)
	return match, nil
}

func (e *Engine) resolve(ctx context.Context, song domain.Song) (domain.Match, error) {
	if link := strings.TrimSpace(song.DownloadURL); link != "" {
		return domain.Match{
			Found:    true,
			Link:     link,
			Score:    perfectMatch,
			Accepted: true,
			Method:   domain.MethodDownloadURL,
		}, nil
	}

	if e.template == "" && strings.TrimSpace(song.ISRC) != "" {
		match, ok, err := e.resolveISRC(ctx, song)
		if err != nil {
			return domain.Match{Query: song.ISRC, Method: domain.MethodISRC}, err
		}
		if ok {
			return match, nil
		}
	}

	query := BuildQuery(song, e.template)
	match := domain.Match{Query: query, Method: domain.MethodScored}
	if !e.filter {
		match.Method = domain.MethodUnfiltered
	}

	candidates, err := e.fetcher.Fetch(ctx, query, song)
	if err != nil {
		return match, err
	}
	match.Candidates = len(candidates)

	if !e.filter {
		if selection, ok := SelectFirst(candidates); ok {
			match.Found = true
			match.Link = selection.Link
			match.Score = selection.Score
			match.Accepted = selection.Accepted
		}
		return match, nil
	}

	scores, evaluations := Evaluate(candidates, song)
	match.Evaluations = evaluations
	if scores.Len() == 0 {
		e.logger.Debug("no match",
			slog.String("provider", e.provider.Name()),
			slog.String("song", song.DisplayName()),
			slog.Int("candidates", len(candidates)),
			slog.Int("rejected", len(evaluations)),
		)
		return match, nil
	}
	match.Ranked = Rank(scores)
	selection, _ := Select(scores, e.minScore)
	match.Found = true
	match.Link = selection.Link
	match.Score = selection.Score
	match.Accepted = selection.Accepted
	if !selection.Accepted {
		e.logger.Debug("best match below threshold",
			slog.String("provider", e.provider.Name()),
			slog.String("song", song.DisplayName()),
			slog.String("link", selection.Link),
			slog.Float64("score", selection.Score),
			slog.Float64("minScore", e.minScore),
		)
	}
	return match, nil
}

// resolveISRC searches by ISRC and takes the result when it is the only one
// and both its title and duration line up with the song.
func (e *Engine) resolveISRC(ctx context.Context, song domain.Song) (domain.Match, bool, error) {
	isrc := strings.TrimSpace(song.ISRC)
	candidates, err := e.fetcher.FetchExact(ctx, isrc)
	if err != nil {
		return domain.Match{}, false, err
	}
	if len(candidates) != 1 {
		return domain.Match{}, false, nil
	}
	candidate := candidates[0]
	nameScore := MatchPercentage(Slugify(candidate.Name), Slugify(song.Name))
	timeScore, timeOK := TimeMatch(candidate.Duration, song.Duration)
	if nameScore <= isrcNameMatch || !timeOK || timeScore <= isrcTimeMatch {
		return domain.Match{}, false, nil
	}
	return domain.Match{
		Found:      true,
		Link:       candidate.Link,
		Score:      perfectMatch,
		Accepted:   true,
		Query:      isrc,
		Method:     domain.MethodISRC,
		Candidates: 1,
	}, true, nil
}
