package ytmusic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"trackmatch/internal/domain"
	"trackmatch/internal/providers/common"
)

const (
	defaultEndpoint  = "https://pipedapi.kavin.rocks"
	defaultUserAgent = "trackmatch/1.0"
	watchBaseURL     = "https://youtube.com/watch?v="
	musicSongsFilter = "music_songs"
)

type Config struct {
	Endpoint  string
	UserAgent string
	Client    *http.Client
}

// Provider searches YouTube Music songs through a Piped-compatible API.
type Provider struct {
	client    *http.Client
	endpoint  string
	userAgent string
}

type searchPayload struct {
	Items []apiItem `json:"items"`
}

type apiItem struct {
	URL              string `json:"url"`
	Type             string `json:"type"`
	Title            string `json:"title"`
	UploaderName     string `json:"uploaderName"`
	UploaderVerified bool   `json:"uploaderVerified"`
	Duration         int64  `json:"duration"`
	Album            string `json:"album"`
}

func NewProvider(cfg Config) *Provider {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Provider{client: client, endpoint: endpoint, userAgent: userAgent}
}

func (p *Provider) Name() string {
	return "ytmusic"
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "YouTube Music",
		Kind:    "api",
		Aliases: []string{"youtube-music", "ytm"},
		Enabled: true,
	}
}

func (p *Provider) Search(ctx context.Context, term string, limit int) ([]domain.RawResult, error) {
	if limit <= 0 {
		limit = 20
	}
	params := url.Values{}
	params.Set("q", strings.TrimSpace(term))
	params.Set("filter", musicSongsFilter)

	payload, err := common.Get(ctx, p.client, p.endpoint+"/search?"+params.Encode(), map[string]string{
		"User-Agent": p.userAgent,
		"Accept":     "application/json",
	})
	if err != nil {
		return nil, err
	}
	var decoded searchPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("decode search payload: %w", err)
	}

	results := make([]domain.RawResult, 0, len(decoded.Items))
	for _, item := range decoded.Items {
		result, ok := toResult(item)
		if !ok {
			continue
		}
		results = append(results, result)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

func toResult(item apiItem) (domain.RawResult, bool) {
	videoID := extractVideoID(item.URL)
	if videoID == "" {
		return domain.RawResult{}, false
	}
	kind := strings.TrimSpace(item.Type)
	if kind == "stream" {
		kind = domain.KindTrack
	}
	return domain.RawResult{
		ID:       videoID,
		Name:     strings.TrimSpace(item.Title),
		Kind:     kind,
		Link:     watchBaseURL + videoID,
		Album:    strings.TrimSpace(item.Album),
		Duration: float64(max(item.Duration, 0)),
		Artist:   strings.TrimSuffix(strings.TrimSpace(item.UploaderName), " - Topic"),
		Verified: item.UploaderVerified,
	}, true
}

func extractVideoID(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(parsed.Query().Get("v"))
}
