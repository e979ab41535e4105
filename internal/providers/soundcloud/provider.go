package soundcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"trackmatch/internal/domain"
	"trackmatch/internal/providers/common"
)

const (
	defaultEndpoint  = "https://api-v2.soundcloud.com"
	defaultUserAgent = "trackmatch/1.0"
)

type Config struct {
	Endpoint  string
	ClientID  string
	UserAgent string
	Client    *http.Client
}

// Provider searches SoundCloud through its public api-v2. Search results do
// not carry album titles, so it also resolves albums per track.
type Provider struct {
	client    *http.Client
	endpoint  string
	clientID  string
	userAgent string
}

type searchPayload struct {
	Collection []apiItem `json:"collection"`
}

type apiItem struct {
	ID           int64   `json:"id"`
	Kind         string  `json:"kind"`
	Title        string  `json:"title"`
	PermalinkURL string  `json:"permalink_url"`
	Duration     int64   `json:"duration"`
	FullDuration int64   `json:"full_duration"`
	User         apiUser `json:"user"`
}

type apiUser struct {
	Username string `json:"username"`
	Verified bool   `json:"verified"`
}

type albumsPayload struct {
	Collection []struct {
		Title string `json:"title"`
	} `json:"collection"`
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
	return &Provider{
		client:    client,
		endpoint:  endpoint,
		clientID:  strings.TrimSpace(cfg.ClientID),
		userAgent: userAgent,
	}
}

func (p *Provider) Name() string {
	return "soundcloud"
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "SoundCloud",
		Kind:    "api",
		Aliases: []string{"sc"},
		Enabled: p.clientID != "",
	}
}

func (p *Provider) Search(ctx context.Context, term string, limit int) ([]domain.RawResult, error) {
	if limit <= 0 {
		limit = 20
	}
	params := url.Values{}
	params.Set("q", strings.TrimSpace(term))
	params.Set("limit", strconv.Itoa(limit))

	payload, err := p.get(ctx, "/search", params)
	if err != nil {
		return nil, err
	}
	var decoded searchPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("decode search payload: %w", err)
	}

	results := make([]domain.RawResult, 0, len(decoded.Collection))
	for _, item := range decoded.Collection {
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

// AlbumsFor lists the titles of the albums a track appears on.
func (p *Provider) AlbumsFor(ctx context.Context, trackID string) ([]string, error) {
	trackID = strings.TrimSpace(trackID)
	if trackID == "" {
		return nil, nil
	}
	payload, err := p.get(ctx, "/tracks/"+url.PathEscape(trackID)+"/albums", url.Values{})
	if err != nil {
		return nil, err
	}
	var decoded albumsPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("decode albums payload: %w", err)
	}
	titles := make([]string, 0, len(decoded.Collection))
	for _, album := range decoded.Collection {
		if title := strings.TrimSpace(album.Title); title != "" {
			titles = append(titles, title)
		}
	}
	return titles, nil
}

func (p *Provider) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if p.clientID == "" {
		return nil, fmt.Errorf("soundcloud client id is not configured")
	}
	params.Set("client_id", p.clientID)
	uri := p.endpoint + path + "?" + params.Encode()
	return common.Get(ctx, p.client, uri, map[string]string{
		"User-Agent": p.userAgent,
		"Accept":     "application/json",
	})
}

func toResult(item apiItem) (domain.RawResult, bool) {
	kind := strings.TrimSpace(item.Kind)
	if kind == "" {
		return domain.RawResult{}, false
	}
	durationMS := item.FullDuration
	if durationMS <= 0 {
		durationMS = item.Duration
	}
	result := domain.RawResult{
		Name:     strings.TrimSpace(item.Title),
		Kind:     kind,
		Link:     strings.TrimSpace(item.PermalinkURL),
		Duration: common.MillisToSeconds(durationMS),
		Artist:   strings.TrimSpace(item.User.Username),
		Verified: item.User.Verified,
	}
	if item.ID > 0 {
		result.ID = strconv.FormatInt(item.ID, 10)
	}
	return result, true
}
