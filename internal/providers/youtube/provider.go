package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"trackmatch/internal/domain"
	"trackmatch/internal/providers/common"
)

const (
	defaultEndpoint  = "https://www.youtube.com"
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
	watchBaseURL     = "https://youtube.com/watch?v="
	initialDataMark  = "ytInitialData = "
)

type Config struct {
	Endpoint  string
	UserAgent string
	Client    *http.Client
}

// Provider scrapes the YouTube results page. Every video is offered as a
// track; channels and playlists keep their own kind.
type Provider struct {
	client    *http.Client
	endpoint  string
	userAgent string
}

type textRuns struct {
	SimpleText string `json:"simpleText"`
	Runs       []struct {
		Text string `json:"text"`
	} `json:"runs"`
}

func (t textRuns) String() string {
	if t.SimpleText != "" {
		return strings.TrimSpace(t.SimpleText)
	}
	parts := make([]string, 0, len(t.Runs))
	for _, run := range t.Runs {
		parts = append(parts, run.Text)
	}
	return strings.TrimSpace(strings.Join(parts, ""))
}

type videoRenderer struct {
	VideoID     string   `json:"videoId"`
	Title       textRuns `json:"title"`
	OwnerText   textRuns `json:"ownerText"`
	LengthText  textRuns `json:"lengthText"`
	OwnerBadges []struct {
		MetadataBadgeRenderer struct {
			Style string `json:"style"`
		} `json:"metadataBadgeRenderer"`
	} `json:"ownerBadges"`
}

type channelRenderer struct {
	ChannelID string   `json:"channelId"`
	Title     textRuns `json:"title"`
}

type playlistRenderer struct {
	PlaylistID string   `json:"playlistId"`
	Title      textRuns `json:"title"`
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
	return "youtube"
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "YouTube",
		Kind:    "scraper",
		Aliases: []string{"yt"},
		Enabled: true,
	}
}

func (p *Provider) Search(ctx context.Context, term string, limit int) ([]domain.RawResult, error) {
	if limit <= 0 {
		limit = 20
	}
	params := url.Values{}
	params.Set("search_query", strings.TrimSpace(term))
	params.Set("hl", "en")

	payload, err := common.Get(ctx, p.client, p.endpoint+"/results?"+params.Encode(), map[string]string{
		"User-Agent":      p.userAgent,
		"Accept":          "text/html,application/xhtml+xml",
		"Accept-Language": "en-US,en;q=0.8",
	})
	if err != nil {
		return nil, err
	}
	results, err := parseResultsPage(payload)
	if err != nil {
		return nil, err
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func parseResultsPage(page []byte) ([]domain.RawResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}

	var raw string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, initialDataMark)
		if idx < 0 {
			return true
		}
		raw = strings.TrimSpace(text[idx+len(initialDataMark):])
		return false
	})
	if raw == "" {
		return nil, fmt.Errorf("results page carries no initial data")
	}
	raw = strings.TrimSuffix(raw, ";")

	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("decode initial data: %w", err)
	}

	var results []domain.RawResult
	collectRenderers(data, &results)
	return results, nil
}

// collectRenderers gathers renderers depth first. Array items keep page order,
// which is where result lists live; sibling object keys are visited sorted,
// not in page order.
func collectRenderers(node any, out *[]domain.RawResult) {
	switch value := node.(type) {
	case []any:
		for _, item := range value {
			collectRenderers(item, out)
		}
	case map[string]any:
		if renderer, ok := value["videoRenderer"]; ok {
			if result, ok := decodeVideo(renderer); ok {
				*out = append(*out, result)
			}
			return
		}
		if renderer, ok := value["channelRenderer"]; ok {
			if result, ok := decodeChannel(renderer); ok {
				*out = append(*out, result)
			}
			return
		}
		if renderer, ok := value["playlistRenderer"]; ok {
			if result, ok := decodePlaylist(renderer); ok {
				*out = append(*out, result)
			}
			return
		}
		keys := make([]string, 0, len(value))
		for key := range value {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			collectRenderers(value[key], out)
		}
	}
}

func remarshal(node any, target any) bool {
	encoded, err := json.Marshal(node)
	if err != nil {
		return false
	}
	return json.Unmarshal(encoded, target) == nil
}

func decodeVideo(node any) (domain.RawResult, bool) {
	var video videoRenderer
	if !remarshal(node, &video) || strings.TrimSpace(video.VideoID) == "" {
		return domain.RawResult{}, false
	}
	verified := false
	for _, badge := range video.OwnerBadges {
		if strings.HasPrefix(badge.MetadataBadgeRenderer.Style, "BADGE_STYLE_TYPE_VERIFIED") {
			verified = true
		}
	}
	return domain.RawResult{
		ID:       video.VideoID,
		Name:     common.CleanHTMLText(video.Title.String()),
		Kind:     domain.KindTrack,
		Link:     watchBaseURL + video.VideoID,
		Duration: common.ParseClockDuration(video.LengthText.String()),
		Artist:   common.CleanHTMLText(video.OwnerText.String()),
		Verified: verified,
	}, true
}

func decodeChannel(node any) (domain.RawResult, bool) {
	var channel channelRenderer
	if !remarshal(node, &channel) || channel.ChannelID == "" {
		return domain.RawResult{}, false
	}
	return domain.RawResult{
		ID:   channel.ChannelID,
		Name: channel.Title.String(),
		Kind: "channel",
		Link: "https://youtube.com/channel/" + channel.ChannelID,
	}, true
}

func decodePlaylist(node any) (domain.RawResult, bool) {
	var playlist playlistRenderer
	if !remarshal(node, &playlist) || playlist.PlaylistID == "" {
		return domain.RawResult{}, false
	}
	return domain.RawResult{
		ID:   playlist.PlaylistID,
		Name: playlist.Title.String(),
		Kind: "playlist",
		Link: "https://youtube.com/playlist?list=" + playlist.PlaylistID,
	}, true
}
