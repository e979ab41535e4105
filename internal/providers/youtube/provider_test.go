package youtube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"trackmatch/internal/domain"
)

const resultsPage = `<!DOCTYPE html><html><head>
<script>window.ytcfg = {};</script>
<script>var ytInitialData = {"contents":{"twoColumnSearchResultsRenderer":{"primaryContents":{"sectionListRenderer":{"contents":[{"itemSectionRenderer":{"contents":[
	{"videoRenderer":{"videoId":"abc123","title":{"runs":[{"text":"Salem Ilese - PS5 "},{"text":"(Official Video)"}]},"ownerText":{"runs":[{"text":"Salem Ilese"}]},"lengthText":{"simpleText":"3:10"},"ownerBadges":[{"metadataBadgeRenderer":{"style":"BADGE_STYLE_TYPE_VERIFIED_ARTIST"}}]}},
	{"channelRenderer":{"channelId":"UC42","title":{"simpleText":"Salem Ilese"}}},
	{"playlistRenderer":{"playlistId":"PL9","title":{"simpleText":"PS5 loop"}}},
	{"videoRenderer":{"videoId":"def456","title":{"runs":[{"text":"PS5 &amp; chill"}]},"ownerText":{"runs":[{"text":"fan"}]}}}
]}}]}}}}};</script>
</head><body></body></html>`

func TestParseResultsPage(t *testing.T) {
	results, err := parseResultsPage([]byte(resultsPage))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	video := results[0]
	if video.Kind != domain.KindTrack || video.Link != "https://youtube.com/watch?v=abc123" {
		t.Fatalf("unexpected video: %+v", video)
	}
	if video.Name != "Salem Ilese - PS5 (Official Video)" || video.Artist != "Salem Ilese" || video.Duration != 190 || !video.Verified {
		t.Fatalf("unexpected video metadata: %+v", video)
	}
	if results[1].Kind != "channel" || results[2].Kind != "playlist" {
		t.Fatalf("unexpected kinds: %q %q", results[1].Kind, results[2].Kind)
	}
	if results[3].Name != "PS5 & chill" || results[3].Duration != 0 || results[3].Verified {
		t.Fatalf("unexpected last video: %+v", results[3])
	}
}

func TestParseResultsPageWithoutData(t *testing.T) {
	if _, err := parseResultsPage([]byte(`<html><script>var x = 1;</script></html>`)); err == nil {
		t.Fatal("expected error for a page without initial data")
	}
}

func TestSearchLimitsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/results" || r.URL.Query().Get("search_query") != "salem ilese - ps5" {
			t.Errorf("unexpected request: %s", r.URL.String())
		}
		_, _ = w.Write([]byte(resultsPage))
	}))
	defer server.Close()

	provider := NewProvider(Config{Endpoint: server.URL, Client: server.Client()})
	results, err := provider.Search(context.Background(), "salem ilese - ps5", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 || results[0].ID != "abc123" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestCollectRenderersOrder(t *testing.T) {
	var data any
	payload := `{
		"zeta": {"videoRenderer": {"videoId": "z1", "title": {"simpleText": "Z"}}},
		"alpha": [
			{"videoRenderer": {"videoId": "a2", "title": {"simpleText": "A2"}}},
			{"videoRenderer": {"videoId": "a1", "title": {"simpleText": "A1"}}}
		]
	}`
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var results []domain.RawResult
	collectRenderers(data, &results)

	got := make([]string, 0, len(results))
	for _, result := range results {
		got = append(got, result.ID)
	}
	want := []string{"a2", "a1", "z1"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
