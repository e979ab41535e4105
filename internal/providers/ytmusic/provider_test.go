package ytmusic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"trackmatch/internal/domain"
)

func TestSearchMapsSongs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.URL.Query().Get("filter") != "music_songs" {
			t.Errorf("unexpected request: %s", r.URL.String())
		}
		_, _ = w.Write([]byte(`{"items":[
			{"url":"/watch?v=abc123","type":"stream","title":"PS5","uploaderName":"Salem Ilese - Topic","duration":190,"album":"PS5"},
			{"url":"/channel/UC1","type":"channel","title":"Salem Ilese"},
			{"url":"/playlist?list=PL1","type":"playlist","title":"PS5 mix"},
			{"url":"/watch?v=def456","type":"stream","title":"PS5 (Live)","uploaderName":"Fan","uploaderVerified":true,"duration":-1}
		]}`))
	}))
	defer server.Close()

	provider := NewProvider(Config{Endpoint: server.URL, Client: server.Client()})
	results, err := provider.Search(context.Background(), "salem ilese - ps5", 20)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results with video ids, got %d", len(results))
	}
	first := results[0]
	if first.Link != "https://youtube.com/watch?v=abc123" || first.Kind != domain.KindTrack {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if first.Artist != "Salem Ilese" || first.Album != "PS5" || first.Duration != 190 {
		t.Fatalf("unexpected metadata: %+v", first)
	}
	if results[1].Duration != 0 || !results[1].Verified {
		t.Fatalf("unexpected second result: %+v", results[1])
	}
}

func TestSearchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	provider := NewProvider(Config{Endpoint: server.URL, Client: server.Client()})
	if _, err := provider.Search(context.Background(), "ps5", 20); err == nil {
		t.Fatal("expected error")
	}
}

func TestExtractVideoID(t *testing.T) {
	cases := map[string]string{
		"/watch?v=abc":                      "abc",
		"https://youtube.com/watch?v=x&t=1": "x",
		"/channel/UC1":                      "",
		"":                                  "",
	}
	for input, want := range cases {
		if got := extractVideoID(input); got != want {
			t.Errorf("extractVideoID(%q) = %q, want %q", input, got, want)
		}
	}
}
