package soundcloud

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"trackmatch/internal/domain"
)

const searchFixture = `{"collection":[
	{"id":101,"kind":"track","title":"PS5","permalink_url":"https://soundcloud.com/salemilese/ps5","duration":30000,"full_duration":190000,"user":{"username":"Salem Ilese","verified":true}},
	{"id":7,"kind":"user","title":"","permalink_url":"https://soundcloud.com/salemilese","user":{"username":"Salem Ilese"}},
	{"id":102,"kind":"track","title":"PS5 (sped up)","permalink_url":"https://soundcloud.com/fan/ps5-sped-up","duration":150000,"user":{"username":"fan"}}
]}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("client_id") != "test-client" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/search":
			if r.URL.Query().Get("q") != "salem ilese - ps5" {
				t.Errorf("unexpected query: %q", r.URL.Query().Get("q"))
			}
			_, _ = w.Write([]byte(searchFixture))
		case "/tracks/101/albums":
			_, _ = w.Write([]byte(`{"collection":[{"title":"PS5"},{"title":"  "}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestSearchParsesCollection(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	provider := NewProvider(Config{Endpoint: server.URL, ClientID: "test-client", Client: server.Client()})
	results, err := provider.Search(context.Background(), "salem ilese - ps5", 20)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	first := results[0]
	if first.ID != "101" || first.Kind != domain.KindTrack || first.Duration != 190 || first.Artist != "Salem Ilese" || !first.Verified {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if results[1].Kind != "user" {
		t.Fatalf("non-track kinds must be passed through: %+v", results[1])
	}
	if results[2].Duration != 150 {
		t.Fatalf("duration should fall back to the preview length: %+v", results[2])
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	provider := NewProvider(Config{Endpoint: server.URL, ClientID: "test-client", Client: server.Client()})
	results, err := provider.Search(context.Background(), "salem ilese - ps5", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestAlbumsFor(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	provider := NewProvider(Config{Endpoint: server.URL, ClientID: "test-client", Client: server.Client()})
	albums, err := provider.AlbumsFor(context.Background(), "101")
	if err != nil {
		t.Fatalf("albums: %v", err)
	}
	if len(albums) != 1 || albums[0] != "PS5" {
		t.Fatalf("unexpected albums: %v", albums)
	}
}

func TestSearchWithoutClientID(t *testing.T) {
	provider := NewProvider(Config{})
	if provider.Info().Enabled {
		t.Fatal("provider without client id must report disabled")
	}
	if _, err := provider.Search(context.Background(), "ps5", 20); err == nil {
		t.Fatal("expected error without client id")
	}
}

func TestSearchUpstreamError(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	provider := NewProvider(Config{Endpoint: server.URL, ClientID: "wrong", Client: server.Client()})
	if _, err := provider.Search(context.Background(), "ps5", 20); err == nil {
		t.Fatal("expected error for unauthorized response")
	}
}
