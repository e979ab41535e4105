package app

import (
	"log/slog"
	"testing"
	"time"

	"trackmatch/internal/resolver"
)

func TestBuildProvidersOrder(t *testing.T) {
	providers, err := BuildProviders(Config{AudioProviders: []string{"soundcloud", "ytmusic"}, ProviderTimeout: time.Second})
	if err != nil {
		t.Fatalf("BuildProviders: %v", err)
	}
	got := make([]string, 0, len(providers))
	for _, provider := range providers {
		got = append(got, provider.Name())
	}
	want := []string{"soundcloud", "ytmusic", "youtube"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestBuildProvidersUnknown(t *testing.T) {
	if _, err := BuildProviders(Config{AudioProviders: []string{"napster"}}); err == nil {
		t.Fatal("expected error for an unknown provider")
	}
}

func TestServiceOptionsWireChainAndAliases(t *testing.T) {
	cfg := Config{
		AudioProviders:  []string{"youtube", "ytmusic"},
		FilterResults:   true,
		MinScore:        80,
		ProviderTimeout: time.Second,
		CacheTTL:        time.Hour,
	}
	providers, err := BuildProviders(cfg)
	if err != nil {
		t.Fatalf("BuildProviders: %v", err)
	}
	service := resolver.NewService(providers, time.Second, ServiceOptions(cfg, slog.Default())...)

	infos := service.Providers()
	if len(infos) != 3 {
		t.Fatalf("expected 3 providers, got %+v", infos)
	}
	for _, info := range infos {
		if info.Name == "soundcloud" && info.Enabled {
			t.Fatal("soundcloud without a client id must be disabled")
		}
	}
}

func TestRetryConfigOverlaysDefaults(t *testing.T) {
	defaults := resolver.DefaultRetryConfig()
	if got := retryConfig(Config{}); got != defaults {
		t.Fatalf("empty config should keep defaults, got %+v", got)
	}
	got := retryConfig(Config{RetryAttempts: 1, RetryDelay: 50 * time.Millisecond})
	if got.MaxAttempts != 1 || got.InitialDelay != 50*time.Millisecond || got.MaxDelay != defaults.MaxDelay {
		t.Fatalf("unexpected retry config: %+v", got)
	}
}
