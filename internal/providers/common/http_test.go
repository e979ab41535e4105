package common

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetSendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "trackmatch-test" {
			t.Errorf("missing user agent: %q", r.Header.Get("User-Agent"))
		}
		if _, ok := r.Header["Accept"]; ok {
			t.Errorf("empty header values must not be sent")
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer server.Close()

	body, err := Get(context.Background(), server.Client(), server.URL, map[string]string{
		"User-Agent": "trackmatch-test",
		"Accept":     "",
	})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(body) != "ok" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestGetStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := Get(context.Background(), server.Client(), server.URL, nil)
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected HTTPStatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests || statusErr.Body != "slow down" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}
