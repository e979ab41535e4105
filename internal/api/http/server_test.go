package apihttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"trackmatch/internal/domain"
	"trackmatch/internal/resolver"
)

type fakeResolveService struct {
	lastRequest domain.ResolveRequest
	lastBatch   domain.BatchRequest
	resolveErr  error
	history     []domain.HistoryEntry
	historyErr  error
	lastLimit   int
	callCount   int
}

func (f *fakeResolveService) Resolve(ctx context.Context, request domain.ResolveRequest) (domain.ResolveResponse, error) {
	_ = ctx
	f.callCount++
	f.lastRequest = request
	if f.resolveErr != nil {
		return domain.ResolveResponse{}, f.resolveErr
	}
	return domain.ResolveResponse{
		ID:   "r-1",
		Song: request.Song,
		Match: domain.Match{
			Found:    true,
			Accepted: true,
			Provider: "ytmusic",
			Link:     "https://youtube.com/watch?v=abc",
			Score:    95,
		},
		ElapsedMS: 3,
	}, nil
}

func (f *fakeResolveService) ResolveBatch(ctx context.Context, request domain.BatchRequest) (domain.BatchResponse, error) {
	_ = ctx
	f.callCount++
	f.lastBatch = request
	items := make([]domain.BatchItem, 0, len(request.Songs))
	for i, song := range request.Songs {
		items = append(items, domain.BatchItem{Index: i, Response: &domain.ResolveResponse{Song: song}})
	}
	return domain.BatchResponse{ID: "b-1", Items: items}, nil
}

func (f *fakeResolveService) ResolveBatchStream(ctx context.Context, request domain.BatchRequest) (<-chan domain.BatchItem, error) {
	_ = ctx
	f.callCount++
	f.lastBatch = request
	ch := make(chan domain.BatchItem, len(request.Songs))
	for i, song := range request.Songs {
		ch <- domain.BatchItem{Index: i, Response: &domain.ResolveResponse{Song: song}}
	}
	close(ch)
	return ch, nil
}

func (f *fakeResolveService) History(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	_ = ctx
	f.lastLimit = limit
	return f.history, f.historyErr
}

func (f *fakeResolveService) Providers() []domain.ProviderInfo {
	return []domain.ProviderInfo{
		{Name: "soundcloud", Label: "SoundCloud", Kind: "api", Aliases: []string{"sc"}},
		{Name: "ytmusic", Label: "YouTube Music", Kind: "api", Enabled: true},
	}
}

func (f *fakeResolveService) ProviderDiagnostics() []domain.ProviderDiagnostics {
	return []domain.ProviderDiagnostics{
		{Name: "ytmusic", Label: "YouTube Music", Kind: "api", Enabled: true, LastLatencyMS: 120},
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v (%s)", err, rec.Body.String())
	}
	return payload.Error.Code, payload.Error.Message
}

func TestHealth(t *testing.T) {
	server := NewServer(&fakeResolveService{})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestResolveEndpoint(t *testing.T) {
	service := &fakeResolveService{}
	server := NewServer(service)

	body := `{"song":{"name":"PS5","artists":["Salem Ilese"],"duration":190},"providers":["yt","sc"],"options":{"filterResults":false,"minScore":70}}`
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/resolve", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
	}
	if service.lastRequest.Song.Name != "PS5" || len(service.lastRequest.Providers) != 2 {
		t.Fatalf("unexpected request: %+v", service.lastRequest)
	}
	options := service.lastRequest.Options
	if options.FilterResults == nil || *options.FilterResults || options.MinScore == nil || *options.MinScore != 70 {
		t.Fatalf("options not decoded: %+v", options)
	}

	var response domain.ResolveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !response.Match.Found || response.Match.Link != "https://youtube.com/watch?v=abc" {
		t.Fatalf("unexpected response: %+v", response)
	}
}

func TestResolveEndpointValidation(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"malformed json", http.MethodPost, `{"song":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, `{"song":{"name":"x"},"bogus":1}`, http.StatusBadRequest},
		{"min score out of range", http.MethodPost, `{"song":{"name":"x"},"options":{"minScore":150}}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			service := &fakeResolveService{}
			rec := httptest.NewRecorder()
			NewServer(service).Handler().ServeHTTP(rec, httptest.NewRequest(tc.method, "/resolve", strings.NewReader(tc.body)))
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, rec.Code, rec.Body.String())
			}
			if service.callCount != 0 {
				t.Fatal("service must not be called for invalid requests")
			}
		})
	}
}

func TestResolveEndpointErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{resolver.ErrInvalidSong, http.StatusBadRequest, "invalid_request"},
		{fmt.Errorf("%w: napster", resolver.ErrUnknownProvider), http.StatusBadRequest, "invalid_request"},
		{resolver.ErrNoProviders, http.StatusServiceUnavailable, "service_unavailable"},
		{fmt.Errorf("%w: %w", resolver.ErrAllProvidersFailed, context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout"},
		{fmt.Errorf("%w: boom", resolver.ErrAllProvidersFailed), http.StatusBadGateway, "provider_unavailable"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range tests {
		t.Run(tc.code+"/"+tc.err.Error(), func(t *testing.T) {
			server := NewServer(&fakeResolveService{resolveErr: tc.err})
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/resolve", strings.NewReader(`{"song":{"name":"x"}}`)))
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if code, _ := decodeError(t, rec); code != tc.code {
				t.Fatalf("expected code %q, got %q", tc.code, code)
			}
		})
	}
}

func TestResolveBatchEndpoint(t *testing.T) {
	service := &fakeResolveService{}
	server := NewServer(service)

	body := `{"songs":[{"name":"PS5","artists":["Salem Ilese"]},{"name":"Yellow","artists":["Coldplay"]}],"workers":2}`
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/resolve/batch", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
	}
	var response domain.BatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(response.Items) != 2 || service.lastBatch.Workers != 2 {
		t.Fatalf("unexpected batch: %+v", response)
	}

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/resolve/batch", strings.NewReader(`{"songs":[]}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty batch should be rejected, got %d", rec.Code)
	}

	songs := make([]string, maxBatchSize+1)
	for i := range songs {
		songs[i] = `{"name":"x"}`
	}
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/resolve/batch", strings.NewReader(`{"songs":[`+strings.Join(songs, ",")+`]}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized batch should be rejected, got %d", rec.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	service := &fakeResolveService{history: []domain.HistoryEntry{{ID: "h-1", Link: "https://x"}}}
	server := NewServer(service)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resolve/history?limit=5", nil))
	if rec.Code != http.StatusOK || service.lastLimit != 5 || !strings.Contains(rec.Body.String(), `"h-1"`) {
		t.Fatalf("unexpected history response: %d %s (limit %d)", rec.Code, rec.Body.String(), service.lastLimit)
	}

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resolve/history?limit=-1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid limit should be rejected, got %d", rec.Code)
	}

	disabled := NewServer(&fakeResolveService{historyErr: resolver.ErrHistoryDisabled})
	rec = httptest.NewRecorder()
	disabled.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resolve/history", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without history, got %d", rec.Code)
	}
	if code, _ := decodeError(t, rec); code != "history_disabled" {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestProvidersEndpoints(t *testing.T) {
	server := NewServer(&fakeResolveService{})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resolve/providers", nil))
	var providers struct {
		Items []domain.ProviderInfo `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &providers); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(providers.Items) != 2 || providers.Items[0].Aliases[0] != "sc" {
		t.Fatalf("unexpected providers: %+v", providers.Items)
	}

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resolve/providers/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"checkedAt"`) || !strings.Contains(rec.Body.String(), `"lastLatencyMs":120`) {
		t.Fatalf("unexpected health: %s", rec.Body.String())
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	server := NewServer(&fakeResolveService{}, WithRateLimit(1, 1))
	handler := server.Handler()

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/resolve/providers", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/resolve/providers", nil))
	if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 200 then 429, got %d then %d", first.Code, second.Code)
	}
	if second.Header().Get("Retry-After") != "1" {
		t.Fatal("missing Retry-After header")
	}

	health := httptest.NewRecorder()
	handler.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	if health.Code != http.StatusOK {
		t.Fatalf("health must bypass the limiter, got %d", health.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := recoveryMiddleware(NewServer(nil).logger, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resolve", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestNormalizeRoute(t *testing.T) {
	tests := map[string]string{
		"/resolve":                  "/resolve",
		"/resolve/providers/health": "/resolve/providers/health",
		"/resolve/unknown":          "/other",
		"/":                         "/other",
	}
	for path, want := range tests {
		if got := normalizeRoute(path); got != want {
			t.Errorf("normalizeRoute(%q) = %q, want %q", path, got, want)
		}
	}
}

func dialResolveWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/resolve/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	resp.Body.Close()
	return conn
}

func readWSMessage(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ws message: %v", err)
	}
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal ws message: %v (raw: %s)", err, data)
	}
	return msg
}

func TestResolveWSStreamsItems(t *testing.T) {
	srv := httptest.NewServer(NewServer(&fakeResolveService{}).Handler())
	defer srv.Close()

	conn := dialResolveWS(t, srv)
	defer conn.Close()

	request := domain.BatchRequest{Songs: []domain.Song{{Name: "PS5"}, {Name: "Yellow"}}}
	if err := conn.WriteJSON(request); err != nil {
		t.Fatalf("write request: %v", err)
	}
	for i := 0; i < 2; i++ {
		if msg := readWSMessage(t, conn); msg.Type != "item" {
			t.Fatalf("expected item, got %+v", msg)
		}
	}
	done := readWSMessage(t, conn)
	if done.Type != "done" {
		t.Fatalf("expected done, got %+v", done)
	}
	data, ok := done.Data.(map[string]any)
	if !ok || data["count"] != float64(2) {
		t.Fatalf("unexpected done payload: %+v", done.Data)
	}
}

func TestResolveWSRejectsEmptyBatch(t *testing.T) {
	service := &fakeResolveService{}
	srv := httptest.NewServer(NewServer(service).Handler())
	defer srv.Close()

	conn := dialResolveWS(t, srv)
	defer conn.Close()

	if err := conn.WriteJSON(domain.BatchRequest{}); err != nil {
		t.Fatalf("write request: %v", err)
	}
	msg := readWSMessage(t, conn)
	if msg.Type != "error" {
		t.Fatalf("expected error, got %+v", msg)
	}
	if service.callCount != 0 {
		t.Fatal("service must not run an invalid batch")
	}
}
