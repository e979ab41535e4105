package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"trackmatch/internal/domain"
	"trackmatch/internal/resolver"
)

type ResolveService interface {
	Resolve(ctx context.Context, request domain.ResolveRequest) (domain.ResolveResponse, error)
	ResolveBatch(ctx context.Context, request domain.BatchRequest) (domain.BatchResponse, error)
	ResolveBatchStream(ctx context.Context, request domain.BatchRequest) (<-chan domain.BatchItem, error)
	History(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
	Providers() []domain.ProviderInfo
	ProviderDiagnostics() []domain.ProviderDiagnostics
}

type Server struct {
	resolver       ResolveService
	logger         *slog.Logger
	rateLimitRPS   float64
	rateLimitBurst int
}

const (
	maxBatchSize    = 500
	maxRequestBytes = 1 << 20
)

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRateLimit caps inbound requests globally; rps <= 0 disables the limit.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		s.rateLimitRPS = rps
		s.rateLimitBurst = burst
	}
}

func NewServer(resolveService ResolveService, options ...ServerOption) *Server {
	server := &Server{
		resolver:       resolveService,
		logger:         slog.Default(),
		rateLimitRPS:   50,
		rateLimitBurst: 100,
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/resolve/providers", s.handleProviders)
	mux.HandleFunc("/resolve/providers/health", s.handleProvidersHealth)
	mux.HandleFunc("/resolve/batch", s.handleResolveBatch)
	mux.HandleFunc("/resolve/history", s.handleHistory)
	mux.HandleFunc("/resolve/ws", s.handleResolveWS)
	mux.HandleFunc("/resolve", s.handleResolve)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "trackmatch",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateLimitRPS, s.rateLimitBurst, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/resolve" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.resolver == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "resolver is not configured")
		return
	}

	var request domain.ResolveRequest
	if err := decodeJSONBody(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := validateOptions(request.Options); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	response, err := s.resolver.Resolve(r.Context(), request)
	if err != nil {
		s.logger.Warn("resolve request failed",
			slog.String("song", truncate(request.Song.DisplayName(), 80)),
			slog.Any("providers", request.Providers),
			slog.String("error", err.Error()),
		)
		s.writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleResolveBatch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/resolve/batch" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.resolver == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "resolver is not configured")
		return
	}

	var request domain.BatchRequest
	if err := decodeJSONBody(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := validateBatch(request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	response, err := s.resolver.ResolveBatch(r.Context(), request)
	if err != nil {
		s.logger.Warn("batch request failed",
			slog.Int("songs", len(request.Songs)),
			slog.String("error", err.Error()),
		)
		s.writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/resolve/history" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.resolver == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "resolver is not configured")
		return
	}
	limit, err := parsePositiveInt(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
		return
	}

	items, err := s.resolver.History(r.Context(), limit)
	if err != nil {
		if errors.Is(err, resolver.ErrHistoryDisabled) {
			writeError(w, http.StatusServiceUnavailable, "history_disabled", err.Error())
			return
		}
		s.logger.Warn("history request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "history lookup failed")
		return
	}
	if items == nil {
		items = []domain.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/resolve/providers" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.resolver == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "resolver is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": s.resolver.Providers(),
	})
}

func (s *Server) handleProvidersHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/resolve/providers/health" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.resolver == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "resolver is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"checkedAt": time.Now().UTC(),
		"items":     s.resolver.ProviderDiagnostics(),
	})
}

func (s *Server) writeResolveError(w http.ResponseWriter, err error) {
	status, code, message := classifyResolveError(err)
	writeError(w, status, code, message)
}

func classifyResolveError(err error) (int, string, string) {
	switch {
	case errors.Is(err, resolver.ErrInvalidSong),
		errors.Is(err, resolver.ErrEmptyBatch),
		errors.Is(err, resolver.ErrUnknownProvider):
		return http.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, resolver.ErrNoProviders):
		return http.StatusServiceUnavailable, "service_unavailable", err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout", "resolution timed out"
	case errors.Is(err, resolver.ErrAllProvidersFailed):
		return http.StatusBadGateway, "provider_unavailable", err.Error()
	default:
		return http.StatusInternalServerError, "internal_error", "resolution failed"
	}
}

func validateOptions(options domain.MatchOptions) error {
	if options.MinScore != nil && (*options.MinScore < 0 || *options.MinScore > 100) {
		return errors.New("minScore must be between 0 and 100")
	}
	return nil
}

func validateBatch(request domain.BatchRequest) error {
	if len(request.Songs) == 0 {
		return resolver.ErrEmptyBatch
	}
	if len(request.Songs) > maxBatchSize {
		return fmt.Errorf("batch too large (max %d songs)", maxBatchSize)
	}
	if request.Workers < 0 {
		return errors.New("workers must not be negative")
	}
	return validateOptions(request.Options)
}

func decodeJSONBody(r *http.Request, dest any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func parsePositiveInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, errors.New("invalid value")
	}
	return parsed, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
