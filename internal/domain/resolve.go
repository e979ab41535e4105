package domain

import "time"

// MatchOptions are the caller-tunable knobs of the matching engine.
type MatchOptions struct {
	SearchQuery   string   `json:"searchQuery,omitempty"`
	FilterResults *bool    `json:"filterResults,omitempty"`
	MinScore      *float64 `json:"minScore,omitempty"`
}

type ResolveRequest struct {
	Song      Song         `json:"song"`
	Providers []string     `json:"providers,omitempty"`
	Options   MatchOptions `json:"options"`
	NoCache   bool         `json:"noCache,omitempty"`
}

type ProviderAttempt struct {
	Provider  string  `json:"provider"`
	OK        bool    `json:"ok"`
	Found     bool    `json:"found"`
	Score     float64 `json:"score,omitempty"`
	Error     string  `json:"error,omitempty"`
	ElapsedMS int64   `json:"elapsedMs"`
}

type ResolveResponse struct {
	ID        string            `json:"id,omitempty"`
	Song      Song              `json:"song"`
	Match     Match             `json:"match"`
	Attempts  []ProviderAttempt `json:"attempts"`
	Cached    bool              `json:"cached,omitempty"`
	ElapsedMS int64             `json:"elapsedMs"`
}

type BatchRequest struct {
	Songs     []Song       `json:"songs"`
	Providers []string     `json:"providers,omitempty"`
	Options   MatchOptions `json:"options"`
	Workers   int          `json:"workers,omitempty"`
	NoCache   bool         `json:"noCache,omitempty"`
}

// BatchItem is the per-song outcome of a batch. Error is set instead of
// Response when the song could not be resolved at all.
type BatchItem struct {
	Index    int              `json:"index"`
	Response *ResolveResponse `json:"response,omitempty"`
	Error    string           `json:"error,omitempty"`
}

type BatchResponse struct {
	ID        string      `json:"id"`
	Items     []BatchItem `json:"items"`
	Found     int         `json:"found"`
	Failed    int         `json:"failed"`
	ElapsedMS int64       `json:"elapsedMs"`
}

type ProviderInfo struct {
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Kind    string   `json:"kind"`
	Aliases []string `json:"aliases,omitempty"`
	Enabled bool     `json:"enabled"`
}

type ProviderDiagnostics struct {
	Name                string     `json:"name"`
	Label               string     `json:"label"`
	Kind                string     `json:"kind"`
	Enabled             bool       `json:"enabled"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	BlockedUntil        *time.Time `json:"blockedUntil,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs,omitempty"`
	LastTimeout         bool       `json:"lastTimeout,omitempty"`
	LastQuery           string     `json:"lastQuery,omitempty"`
	TotalRequests       int64      `json:"totalRequests,omitempty"`
	TotalFailures       int64      `json:"totalFailures,omitempty"`
	TimeoutCount        int64      `json:"timeoutCount,omitempty"`
}

// HistoryEntry is one persisted resolution.
type HistoryEntry struct {
	ID        string    `json:"id" bson:"_id"`
	Song      Song      `json:"song" bson:"song"`
	Provider  string    `json:"provider,omitempty" bson:"provider,omitempty"`
	Link      string    `json:"link,omitempty" bson:"link,omitempty"`
	Score     float64   `json:"score" bson:"score"`
	Accepted  bool      `json:"accepted" bson:"accepted"`
	Found     bool      `json:"found" bson:"found"`
	Method    string    `json:"method,omitempty" bson:"method,omitempty"`
	ElapsedMS int64     `json:"elapsedMs" bson:"elapsedMs"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}
