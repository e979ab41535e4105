package domain

import "time"

// KindTrack marks a raw result that points at playable audio.
const KindTrack = "track"

// RawResult is one search hit as a backend shaped it, before normalization.
type RawResult struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Kind     string  `json:"kind"`
	Link     string  `json:"link"`
	Album    string  `json:"album,omitempty"`
	Duration float64 `json:"duration"`
	Artist   string  `json:"artist,omitempty"`
	Verified bool    `json:"verified,omitempty"`
}

// Candidate is a normalized search result. An empty Album means unknown.
type Candidate struct {
	Name     string  `json:"name"`
	Kind     string  `json:"kind"`
	Link     string  `json:"link"`
	Album    string  `json:"album,omitempty"`
	Duration float64 `json:"duration"`
	Artist   string  `json:"artist,omitempty"`
	Verified bool    `json:"verified,omitempty"`
}

// HasAlbum reports whether the backend told us which album the track is on.
func (c Candidate) HasAlbum() bool {
	return c.Album != ""
}

// ScoredLink is one ScoreMap entry.
type ScoredLink struct {
	Link  string  `json:"link"`
	Score float64 `json:"score"`
}

// ScoreMap maps candidate links to composite scores. Entries keep the order in
// which their link was first written; a later write for the same link replaces
// the score in place.
type ScoreMap struct {
	order  []string
	scores map[string]float64
}

func NewScoreMap() *ScoreMap {
	return &ScoreMap{scores: make(map[string]float64)}
}

func (m *ScoreMap) Set(link string, score float64) {
	if m.scores == nil {
		m.scores = make(map[string]float64)
	}
	if _, exists := m.scores[link]; !exists {
		m.order = append(m.order, link)
	}
	m.scores[link] = score
}

func (m *ScoreMap) Get(link string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	score, ok := m.scores[link]
	return score, ok
}

func (m *ScoreMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Entries returns the entries in insertion order.
func (m *ScoreMap) Entries() []ScoredLink {
	if m == nil {
		return nil
	}
	entries := make([]ScoredLink, 0, len(m.order))
	for _, link := range m.order {
		entries = append(entries, ScoredLink{Link: link, Score: m.scores[link]})
	}
	return entries
}

// Rejection reasons recorded on an Evaluation.
const (
	RejectNoCommonWord = "no-common-word"
	RejectWeakArtist   = "weak-artist"
)

// Evaluation explains how one candidate was scored.
type Evaluation struct {
	Candidate     Candidate `json:"candidate"`
	ArtistMatch   float64   `json:"artistMatch"`
	AlbumMatch    float64   `json:"albumMatch"`
	AlbumUsed     bool      `json:"albumUsed"`
	TimeMatch     float64   `json:"timeMatch"`
	TimeUsed      bool      `json:"timeUsed"`
	Score         float64   `json:"score"`
	PerfectArtist bool      `json:"perfectArtist,omitempty"`
	Rejected      string    `json:"rejected,omitempty"`
}

// Match is the outcome of one resolution. Found is false for "no match".
type Match struct {
	Found       bool          `json:"found"`
	Link        string        `json:"link,omitempty"`
	Score       float64       `json:"score"`
	Accepted    bool          `json:"accepted"`
	Provider    string        `json:"provider,omitempty"`
	Query       string        `json:"query,omitempty"`
	Method      string        `json:"method,omitempty"`
	Candidates  int           `json:"candidates"`
	Ranked      []ScoredLink  `json:"ranked,omitempty"`
	Evaluations []Evaluation  `json:"evaluations,omitempty"`
	Elapsed     time.Duration `json:"-"`
}

// Resolution methods recorded on a Match.
const (
	MethodDownloadURL = "download-url"
	MethodISRC        = "isrc"
	MethodScored      = "scored"
	MethodUnfiltered  = "unfiltered"
)
