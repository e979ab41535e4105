package matching

import (
	"math"
	"testing"

	"trackmatch/internal/domain"
)

func singleArtistSong(album string, duration float64) domain.Song {
	return domain.Song{Name: "PS5", Artists: []string{"Salem Ilese"}, AlbumName: album, Duration: duration}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestTimeMatch(t *testing.T) {
	if got, ok := TimeMatch(200, 200); !ok || got != 100 {
		t.Fatalf("equal durations: got %v ok=%v", got, ok)
	}
	if got, ok := TimeMatch(210, 200); !ok || !approx(got, 50) {
		t.Fatalf("10s off a 200s song: got %v ok=%v", got, ok)
	}
	if _, ok := TimeMatch(210, 0); ok {
		t.Fatal("expected no time match without a song duration")
	}
}

func TestTimeMatchDecreasesWithDelta(t *testing.T) {
	prev := math.Inf(1)
	for delta := 0.0; delta <= 60; delta += 5 {
		score, _ := TimeMatch(200+delta, 200)
		if score > prev {
			t.Fatalf("time match increased at delta %v: %v > %v", delta, score, prev)
		}
		prev = score
	}
}

func TestScoreArtistAndTime(t *testing.T) {
	candidates := []domain.Candidate{
		{Name: "PS5", Kind: domain.KindTrack, Link: "https://a", Artist: "SalemIlese", Duration: 210},
	}
	scores, evaluations := Evaluate(candidates, singleArtistSong("", 200))
	got, ok := scores.Get("https://a")
	if !ok || !approx(got, 70) {
		t.Fatalf("expected composite 70, got %v ok=%v", got, ok)
	}
	eval := evaluations[0]
	if !approx(eval.ArtistMatch, 90) || !approx(eval.TimeMatch, 50) || eval.AlbumUsed {
		t.Fatalf("unexpected breakdown: %+v", eval)
	}
}

func TestScoreIncludesMatchingAlbum(t *testing.T) {
	candidates := []domain.Candidate{
		{Name: "PS5", Kind: domain.KindTrack, Link: "https://a", Album: "PS5 Album", Artist: "SalemIlese", Duration: 210},
	}
	got, _ := Score(candidates, singleArtistSong("PS5 Album", 200)).Get("https://a")
	if !approx(got, 80) {
		t.Fatalf("expected composite 80, got %v", got)
	}
}

func TestScoreSkipsDefaultedAlbum(t *testing.T) {
	candidates := []domain.Candidate{
		{Name: "PS5", Kind: domain.KindTrack, Link: "https://a", Album: "PS5", Artist: "SalemIlese", Duration: 210},
	}
	scores, evaluations := Evaluate(candidates, singleArtistSong("Something Else", 200))
	got, _ := scores.Get("https://a")
	if !approx(got, 70) {
		t.Fatalf("expected album to be left out, got %v", got)
	}
	if evaluations[0].AlbumUsed {
		t.Fatal("defaulted album must not be used")
	}
}

func TestScoreWithoutSongDuration(t *testing.T) {
	candidates := []domain.Candidate{
		{Name: "PS5", Kind: domain.KindTrack, Link: "https://a", Artist: "SalemIlese", Duration: 500},
	}
	scores, evaluations := Evaluate(candidates, singleArtistSong("", 0))
	got, _ := scores.Get("https://a")
	if !approx(got, 90) {
		t.Fatalf("expected artist-only score 90, got %v", got)
	}
	if evaluations[0].TimeUsed {
		t.Fatal("time match must be skipped without a song duration")
	}
}

func TestScoreRejectsWithoutCommonWord(t *testing.T) {
	candidates := []domain.Candidate{
		{Name: "Completely Different", Kind: domain.KindTrack, Link: "https://a", Artist: "Salem Ilese", Duration: 200},
	}
	scores, evaluations := Evaluate(candidates, singleArtistSong("", 200))
	if scores.Len() != 0 {
		t.Fatalf("expected empty score map, got %d entries", scores.Len())
	}
	if evaluations[0].Rejected != domain.RejectNoCommonWord {
		t.Fatalf("unexpected rejection: %q", evaluations[0].Rejected)
	}
}

func TestScoreRejectsWeakArtist(t *testing.T) {
	candidates := []domain.Candidate{
		{Name: "PS5", Kind: domain.KindTrack, Link: "https://a", Artist: "Zzzz", Duration: 200},
	}
	scores, evaluations := Evaluate(candidates, singleArtistSong("", 200))
	if scores.Len() != 0 {
		t.Fatalf("expected empty score map, got %d entries", scores.Len())
	}
	if evaluations[0].Rejected != domain.RejectWeakArtist {
		t.Fatalf("unexpected rejection: %q", evaluations[0].Rejected)
	}
}

func TestScoreArtistFromTitleFallback(t *testing.T) {
	candidates := []domain.Candidate{
		{Name: "Salem Ilese - PS5", Kind: domain.KindTrack, Link: "https://a", Artist: "XYZ", Duration: 200},
	}
	scores, evaluations := Evaluate(candidates, singleArtistSong("", 200))
	got, ok := scores.Get("https://a")
	if !ok || got != 100 {
		t.Fatalf("expected 100 via title fallback, got %v ok=%v", got, ok)
	}
	if evaluations[0].PerfectArtist {
		t.Fatal("title fallback must not short-circuit")
	}
}

func TestScorePerfectArtistShortCircuits(t *testing.T) {
	candidates := []domain.Candidate{
		{Name: "PS5", Kind: domain.KindTrack, Link: "https://first", Artist: "SalemIlese", Duration: 200},
		{Name: "PS5", Kind: domain.KindTrack, Link: "https://perfect", Artist: "Alan Walker", Duration: 260},
		{Name: "PS5", Kind: domain.KindTrack, Link: "https://after", Artist: "Salem Ilese", Duration: 200},
	}
	song := ps5Song()
	scores, evaluations := Evaluate(candidates, song)
	entries := scores.Entries()
	if len(entries) != 1 || entries[0].Link != "https://perfect" || entries[0].Score != 100 {
		t.Fatalf("unexpected short-circuit result: %+v", entries)
	}
	if len(evaluations) != 2 || !evaluations[1].PerfectArtist {
		t.Fatalf("evaluation should stop at the perfect candidate: %+v", evaluations)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	candidates := []domain.Candidate{
		{Name: "PS5", Kind: domain.KindTrack, Link: "https://a", Artist: "SalemIlese", Duration: 210},
		{Name: "PS5 (Remix)", Kind: domain.KindTrack, Link: "https://b", Artist: "Salem Ilese Fan", Duration: 195},
	}
	song := singleArtistSong("", 200)
	first := Score(candidates, song).Entries()
	second := Score(candidates, song).Entries()
	if len(first) != len(second) {
		t.Fatalf("entry count changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("entry %d changed: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestEvaluateFeaturedArtistUpload(t *testing.T) {
	song := domain.Song{Name: "PS5", Artists: []string{"Alan Walker", "salem ilese"}, Duration: 166}
	candidates := []domain.Candidate{
		{Name: "Blinding Lights", Kind: domain.KindTrack, Link: "https://unrelated", Artist: "The Weeknd", Duration: 200},
		{Name: "PS5 (feat. Alan Walker)", Kind: domain.KindTrack, Link: "https://featured", Artist: "salemilese", Duration: 166},
	}

	scores, evaluations := Evaluate(candidates, song)
	if len(evaluations) != 2 || evaluations[0].Rejected != domain.RejectNoCommonWord {
		t.Fatalf("unrelated upload should be rejected for sharing no word: %+v", evaluations)
	}
	featured := evaluations[1]
	if featured.Rejected != "" || featured.PerfectArtist || !featured.TimeUsed || featured.TimeMatch != 100 {
		t.Fatalf("unexpected evaluation: %+v", featured)
	}
	if featured.Score <= 80 {
		t.Fatalf("expected a score above 80, got %v", featured.Score)
	}

	selection, ok := Select(scores, DefaultMinScore)
	if !ok || selection.Link != "https://featured" || !selection.Accepted {
		t.Fatalf("unexpected selection: %+v", selection)
	}
}
