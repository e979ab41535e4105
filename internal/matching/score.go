package matching

import (
	"strings"

	"trackmatch/internal/domain"
)

const (
	// Candidates whose artist similarity stays below this are dropped.
	minArtistMatch = 70.0
	// An artist score this low triggers the title fallback.
	weakArtistMatch = 30.0
	// Album names this similar to the track name are treated as single
	// defaults and left out of the average.
	defaultAlbumMatch = 95.0
	perfectMatch      = 100.0
	artistDivisor     = 1.0
)

// Score assigns a composite score to every acceptable candidate, keyed by link.
func Score(candidates []domain.Candidate, song domain.Song) *domain.ScoreMap {
	scores, _ := Evaluate(candidates, song)
	return scores
}

// Evaluate scores candidates like Score and also returns a breakdown for every
// candidate it looked at, rejected ones included. When a candidate's artist
// matches one of the song's artists exactly, evaluation stops and the returned
// map holds only that candidate with a score of 100.
func Evaluate(candidates []domain.Candidate, song domain.Song) (*domain.ScoreMap, []domain.Evaluation) {
	scores := domain.NewScoreMap()
	evaluations := make([]domain.Evaluation, 0, len(candidates))

	songWords := strings.Split(Slugify(song.Name), "-")
	songAlbum := song.AlbumName

	for _, candidate := range candidates {
		eval := domain.Evaluation{Candidate: candidate}

		if !hasCommonWord(songWords, Slugify(candidate.Name)) {
			eval.Rejected = domain.RejectNoCommonWord
			evaluations = append(evaluations, eval)
			continue
		}

		artist, perfect := artistMatch(song, candidate)
		eval.ArtistMatch = artist
		if perfect {
			eval.Score = perfectMatch
			eval.PerfectArtist = true
			evaluations = append(evaluations, eval)
			only := domain.NewScoreMap()
			only.Set(candidate.Link, perfectMatch)
			return only, evaluations
		}
		if artist < minArtistMatch {
			eval.Rejected = domain.RejectWeakArtist
			evaluations = append(evaluations, eval)
			continue
		}

		total, parts := artist, 1.0
		if candidate.HasAlbum() {
			eval.AlbumMatch = MatchPercentage(Slugify(candidate.Album), Slugify(songAlbum))
			defaulted := MatchPercentage(strings.ToLower(candidate.Album), strings.ToLower(candidate.Name)) > defaultAlbumMatch &&
				strings.ToLower(candidate.Album) != strings.ToLower(songAlbum)
			if !defaulted {
				eval.AlbumUsed = true
				total += eval.AlbumMatch
				parts++
			}
		}
		if timeScore, ok := TimeMatch(candidate.Duration, song.Duration); ok {
			eval.TimeMatch = timeScore
			eval.TimeUsed = true
			total += timeScore
			parts++
		}

		eval.Score = total / parts
		scores.Set(candidate.Link, eval.Score)
		evaluations = append(evaluations, eval)
	}
	return scores, evaluations
}

// TimeMatch is 100 at equal durations and falls off with the squared difference
// relative to the song length. It can go negative. ok is false when the song
// has no duration to compare against.
func TimeMatch(candidateDuration, songDuration float64) (score float64, ok bool) {
	if songDuration <= 0 {
		return 0, false
	}
	delta := candidateDuration - songDuration
	return 100 - (delta*delta)/songDuration*100, true
}

func hasCommonWord(songWords []string, candidateSlug string) bool {
	for _, word := range songWords {
		if word != "" && strings.Contains(candidateSlug, word) {
			return true
		}
	}
	return false
}

// artistMatch sums the similarity of each song artist to the candidate's
// uploader. A weak sum falls back to the primary artist vs the candidate title,
// since many uploads put the artist only in the title.
func artistMatch(song domain.Song, candidate domain.Candidate) (float64, bool) {
	candidateArtist := Slugify(candidate.Artist)
	sum := 0.0
	for _, artist := range song.AllArtists() {
		score := MatchPercentage(Slugify(artist), candidateArtist)
		if score >= perfectMatch {
			return perfectMatch, true
		}
		sum += score
	}
	if sum <= weakArtistMatch {
		if byTitle := MatchPercentage(Slugify(song.PrimaryArtist()), Slugify(candidate.Name)); byTitle > sum {
			sum = byTitle
		}
	}
	return sum / artistDivisor, false
}
