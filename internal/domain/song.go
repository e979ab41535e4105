package domain

import "strings"

// Song is the catalog metadata a resolution is performed for. It is read-only
// to the matching engine.
type Song struct {
	Name        string   `json:"name"`
	Artists     []string `json:"artists"`
	Artist      string   `json:"artist,omitempty"`
	AlbumName   string   `json:"albumName,omitempty"`
	AlbumArtist string   `json:"albumArtist,omitempty"`
	Duration    float64  `json:"duration"`
	Year        int      `json:"year,omitempty"`
	TrackNumber int      `json:"trackNumber,omitempty"`
	ISRC        string   `json:"isrc,omitempty"`
	DownloadURL string   `json:"downloadUrl,omitempty"`
}

// PrimaryArtist returns Artist, falling back to the first entry of Artists.
func (s Song) PrimaryArtist() string {
	if artist := strings.TrimSpace(s.Artist); artist != "" {
		return artist
	}
	for _, artist := range s.Artists {
		if artist = strings.TrimSpace(artist); artist != "" {
			return artist
		}
	}
	return ""
}

// AllArtists returns the artist list with Artist prepended when the list is empty.
func (s Song) AllArtists() []string {
	artists := make([]string, 0, len(s.Artists)+1)
	for _, artist := range s.Artists {
		if artist = strings.TrimSpace(artist); artist != "" {
			artists = append(artists, artist)
		}
	}
	if len(artists) == 0 {
		if artist := strings.TrimSpace(s.Artist); artist != "" {
			artists = append(artists, artist)
		}
	}
	return artists
}

// DisplayName is the "artists - title" form used in logs and as the default query.
func (s Song) DisplayName() string {
	artists := strings.Join(s.AllArtists(), ", ")
	if artists == "" {
		return strings.TrimSpace(s.Name)
	}
	return artists + " - " + strings.TrimSpace(s.Name)
}
