package matching

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"trackmatch/internal/domain"
)

var (
	templateFieldPattern = regexp.MustCompile(`\{([A-Za-z0-9_-]+)\}`)
	// Uploads often prefix the title with "artist - " and append "(official video)"-style
	// annotations; both are cut for the second search.
	strippedQueryPattern = regexp.MustCompile(`^(.+?)-|(\(\w+[\s\S]*\))`)
)

// BuildQuery renders template against song, or falls back to "artists - title".
// Unknown or missing fields render empty; the result is lowercase.
func BuildQuery(song domain.Song, template string) string {
	if strings.TrimSpace(template) == "" {
		return strings.ToLower(song.DisplayName())
	}
	rendered := templateFieldPattern.ReplaceAllStringFunc(template, func(token string) string {
		return templateValue(song, strings.ToLower(strings.Trim(token, "{}")))
	})
	return strings.ToLower(strings.Join(strings.Fields(rendered), " "))
}

func templateValue(song domain.Song, field string) string {
	switch field {
	case "title", "name":
		return song.Name
	case "artists":
		return strings.Join(song.AllArtists(), ", ")
	case "artist":
		return song.PrimaryArtist()
	case "album":
		return song.AlbumName
	case "album-artist", "album_artist":
		return song.AlbumArtist
	case "year":
		if song.Year > 0 {
			return strconv.Itoa(song.Year)
		}
	case "isrc":
		return song.ISRC
	case "track-number", "track_number":
		if song.TrackNumber > 0 {
			return fmt.Sprintf("%02d", song.TrackNumber)
		}
	case "duration":
		if song.Duration > 0 {
			return strconv.Itoa(int(song.Duration))
		}
	}
	return ""
}

// StripQuery removes a leading "name -" segment and parenthesized annotations.
func StripQuery(query string) string {
	return strings.Join(strings.Fields(strippedQueryPattern.ReplaceAllString(query, "")), " ")
}
