package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"trackmatch/internal/domain"
)

var errNoMatch = errors.New("no match found")

type resolveFlags struct {
	title       string
	artists     []string
	album       string
	albumArtist string
	duration    float64
	year        int
	trackNumber int
	isrc        string
	downloadURL string
	providers   []string
	query       string
	noFilter    bool
	minScore    float64
	jsonOutput  bool
	explain     bool
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var flags resolveFlags
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve one song to an audio link",
		Example: `  trackmatch resolve --title "PS5" --artist "Salem Ilese" --duration 190
  trackmatch resolve --title "Yellow" --artist Coldplay --provider yt --query "{artist} - {title} lyrics"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			request, err := flags.request()
			if err != nil {
				return err
			}
			service, err := ctx.newService(cmd)
			if err != nil {
				return err
			}
			response, err := service.Resolve(cmd.Context(), request)
			if err != nil {
				return err
			}

			if wantsJSON(cmd.OutOrStdout(), flags.jsonOutput) {
				if err := writeJSON(cmd, response); err != nil {
					return err
				}
			} else {
				renderResolve(cmd.OutOrStdout(), response, flags.explain)
			}
			if !response.Match.Found {
				return errNoMatch
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.title, "title", "t", "", "Song title (required)")
	cmd.Flags().StringArrayVarP(&flags.artists, "artist", "a", nil, "Artist, repeat for multiple artists")
	cmd.Flags().StringVar(&flags.album, "album", "", "Album name")
	cmd.Flags().StringVar(&flags.albumArtist, "album-artist", "", "Album artist")
	cmd.Flags().Float64VarP(&flags.duration, "duration", "d", 0, "Duration in seconds")
	cmd.Flags().IntVar(&flags.year, "year", 0, "Release year")
	cmd.Flags().IntVar(&flags.trackNumber, "track-number", 0, "Track number on the album")
	cmd.Flags().StringVar(&flags.isrc, "isrc", "", "ISRC code")
	cmd.Flags().StringVar(&flags.downloadURL, "download-url", "", "Use this link instead of searching")
	cmd.Flags().StringSliceVarP(&flags.providers, "provider", "p", nil, "Provider chain, in order (default from config)")
	cmd.Flags().StringVarP(&flags.query, "query", "q", "", "Search query template, e.g. \"{artist} - {title}\"")
	cmd.Flags().BoolVar(&flags.noFilter, "no-filter", false, "Take the first perfect score instead of ranking")
	cmd.Flags().Float64Var(&flags.minScore, "min-score", 0, "Acceptance threshold (default from config)")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print the full response as JSON")
	cmd.Flags().BoolVar(&flags.explain, "explain", false, "Show the per-candidate score breakdown")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func (f resolveFlags) request() (domain.ResolveRequest, error) {
	if strings.TrimSpace(f.title) == "" {
		return domain.ResolveRequest{}, errors.New("--title must not be empty")
	}
	if f.minScore < 0 || f.minScore > 100 {
		return domain.ResolveRequest{}, errors.New("--min-score must be between 0 and 100")
	}
	if f.duration < 0 {
		return domain.ResolveRequest{}, errors.New("--duration must not be negative")
	}

	request := domain.ResolveRequest{
		Song: domain.Song{
			Name:        strings.TrimSpace(f.title),
			Artists:     f.artists,
			AlbumName:   f.album,
			AlbumArtist: f.albumArtist,
			Duration:    f.duration,
			Year:        f.year,
			TrackNumber: f.trackNumber,
			ISRC:        f.isrc,
			DownloadURL: f.downloadURL,
		},
		Providers: f.providers,
		Options:   domain.MatchOptions{SearchQuery: f.query},
	}
	if f.noFilter {
		filter := false
		request.Options.FilterResults = &filter
	}
	if f.minScore > 0 {
		minScore := f.minScore
		request.Options.MinScore = &minScore
	}
	return request, nil
}

func renderResolve(w io.Writer, response domain.ResolveResponse, explain bool) {
	match := response.Match
	fmt.Fprintf(w, "Song:     %s\n", response.Song.DisplayName())
	if match.Found {
		status := "accepted"
		if !match.Accepted {
			status = "below threshold"
		}
		fmt.Fprintf(w, "Link:     %s\n", match.Link)
		fmt.Fprintf(w, "Score:    %s (%s)\n", formatScore(match.Score), status)
		fmt.Fprintf(w, "Provider: %s via %s\n", match.Provider, match.Method)
	} else {
		fmt.Fprintln(w, "Link:     no match")
	}
	if match.Query != "" {
		fmt.Fprintf(w, "Query:    %s\n", match.Query)
	}
	fmt.Fprintf(w, "Elapsed:  %dms\n", response.ElapsedMS)

	if len(response.Attempts) > 1 || (len(response.Attempts) == 1 && !response.Attempts[0].OK) {
		fmt.Fprintln(w)
		fmt.Fprintln(w, renderAttempts(response.Attempts))
	}
	if explain && len(match.Evaluations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, renderEvaluations(match.Evaluations))
	}
}

func renderAttempts(attempts []domain.ProviderAttempt) string {
	rows := make([][]string, 0, len(attempts))
	for _, attempt := range attempts {
		outcome := "no match"
		switch {
		case !attempt.OK:
			outcome = "error: " + attempt.Error
		case attempt.Found:
			outcome = "match " + formatScore(attempt.Score)
		}
		rows = append(rows, []string{attempt.Provider, outcome, strconv.FormatInt(attempt.ElapsedMS, 10) + "ms"})
	}
	return renderTable([]string{"Provider", "Outcome", "Elapsed"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight})
}

func renderEvaluations(evaluations []domain.Evaluation) string {
	rows := make([][]string, 0, len(evaluations))
	for _, evaluation := range evaluations {
		album := "-"
		if evaluation.AlbumUsed {
			album = formatScore(evaluation.AlbumMatch)
		}
		timing := "-"
		if evaluation.TimeUsed {
			timing = formatScore(evaluation.TimeMatch)
		}
		score := formatScore(evaluation.Score)
		if evaluation.Rejected != "" {
			score = evaluation.Rejected
		}
		rows = append(rows, []string{
			truncateCell(evaluation.Candidate.Name, 40),
			truncateCell(evaluation.Candidate.Artist, 24),
			formatScore(evaluation.ArtistMatch),
			album,
			timing,
			score,
		})
	}
	return renderTable(
		[]string{"Name", "Artist", "Artist %", "Album %", "Time %", "Score"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 1, 64)
}

func truncateCell(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
