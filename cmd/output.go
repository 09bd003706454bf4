package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/s0up4200/ptpapi/ptp"
)

// Output formats
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func validateOutputFormat(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	}
	return fmt.Errorf("invalid output format %q (must be table, json or yaml)", format)
}

// renderStructured writes v as JSON or YAML. It reports false for table
// output so the caller renders its own table.
func renderStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case outputJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(v); err != nil {
			return true, fmt.Errorf("failed to encode JSON: %w", err)
		}
		return true, nil
	case outputYAML:
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		if err := encoder.Encode(v); err != nil {
			return true, fmt.Errorf("failed to encode YAML: %w", err)
		}
		return true, nil
	}
	return false, nil
}

func renderMovies(w io.Writer, movies []ptp.Movie) {
	if len(movies) == 0 {
		_, _ = io.WriteString(w, "No movies found.\n")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Group", "Title", "Year", "IMDb", "Torrents", "Seeders")

	for _, movie := range movies {
		seeders := 0
		for _, t := range movie.Torrents {
			seeders += int(t.Seeders)
		}
		if seeders == 0 {
			seeders = int(movie.TotalSeeders)
		}

		_ = table.Append([]string{
			movie.MovieID(),
			truncate(movie.DisplayTitle(), 48),
			string(movie.Year),
			imdbLabel(string(movie.ImdbID)),
			strconv.Itoa(len(movie.Torrents)),
			strconv.Itoa(seeders),
		})
	}

	_ = table.Render()
}

func renderTorrents(w io.Writer, torrents []ptp.Torrent) {
	if len(torrents) == 0 {
		_, _ = io.WriteString(w, "No torrents.\n")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "Release", "Codec", "Container", "Source", "Resolution", "Size", "S/L", "Flags")

	for _, t := range torrents {
		_ = table.Append([]string{
			string(t.ID),
			truncate(t.ReleaseName, 60),
			t.Codec,
			t.Container,
			t.Source,
			t.Resolution,
			humanSize(int64(t.Size)),
			fmt.Sprintf("%d/%d", t.Seeders, t.Leechers),
			torrentFlags(t),
		})
	}

	_ = table.Render()
}

func renderProperties(w io.Writer, rows [][2]string) {
	table := tablewriter.NewWriter(w)
	table.Header("Property", "Value")
	for _, row := range rows {
		_ = table.Append([]string{row[0], row[1]})
	}
	_ = table.Render()
}

func torrentFlags(t ptp.Torrent) string {
	var flags []string
	if t.GoldenPopcorn {
		flags = append(flags, "GP")
	}
	if t.Checked {
		flags = append(flags, "checked")
	}
	if t.Scene {
		flags = append(flags, "scene")
	}
	if t.FreeleechType != "" {
		flags = append(flags, strings.ToLower(t.FreeleechType))
	}
	return strings.Join(flags, ",")
}

func imdbLabel(id string) string {
	if id == "" || id == "0" {
		return ""
	}
	return "tt" + strings.TrimPrefix(id, "tt")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
