package cmd

import (
	"context"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/s0up4200/ptpapi/ptp"
	"github.com/s0up4200/ptpapi/radarr"
)

var (
	wantedTag         string
	wantedUnavailable bool
	wantedFilter      string
)

var wantedCmd = &cobra.Command{
	Use:   "wanted",
	Short: "Check PassThePopcorn for movies Radarr is missing",
	Long: `List monitored Radarr movies that have no file and look each one up on
PassThePopcorn by IMDb id. With --filter the best matching torrent is shown.`,
	RunE: runWanted,
}

func init() {
	rootCmd.AddCommand(wantedCmd)

	wantedCmd.Flags().StringVar(&wantedTag, "tag", "", "only movies with this Radarr tag")
	wantedCmd.Flags().BoolVar(&wantedUnavailable, "include-unavailable", false, "include movies Radarr does not consider released")
	wantedCmd.Flags().StringVarP(&wantedFilter, "filter", "f", "", "filter expression or @name of a configured filter")
}

// wantedRow is the structured output of one wanted movie.
type wantedRow struct {
	Title       string `json:"title" yaml:"title"`
	Year        int    `json:"year" yaml:"year"`
	ImdbID      string `json:"imdbId" yaml:"imdbId"`
	Found       bool   `json:"found" yaml:"found"`
	GroupID     string `json:"groupId,omitempty" yaml:"groupId,omitempty"`
	TorrentID   string `json:"torrentId,omitempty" yaml:"torrentId,omitempty"`
	ReleaseName string `json:"releaseName,omitempty" yaml:"releaseName,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

func runWanted(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	f, err := resolveFilter(wantedFilter, appCfg.Filters)
	if err != nil {
		return err
	}

	client, err := radarr.NewClient(appCfg.Radarr, requestWait, logger)
	if err != nil {
		return err
	}

	wanted, err := client.WantedMovies(ctx, radarr.WantedOptions{
		Tag:                wantedTag,
		IncludeUnavailable: wantedUnavailable,
	})
	if err != nil {
		return err
	}

	results, err := client.SearchWanted(ctx, retryingSearcher{client: ptpClient}, wanted, f)
	if err != nil {
		return err
	}

	rows := make([]wantedRow, 0, len(results))
	for _, r := range results {
		row := wantedRow{
			Title:  r.Wanted.Title,
			Year:   r.Wanted.Year,
			ImdbID: r.Wanted.ImdbID,
			Found:  r.Found(),
		}
		if r.Movie != nil {
			row.GroupID = r.Movie.MovieID()
		}
		if r.Torrent != nil {
			row.TorrentID = string(r.Torrent.ID)
			row.ReleaseName = r.Torrent.ReleaseName
		}
		if r.Err != nil {
			row.Error = r.Err.Error()
		}
		rows = append(rows, row)
	}

	if done, err := renderStructured(os.Stdout, outputFormat, rows); done {
		return err
	}

	if len(rows) == 0 {
		_, _ = os.Stdout.WriteString("Radarr is not missing any movies.\n")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Title", "Year", "IMDb", "On PTP", "Group", "Best Release")
	for _, row := range rows {
		status := "no"
		switch {
		case row.Error != "":
			status = "error"
		case row.Found:
			status = "yes"
		}
		_ = table.Append([]string{
			truncate(row.Title, 40),
			itoaOrEmpty(row.Year),
			row.ImdbID,
			status,
			row.GroupID,
			truncate(row.ReleaseName, 50),
		})
	}
	_ = table.Render()
	return nil
}

// retryingSearcher applies the retry policy to each search.
type retryingSearcher struct {
	client *ptp.Client
}

func (s retryingSearcher) Search(ctx context.Context, params ptp.SearchParams) (*ptp.SearchResponse, error) {
	return withRetry(ctx, clientCfg, func(ctx context.Context) (*ptp.SearchResponse, error) {
		return s.client.Search(ctx, params)
	})
}

func itoaOrEmpty(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
