package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/ptpapi/filter"
	"github.com/s0up4200/ptpapi/ptp"
)

var (
	filterExpr  string
	filterEmpty bool
	searchPage  int
	coverview   bool
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search [terms...] [key=value...]",
	Short: "Search PassThePopcorn",
	Long: `Search torrents. Plain arguments form the search string; key=value
arguments are passed as query parameters, e.g.

  ptpapi search heat year=1995 resolution=1080p

A filter expression narrows each movie to the torrents it matches. Use
@name to refer to a filter from the config file.`,
	RunE: runSearch,
}

var movieCmd = &cobra.Command{
	Use:   "movie <group-id>",
	Short: "Show a movie group and its torrents",
	Args:  cobra.ExactArgs(1),
	RunE:  runMovie,
}

var torrentCmd = &cobra.Command{
	Use:   "torrent <group-id> <torrent-id>",
	Short: "Show a single torrent",
	Args:  cobra.ExactArgs(2),
	RunE:  runTorrent,
}

func init() {
	rootCmd.AddCommand(searchCmd, movieCmd, torrentCmd)

	searchCmd.Flags().StringVarP(&filterExpr, "filter", "f", "", "filter expression or @name of a configured filter")
	searchCmd.Flags().BoolVar(&filterEmpty, "filter-empty", false, "keep movies without any torrent passing the filter")
	searchCmd.Flags().IntVar(&searchPage, "page", 0, "result page")
	searchCmd.Flags().BoolVar(&coverview, "coverview", false, "use the cover view search")
}

// parseSearchArgs splits arguments into search terms and key=value parameters.
func parseSearchArgs(args []string) ptp.SearchParams {
	params := ptp.SearchParams{}
	var terms []string

	for _, arg := range args {
		if key, value, ok := strings.Cut(arg, "="); ok && key != "" {
			params[key] = value
			continue
		}
		terms = append(terms, arg)
	}

	if len(terms) > 0 {
		params["searchstr"] = strings.Join(terms, " ")
	}
	return params
}

// resolveFilter compiles the --filter expression, expanding @name references.
func resolveFilter(expression string, named map[string]string) (filter.CompiledFilter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, nil
	}

	if name, ok := strings.CutPrefix(expression, "@"); ok {
		preset, found := named[name]
		if !found {
			return nil, fmt.Errorf("filter %q not found in config", name)
		}
		expression = preset
	}

	f, err := filter.CompileFilter(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}
	return f, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	f, err := resolveFilter(filterExpr, appCfg.Filters)
	if err != nil {
		return err
	}

	params := parseSearchArgs(args)
	if searchPage > 0 {
		params["page"] = strconv.Itoa(searchPage)
	}

	search := ptpClient.Search
	if coverview {
		search = ptpClient.SearchCoverview
	}

	resp, err := withRetry(cmd.Context(), clientCfg, func(ctx context.Context) (*ptp.SearchResponse, error) {
		return search(ctx, params)
	})
	if err != nil {
		return err
	}

	movies := resp.Movies
	if f != nil {
		movies = applyFilter(f, movies, filterEmpty)
	}

	logger.Debug().
		Int("total", int(resp.TotalResults)).
		Int("shown", len(movies)).
		Msg("Search finished")

	if done, err := renderStructured(os.Stdout, outputFormat, movies); done {
		return err
	}

	renderMovies(os.Stdout, movies)
	if resp.MaxPages > 1 {
		fmt.Printf("Page %d of %d (%d results)\n", resp.Page, resp.MaxPages, resp.TotalResults)
	}
	return nil
}

// applyFilter narrows movies to matching torrents. With keepEmpty, movies
// without matches stay in the list with no torrents.
func applyFilter(f filter.Filter, movies []ptp.Movie, keepEmpty bool) []ptp.Movie {
	if !keepEmpty {
		return filter.Movies(f, movies)
	}

	out := make([]ptp.Movie, 0, len(movies))
	for _, movie := range movies {
		narrowed := filter.Movies(f, []ptp.Movie{movie})
		if len(narrowed) == 0 {
			movie.Torrents = nil
			out = append(out, movie)
			continue
		}
		out = append(out, narrowed[0])
	}
	return out
}

func runMovie(cmd *cobra.Command, args []string) error {
	movie, err := withRetry(cmd.Context(), clientCfg, func(ctx context.Context) (*ptp.Movie, error) {
		return ptpClient.GetMovie(ctx, args[0])
	})
	if err != nil {
		return err
	}

	if done, err := renderStructured(os.Stdout, outputFormat, movie); done {
		return err
	}

	fmt.Printf("%s (%s) %s\n", movie.DisplayTitle(), movie.Year, imdbLabel(string(movie.ImdbID)))
	if len(movie.Tags) > 0 {
		fmt.Printf("Tags: %s\n", strings.Join(movie.Tags, ", "))
	}
	renderTorrents(os.Stdout, movie.Torrents)
	return nil
}

func runTorrent(cmd *cobra.Command, args []string) error {
	torrent, err := withRetry(cmd.Context(), clientCfg, func(ctx context.Context) (*ptp.Torrent, error) {
		return ptpClient.GetTorrent(ctx, args[1], args[0])
	})
	if err != nil {
		return err
	}

	if done, err := renderStructured(os.Stdout, outputFormat, torrent); done {
		return err
	}

	renderProperties(os.Stdout, [][2]string{
		{"ID", string(torrent.ID)},
		{"Group", string(torrent.GroupID)},
		{"Release", torrent.ReleaseName},
		{"Quality", torrent.Quality},
		{"Codec", torrent.Codec},
		{"Container", torrent.Container},
		{"Source", torrent.Source},
		{"Resolution", torrent.Resolution},
		{"Size", humanSize(int64(torrent.Size))},
		{"Seeders", strconv.Itoa(int(torrent.Seeders))},
		{"Leechers", strconv.Itoa(int(torrent.Leechers))},
		{"Snatched", strconv.Itoa(int(torrent.Snatched))},
		{"Uploaded", torrent.UploadTime},
		{"Flags", torrentFlags(*torrent)},
	})
	return nil
}
