package radarr

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/ptpapi/filter"
	"github.com/s0up4200/ptpapi/ptp"
)

// MaxConcurrency bounds parallel PTP searches. The PTP rate limiter still
// applies on top.
const MaxConcurrency = 3

// SearchResult is the outcome of looking a wanted movie up on PTP.
type SearchResult struct {
	Wanted WantedMovie
	// Movie is the PTP group with the same IMDb id, nil when not found.
	Movie *ptp.Movie
	// Torrent is the first torrent of Movie passing the filter.
	Torrent *ptp.Torrent
	Err     error
}

// Found reports whether PTP has the movie.
func (r SearchResult) Found() bool {
	return r.Movie != nil
}

// SearchWanted searches PTP for every wanted movie by IMDb id. Failures are
// recorded per movie; only context cancellation stops the batch. f may be
// nil, in which case no torrent is picked.
func (c *Client) SearchWanted(ctx context.Context, searcher Searcher, wanted []WantedMovie, f filter.Filter) ([]SearchResult, error) {
	results := make([]SearchResult, len(wanted))
	if len(wanted) == 0 {
		return results, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrency)

	var mu sync.Mutex
	found := 0

	for i, w := range wanted {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			result := SearchResult{Wanted: w}
			resp, err := searcher.Search(ctx, ptp.SearchParams{"searchstr": "tt" + imdbNumber(w.ImdbID)})
			if err != nil {
				c.logger.Warn().
					Err(err).
					Str("title", w.Title).
					Str("imdb", w.ImdbID).
					Msg("PTP search failed")
				result.Err = err
				results[i] = result
				return nil
			}

			result.Movie = matchImdb(resp, w.ImdbID)
			if result.Movie != nil && f != nil {
				result.Torrent = filter.Best(f, result.Movie)
			}

			if result.Found() {
				mu.Lock()
				found++
				mu.Unlock()
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Info().
		Int("wanted", len(wanted)).
		Int("found", found).
		Msg("Searched PTP for wanted movies")
	return results, nil
}

// matchImdb picks the group whose IMDb id matches. A single result without
// an id is taken as the match, since PTP redirects id searches.
func matchImdb(resp *ptp.SearchResponse, imdbID string) *ptp.Movie {
	if resp == nil {
		return nil
	}

	want := imdbNumber(imdbID)
	for i := range resp.Movies {
		if imdbNumber(string(resp.Movies[i].ImdbID)) == want {
			return &resp.Movies[i]
		}
	}
	if len(resp.Movies) == 1 && resp.Movies[0].ImdbID == "" {
		return &resp.Movies[0]
	}
	return nil
}
