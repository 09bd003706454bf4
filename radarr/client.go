package radarr

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golift.io/starr"
	"golift.io/starr/radarr"

	"github.com/s0up4200/ptpapi/config"
)

const defaultCacheTTL = 5 * time.Minute

// Client wraps the starr Radarr client
type Client struct {
	api    RadarrAPI
	logger zerolog.Logger

	mu       sync.Mutex
	tags     []*starr.Tag
	tagsAt   time.Time
	cacheTTL time.Duration
}

// NewClient creates a new Radarr client and checks the connection.
func NewClient(cfg config.RadarrConfig, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("radarr url is not configured")
	}

	radarrClient := radarr.New(starr.New(cfg.APIKey, cfg.URL, timeout))
	if err := radarrClient.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to Radarr: %w", err)
	}

	return NewClientWithAPI(radarrClient, logger), nil
}

// NewClientWithAPI creates a client around an existing API implementation.
func NewClientWithAPI(api RadarrAPI, logger zerolog.Logger) *Client {
	return &Client{
		api:      api,
		logger:   logger,
		cacheTTL: defaultCacheTTL,
	}
}

// GetAllMovies retrieves all movies from Radarr
func (c *Client) GetAllMovies(ctx context.Context) ([]*radarr.Movie, error) {
	movies, err := c.api.GetMovieContext(ctx, &radarr.GetMovie{})
	if err != nil {
		return nil, fmt.Errorf("failed to get movies: %w", err)
	}

	c.logger.Debug().Msgf("Retrieved %d movies from Radarr", len(movies))
	return movies, nil
}

// GetTags retrieves all tags from Radarr. Results are cached.
func (c *Client) GetTags(ctx context.Context) ([]*starr.Tag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tags != nil && time.Since(c.tagsAt) < c.cacheTTL {
		return c.tags, nil
	}

	tags, err := c.api.GetTagsContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}

	c.tags = tags
	c.tagsAt = time.Now()
	c.logger.Debug().Msgf("Retrieved %d tags from Radarr", len(tags))
	return tags, nil
}

// WantedMovie is a monitored movie Radarr has no file for.
type WantedMovie struct {
	ID       int64
	Title    string
	Year     int
	ImdbID   string
	TmdbID   int64
	TagNames []string
}

// WantedOptions narrows WantedMovies.
type WantedOptions struct {
	// Tag keeps only movies carrying this tag label.
	Tag string
	// IncludeUnavailable keeps movies Radarr does not consider released yet.
	IncludeUnavailable bool
}

// WantedMovies returns monitored movies without a file that have an IMDb id.
func (c *Client) WantedMovies(ctx context.Context, opts WantedOptions) ([]WantedMovie, error) {
	movies, err := c.GetAllMovies(ctx)
	if err != nil {
		return nil, err
	}

	tags, err := c.GetTags(ctx)
	if err != nil {
		return nil, err
	}
	tagNames := make(map[int]string, len(tags))
	for _, tag := range tags {
		tagNames[tag.ID] = tag.Label
	}

	var wanted []WantedMovie
	for _, movie := range movies {
		if !movie.Monitored || movie.HasFile || movie.ImdbID == "" {
			continue
		}
		if !opts.IncludeUnavailable && !movie.IsAvailable {
			continue
		}

		w := WantedMovie{
			ID:     movie.ID,
			Title:  movie.Title,
			Year:   movie.Year,
			ImdbID: movie.ImdbID,
			TmdbID: movie.TmdbID,
		}
		for _, id := range movie.Tags {
			if name, ok := tagNames[id]; ok {
				w.TagNames = append(w.TagNames, name)
			}
		}

		if opts.Tag != "" && !hasTag(w.TagNames, opts.Tag) {
			continue
		}
		wanted = append(wanted, w)
	}

	c.logger.Debug().
		Int("movies", len(movies)).
		Int("wanted", len(wanted)).
		Msg("Collected wanted movies")
	return wanted, nil
}

func hasTag(names []string, tag string) bool {
	for _, name := range names {
		if strings.EqualFold(name, tag) {
			return true
		}
	}
	return false
}

// imdbNumber strips the "tt" prefix, matching how PTP reports ids.
func imdbNumber(id string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(id)), "tt")
}
