package ptp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/ptpapi/config"
)

const (
	torrentsEndpoint    = "torrents.php"
	userEndpoint        = "user.php"
	collagesEndpoint    = "collages.php"
	artistEndpoint      = "artist.php"
	needForSeedEndpoint = "needforseed.php"
	requestsEndpoint    = "requests.php"
	inboxEndpoint       = "inbox.php"
	bookmarksEndpoint   = "bookmarks.php"

	// maxConcurrentFetches bounds GetMovies. The limiter still applies.
	maxConcurrentFetches = 3
)

// Search searches torrents.php.
func (c *Client) Search(ctx context.Context, params SearchParams) (*SearchResponse, error) {
	return getJSON[SearchResponse](ctx, c, torrentsEndpoint, params.with(map[string]string{
		"json": "1",
	}))
}

// SearchCoverview searches torrents.php in cover view.
func (c *Client) SearchCoverview(ctx context.Context, params SearchParams) (*SearchResponse, error) {
	return getJSON[SearchResponse](ctx, c, torrentsEndpoint, params.with(map[string]string{
		"json": "1",
		"type": "coverview",
	}))
}

// AdvancedSearch runs the advanced search form.
func (c *Client) AdvancedSearch(ctx context.Context, params AdvancedSearchParams) (*SearchResponse, error) {
	values, err := params.Values()
	if err != nil {
		return nil, err
	}
	return getJSON[SearchResponse](ctx, c, torrentsEndpoint, values)
}

// Collage lists the movies of a collage.
func (c *Client) Collage(ctx context.Context, id string, terms SearchParams) (*SearchResponse, error) {
	return getJSON[SearchResponse](ctx, c, collagesEndpoint, terms.with(map[string]string{
		"id": id,
	}))
}

// Artist lists the movies of an artist.
func (c *Client) Artist(ctx context.Context, id string, terms SearchParams) (*SearchResponse, error) {
	return getJSON[SearchResponse](ctx, c, artistEndpoint, terms.with(map[string]string{
		"id": id,
	}))
}

// NeedForSeed lists torrents that need seeders.
func (c *Client) NeedForSeed(ctx context.Context, filters SearchParams) (*SearchResponse, error) {
	return getJSON[SearchResponse](ctx, c, needForSeedEndpoint, filters.Values())
}

// Requests lists open requests. A body without Requests yields an empty slice.
func (c *Client) Requests(ctx context.Context, filters SearchParams) ([]Request, error) {
	out, err := getJSON[struct {
		Requests []Request `json:"Requests"`
	}](ctx, c, requestsEndpoint, filters.Values())
	if err != nil {
		return nil, err
	}
	if out.Requests == nil {
		return []Request{}, nil
	}
	return out.Requests, nil
}

// GetMovie fetches a movie group with its torrents.
func (c *Client) GetMovie(ctx context.Context, groupID string) (*Movie, error) {
	params := url.Values{}
	params.Set("id", groupID)
	params.Set("json", "1")

	return getJSON[Movie](ctx, c, torrentsEndpoint, params)
}

// GetMovies fetches several movie groups concurrently. Results keep the
// order of ids; the first failure cancels the rest.
func (c *Client) GetMovies(ctx context.Context, ids ...string) ([]*Movie, error) {
	movies := make([]*Movie, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for i, id := range ids {
		g.Go(func() error {
			movie, err := c.GetMovie(ctx, id)
			if err != nil {
				return fmt.Errorf("movie %s: %w", id, err)
			}
			movies[i] = movie
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return movies, nil
}

// GetTorrent fetches one torrent of a group. The tracker answers with the
// whole group; the torrent is picked out by id.
func (c *Client) GetTorrent(ctx context.Context, torrentID, groupID string) (*Torrent, error) {
	params := url.Values{}
	params.Set("torrentid", torrentID)
	params.Set("id", groupID)
	params.Set("json", "1")

	raw, err := c.Get(ctx, torrentsEndpoint, params)
	if err != nil {
		return nil, err
	}

	var group Movie
	if err := json.Unmarshal(raw, &group); err == nil && len(group.Torrents) > 0 {
		for i := range group.Torrents {
			t := group.Torrents[i]
			if string(t.ID) == torrentID {
				if t.GroupID == "" {
					t.GroupID = FlexString(group.MovieID())
				}
				return &t, nil
			}
		}
		return nil, fmt.Errorf("torrent %s not found in group %s", torrentID, groupID)
	}

	var torrent Torrent
	if err := json.Unmarshal(raw, &torrent); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", torrentsEndpoint, err)
	}
	return &torrent, nil
}

// GetCurrentUser fetches the logged-in account. Its Inbox is set.
func (c *Client) GetCurrentUser(ctx context.Context) (*User, error) {
	out, err := getJSON[struct {
		User
		NewMessages FlexInt `json:"NewMessages"`
	}](ctx, c, userEndpoint, url.Values{"id": {"me"}})
	if err != nil {
		return nil, err
	}

	user := out.User
	user.Inbox = &Inbox{
		NewMessages: int(out.NewMessages),
		client:      c,
	}
	return &user, nil
}

// GetUser fetches another user's profile.
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	return getJSON[User](ctx, c, userEndpoint, url.Values{"id": {id}})
}

// Uploads lists the movies a user uploaded torrents to.
func (c *Client) Uploads(ctx context.Context, userID string) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("userid", userID)
	params.Set("json", "1")

	return getJSON[SearchResponse](ctx, c, torrentsEndpoint, params)
}

// Bookmarks lists the logged-in account's bookmarked movies.
func (c *Client) Bookmarks(ctx context.Context) (*SearchResponse, error) {
	return getJSON[SearchResponse](ctx, c, bookmarksEndpoint, url.Values{"type": {"torrents"}})
}

// Inbox is the message capability of the logged-in account.
type Inbox struct {
	NewMessages int
	client      *Client
}

// Messages lists one inbox page, starting at 1.
func (i *Inbox) Messages(ctx context.Context, page int) ([]Message, error) {
	if page < 1 {
		page = 1
	}

	out, err := getJSON[struct {
		Messages []Message `json:"Messages"`
	}](ctx, i.client, inboxEndpoint, url.Values{"page": {strconv.Itoa(page)}})
	if err != nil {
		return nil, err
	}
	if out.Messages == nil {
		return []Message{}, nil
	}
	return out.Messages, nil
}

// Conversation fetches a message thread.
func (i *Inbox) Conversation(ctx context.Context, id string) (*Conversation, error) {
	params := url.Values{}
	params.Set("action", "viewconv")
	params.Set("id", id)

	return getJSON[Conversation](ctx, i.client, inboxEndpoint, params)
}

// Download fetches a torrent file. When destination is set the file is also
// written there.
func (c *Client) Download(ctx context.Context, id, destination string) ([]byte, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	passkey := c.session.current().Passkey
	if passkey == "" {
		passkey, _ = c.cfg.GetString(config.KeyPasskey)
	}

	params := url.Values{}
	params.Set("action", "download")
	params.Set("id", id)
	params.Set("passkey", passkey)

	resp, err := c.do(ctx, torrentsEndpoint, params)
	if err != nil {
		return nil, err
	}

	if destination != "" {
		if err := afero.WriteFile(c.fs, destination, resp.body, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write torrent %s: %w", destination, err)
		}
		c.logger.Debug().
			Str("id", id).
			Str("path", destination).
			Int("bytes", len(resp.body)).
			Msg("Saved torrent file")
	}

	return resp.body, nil
}
