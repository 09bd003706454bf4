package ptp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queryRecorder keeps the last query seen per path.
type queryRecorder struct {
	mu      sync.Mutex
	queries map[string]url.Values
}

func (r *queryRecorder) get(path string) url.Values {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queries[path]
}

// queryServer records queries and answers every request with body.
func queryServer(t *testing.T, body string) (*httptest.Server, *queryRecorder) {
	t.Helper()
	rec := &queryRecorder{queries: map[string]url.Values{}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.queries[r.URL.Path] = r.URL.Query()
		rec.mu.Unlock()
		_, _ = w.Write([]byte(body))
	}))
	return server, rec
}

func TestEndpointMappings(t *testing.T) {
	tests := []struct {
		name  string
		call  func(ctx context.Context, c *Client) error
		path  string
		query url.Values
	}{
		{
			name: "search coverview",
			call: func(ctx context.Context, c *Client) error {
				_, err := c.SearchCoverview(ctx, SearchParams{"searchstr": "Alien"})
				return err
			},
			path:  "/torrents.php",
			query: url.Values{"searchstr": {"Alien"}, "json": {"1"}, "type": {"coverview"}},
		},
		{
			name: "collage",
			call: func(ctx context.Context, c *Client) error {
				_, err := c.Collage(ctx, "77", SearchParams{"year": "1999"})
				return err
			},
			path:  "/collages.php",
			query: url.Values{"id": {"77"}, "year": {"1999"}},
		},
		{
			name: "artist",
			call: func(ctx context.Context, c *Client) error {
				_, err := c.Artist(ctx, "5", nil)
				return err
			},
			path:  "/artist.php",
			query: url.Values{"id": {"5"}},
		},
		{
			name: "need for seed",
			call: func(ctx context.Context, c *Client) error {
				_, err := c.NeedForSeed(ctx, SearchParams{"filter": "1"})
				return err
			},
			path:  "/needforseed.php",
			query: url.Values{"filter": {"1"}},
		},
		{
			name: "movie",
			call: func(ctx context.Context, c *Client) error {
				_, err := c.GetMovie(ctx, "123")
				return err
			},
			path:  "/torrents.php",
			query: url.Values{"id": {"123"}, "json": {"1"}},
		},
		{
			name: "uploads",
			call: func(ctx context.Context, c *Client) error {
				_, err := c.Uploads(ctx, "9")
				return err
			},
			path:  "/torrents.php",
			query: url.Values{"userid": {"9"}, "json": {"1"}},
		},
		{
			name: "bookmarks",
			call: func(ctx context.Context, c *Client) error {
				_, err := c.Bookmarks(ctx)
				return err
			},
			path:  "/bookmarks.php",
			query: url.Values{"type": {"torrents"}},
		},
		{
			name: "current user",
			call: func(ctx context.Context, c *Client) error {
				_, err := c.GetCurrentUser(ctx)
				return err
			},
			path:  "/user.php",
			query: url.Values{"id": {"me"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, seen := queryServer(t, `{"Movies": []}`)
			defer server.Close()

			client := newTestClient(t, server.URL, apiCreds, WithLazyLogin(false))

			require.NoError(t, tt.call(context.Background(), client))
			assert.Equal(t, tt.query, seen.get(tt.path))
		})
	}
}

func TestAdvancedSearchEncoding(t *testing.T) {
	params := AdvancedSearchParams{
		SearchStr:    "tt1375666",
		Year:         "2010-2012",
		Container:    ContainerMKV,
		Codec:        CodecX264,
		Source:       SourceBluRay,
		Resolution:   Resolution1080p,
		ReleaseType:  ReleaseGoldenPopcorn,
		OrderBy:      SortSeeders,
		OrderWay:     SortDesc,
		Freeleech:    true,
		FeatureFilms: true,
		TagsType:     MatchAll,
	}

	values, err := params.Values()
	require.NoError(t, err)

	assert.Equal(t, url.Values{
		"action":        {"advanced"},
		"json":          {"1"},
		"searchstr":     {"tt1375666"},
		"year":          {"2010-2012"},
		"encoding":      {"MKV"},
		"format":        {"x264"},
		"media":         {"Blu-Ray"},
		"resolution":    {"1080p"},
		"scene":         {"2"},
		"order_by":      {"seeders"},
		"order_way":     {"desc"},
		"freetorrent":   {"1"},
		"filter_cat[1]": {"1"},
		"tags_type":     {"all"},
	}, values)

	server, seen := queryServer(t, `{"Movies": [{"GroupId": "1", "Title": "Inception"}]}`)
	defer server.Close()

	client := newTestClient(t, server.URL, apiCreds, WithLazyLogin(false))

	results, err := client.AdvancedSearch(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, results.Movies, 1)
	assert.Equal(t, values, seen.get("/torrents.php"))
}

func TestAdvancedSearchOmitsZeroValues(t *testing.T) {
	values, err := AdvancedSearchParams{}.Values()
	require.NoError(t, err)
	assert.Equal(t, url.Values{"action": {"advanced"}, "json": {"1"}}, values)
}

func TestSearchDoesNotMutateParams(t *testing.T) {
	server, seen := queryServer(t, `{"Movies": []}`)
	defer server.Close()

	client := newTestClient(t, server.URL, apiCreds, WithLazyLogin(false))

	params := SearchParams{"searchstr": "Heat", "json": "0"}
	_, err := client.Search(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, SearchParams{"searchstr": "Heat", "json": "0"}, params)
	assert.Equal(t, "1", seen.get("/torrents.php").Get("json"))
}

func TestRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"listing", `{"Requests": [{"Id": "1", "Title": "Heat", "Bounty": "1073741824"}]}`, 1},
		{"missing field", `{}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := queryServer(t, tt.body)
			defer server.Close()

			client := newTestClient(t, server.URL, apiCreds, WithLazyLogin(false))

			requests, err := client.Requests(context.Background(), nil)
			require.NoError(t, err)
			assert.NotNil(t, requests)
			assert.Len(t, requests, tt.want)
		})
	}
}

func TestGetMoviesKeepsOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		_ = json.NewEncoder(w).Encode(map[string]string{"GroupId": id, "Title": "Movie " + id})
	}))
	defer server.Close()

	limiter := &countingLimiter{}
	client := newTestClient(t, server.URL, apiCreds, WithLazyLogin(false), WithLimiter(limiter))

	ids := []string{"4", "8", "15", "16", "23", "42"}
	movies, err := client.GetMovies(context.Background(), ids...)
	require.NoError(t, err)
	require.Len(t, movies, len(ids))

	for i, id := range ids {
		assert.Equal(t, id, movies[i].MovieID())
		assert.Equal(t, "Movie "+id, movies[i].Title)
	}
	assert.Equal(t, int32(len(ids)), limiter.calls.Load())
}

func TestGetMoviesStopsOnError(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("id") == "bad" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"GroupId": "1"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, apiCreds, WithLazyLogin(false))

	_, err := client.GetMovies(context.Background(), "1", "bad", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "movie bad")
	assert.GreaterOrEqual(t, hits.Load(), int32(1))
}

func TestGetTorrent(t *testing.T) {
	body := `{
		"GroupId": "100",
		"Title": "Heat",
		"Torrents": [
			{"Id": "1", "Codec": "XviD"},
			{"Id": "2", "Codec": "x264", "Resolution": "1080p"}
		]
	}`

	server, seen := queryServer(t, body)
	defer server.Close()

	client := newTestClient(t, server.URL, apiCreds, WithLazyLogin(false))

	torrent, err := client.GetTorrent(context.Background(), "2", "100")
	require.NoError(t, err)
	assert.Equal(t, "x264", torrent.Codec)
	assert.Equal(t, FlexString("100"), torrent.GroupID)
	assert.Equal(t, url.Values{"torrentid": {"2"}, "id": {"100"}, "json": {"1"}}, seen.get("/torrents.php"))

	_, err = client.GetTorrent(context.Background(), "3", "100")
	require.Error(t, err)
}

func TestGetTorrentFlatBody(t *testing.T) {
	server, _ := queryServer(t, `{"Id": "2", "GroupId": "100", "ReleaseName": "Heat.1995.1080p"}`)
	defer server.Close()

	client := newTestClient(t, server.URL, apiCreds, WithLazyLogin(false))

	torrent, err := client.GetTorrent(context.Background(), "2", "100")
	require.NoError(t, err)
	assert.Equal(t, "Heat.1995.1080p", torrent.ReleaseName)
}

func TestCurrentUserInbox(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user.php", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Id": "7", "Username": "me", "Ratio": 2.5, "NewMessages": "3"}`))
	})
	mux.HandleFunc("/inbox.php", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("action") == "viewconv" {
			assert.Equal(t, "55", q.Get("id"))
			_, _ = w.Write([]byte(`{"Id": 55, "Subject": "hi", "Messages": [{"Id": "1", "Body": "hello"}]}`))
			return
		}
		assert.Equal(t, "2", q.Get("page"))
		_, _ = w.Write([]byte(`{"Messages": [{"Id": "1", "Subject": "hi", "SenderName": "staff", "Read": false}]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL, apiCreds, WithLazyLogin(false))
	ctx := context.Background()

	user, err := client.GetCurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "me", user.Username)
	assert.Equal(t, FlexString("2.5"), user.Ratio)
	require.NotNil(t, user.Inbox)
	assert.Equal(t, 3, user.Inbox.NewMessages)

	messages, err := user.Inbox.Messages(ctx, 2)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "staff", messages[0].SenderName)

	conv, err := user.Inbox.Conversation(ctx, "55")
	require.NoError(t, err)
	assert.Equal(t, FlexString("55"), conv.ID)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "hello", conv.Messages[0].Body)
}

func TestFlexDecoding(t *testing.T) {
	tests := []struct {
		in   string
		want FlexInt
	}{
		{`12`, 12},
		{`"12"`, 12},
		{`""`, 0},
		{`null`, 0},
		{`"1.5"`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got FlexInt
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}

	var bad FlexInt
	assert.Error(t, json.Unmarshal([]byte(`"many"`), &bad))

	var s FlexString
	require.NoError(t, json.Unmarshal([]byte(`1375666`), &s))
	assert.Equal(t, "1375666", s.String())

	var directors []Director
	require.NoError(t, json.Unmarshal([]byte(`["Michael Mann", {"Name": "Ridley Scott", "Id": 9}]`), &directors))
	assert.Equal(t, []Director{{Name: "Michael Mann"}, {Name: "Ridley Scott", ID: "9"}}, directors)
}

func TestBestMatch(t *testing.T) {
	movie := Movie{Torrents: []Torrent{
		{ID: "1", Codec: "XviD", Container: "AVI", Source: "DVD", Resolution: "512x288"},
		{ID: "2", Codec: "x264", Container: "MKV", Source: "Blu-ray", Resolution: "720p"},
		{ID: "3", Codec: "x264", Container: "MKV", Source: "Blu-ray", Resolution: "1080p"},
	}}

	tests := []struct {
		profile Profile
		want    string
	}{
		{Profile{}, "1"},
		{Profile{Codec: "x264"}, "2"},
		{Profile{Codec: "x264", Resolution: "1080p"}, "3"},
		{Profile{Container: "MKV", Source: "DVD"}, ""},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%+v", tt.profile), func(t *testing.T) {
			got := movie.BestMatch(tt.profile)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, string(got.ID))
		})
	}

	assert.Equal(t, "Movie", movie.Kind())
}
