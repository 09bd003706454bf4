package qbittorrent

import (
	"context"
	"strings"
	"testing"

	"github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/ptpapi/config"
	"github.com/s0up4200/ptpapi/ptp"
)

const gib = 1 << 30

func TestReleaseWords(t *testing.T) {
	cases := map[string][]string{
		"The.Matrix.1999.1080p.BluRay.x264-GROUP": {"the", "matrix", "1999", "1080p", "bluray", "x264", "group"},
		"Movie Name (2023) [IMAX]":                {"movie", "name", "2023", "imax"},
		"":                                        {},
	}

	for input, want := range cases {
		assert.ElementsMatch(t, want, releaseWords(input), input)
	}
}

func TestWordOverlap(t *testing.T) {
	want := []string{"movie", "name", "2023"}
	have := []string{"movie", "name", "2023", "bluray"}

	assert.Equal(t, 1.0, wordOverlap(want, have))
	assert.Greater(t, wordOverlap(want, []string{"movie"}), 0.3)
	assert.Zero(t, wordOverlap(nil, have))
}

func TestReleaseQueryMatch(t *testing.T) {
	torrent := &TorrentInfo{
		Name:      "Awesome.Movie.2023.1080p.WEBRip.x265-Group",
		Progress:  1.0,
		IsSeeding: true,
		Size:      8 * gib,
	}

	match := newReleaseQuery("Awesome Movie 2023", 2023, 8*gib).match(torrent)
	require.NotNil(t, match)
	assert.True(t, match.YearMatched)
	assert.False(t, match.Exact)
	assert.GreaterOrEqual(t, match.Score, 0.7)

	assert.Nil(t, newReleaseQuery("Different Film", 2019, 4*gib).match(torrent))
}

func TestReleaseQueryRejectsConflictingYear(t *testing.T) {
	torrent := &TorrentInfo{
		Name:      "Mad.Max.2.1981.1080p.BluRay.x264-GRP",
		Progress:  1.0,
		IsSeeding: true,
		Size:      7 * gib,
	}

	assert.Nil(t, newReleaseQuery("Mad Max 1979", 1979, 7*gib).match(torrent))
}

func TestReleaseQueryPenalizesIncomplete(t *testing.T) {
	q := newReleaseQuery("Heat 1995", 1995, 0)

	done := q.match(&TorrentInfo{Name: "Heat 1995", Progress: 1})
	partial := q.match(&TorrentInfo{Name: "Heat 1995", Progress: 0.5})
	require.NotNil(t, done)
	require.NotNil(t, partial)
	assert.Greater(t, done.Score, partial.Score)
}

func TestFindRelease(t *testing.T) {
	fake := &fakeAPI{torrents: []qbittorrent.Torrent{
		{Hash: "a", Name: "Heat.1995.1080p.BluRay.x264-GRP", Size: 15 * gib, Progress: 1, State: "uploading"},
		{Hash: "b", Name: "Heat.1995.720p.BluRay.x264-OTHER", Size: 8 * gib, Progress: 1, State: "stalledUP"},
		{Hash: "c", Name: "Collateral.2004.1080p.BluRay.x264", Size: 12 * gib, Progress: 1},
	}}
	client, err := newClient(context.Background(), fake, config.QBittorrentConfig{URL: "http://qbit"}, zerolog.Nop(), defaultOptions())
	require.NoError(t, err)

	movie := &ptp.Movie{Title: "Heat", Year: "1995"}
	torrent := &ptp.Torrent{ReleaseName: "Heat.1995.1080p.BluRay.x264-GRP", Size: 15 * gib}

	matches, err := client.FindRelease(context.Background(), movie, torrent)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "a", matches[0].Torrent.Hash)
	assert.Equal(t, 1.0, matches[0].Score)
	for _, m := range matches {
		assert.NotEqual(t, "c", m.Torrent.Hash)
	}
}

func TestFindExistingLimitsMatches(t *testing.T) {
	fake := &fakeAPI{}
	for range 4 {
		fake.torrents = append(fake.torrents, qbittorrent.Torrent{Name: "Heat 1995", Progress: 1})
	}
	client, err := newClient(context.Background(), fake, config.QBittorrentConfig{URL: "http://qbit"}, zerolog.Nop(), clientOptions{maxMatches: 2})
	require.NoError(t, err)

	matches, err := client.FindExisting(context.Background(), "Heat", 1995, 0)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	matches, err = client.FindExisting(context.Background(), "...", 1995, 0)
	require.NoError(t, err)
	assert.Nil(t, matches)
}

func TestFindReleaseByInfoHash(t *testing.T) {
	const hash = "0123456789abcdef0123456789abcdef01234567"
	fake := &fakeAPI{torrents: []qbittorrent.Torrent{
		{Hash: hash, Name: "renamed-by-user", Size: 3 * gib, Progress: 0.4},
		{Hash: "b", Name: "Heat.1995.1080p.BluRay.x264-GRP", Size: 15 * gib, Progress: 1},
	}}
	client, err := newClient(context.Background(), fake, config.QBittorrentConfig{URL: "http://qbit"}, zerolog.Nop(), defaultOptions())
	require.NoError(t, err)

	movie := &ptp.Movie{Title: "Heat", Year: "1995"}

	tests := []struct {
		name     string
		infoHash string
		wantHash string
		exact    bool
	}{
		{name: "hash hit", infoHash: strings.ToUpper(hash), wantHash: hash, exact: true},
		{name: "unknown hash falls back to name", infoHash: "ffffffffffffffffffffffffffffffffffffffff", wantHash: "b"},
		{name: "malformed hash falls back to name", infoHash: "abc", wantHash: "b"},
		{name: "no hash", wantHash: "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			torrent := &ptp.Torrent{
				InfoHash:    tt.infoHash,
				ReleaseName: "Heat.1995.1080p.BluRay.x264-GRP",
				Size:        15 * gib,
			}

			matches, err := client.FindRelease(context.Background(), movie, torrent)
			require.NoError(t, err)
			require.NotEmpty(t, matches)
			assert.Equal(t, tt.wantHash, matches[0].Torrent.Hash)
			assert.Equal(t, tt.exact, matches[0].Exact)
			if tt.exact {
				assert.Len(t, matches, 1)
				assert.Equal(t, 1.0, matches[0].Score)
			}
		})
	}
}
