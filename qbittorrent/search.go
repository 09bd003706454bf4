package qbittorrent

import (
	"cmp"
	"context"
	"errors"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/s0up4200/ptpapi/ptp"
)

const (
	minTitleMatchThreshold   = 0.6
	defaultMaxTorrentMatches = 5

	yearBonus         = 0.07
	missingYear       = 0.15
	seedingBonus      = 0.05
	completeBonus     = 0.05
	incompletePenalty = 0.15
	sizeWeight        = 0.2
)

// FindRelease reports the torrents in the client that are the given PTP
// torrent. A torrent with the same info hash is returned alone as an exact
// match; otherwise the release name is compared against every torrent.
func (c *Client) FindRelease(ctx context.Context, movie *ptp.Movie, torrent *ptp.Torrent) ([]*TorrentMatch, error) {
	if torrent.InfoHash != "" {
		info, err := c.GetTorrent(ctx, torrent.InfoHash)
		switch {
		case err == nil:
			c.logger.Debug().Str("hash", info.Hash).Str("name", info.Name).Msg("Release already in client")
			return []*TorrentMatch{{Torrent: info, Score: 1, TitleMatch: 1, Exact: true}}, nil
		case errors.Is(err, ErrTorrentNotFound), errors.Is(err, ErrInvalidHash):
		default:
			return nil, err
		}
	}

	title := torrent.ReleaseName
	if title == "" {
		title = movie.DisplayTitle()
	}
	return c.FindExisting(ctx, title, yearOf(string(movie.Year)), int64(torrent.Size))
}

// FindExisting returns the torrents in the client whose names look like the
// given release, best first.
func (c *Client) FindExisting(ctx context.Context, title string, year int, size int64) ([]*TorrentMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := newReleaseQuery(title, year, size)
	if len(q.words) == 0 {
		return nil, nil
	}

	torrents, err := c.GetAllTorrents(ctx)
	if err != nil {
		return nil, err
	}

	var matches []*TorrentMatch
	for _, t := range torrents {
		if m := q.match(t); m != nil {
			matches = append(matches, m)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}

	slices.SortFunc(matches, func(a, b *TorrentMatch) int {
		if d := cmp.Compare(b.Score, a.Score); d != 0 {
			return d
		}
		return cmp.Compare(absInt64(a.SizeDifference), absInt64(b.SizeDifference))
	})
	matches = matches[:min(len(matches), c.opts.maxMatches)]

	c.logger.Debug().
		Str("title", title).
		Int("matches", len(matches)).
		Float64("best", matches[0].Score).
		Msg("Found existing torrents")

	return matches, nil
}

// releaseQuery is a release name broken down for comparison against torrent
// names.
type releaseQuery struct {
	words []string
	year  int
	size  int64
}

func newReleaseQuery(title string, year int, size int64) releaseQuery {
	return releaseQuery{words: releaseWords(title), year: year, size: size}
}

// match scores t against the query and returns nil when t is not the same
// release.
func (q releaseQuery) match(t *TorrentInfo) *TorrentMatch {
	if t == nil || len(q.words) == 0 {
		return nil
	}
	words := releaseWords(t.Name)
	if len(words) == 0 {
		return nil
	}

	overlap := wordOverlap(q.words, words)
	if overlap < minTitleMatchThreshold {
		return nil
	}

	yearHit, ok := q.checkYear(words)
	if !ok {
		return nil
	}

	score := overlap
	switch {
	case q.year <= 0:
	case yearHit:
		score += yearBonus
	default:
		score -= missingYear
	}

	if t.IsSeeding {
		score += seedingBonus
	}
	if t.IsComplete() {
		score += completeBonus
	} else if t.Progress < 0.9 {
		score -= incompletePenalty
	}

	var diff int64
	if q.size > 0 && t.Size > 0 {
		diff = t.Size - q.size
		score += sizeWeight * (1 - math.Min(1, math.Abs(float64(diff))/float64(q.size)))
	}

	return &TorrentMatch{
		Torrent:        t,
		Score:          math.Max(0, math.Min(1, score)),
		TitleMatch:     overlap,
		YearMatched:    yearHit,
		SizeDifference: diff,
	}
}

// checkYear reports whether words carry the query year. ok is false when
// they name a different year.
func (q releaseQuery) checkYear(words []string) (hit, ok bool) {
	if q.year <= 0 {
		return false, true
	}
	for _, w := range words {
		y, isYear := parseYear(w)
		if !isYear {
			continue
		}
		if y != q.year {
			return false, false
		}
		hit = true
	}
	return hit, true
}

// releaseWords lowercases s and splits it on anything that is not a letter
// or digit, so "Heat.1995.1080p" becomes [heat 1995 1080p].
func releaseWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func parseYear(w string) (int, bool) {
	if len(w) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(w)
	if err != nil || y < 1900 || y > 2100 {
		return 0, false
	}
	return y, true
}

// wordOverlap is the share of want found anywhere in have.
func wordOverlap(want, have []string) float64 {
	if len(want) == 0 || len(have) == 0 {
		return 0
	}
	var n int
	for _, w := range want {
		if slices.Contains(have, w) {
			n++
		}
	}
	return float64(n) / float64(len(want))
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
