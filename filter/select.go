package filter

import (
	"github.com/s0up4200/ptpapi/ptp"
)

// CompileFilter compiles an expression without caching.
func CompileFilter(expression string) (CompiledFilter, error) {
	return NewExprCompiler().Compile(expression)
}

// Select returns every torrent across movies that matches f, in listing
// order.
func Select(f Filter, movies []ptp.Movie) []Candidate {
	var matches []Candidate
	for i := range movies {
		movie := &movies[i]
		for j := range movie.Torrents {
			c := Candidate{Movie: movie, Torrent: &movie.Torrents[j]}
			if f.Evaluate(c) {
				matches = append(matches, c)
			}
		}
	}
	return matches
}

// Best returns the first torrent of movie matching f, or nil.
func Best(f Filter, movie *ptp.Movie) *ptp.Torrent {
	for i := range movie.Torrents {
		t := &movie.Torrents[i]
		if f.Evaluate(Candidate{Movie: movie, Torrent: t}) {
			return t
		}
	}
	return nil
}

// Movies keeps the movies with at least one matching torrent and trims
// their torrent lists to the matches.
func Movies(f Filter, movies []ptp.Movie) []ptp.Movie {
	var out []ptp.Movie
	for i := range movies {
		movie := movies[i]
		var kept []ptp.Torrent
		for j := range movies[i].Torrents {
			if f.Evaluate(Candidate{Movie: &movies[i], Torrent: &movies[i].Torrents[j]}) {
				kept = append(kept, movies[i].Torrents[j])
			}
		}
		if len(kept) > 0 {
			movie.Torrents = kept
			out = append(out, movie)
		}
	}
	return out
}
