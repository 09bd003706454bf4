// Package filter selects torrents with expr-lang expressions such as
//
//	Resolution == "1080p" and Seeders > 10 and not Scene
//
// Expressions see the fields of one torrent together with its movie, plus
// a set of helper functions (hasTag, contains, daysSince, gb, ...).
package filter

import (
	"github.com/s0up4200/ptpapi/ptp"
)

// Candidate is one torrent in the context of its movie.
type Candidate struct {
	Movie   *ptp.Movie
	Torrent *ptp.Torrent
}

// Filter defines the basic interface for torrent filters
type Filter interface {
	// Evaluate checks if a candidate matches the filter criteria
	Evaluate(c Candidate) bool
}

// CompiledFilter represents a pre-compiled filter ready for evaluation
type CompiledFilter interface {
	Filter

	// EvaluateErr is Evaluate, but reports runtime errors.
	EvaluateErr(c Candidate) (bool, error)

	// Expression returns the original filter expression
	Expression() string
}

// Compiler compiles filter expressions into executable filters
type Compiler interface {
	// Compile parses and compiles a filter expression
	Compile(expression string) (CompiledFilter, error)
}

// CachingCompiler provides caching for compiled filters
type CachingCompiler interface {
	Compiler

	// Clear removes all cached filters
	Clear()

	// Size returns the number of cached filters
	Size() int
}
