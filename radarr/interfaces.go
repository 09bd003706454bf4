package radarr

import (
	"context"

	"golift.io/starr"
	"golift.io/starr/radarr"

	"github.com/s0up4200/ptpapi/ptp"
)

// RadarrAPI defines the Radarr API operations the client uses
type RadarrAPI interface {
	GetMovieContext(ctx context.Context, params *radarr.GetMovie) ([]*radarr.Movie, error)
	GetTagsContext(ctx context.Context) ([]*starr.Tag, error)
}

// Searcher runs PassThePopcorn searches. *ptp.Client implements it.
type Searcher interface {
	Search(ctx context.Context, params ptp.SearchParams) (*ptp.SearchResponse, error)
}
