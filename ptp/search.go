package ptp

import (
	"fmt"
	"net/url"

	"github.com/google/go-querystring/query"
)

// SearchParams are free-form query parameters, e.g. {"searchstr": "Inception"}.
type SearchParams map[string]string

// Values converts the parameters to url.Values.
func (p SearchParams) Values() url.Values {
	v := make(url.Values, len(p))
	for key, value := range p {
		v.Set(key, value)
	}
	return v
}

// with returns the parameters plus extra, without changing p. extra wins on
// conflicts.
func (p SearchParams) with(extra map[string]string) url.Values {
	v := p.Values()
	for key, value := range extra {
		v.Set(key, value)
	}
	return v
}

// Container is the file container, sent as "encoding".
type Container string

const (
	ContainerAVI    Container = "AVI"
	ContainerMPG    Container = "MPG"
	ContainerMKV    Container = "MKV"
	ContainerMP4    Container = "MP4"
	ContainerVOBIFO Container = "VOB IFO"
	ContainerISO    Container = "ISO"
	ContainerM2TS   Container = "m2ts"
)

// Codec is the video codec, sent as "format".
type Codec string

const (
	CodecXviD  Codec = "XviD"
	CodecDivX  Codec = "DivX"
	CodecH264  Codec = "H.264"
	CodecX264  Codec = "x264"
	CodecH265  Codec = "H.265"
	CodecX265  Codec = "x265"
	CodecDVD5  Codec = "DVD5"
	CodecDVD9  Codec = "DVD9"
	CodecBD25  Codec = "BD25"
	CodecBD50  Codec = "BD50"
	CodecBD100 Codec = "BD100"
)

// Source is the source media, sent as "media".
type Source string

const (
	SourceCAM         Source = "CAM"
	SourceTS          Source = "TS"
	SourceR5          Source = "R5"
	SourceDVDScreener Source = "DVD-Screener"
	SourceVHS         Source = "VHS"
	SourceWEB         Source = "WEB"
	SourceDVD         Source = "DVD"
	SourceTV          Source = "TV"
	SourceHDTV        Source = "HDTV"
	SourceHDDVD       Source = "HD-DVD"
	SourceBluRay      Source = "Blu-Ray"
)

// Resolution filters by video resolution or resolution class.
type Resolution string

const (
	ResolutionAnySD     Resolution = "anysd"
	ResolutionAnyHD     Resolution = "anyhd"
	ResolutionAnyHDPlus Resolution = "anyhdplus"
	ResolutionAnyUHD    Resolution = "anyuhd"
	ResolutionNTSC      Resolution = "ntsc"
	ResolutionPAL       Resolution = "pal"
	Resolution480p      Resolution = "480p"
	Resolution576p      Resolution = "576p"
	Resolution720p      Resolution = "720p"
	Resolution1080i     Resolution = "1080i"
	Resolution1080p     Resolution = "1080p"
	Resolution2160p     Resolution = "2160p"
)

// ReleaseType is sent as "scene".
type ReleaseType string

const (
	ReleaseNonScene      ReleaseType = "0"
	ReleaseScene         ReleaseType = "1"
	ReleaseGoldenPopcorn ReleaseType = "2"
	ReleasePersonal      ReleaseType = "3"
	ReleasePersonalGP    ReleaseType = "4"
)

// MatchType selects any-of or all-of for multi-value fields.
type MatchType string

const (
	MatchAny MatchType = ""
	MatchAll MatchType = "all"
)

// SortBy is the result order.
type SortBy string

const (
	SortRelevance          SortBy = "relevance"
	SortTimeAdded          SortBy = "time"
	SortTimeNoReseed       SortBy = "timenoreseed"
	SortFirstTimeAdded     SortBy = "creationtime"
	SortYear               SortBy = "year"
	SortTitle              SortBy = "title"
	SortSize               SortBy = "size"
	SortSnatched           SortBy = "snatched"
	SortSeeders            SortBy = "seeders"
	SortLeechers           SortBy = "leechers"
	SortRuntime            SortBy = "runtime"
	SortIMDbRating         SortBy = "imdb"
	SortIMDbRatingBayesian SortBy = "imdbbay"
	SortIMDbVotes          SortBy = "imdbvotes"
	SortPTPRating          SortBy = "ptprating"
	SortPTPRatingBayesian  SortBy = "ptpratingbay"
	SortPTPVotes           SortBy = "ptpvotes"
	SortMetacritic         SortBy = "mc"
	SortRottenTomatoes     SortBy = "rt"
	SortBookmarks          SortBy = "bookmarks"
	SortGoldenPopcornTime  SortBy = "gptime"
)

// SortOrder is the sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// AdvancedSearchParams is the advanced search form. Zero values are left
// out of the query; boolean fields are sent as 1.
type AdvancedSearchParams struct {
	SearchStr   string    `url:"searchstr,omitempty"`
	InAllAKAs   bool      `url:"inallakas,omitempty,int"`
	Year        string    `url:"year,omitempty"`
	ArtistName  string    `url:"artistname,omitempty"`
	FileList    string    `url:"filelist,omitempty"`
	Language    string    `url:"language,omitempty"`
	Subtitles   string    `url:"subtitles,omitempty"`
	CountryList string    `url:"countrylist,omitempty"`
	CountryType MatchType `url:"country_type,omitempty"`
	TagList     string    `url:"taglist,omitempty"`
	TagsType    MatchType `url:"tags_type,omitempty"`
	IMDbRating  string    `url:"imdbrating,omitempty"`
	IMDbVotes   string    `url:"imdbvotes,omitempty"`
	PTPRating   string    `url:"ptprating,omitempty"`
	PTPVotes    string    `url:"ptpvotes,omitempty"`
	MCRating    string    `url:"mcrating,omitempty"`
	RTRating    string    `url:"rtrating,omitempty"`

	Container   Container   `url:"encoding,omitempty"`
	Codec       Codec       `url:"format,omitempty"`
	Source      Source      `url:"media,omitempty"`
	Resolution  Resolution  `url:"resolution,omitempty"`
	ReleaseType ReleaseType `url:"scene,omitempty"`
	Freeleech   bool        `url:"freetorrent,omitempty,int"`
	Runtime     string      `url:"runtime,omitempty"`

	RemasterTitle string `url:"remastertitle,omitempty"`
	RemasterYear  string `url:"remasteryear,omitempty"`

	OrderBy    SortBy    `url:"order_by,omitempty"`
	OrderWay   SortOrder `url:"order_way,omitempty"`
	Grouping   bool      `url:"grouping,omitempty,int"`
	NoRedirect bool      `url:"noredirect,omitempty,int"`
	Seen       string    `url:"seen,omitempty"`

	FeatureFilms    bool `url:"filter_cat[1],omitempty,int"`
	ShortFilms      bool `url:"filter_cat[2],omitempty,int"`
	Miniseries      bool `url:"filter_cat[3],omitempty,int"`
	StandUpComedy   bool `url:"filter_cat[4],omitempty,int"`
	LivePerformance bool `url:"filter_cat[5],omitempty,int"`
	MovieCollection bool `url:"filter_cat[6],omitempty,int"`

	Page int `url:"page,omitempty"`
}

// Values encodes the parameters, including action=advanced and json=1.
func (p AdvancedSearchParams) Values() (url.Values, error) {
	v, err := query.Values(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode advanced search: %w", err)
	}
	v.Set("action", "advanced")
	v.Set("json", "1")
	return v, nil
}
