package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/ptpapi/ptp"
)

func testMovie() ptp.Movie {
	uploaded := time.Now().AddDate(0, 0, -10).UTC().Format(uploadTimeLayout)
	return ptp.Movie{
		GroupID:   "100",
		Title:     "Heat",
		Year:      "1995",
		ImdbID:    "0113277",
		Tags:      []string{"crime", "thriller"},
		Directors: []ptp.Director{{Name: "Michael Mann"}},
		Torrents: []ptp.Torrent{
			{ID: "1", ReleaseName: "Heat.1995.DVDRip.XviD", Codec: "XviD", Container: "AVI", Source: "DVD", Resolution: "640x272", Size: 1 << 30, Seeders: 3},
			{ID: "2", ReleaseName: "Heat.1995.720p.BluRay.x264", Codec: "x264", Container: "MKV", Source: "Blu-ray", Resolution: "720p", Size: 8 << 30, Seeders: 40, Scene: true},
			{ID: "3", ReleaseName: "Heat.1995.1080p.BluRay.x264-GRP", Codec: "x264", Container: "MKV", Source: "Blu-ray", Resolution: "1080p", Size: 15 << 30, Seeders: 25, GoldenPopcorn: true, Checked: true, FreeleechType: "Half", UploadTime: uploaded, ReleaseGroup: "GRP"},
		},
	}
}

func TestCompileFilter(t *testing.T) {
	tests := []struct {
		name        string
		expression  string
		wantErr     bool
		errContains string
	}{
		{"valid expression", `hasTag("crime")`, false, ""},
		{"empty expression", "  ", true, "empty expression"},
		{"invalid syntax", `hasTag("unclosed`, true, "failed to compile"},
		{"complex expression", `Resolution == "1080p" and Seeders > 10 and Size < gb(20)`, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := CompileFilter(tt.expression)
			if tt.wantErr {
				require.Error(t, err)
				var compErr *CompilationError
				assert.True(t, errors.As(err, &compErr))
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expression, filter.Expression())
		})
	}
}

func TestFilterEvaluation(t *testing.T) {
	movie := testMovie()

	tests := []struct {
		expression string
		want       []string
	}{
		{`Resolution == "1080p"`, []string{"3"}},
		{`Codec == "x264" and not Scene`, []string{"3"}},
		{`Seeders >= 25`, []string{"2", "3"}},
		{`SizeGB > 5 and SizeGB < 10`, []string{"2"}},
		{`Size > gb(10)`, []string{"3"}},
		{`GoldenPopcorn and Checked and Freeleech`, []string{"3"}},
		{`contains(ReleaseName, "dvdrip")`, []string{"1"}},
		{`hasTag("Thriller") and directedBy("michael mann") and Year == 1995`, []string{"1", "2", "3"}},
		{`hasTag("comedy")`, nil},
		{`daysSince(Uploaded) < 30`, []string{"3"}},
		{`ReleaseGroup == "GRP" and ImdbID == "0113277" and Title == "Heat"`, []string{"3"}},
	}

	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			filter, err := CompileFilter(tt.expression)
			require.NoError(t, err)

			var got []string
			for _, c := range Select(filter, []ptp.Movie{movie}) {
				got = append(got, string(c.Torrent.ID))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateErrReportsRuntimeErrors(t *testing.T) {
	filter, err := CompileFilter(`Tags[10] == "crime"`)
	require.NoError(t, err)

	movie := testMovie()
	c := Candidate{Movie: &movie, Torrent: &movie.Torrents[0]}

	_, err = filter.EvaluateErr(c)
	require.Error(t, err)
	var evalErr *EvaluationError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, "Heat.1995.DVDRip.XviD", evalErr.ReleaseName)

	assert.False(t, filter.Evaluate(c))
}

func TestBest(t *testing.T) {
	movie := testMovie()

	filter, err := CompileFilter(`Container == "MKV"`)
	require.NoError(t, err)
	best := Best(filter, &movie)
	require.NotNil(t, best)
	assert.Equal(t, "2", string(best.ID))

	filter, err = CompileFilter(`Resolution == "2160p"`)
	require.NoError(t, err)
	assert.Nil(t, Best(filter, &movie))
}

func TestMovies(t *testing.T) {
	heat := testMovie()
	other := ptp.Movie{GroupID: "200", Title: "Other", Torrents: []ptp.Torrent{{ID: "9", Resolution: "480p"}}}

	filter, err := CompileFilter(`Resolution in ["720p", "1080p"]`)
	require.NoError(t, err)

	got := Movies(filter, []ptp.Movie{heat, other})
	require.Len(t, got, 1)
	assert.Equal(t, "Heat", got[0].Title)
	assert.Len(t, got[0].Torrents, 2)
	assert.Len(t, heat.Torrents, 3, "input is not modified")
}

func TestCompilerCache(t *testing.T) {
	compiler := NewExprCompiler(WithCache(2))

	first, err := compiler.Compile(`Seeders > 1`)
	require.NoError(t, err)
	again, err := compiler.Compile(` Seeders > 1 `)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, compiler.Size())

	_, err = compiler.Compile(`Seeders > 2`)
	require.NoError(t, err)
	_, err = compiler.Compile(`Seeders > 3`)
	require.NoError(t, err)
	assert.Equal(t, 2, compiler.Size())

	compiler.Clear()
	assert.Equal(t, 0, compiler.Size())

	assert.Equal(t, 0, NewExprCompiler().Size())
}

func TestCustomFunctions(t *testing.T) {
	compiler := NewExprCompiler(WithCustomFunctions(map[string]any{
		"isHD": func(res string) bool { return res == "720p" || res == "1080p" },
	}))

	filter, err := compiler.Compile(`isHD(Resolution)`)
	require.NoError(t, err)

	movie := testMovie()
	assert.Len(t, Select(filter, []ptp.Movie{movie}), 2)
}

func TestLRUCacheEviction(t *testing.T) {
	cache := newLRUCache[int](2)
	cache.Put("a", 1)
	cache.Put("b", 2)

	_, ok := cache.Get("a") // a becomes most recent
	require.True(t, ok)

	cache.Put("c", 3)

	_, ok = cache.Get("b")
	assert.False(t, ok, "b was least recently used")
	v, ok := cache.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	cache.Put("a", 10)
	v, _ = cache.Get("a")
	assert.Equal(t, 10, v)
	assert.Equal(t, 2, cache.Size())
}
