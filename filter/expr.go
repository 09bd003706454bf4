package filter

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/s0up4200/ptpapi/ptp"
)

// uploadTimeLayout is the format of Torrent.UploadTime.
const uploadTimeLayout = "2006-01-02 15:04:05"

const bytesPerGB = 1 << 30

// exprFilter implements CompiledFilter using the expr language
type exprFilter struct {
	expression string
	program    *vm.Program
	helpers    map[string]any
}

// ExprCompilerOption configures an expr compiler
type ExprCompilerOption func(*exprCompiler)

// WithCache enables filter caching with the specified size
func WithCache(size int) ExprCompilerOption {
	return func(c *exprCompiler) {
		if size > 0 {
			c.cache = newLRUCache[CompiledFilter](size)
		}
	}
}

// WithCustomFunctions adds custom helper functions
func WithCustomFunctions(funcs map[string]any) ExprCompilerOption {
	return func(c *exprCompiler) {
		maps.Copy(c.helperFuncs, funcs)
	}
}

// NewExprCompiler creates a new expr-based filter compiler
func NewExprCompiler(opts ...ExprCompilerOption) CachingCompiler {
	c := &exprCompiler{
		helperFuncs: createHelperFunctions(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// exprCompiler implements Compiler for expr-based filters
type exprCompiler struct {
	helperFuncs map[string]any
	cache       *lruCache[CompiledFilter]
}

// Compile compiles an expression into an executable filter
func (c *exprCompiler) Compile(expression string) (CompiledFilter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "empty expression",
		}
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(expression); ok {
			return cached, nil
		}
	}

	program, err := expr.Compile(expression,
		expr.Env(c.helperFuncs),
		expr.AllowUndefinedVariables(), // torrent fields are bound at run time
		expr.AsBool(),
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "failed to compile expression",
			Err:        err,
		}
	}

	filter := &exprFilter{
		expression: expression,
		program:    program,
		helpers:    c.helperFuncs,
	}

	if c.cache != nil {
		c.cache.Put(expression, filter)
	}

	return filter, nil
}

// Clear removes all cached filters
func (c *exprCompiler) Clear() {
	if c.cache != nil {
		c.cache.Clear()
	}
}

// Size returns the number of cached filters
func (c *exprCompiler) Size() int {
	if c.cache != nil {
		return c.cache.Size()
	}
	return 0
}

// Evaluate reports whether the candidate matches. Runtime errors count as
// no match.
func (f *exprFilter) Evaluate(c Candidate) bool {
	ok, err := f.EvaluateErr(c)
	return err == nil && ok
}

// EvaluateErr runs the filter against the candidate.
func (f *exprFilter) EvaluateErr(c Candidate) (bool, error) {
	env := createRuntimeEnvironment(f.helpers, c)

	result, err := expr.Run(f.program, env)
	if err != nil {
		name := ""
		if c.Torrent != nil {
			name = c.Torrent.ReleaseName
		}
		return false, &EvaluationError{
			Expression:  f.expression,
			ReleaseName: name,
			Err:         err,
		}
	}

	// AsBool guarantees the type.
	return result.(bool), nil
}

// Expression returns the original expression
func (f *exprFilter) Expression() string {
	return f.expression
}

// createHelperFunctions creates the static helper functions used during compilation
func createHelperFunctions() map[string]any {
	funcs := make(map[string]any, 16)

	// Date helpers
	funcs["daysSince"] = func(t time.Time) int {
		return int(time.Since(t).Hours() / 24)
	}
	funcs["daysAgo"] = func(days int) time.Time {
		return time.Now().AddDate(0, 0, -days)
	}
	funcs["parseDate"] = func(dateStr string) time.Time {
		t, _ := time.Parse("2006-01-02", dateStr)
		return t
	}
	funcs["now"] = time.Now

	// String helpers
	funcs["contains"] = func(str, substr string) bool {
		return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
	}
	funcs["startsWith"] = func(str, prefix string) bool {
		return strings.HasPrefix(strings.ToLower(str), strings.ToLower(prefix))
	}
	funcs["endsWith"] = func(str, suffix string) bool {
		return strings.HasSuffix(strings.ToLower(str), strings.ToLower(suffix))
	}
	funcs["lower"] = strings.ToLower
	funcs["upper"] = strings.ToUpper

	// Size helpers
	funcs["gb"] = func(n float64) int {
		return int(n * bytesPerGB)
	}
	funcs["mb"] = func(n float64) int {
		return int(n * (1 << 20))
	}

	return funcs
}

// createRuntimeEnvironment binds the candidate's fields on top of helpers.
func createRuntimeEnvironment(helpers map[string]any, c Candidate) map[string]any {
	env := make(map[string]any, len(helpers)+40)
	maps.Copy(env, helpers)

	movie := c.Movie
	if movie == nil {
		movie = &ptp.Movie{}
	}
	torrent := c.Torrent
	if torrent == nil {
		torrent = &ptp.Torrent{}
	}

	// Movie properties
	year, _ := strconv.Atoi(string(movie.Year))
	env["Title"] = movie.DisplayTitle()
	env["Year"] = year
	env["ImdbID"] = string(movie.ImdbID)
	env["GroupID"] = movie.MovieID()
	env["Tags"] = movie.Tags
	env["Directors"] = directorNames(movie.Directors)
	env["hasTag"] = createHasTagFunc(movie.Tags)
	env["directedBy"] = createDirectedByFunc(movie.Directors)

	// Torrent properties
	env["ID"] = string(torrent.ID)
	env["ReleaseName"] = torrent.ReleaseName
	env["ReleaseGroup"] = torrent.ReleaseGroup
	env["Quality"] = torrent.Quality
	env["Codec"] = torrent.Codec
	env["Container"] = torrent.Container
	env["Source"] = torrent.Source
	env["Resolution"] = torrent.Resolution
	env["RemasterTitle"] = torrent.RemasterTitle
	env["Size"] = int(torrent.Size)
	env["SizeGB"] = float64(torrent.Size) / bytesPerGB
	env["Seeders"] = int(torrent.Seeders)
	env["Leechers"] = int(torrent.Leechers)
	env["Snatched"] = int(torrent.Snatched)
	env["Checked"] = torrent.Checked
	env["GoldenPopcorn"] = torrent.GoldenPopcorn
	env["Scene"] = torrent.Scene
	env["Freeleech"] = torrent.FreeleechType != ""
	env["FreeleechType"] = torrent.FreeleechType
	env["Uploaded"] = parseUploadTime(torrent.UploadTime)

	return env
}

func parseUploadTime(s string) time.Time {
	t, err := time.Parse(uploadTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func directorNames(directors []ptp.Director) []string {
	names := make([]string, len(directors))
	for i, d := range directors {
		names[i] = d.Name
	}
	return names
}

func createHasTagFunc(tags []string) func(string) bool {
	lowerTags := make([]string, len(tags))
	for i, tag := range tags {
		lowerTags[i] = strings.ToLower(tag)
	}
	return func(tag string) bool {
		return slices.Contains(lowerTags, strings.ToLower(tag))
	}
}

func createDirectedByFunc(directors []ptp.Director) func(string) bool {
	return func(name string) bool {
		for _, d := range directors {
			if strings.EqualFold(d.Name, name) {
				return true
			}
		}
		return false
	}
}
