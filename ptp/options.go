package ptp

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
)

const (
	// DefaultBucketCapacity and DefaultBucketRate size the request limiter:
	// bursts of 5, then 2 requests per second.
	DefaultBucketCapacity = 5
	DefaultBucketRate     = 2.0

	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "ptpapi-go"
)

// Limiter gates outbound requests. *ratelimit.TokenBucket implements it.
type Limiter interface {
	Consume(ctx context.Context, n int) error
}

// Option configures a Client.
type Option func(*clientOptions)

// clientOptions holds configuration options for the Client.
type clientOptions struct {
	httpClient *http.Client
	timeout    time.Duration
	limiter    Limiter
	capacity   int
	rate       float64
	lazyLogin  bool
	fs         afero.Fs
	registerer prometheus.Registerer
	userAgent  string
	now        func() time.Time
}

func defaultOptions() clientOptions {
	return clientOptions{
		timeout:   DefaultTimeout,
		capacity:  DefaultBucketCapacity,
		rate:      DefaultBucketRate,
		lazyLogin: true,
		userAgent: DefaultUserAgent,
		now:       time.Now,
	}
}

// WithHTTPClient replaces the HTTP client. Its Timeout is left as is.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = timeout
	}
}

// WithRateLimit sizes the built-in token bucket.
func WithRateLimit(capacity int, rate float64) Option {
	return func(o *clientOptions) {
		o.capacity = capacity
		o.rate = rate
	}
}

// WithLimiter replaces the built-in token bucket, e.g. to share one bucket
// between several clients.
func WithLimiter(limiter Limiter) Option {
	return func(o *clientOptions) {
		o.limiter = limiter
	}
}

// WithLazyLogin controls whether the first request logs in automatically.
// It is enabled by default.
func WithLazyLogin(enabled bool) Option {
	return func(o *clientOptions) {
		o.lazyLogin = enabled
	}
}

// WithFileSystem sets where Download writes torrent files.
func WithFileSystem(fs afero.Fs) Option {
	return func(o *clientOptions) {
		o.fs = fs
	}
}

// WithMetrics registers Prometheus collectors for the client.
func WithMetrics(registerer prometheus.Registerer) Option {
	return func(o *clientOptions) {
		o.registerer = registerer
	}
}

// WithUserAgent sets a custom user agent string.
func WithUserAgent(userAgent string) Option {
	return func(o *clientOptions) {
		o.userAgent = userAgent
	}
}
