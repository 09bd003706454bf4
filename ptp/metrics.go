package ptp

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/s0up4200/ptpapi/apierr"
)

// Metrics holds the Prometheus collectors of a Client. A nil *Metrics is a
// valid no-op.
type Metrics struct {
	requestsTotal        *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
	errorsTotal          *prometheus.CounterVec
	loginsTotal          *prometheus.CounterVec
	rateLimitWait        prometheus.Histogram
	sessionInvalidations prometheus.Counter
}

// NewMetrics creates the collectors on registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ptpapi_requests_total",
				Help: "Total number of tracker requests by endpoint and status code",
			},
			[]string{"endpoint", "status_code"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ptpapi_request_duration_seconds",
				Help:    "Duration of tracker requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ptpapi_errors_total",
				Help: "Total number of failed tracker requests by error kind",
			},
			[]string{"kind"},
		),
		loginsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ptpapi_logins_total",
				Help: "Total number of login attempts by strategy and result",
			},
			[]string{"strategy", "result"},
		),
		rateLimitWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ptpapi_rate_limit_wait_seconds",
				Help:    "Time spent waiting for a rate limiter token",
				Buckets: []float64{0.001, 0.01, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		sessionInvalidations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ptpapi_session_invalidations_total",
				Help: "Total number of sessions dropped after a 401 or 403",
			},
		),
	}
}

// observeRequest records a finished exchange. status 0 means no response.
func (m *Metrics) observeRequest(endpoint string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := "none"
	if status != 0 {
		code = strconv.Itoa(status)
	}
	m.requestsTotal.WithLabelValues(endpoint, code).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) observeError(kind apierr.Kind) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) observeLogin(strategy StrategyKind, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.loginsTotal.WithLabelValues(strategy.String(), result).Inc()
}

func (m *Metrics) observeRateLimitWait(d time.Duration) {
	if m == nil {
		return
	}
	m.rateLimitWait.Observe(d.Seconds())
}

func (m *Metrics) observeInvalidation() {
	if m == nil {
		return
	}
	m.sessionInvalidations.Inc()
}
