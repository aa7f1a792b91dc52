package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"creatorfeed/internal/domain"
)

const namespace = "creatorfeed"

// Metrics holds all Prometheus collectors for the service. Each instance owns
// its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	CreatorsTotal    *prometheus.CounterVec
	CreatorDuration  prometheus.Histogram
	VideosProcessed  prometheus.Counter
	APIRequestsTotal *prometheus.CounterVec
	APIIDsTotal      *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
}

// New registers every collector. pool may be nil, in which case no
// connection pool gauges are exported.
func New(pool *pgxpool.Pool) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Ingestion runs, by terminal status and scope.",
		},
		[]string{"status", "scope"},
	)

	m.RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_run_duration_seconds",
			Help:      "Wall-clock duration of ingestion runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	m.CreatorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_creators_total",
			Help:      "Creators processed, by outcome and failing stage.",
		},
		[]string{"outcome", "stage"},
	)

	m.CreatorDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_creator_duration_seconds",
			Help:      "Time spent on a single creator.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	m.VideosProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_videos_processed_total",
			Help:      "Video records upserted.",
		},
	)

	m.APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "youtube_api_requests_total",
			Help:      "YouTube Data API requests, by call and result.",
		},
		[]string{"call", "result"},
	)

	m.APIIDsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "youtube_api_ids_total",
			Help:      "Ids requested from the YouTube Data API.",
		},
		[]string{"call"},
	)

	m.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds, by route, method and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	m.RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being served.",
		},
	)

	m.registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.CreatorsTotal,
		m.CreatorDuration,
		m.VideosProcessed,
		m.APIRequestsTotal,
		m.APIIDsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// DB pool gauges read live stats from pgxpool
	if pool != nil {
		m.registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "db_connection_pool_active",
					Help:      "Number of active database connections.",
				},
				func() float64 { return float64(pool.Stat().AcquiredConns()) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "db_connection_pool_idle",
					Help:      "Number of idle database connections.",
				},
				func() float64 { return float64(pool.Stat().IdleConns()) },
			),
		)
	}

	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCreator records one creator outcome
func (m *Metrics) ObserveCreator(result domain.CreatorResult) {
	m.CreatorDuration.Observe(result.Elapsed.Seconds())
	if result.Err != nil {
		m.CreatorsTotal.WithLabelValues("failure", result.Err.Stage).Inc()
		return
	}
	m.CreatorsTotal.WithLabelValues("success", "").Inc()
	m.VideosProcessed.Add(float64(result.VideosProcessed))
}

// ObserveRun records a finished run
func (m *Metrics) ObserveRun(summary *domain.IngestionSummary) {
	scope := "full"
	if summary.TargetChannelID != "" {
		scope = "targeted"
	}
	m.RunsTotal.WithLabelValues(string(summary.Status), scope).Inc()
	m.RunDuration.Observe(summary.Elapsed.Seconds())
}

// ObserveAPIRequest records one Data API call
func (m *Metrics) ObserveAPIRequest(call string, ids int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.APIRequestsTotal.WithLabelValues(call, result).Inc()
	m.APIIDsTotal.WithLabelValues(call).Add(float64(ids))
}

// Middleware records request duration and in-flight count
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Don't instrument the /metrics endpoint itself
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestDuration.WithLabelValues(route, r.Method, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
