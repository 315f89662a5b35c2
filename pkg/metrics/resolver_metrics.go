package metrics

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultEmpty = "empty"
)

type ResolverMetrics struct {
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	jwksFetch      *prometheus.CounterVec
	jwksCache      *prometheus.CounterVec
	interceptor    *prometheus.CounterVec
	rateLimited    prometheus.Counter
	jwksAgeSeconds prometheus.Gauge
}

func NewResolverMetrics(reg prometheus.Registerer) *ResolverMetrics {
	if reg == nil {
		return nil
	}

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invenlore_jwks_http_requests_total",
			Help: "Total number of HTTP requests served by the resolver daemon.",
		},
		[]string{"route_group", "method", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invenlore_jwks_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route_group", "method", "status"},
	)

	jwksFetch := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invenlore_jwks_fetch_total",
			Help: "Total JWKS fetch attempts against the jwks uri.",
		},
		[]string{"result"},
	)

	jwksCache := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invenlore_jwks_cache_total",
			Help: "Total JWKS cache lookups.",
		},
		[]string{"result"},
	)

	interceptor := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invenlore_jwks_interceptor_total",
			Help: "Total interceptor key source calls.",
		},
		[]string{"result"},
	)

	rateLimited := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "invenlore_jwks_rate_limited_total",
			Help: "Total JWKS fetches suppressed by the rate limiter.",
		},
	)

	jwksAge := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "invenlore_jwks_age_seconds",
			Help: "Age of the JWKS cache in seconds.",
		},
	)

	reg.MustRegister(httpRequests, httpDuration, jwksFetch, jwksCache, interceptor, rateLimited, jwksAge)

	return &ResolverMetrics{
		httpRequests:   httpRequests,
		httpDuration:   httpDuration,
		jwksFetch:      jwksFetch,
		jwksCache:      jwksCache,
		interceptor:    interceptor,
		rateLimited:    rateLimited,
		jwksAgeSeconds: jwksAge,
	}
}

func (m *ResolverMetrics) HTTPMiddleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}

	if next == nil {
		return http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &responseWriter{ResponseWriter: w}
		next.ServeHTTP(lrw, r)

		status := lrw.status
		if status == 0 {
			status = http.StatusOK
		}

		path := ""
		if r != nil && r.URL != nil {
			path = r.URL.Path
		}

		method := "UNKNOWN"
		if r != nil {
			method = r.Method
		}

		group := routeGroup(path)
		code := fmt.Sprintf("%d", status)

		m.httpRequests.WithLabelValues(group, method, code).Inc()
		m.httpDuration.WithLabelValues(group, method, code).Observe(time.Since(start).Seconds())
	})
}

func (m *ResolverMetrics) ObserveJWKSFetch(success bool) {
	if m == nil {
		return
	}

	result := ResultError
	if success {
		result = ResultOK
	}

	m.jwksFetch.WithLabelValues(result).Inc()
}

func (m *ResolverMetrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}

	result := ResultMiss
	if hit {
		result = ResultHit
	}

	m.jwksCache.WithLabelValues(result).Inc()
}

func (m *ResolverMetrics) ObserveInterceptor(result string) {
	if m == nil || result == "" {
		return
	}

	m.interceptor.WithLabelValues(result).Inc()
}

func (m *ResolverMetrics) IncRateLimited() {
	if m == nil {
		return
	}

	m.rateLimited.Inc()
}

func (m *ResolverMetrics) SetJWKSCacheAge(age time.Duration) {
	if m == nil {
		return
	}

	m.jwksAgeSeconds.Set(age.Seconds())
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(statusCode int) {
	if w.status == 0 {
		w.status = statusCode
	}

	if w.ResponseWriter != nil {
		w.ResponseWriter.WriteHeader(statusCode)
	}
}

func routeGroup(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "other"
	}

	if path == "/health" {
		return "health"
	}

	if strings.HasPrefix(path, "/v1/signing-keys") {
		return "signing_keys"
	}

	if strings.HasPrefix(path, "/v1/cache/") {
		return "cache"
	}

	if path == "/v1/stats" {
		return "stats"
	}

	return "other"
}
