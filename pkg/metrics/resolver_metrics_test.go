package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *ResolverMetrics

	m.ObserveJWKSFetch(true)
	m.ObserveCacheLookup(false)
	m.ObserveInterceptor(ResultHit)
	m.IncRateLimited()
	m.SetJWKSCacheAge(time.Second)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {})
	if handler := m.HTTPMiddleware(next); handler == nil {
		t.Fatalf("expected handler to be returned")
	}
}

func TestNewResolverMetricsNilRegistry(t *testing.T) {
	if m := NewResolverMetrics(nil); m != nil {
		t.Fatalf("expected nil metrics for nil registry")
	}
}

func TestResolverMetricsCounters(t *testing.T) {
	m := NewResolverMetrics(prometheus.NewRegistry())

	m.ObserveJWKSFetch(true)
	m.ObserveJWKSFetch(false)
	m.ObserveJWKSFetch(false)
	m.ObserveCacheLookup(true)
	m.IncRateLimited()

	if got := testutil.ToFloat64(m.jwksFetch.WithLabelValues(ResultError)); got != 2 {
		t.Fatalf("expected 2 failed fetches, got %v", got)
	}

	if got := testutil.ToFloat64(m.jwksFetch.WithLabelValues(ResultOK)); got != 1 {
		t.Fatalf("expected 1 successful fetch, got %v", got)
	}

	if got := testutil.ToFloat64(m.jwksCache.WithLabelValues(ResultHit)); got != 1 {
		t.Fatalf("expected 1 cache hit, got %v", got)
	}

	if got := testutil.ToFloat64(m.rateLimited); got != 1 {
		t.Fatalf("expected 1 rate limited fetch, got %v", got)
	}
}

func TestHTTPMiddlewareRecordsStatus(t *testing.T) {
	m := NewResolverMetrics(prometheus.NewRegistry())

	handler := m.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/v1/signing-keys/abc", nil))

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("signing_keys", http.MethodGet, "404")); got != 1 {
		t.Fatalf("expected one recorded request, got %v", got)
	}
}

func TestRouteGroup(t *testing.T) {
	cases := map[string]string{
		"":                  "other",
		"/health":           "health",
		"/v1/signing-keys":  "signing_keys",
		"/v1/signing-keys/": "signing_keys",
		"/v1/cache/clear":   "cache",
		"/v1/stats":         "stats",
		"/unknown":          "other",
	}

	for path, want := range cases {
		if got := routeGroup(path); got != want {
			t.Fatalf("routeGroup(%q) = %q, want %q", path, got, want)
		}
	}
}
