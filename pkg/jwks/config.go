package jwks

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/invenlore/jwks.resolver/pkg/metrics"
	"github.com/sirupsen/logrus"
)

const (
	DefaultCacheMaxAge           = 10 * time.Minute
	DefaultJWKSRequestsPerMinute = 10
	DefaultTimeout               = 30 * time.Second
)

// Config describes a Client. The zero value of optional fields selects the defaults above.
type Config struct {
	JWKSURI string

	// Cache is enabled unless explicitly set to false.
	Cache       *bool
	CacheMaxAge time.Duration

	RateLimit             bool
	JWKSRequestsPerMinute int

	// JWKSURIFallback controls whether the remote endpoint is consulted after the
	// interceptor and the cache. Nil means true.
	JWKSURIFallback *bool

	Interceptor KeySource

	Timeout        time.Duration
	RequestHeaders map[string]string
	HTTPClient     *http.Client

	Metrics *metrics.ResolverMetrics
	Logger  *logrus.Entry
}

// Bool is a helper for the optional boolean fields of Config.
func Bool(v bool) *bool {
	return &v
}

func (c Config) cacheEnabled() bool {
	return c.Cache == nil || *c.Cache
}

func (c Config) fallbackEnabled() bool {
	return c.JWKSURIFallback == nil || *c.JWKSURIFallback
}

func (c Config) withDefaults() Config {
	if c.CacheMaxAge <= 0 {
		c.CacheMaxAge = DefaultCacheMaxAge
	}

	if c.JWKSRequestsPerMinute <= 0 {
		c.JWKSRequestsPerMinute = DefaultJWKSRequestsPerMinute
	}

	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}

	if c.Logger == nil {
		c.Logger = logrus.WithField("scope", "jwks.client")
	}

	return c
}

func (c Config) validate() error {
	raw := strings.TrimSpace(c.JWKSURI)
	if raw == "" {
		return &ConfigurationError{Field: "JWKSURI", Message: "jwks uri is required"}
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return &ConfigurationError{Field: "JWKSURI", Message: err.Error()}
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &ConfigurationError{Field: "JWKSURI", Message: "scheme must be http or https"}
	}

	if parsed.Host == "" {
		return &ConfigurationError{Field: "JWKSURI", Message: "host is missing"}
	}

	return nil
}
