package jwks

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"time"

	"github.com/invenlore/jwks.resolver/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// Client resolves signing keys by kid: interceptor first, then the cached key set,
// then a rate limited fetch of the jwks uri.
type Client struct {
	cfg         Config
	logger      *logrus.Entry
	metrics     *metrics.ResolverMetrics
	interceptor KeySource
	fetcher     KeySource
	cache       *keySetCache
	limiter     *fetchLimiter
	fetches     atomic.Int64
}

// Stats describes the state of a Client.
type Stats struct {
	URI        string    `json:"uri"`
	CachedKeys int       `json:"cached_keys"`
	FetchedAt  time.Time `json:"fetched_at"`
	Fetches    int64     `json:"fetches"`
}

// NewClient validates cfg and applies defaults.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg = cfg.withDefaults()

	client := &Client{
		cfg:         cfg,
		logger:      cfg.Logger.WithField("jwks_uri", cfg.JWKSURI),
		metrics:     cfg.Metrics,
		interceptor: cfg.Interceptor,
		fetcher:     NewHTTPKeySource(cfg.JWKSURI, cfg.HTTPClient, cfg.Timeout, cfg.RequestHeaders),
		limiter:     newFetchLimiter(cfg.RateLimit, cfg.JWKSRequestsPerMinute),
	}

	if cfg.cacheEnabled() {
		client.cache = newKeySetCache(cfg.CacheMaxAge)
	}

	return client, nil
}

// GetSigningKey returns a copy of the signing key identified by kid.
func (c *Client) GetSigningKey(ctx context.Context, kid string) (*SigningKey, error) {
	if key := c.fromInterceptor(ctx, kid); key != nil {
		return key, nil
	}

	if keys, ok := c.cachedKeys(); ok {
		if key, err := findSigningKey(keys, kid); err == nil {
			return key, nil
		}
	}

	if !c.cfg.fallbackEnabled() {
		return nil, newSigningKeyNotFoundError(kid)
	}

	keys, err := c.fetchSigningKeys(ctx)
	if err != nil {
		return nil, err
	}

	key, err := findSigningKey(keys, kid)
	if err != nil {
		c.logger.WithField("kid", kid).Debug("kid not present in fetched jwks")

		return nil, err
	}

	return key, nil
}

// GetSigningKeys returns the signing keys of the remote document, served from the cache when valid.
func (c *Client) GetSigningKeys(ctx context.Context) ([]SigningKey, error) {
	keys, ok := c.cachedKeys()
	if !ok {
		var err error

		keys, err = c.fetchSigningKeys(ctx)
		if err != nil {
			return nil, err
		}
	}

	if len(keys) == 0 {
		return nil, &FetchError{URI: c.cfg.JWKSURI, Err: ErrNoSigningKeys}
	}

	return slices.Clone(keys), nil
}

// GetKeys returns the raw records of the remote document. It always fetches.
func (c *Client) GetKeys(ctx context.Context) ([]JSONWebKey, error) {
	return c.fetch(ctx)
}

// ClearCache drops the cached key set; the next lookup fetches.
func (c *Client) ClearCache() {
	if c.cache == nil {
		return
	}

	c.cache.Clear()
	c.logger.Debug("jwks cache cleared")
}

// Stats reports the cache state and the number of fetch attempts.
func (c *Client) Stats() Stats {
	stats := Stats{
		URI:     c.cfg.JWKSURI,
		Fetches: c.fetches.Load(),
	}

	if c.cache != nil {
		stats.CachedKeys, stats.FetchedAt = c.cache.snapshot()
	}

	return stats
}

func (c *Client) fromInterceptor(ctx context.Context, kid string) *SigningKey {
	if c.interceptor == nil {
		return nil
	}

	records, err := c.interceptor.FetchKeys(ctx)
	if err != nil {
		c.metrics.ObserveInterceptor(metrics.ResultError)
		c.logger.WithError(err).Warn("interceptor failed, falling through")

		return nil
	}

	if len(records) == 0 {
		c.metrics.ObserveInterceptor(metrics.ResultEmpty)

		return nil
	}

	keys := retrieveSigningKeys(records, c.logger)

	// Without a kid the first interceptor key is used, however many there are.
	if kid == "" && len(keys) > 0 {
		c.metrics.ObserveInterceptor(metrics.ResultHit)

		key := keys[0]
		return &key
	}

	key, err := findSigningKey(keys, kid)
	if err != nil {
		c.metrics.ObserveInterceptor(metrics.ResultMiss)

		return nil
	}

	c.metrics.ObserveInterceptor(metrics.ResultHit)

	return key
}

func (c *Client) cachedKeys() ([]SigningKey, bool) {
	if c.cache == nil {
		return nil, false
	}

	keys, ok := c.cache.Get()
	c.metrics.ObserveCacheLookup(ok)

	if ok {
		_, fetchedAt := c.cache.snapshot()
		c.metrics.SetJWKSCacheAge(time.Since(fetchedAt))
	}

	return keys, ok
}

func (c *Client) fetchSigningKeys(ctx context.Context) ([]SigningKey, error) {
	records, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	keys := retrieveSigningKeys(records, c.logger)

	if c.cache != nil {
		c.cache.Set(keys)
		c.metrics.SetJWKSCacheAge(0)
	}

	return keys, nil
}

func (c *Client) fetch(ctx context.Context) ([]JSONWebKey, error) {
	if err := c.limiter.Allow(); err != nil {
		c.metrics.IncRateLimited()
		c.logger.Warn("jwks fetch suppressed by rate limiter")

		return nil, err
	}

	c.fetches.Add(1)
	c.logger.Debug("fetching jwks")

	records, err := c.fetcher.FetchKeys(ctx)
	c.metrics.ObserveJWKSFetch(err == nil)

	if err != nil {
		c.logger.WithError(err).Error("failed to fetch JWKS")

		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			err = &FetchError{URI: c.cfg.JWKSURI, Err: err}
		}

		return nil, err
	}

	c.logger.WithField("keys", len(records)).Debug("jwks fetched")

	return records, nil
}
