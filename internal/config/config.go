package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/invenlore/jwks.resolver/pkg/jwks"
)

type Config struct {
	AppEnv         string `env:"APP_ENV" envDefault:"dev"`
	ServiceName    string `env:"SERVICE_NAME" envDefault:"jwks-resolver"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"unknown"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string `env:"LOG_FORMAT" envDefault:"text"`

	HTTP     HTTPConfig     `envPrefix:"HTTP_"`
	Health   ListenConfig   `envPrefix:"HEALTH_"`
	Metrics  ListenConfig   `envPrefix:"METRICS_"`
	JWKS     JWKSConfig     `envPrefix:"JWKS_"`
	Identity IdentityConfig `envPrefix:"IDENTITY_"`
	Admin    AdminConfig    `envPrefix:"ADMIN_"`
}

type HTTPConfig struct {
	Host              string        `env:"HOST" envDefault:"0.0.0.0"`
	Port              string        `env:"PORT" envDefault:"8080"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"5s"`
}

type ListenConfig struct {
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port string `env:"PORT"`
}

type JWKSConfig struct {
	URI               string            `env:"URI,required"`
	CacheEnabled      bool              `env:"CACHE_ENABLED" envDefault:"true"`
	CacheMaxAge       time.Duration     `env:"CACHE_MAX_AGE" envDefault:"10m"`
	RateLimit         bool              `env:"RATE_LIMIT" envDefault:"true"`
	RequestsPerMinute int               `env:"REQUESTS_PER_MINUTE" envDefault:"10"`
	URIFallback       bool              `env:"URI_FALLBACK" envDefault:"true"`
	Timeout           time.Duration     `env:"TIMEOUT" envDefault:"30s"`
	RequestHeaders    map[string]string `env:"REQUEST_HEADERS" envSeparator:"," envKeyValSeparator:"="`
}

type IdentityConfig struct {
	GRPCAddr string `env:"GRPC_ADDR"`
}

type AdminConfig struct {
	AuthRequired bool          `env:"AUTH_REQUIRED" envDefault:"true"`
	Permission   string        `env:"PERMISSION" envDefault:"jwks.cache.clear"`
	AllowedSkew  time.Duration `env:"ALLOWED_SKEW" envDefault:"30s"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the configuration from the given variables only.
func LoadFrom(environment map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environment})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.Health.Port == "" {
		cfg.Health.Port = "8081"
	}

	if cfg.Metrics.Port == "" {
		cfg.Metrics.Port = "9090"
	}

	return cfg, nil
}

// ClientConfig converts the JWKS section into a resolver configuration.
func (c *Config) ClientConfig() jwks.Config {
	return jwks.Config{
		JWKSURI:               c.JWKS.URI,
		Cache:                 jwks.Bool(c.JWKS.CacheEnabled),
		CacheMaxAge:           c.JWKS.CacheMaxAge,
		RateLimit:             c.JWKS.RateLimit,
		JWKSRequestsPerMinute: c.JWKS.RequestsPerMinute,
		JWKSURIFallback:       jwks.Bool(c.JWKS.URIFallback),
		Timeout:               c.JWKS.Timeout,
		RequestHeaders:        c.JWKS.RequestHeaders,
	}
}
