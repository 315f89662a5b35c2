package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/alexliesenfeld/health"
	"github.com/invenlore/jwks.resolver/internal/config"
	"github.com/sirupsen/logrus"
)

// NewHealthChecker reports the resolver up while it can produce signing keys.
func NewHealthChecker(resolver Resolver) health.Checker {
	return health.NewChecker(
		health.WithCacheDuration(15*time.Second),
		health.WithTimeout(10*time.Second),
		health.WithCheck(health.Check{
			Name: "jwks",
			Check: func(ctx context.Context) error {
				_, err := resolver.GetSigningKeys(ctx)

				return err
			},
		}),
	)
}

func NewHealthServer(cfg *config.Config, resolver Resolver) (*http.Server, net.Listener, error) {
	listenAddr := net.JoinHostPort(cfg.Health.Host, cfg.Health.Port)
	logrus.Info("starting health server on ", listenAddr)

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /health", health.NewHandler(NewHealthChecker(resolver)))

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	return server, ln, nil
}
