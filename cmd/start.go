package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/invenlore/jwks.resolver/internal/config"
	"github.com/invenlore/jwks.resolver/internal/transport"
	"github.com/invenlore/jwks.resolver/pkg/jwks"
	"github.com/invenlore/jwks.resolver/pkg/logger"
	"github.com/invenlore/jwks.resolver/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func Start() {
	loggerEntry := logrus.WithField("scope", "jwksd")
	loggerEntry.Info("jwks resolver starting...")

	cfg, err := config.Load()
	if err != nil {
		loggerEntry.Fatalf("failed to load configuration: %v", err)
	}

	if err := logger.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		loggerEntry.Fatalf("failed to configure logging: %v", err)
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(baseCtx)

	loggerEntry.WithFields(logrus.Fields{
		"service":  cfg.ServiceName,
		"version":  cfg.ServiceVersion,
		"env":      cfg.AppEnv,
		"jwks_uri": cfg.JWKS.URI,
	}).Info("configuration loaded")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	resolverMetrics := metrics.NewResolverMetrics(prometheus.WrapRegistererWith(prometheus.Labels{
		"service": cfg.ServiceName,
		"env":     cfg.AppEnv,
	}, registry))

	clientCfg := cfg.ClientConfig()
	clientCfg.Metrics = resolverMetrics

	if cfg.Identity.GRPCAddr != "" {
		conn, identityClient, err := transport.NewIdentityClient(cfg.Identity.GRPCAddr)
		if err != nil {
			loggerEntry.Fatalf("identity client init failed: %v", err)
		}
		defer conn.Close()

		clientCfg.Interceptor = jwks.NewIdentityKeySource(identityClient)
		loggerEntry.Infof("identity key source enabled at %s", cfg.Identity.GRPCAddr)
	}

	resolver, err := jwks.NewClient(clientCfg)
	if err != nil {
		loggerEntry.Fatalf("jwks client init failed: %v", err)
	}

	httpSrv, httpLn, err := transport.NewHTTPServer(cfg, resolver, resolverMetrics)
	if err != nil {
		loggerEntry.Fatalf("http server init failed: %v", err)
	}

	healthSrv, healthLn, err := transport.NewHealthServer(cfg, resolver)
	if err != nil {
		_ = httpLn.Close()

		loggerEntry.Fatalf("health server init failed: %v", err)
	}

	metricsSrv, metricsLn, err := transport.NewMetricsServer(cfg, registry)
	if err != nil {
		_ = httpLn.Close()
		_ = healthLn.Close()

		loggerEntry.Fatalf("metrics server init failed: %v", err)
	}

	servers := []struct {
		name   string
		server *http.Server
		serve  func() error
	}{
		{"http", httpSrv, func() error { return httpSrv.Serve(httpLn) }},
		{"health", healthSrv, func() error { return healthSrv.Serve(healthLn) }},
		{"metrics", metricsSrv, func() error { return metricsSrv.Serve(metricsLn) }},
	}

	for _, s := range servers {
		g.Go(func() error {
			loggerEntry.Infof("%s server serving on %s...", s.name, s.server.Addr)

			if err := s.serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s serve failed: %w", s.name, err)
			}

			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()

		loggerEntry.Trace("attempting graceful shutdown...")

		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		for _, s := range servers {
			_ = s.server.Shutdown(stopCtx)
		}

		loggerEntry.Info("clean shutdown complete")
		return nil
	})

	if err := g.Wait(); err != nil {
		loggerEntry.Errorf("jwks resolver stopped with error: %v", err)

		os.Exit(1)
	}

	loggerEntry.Debug("jwks resolver stopped gracefully")
}
