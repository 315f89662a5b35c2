package transport

import (
	"fmt"
	"net"
	"net/http"

	"github.com/invenlore/jwks.resolver/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func NewMetricsServer(cfg *config.Config, gatherer prometheus.Gatherer) (*http.Server, net.Listener, error) {
	listenAddr := net.JoinHostPort(cfg.Metrics.Host, cfg.Metrics.Port)
	logrus.Info("starting metrics server on ", listenAddr)

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	return server, ln, nil
}
