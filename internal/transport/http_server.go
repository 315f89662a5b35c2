package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/invenlore/jwks.resolver/internal/config"
	"github.com/invenlore/jwks.resolver/pkg/auth"
	"github.com/invenlore/jwks.resolver/pkg/jwks"
	"github.com/invenlore/jwks.resolver/pkg/logger"
	"github.com/invenlore/jwks.resolver/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// Resolver is satisfied by *jwks.Client.
type Resolver interface {
	GetSigningKey(ctx context.Context, kid string) (*jwks.SigningKey, error)
	GetSigningKeys(ctx context.Context) ([]jwks.SigningKey, error)
	ClearCache()
	Stats() jwks.Stats
	Keyfunc(ctx context.Context) jwt.Keyfunc
}

type signingKeyResponse struct {
	Kid       string `json:"kid"`
	Alg       string `json:"alg,omitempty"`
	Kty       string `json:"kty"`
	Use       string `json:"use,omitempty"`
	PublicKey string `json:"public_key"`
}

type signingKeysResponse struct {
	Keys []signingKeyResponse `json:"keys"`
}

func NewHTTPServer(cfg *config.Config, resolver Resolver, m *metrics.ResolverMetrics) (*http.Server, net.Listener, error) {
	listenAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
	logrus.Info("starting http server on ", listenAddr)

	handler, err := NewHandler(cfg, resolver, m)
	if err != nil {
		return nil, nil, err
	}

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
	}

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	return server, ln, nil
}

// NewHandler builds the resolver API with access logging, metrics and admin auth applied.
func NewHandler(cfg *config.Config, resolver Resolver, m *metrics.ResolverMetrics) (http.Handler, error) {
	mapper := &auth.ErrorMapper{Logger: logrus.WithField("scope", "http.errors")}
	mux := runtime.NewServeMux(runtime.WithErrorHandler(mapper.Handler))

	api := &resolverAPI{mux: mux, resolver: resolver}

	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{http.MethodGet, "/v1/signing-keys", api.listSigningKeys},
		{http.MethodGet, "/v1/signing-keys/{kid}", api.getSigningKey},
		{http.MethodPost, "/v1/cache/clear", api.clearCache},
		{http.MethodGet, "/v1/stats", api.stats},
	}

	for _, route := range routes {
		if err := mux.HandlePath(route.method, route.pattern, route.handler); err != nil {
			return nil, fmt.Errorf("register %s %s: %w", route.method, route.pattern, err)
		}
	}

	var handler http.Handler = mux

	if cfg.Admin.AuthRequired {
		handler = auth.NewMiddleware(auth.MiddlewareConfig{
			Keys:               resolver,
			AllowedSkew:        cfg.Admin.AllowedSkew,
			ProtectedPrefixes:  []string{"/v1/cache/"},
			RequiredPermission: cfg.Admin.Permission,
		}).Handler(handler)
	}

	handler = m.HTTPMiddleware(handler)
	handler = logger.AccessLogMiddleware(logrus.WithField("scope", "http.access"))(handler)

	return handler, nil
}

type resolverAPI struct {
	mux      *runtime.ServeMux
	resolver Resolver
}

func (a *resolverAPI) getSigningKey(w http.ResponseWriter, r *http.Request, params map[string]string) {
	key, err := a.resolver.GetSigningKey(r.Context(), params["kid"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	body, err := toResponse(key)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, body)
}

func (a *resolverAPI) listSigningKeys(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	keys, err := a.resolver.GetSigningKeys(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	body := signingKeysResponse{Keys: make([]signingKeyResponse, 0, len(keys))}
	for i := range keys {
		item, err := toResponse(&keys[i])
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		body.Keys = append(body.Keys, item)
	}

	writeJSON(w, http.StatusOK, body)
}

func (a *resolverAPI) clearCache(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	a.resolver.ClearCache()

	w.WriteHeader(http.StatusNoContent)
}

func (a *resolverAPI) stats(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	stats := a.resolver.Stats()

	writeJSON(w, http.StatusOK, map[string]any{
		"uri":         stats.URI,
		"cached_keys": stats.CachedKeys,
		"fetched_at":  formatTime(stats.FetchedAt),
		"fetches":     stats.Fetches,
	})
}

func (a *resolverAPI) writeError(w http.ResponseWriter, r *http.Request, err error) {
	runtime.HTTPError(r.Context(), a.mux, &runtime.JSONPb{}, w, r, err)
}

func toResponse(key *jwks.SigningKey) (signingKeyResponse, error) {
	publicKey, err := key.PublicKeyPEM()
	if err != nil {
		return signingKeyResponse{}, err
	}

	return signingKeyResponse{
		Kid:       key.Kid,
		Alg:       key.Alg,
		Kty:       key.Kty,
		Use:       key.Use,
		PublicKey: publicKey,
	}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
