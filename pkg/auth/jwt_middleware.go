package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderUserID        = "X-User-Id"
)

type Claims struct {
	Roles       []string `json:"roles"`
	PermsGlobal []string `json:"perms_global"`
	Scopes      []string `json:"scopes"`
	jwt.RegisteredClaims
}

// KeyfuncProvider is satisfied by *jwks.Client.
type KeyfuncProvider interface {
	Keyfunc(ctx context.Context) jwt.Keyfunc
}

type Middleware struct {
	logger             *logrus.Entry
	keys               KeyfuncProvider
	allowedSkew        time.Duration
	protectedPrefixes  []string
	requiredPermission string
}

type MiddlewareConfig struct {
	Keys               KeyfuncProvider
	AllowedSkew        time.Duration
	ProtectedPrefixes  []string
	RequiredPermission string
}

func NewMiddleware(cfg MiddlewareConfig) *Middleware {
	return &Middleware{
		logger:             logrus.WithField("scope", "auth.middleware"),
		keys:               cfg.Keys,
		allowedSkew:        cfg.AllowedSkew,
		protectedPrefixes:  cfg.ProtectedPrefixes,
		requiredPermission: cfg.RequiredPermission,
	}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.isProtected(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.authenticate(r.Context(), r)
		if err != nil {
			m.writeAuthError(w, r, err)
			return
		}

		if claims.Subject != "" {
			r.Header.Set(HeaderUserID, claims.Subject)
		}

		if !hasGlobalPermission(claims, m.requiredPermission) {
			m.logger.WithField("sub", claims.Subject).Warn("permission denied")

			WriteErrorResponse(w, r, status.New(codes.PermissionDenied, "forbidden"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) isProtected(path string) bool {
	for _, prefix := range m.protectedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return false
}

func hasGlobalPermission(claims *Claims, permission string) bool {
	if permission == "" {
		return true
	}

	if claims == nil {
		return false
	}

	for _, perm := range claims.PermsGlobal {
		if perm == permission {
			return true
		}

		if strings.HasSuffix(permission, ".*") {
			continue
		}

		if strings.HasSuffix(perm, ".*") {
			if strings.HasPrefix(permission, strings.TrimSuffix(perm, "*")) {
				return true
			}
		}
	}

	return false
}

func (m *Middleware) authenticate(ctx context.Context, r *http.Request) (*Claims, error) {
	rawToken := strings.TrimSpace(r.Header.Get(HeaderAuthorization))
	if rawToken == "" {
		return nil, errTokenMissing
	}

	parts := strings.SplitN(rawToken, " ", 2)

	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, errTokenInvalid
	}

	return m.parseToken(ctx, strings.TrimSpace(parts[1]))
}

func (m *Middleware) parseToken(ctx context.Context, token string) (*Claims, error) {
	if m.keys == nil {
		return nil, errTokenInvalid
	}

	parser := jwt.NewParser(jwt.WithLeeway(m.allowedSkew))
	claims := &Claims{}

	if _, err := parser.ParseWithClaims(token, claims, m.keys.Keyfunc(ctx)); err != nil {
		m.logger.WithError(err).Debug("token rejected")

		return nil, err
	}

	return claims, nil
}

func (m *Middleware) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	message := "unauthorized"

	if errors.Is(err, errTokenMissing) {
		message = "authorization token missing"
	} else if errors.Is(err, errTokenInvalid) {
		message = "invalid authorization token"
	}

	st := status.New(codes.Unauthenticated, message)
	WriteErrorResponse(w, r, st)
}

var (
	errTokenMissing = errors.New("token missing")
	errTokenInvalid = errors.New("token invalid")
)
