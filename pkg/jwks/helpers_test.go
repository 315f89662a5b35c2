package jwks

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newRSAKey(t *testing.T, kid string) (*rsa.PrivateKey, JSONWebKey) {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate rsa key: %v", err)
	}

	return priv, JSONWebKey{
		Kid: kid,
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(priv.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(priv.E)).Bytes()),
	}
}

func newECKey(t *testing.T, kid string) (*ecdsa.PrivateKey, JSONWebKey) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate ec key: %v", err)
	}

	return priv, JSONWebKey{
		Kid: kid,
		Kty: "EC",
		Use: "sig",
		Alg: "ES256",
		Crv: "P-256",
		X:   base64.RawURLEncoding.EncodeToString(priv.X.FillBytes(make([]byte, 32))),
		Y:   base64.RawURLEncoding.EncodeToString(priv.Y.FillBytes(make([]byte, 32))),
	}
}

func newX5CKey(t *testing.T, kid string) (*x509.Certificate, JSONWebKey) {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate rsa key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "my-authz-server"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}

	return cert, JSONWebKey{
		Kid: kid,
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		X5C: []string{base64.StdEncoding.EncodeToString(der)},
	}
}

type jwksServer struct {
	*httptest.Server
	hits    atomic.Int32
	headers atomic.Value
}

func newJWKSServer(t *testing.T, status int, body []byte) *jwksServer {
	t.Helper()

	srv := &jwksServer{}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.hits.Add(1)
		srv.headers.Store(r.Header.Clone())

		if r.URL.Path != "/.well-known/jwks.json" {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))

	t.Cleanup(srv.Close)

	return srv
}

func (s *jwksServer) URI() string {
	return s.URL + "/.well-known/jwks.json"
}

func (s *jwksServer) Hits() int {
	return int(s.hits.Load())
}

func (s *jwksServer) LastHeaders() http.Header {
	h, _ := s.headers.Load().(http.Header)

	return h
}

func jwksBody(t *testing.T, keys ...JSONWebKey) []byte {
	t.Helper()

	if keys == nil {
		keys = []JSONWebKey{}
	}

	body, err := json.Marshal(jsonWebKeySet{Keys: keys})
	if err != nil {
		t.Fatalf("failed to marshal jwks: %v", err)
	}

	return body
}

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	return client
}
