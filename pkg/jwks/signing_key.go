package jwks

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/sirupsen/logrus"
)

// JSONWebKey is a raw record of the "keys" array of a JWKS document.
type JSONWebKey struct {
	Kid string   `json:"kid,omitempty"`
	Kty string   `json:"kty"`
	Use string   `json:"use,omitempty"`
	Alg string   `json:"alg,omitempty"`
	N   string   `json:"n,omitempty"`
	E   string   `json:"e,omitempty"`
	Crv string   `json:"crv,omitempty"`
	X   string   `json:"x,omitempty"`
	Y   string   `json:"y,omitempty"`
	X5C []string `json:"x5c,omitempty"`
}

type jsonWebKeySet struct {
	Keys []JSONWebKey `json:"keys"`
}

// ParseJWKS decodes a JWKS document.
func ParseJWKS(raw []byte) ([]JSONWebKey, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("jwks payload is empty")
	}

	var parsed jsonWebKeySet
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}

	if parsed.Keys == nil {
		return nil, fmt.Errorf("jwks payload has no keys member")
	}

	return parsed.Keys, nil
}

// SigningKey is a verification key resolved from a JWKS record.
// Key material comes from the first x5c certificate when present, otherwise from the JWK parameters.
type SigningKey struct {
	Kid string
	Alg string
	Kty string
	Use string

	Certificate *x509.Certificate

	publicKey any
}

func (key *SigningKey) PublicKey() any {
	if key == nil {
		return nil
	}

	return key.publicKey
}

// PublicKeyPEM returns a CERTIFICATE block for x5c keys and a PUBLIC KEY block otherwise.
func (key *SigningKey) PublicKeyPEM() (string, error) {
	if key == nil {
		return "", fmt.Errorf("signing key is nil")
	}

	if key.Certificate != nil {
		return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: key.Certificate.Raw})), nil
	}

	der, err := x509.MarshalPKIXPublicKey(key.publicKey)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}

	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// NewSigningKey builds a SigningKey from a raw record.
func NewSigningKey(record JSONWebKey) (*SigningKey, error) {
	key := &SigningKey{
		Kid: record.Kid,
		Alg: record.Alg,
		Kty: record.Kty,
		Use: record.Use,
	}

	if len(record.X5C) > 0 {
		cert, err := parseCertificate(record.X5C[0])
		if err != nil {
			return nil, fmt.Errorf("decode x5c: %w", err)
		}

		key.Certificate = cert
		key.publicKey = cert.PublicKey

		return key, nil
	}

	publicKey, err := record.toPublicKey()
	if err != nil {
		return nil, err
	}

	key.publicKey = publicKey

	return key, nil
}

func (record JSONWebKey) toPublicKey() (any, error) {
	stripped := record
	stripped.X5C = nil

	encoded, err := json.Marshal(stripped)
	if err != nil {
		return nil, err
	}

	parsed, err := jwk.ParseKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("parse jwk: %w", err)
	}

	raw, err := jwk.PublicRawKeyOf(parsed)
	if err != nil {
		return nil, fmt.Errorf("extract public key: %w", err)
	}

	return normalizePublicKey(raw)
}

func normalizePublicKey(raw any) (any, error) {
	switch k := raw.(type) {
	case *rsa.PublicKey:
		return k, nil
	case rsa.PublicKey:
		return &k, nil
	case *ecdsa.PublicKey:
		return k, nil
	case ecdsa.PublicKey:
		return &k, nil
	case ed25519.PublicKey:
		return k, nil
	default:
		return nil, fmt.Errorf("unsupported public key type: %T", raw)
	}
}

func parseCertificate(value string) (*x509.Certificate, error) {
	if value == "" {
		return nil, errors.New("empty certificate")
	}

	der, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, err
	}

	return x509.ParseCertificate(der)
}

// retrieveSigningKeys keeps the records usable for signature verification, in order.
func retrieveSigningKeys(records []JSONWebKey, logger *logrus.Entry) []SigningKey {
	keys := make([]SigningKey, 0, len(records))

	for _, record := range records {
		if record.Use != "" && record.Use != "sig" {
			continue
		}

		key, err := NewSigningKey(record)
		if err != nil {
			if logger != nil {
				logger.WithError(err).WithField("kid", record.Kid).Debug("skipping unusable jwk")
			}

			continue
		}

		keys = append(keys, *key)
	}

	return keys
}

// findSigningKey returns a copy of the first key matching kid. An empty kid matches only a single-key set.
func findSigningKey(keys []SigningKey, kid string) (*SigningKey, error) {
	if kid == "" {
		switch len(keys) {
		case 0:
			return nil, newSigningKeyNotFoundError(kid)
		case 1:
			key := keys[0]
			return &key, nil
		default:
			return nil, &SigningKeyNotFoundError{Message: "No KID specified and JWKS endpoint returned more than 1 key"}
		}
	}

	for i := range keys {
		if keys[i].Kid == kid {
			key := keys[i]
			return &key, nil
		}
	}

	return nil, newSigningKeyNotFoundError(kid)
}
