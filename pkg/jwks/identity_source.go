package jwks

import (
	"context"
	"fmt"

	identity_v1 "github.com/invenlore/proto/pkg/identity/v1"
)

// IdentityKeySource reads the key set from the identity service over gRPC.
type IdentityKeySource struct {
	client identity_v1.IdentityInternalServiceClient
}

var _ KeySource = (*IdentityKeySource)(nil)

func NewIdentityKeySource(client identity_v1.IdentityInternalServiceClient) *IdentityKeySource {
	return &IdentityKeySource{client: client}
}

func (s *IdentityKeySource) FetchKeys(ctx context.Context) ([]JSONWebKey, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("identity client is nil")
	}

	resp, err := s.client.GetJWKS(ctx, &identity_v1.GetJWKSRequest{})
	if err != nil {
		return nil, err
	}

	if resp == nil || resp.Jwks == nil {
		return nil, fmt.Errorf("identity jwks response is empty")
	}

	return fromIdentitySet(resp.Jwks), nil
}

func fromIdentitySet(set *identity_v1.JWKSet) []JSONWebKey {
	keys := make([]JSONWebKey, 0, len(set.Keys))

	for _, key := range set.Keys {
		if key == nil {
			continue
		}

		keys = append(keys, JSONWebKey{
			Kid: key.Kid,
			Kty: key.Kty,
			Use: key.Use,
			Alg: key.Alg,
			N:   key.N,
			E:   key.E,
			Crv: key.Crv,
			X:   key.X,
			Y:   key.Y,
		})
	}

	return keys
}
