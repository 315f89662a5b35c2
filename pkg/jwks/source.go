package jwks

import "context"

// KeySource supplies the raw records of a JWKS document.
type KeySource interface {
	FetchKeys(ctx context.Context) ([]JSONWebKey, error)
}

// InterceptorFunc adapts a plain function to a KeySource.
type InterceptorFunc func(ctx context.Context) ([]JSONWebKey, error)

func (f InterceptorFunc) FetchKeys(ctx context.Context) ([]JSONWebKey, error) {
	return f(ctx)
}

// StaticKeySource always returns the same records.
type StaticKeySource struct {
	keys []JSONWebKey
}

var _ KeySource = (*StaticKeySource)(nil)

func NewStaticKeySource(keys []JSONWebKey) *StaticKeySource {
	copied := make([]JSONWebKey, len(keys))
	copy(copied, keys)

	return &StaticKeySource{keys: copied}
}

func (s *StaticKeySource) FetchKeys(_ context.Context) ([]JSONWebKey, error) {
	return s.keys, nil
}
