package jwks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

const maxJWKSBodyBytes = 1 << 20

// HTTPKeySource fetches the JWKS document with a single GET per call. It never retries.
type HTTPKeySource struct {
	uri     string
	client  *http.Client
	headers map[string]string
}

var _ KeySource = (*HTTPKeySource)(nil)

// NewHTTPKeySource uses a pooled cleanhttp client with the given timeout when client is nil.
func NewHTTPKeySource(uri string, client *http.Client, timeout time.Duration, headers map[string]string) *HTTPKeySource {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
		client.Timeout = timeout
	}

	copied := make(map[string]string, len(headers))
	for name, value := range headers {
		copied[name] = value
	}

	return &HTTPKeySource{
		uri:     uri,
		client:  client,
		headers: copied,
	}
}

func (s *HTTPKeySource) FetchKeys(ctx context.Context) ([]JSONWebKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.uri, nil)
	if err != nil {
		return nil, &FetchError{URI: s.uri, Err: fmt.Errorf("build request: %w", err)}
	}

	req.Header.Set("Accept", "application/json")
	for name, value := range s.headers {
		req.Header.Set(name, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &FetchError{URI: s.uri, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBodyBytes))
	if err != nil {
		return nil, &FetchError{URI: s.uri, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URI: s.uri, StatusCode: resp.StatusCode, Err: errors.New(statusMessage(resp, body))}
	}

	keys, err := ParseJWKS(body)
	if err != nil {
		return nil, &FetchError{URI: s.uri, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode jwks: %w", err)}
	}

	return keys, nil
}

func statusMessage(resp *http.Response, body []byte) string {
	if len(body) > 0 && len(body) <= 512 {
		return string(body)
	}

	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}

	return "unexpected status"
}
