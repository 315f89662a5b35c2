package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/invenlore/jwks.resolver/pkg/jwks"
	"github.com/invenlore/jwks.resolver/pkg/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func decodeStatus(t *testing.T, recorder *httptest.ResponseRecorder) (map[string]any, map[string]any) {
	t.Helper()

	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	statusObj, ok := payload["status"].(map[string]any)
	if !ok {
		t.Fatalf("expected status object in response")
	}

	return payload, statusObj
}

func TestWriteErrorResponseBasic(t *testing.T) {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set(logger.RequestIDHeader, "req-123")

	WriteErrorResponse(recorder, request, status.New(codes.NotFound, "not found"))

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", recorder.Code)
	}

	payload, statusObj := decodeStatus(t, recorder)

	if statusObj["code"] != codes.NotFound.String() {
		t.Fatalf("expected code %s, got %v", codes.NotFound.String(), statusObj["code"])
	}

	if statusObj["message"] != "not found" {
		t.Fatalf("expected message 'not found', got %v", statusObj["message"])
	}

	if payload["request_id"] != "req-123" {
		t.Fatalf("expected request_id req-123, got %v", payload["request_id"])
	}
}

func TestStatusFromErrorTable(t *testing.T) {
	testCases := []struct {
		name           string
		err            error
		expectCode     codes.Code
		expectHTTPCode int
		expectReason   string
		expectDetails  int
	}{
		{
			name:           "signing key not found",
			err:            &jwks.SigningKeyNotFoundError{Kid: "abc", Message: "Unable to find a signing key that matches 'abc'"},
			expectCode:     codes.NotFound,
			expectHTTPCode: http.StatusNotFound,
			expectReason:   "SIGNING_KEY_NOT_FOUND",
			expectDetails:  1,
		},
		{
			name:           "rate limited",
			err:            fmt.Errorf("resolve: %w", &jwks.RateLimitError{Limit: 10}),
			expectCode:     codes.ResourceExhausted,
			expectHTTPCode: http.StatusTooManyRequests,
			expectReason:   "JWKS_RATE_LIMITED",
			expectDetails:  2,
		},
		{
			name:           "fetch failed",
			err:            &jwks.FetchError{URI: "http://my-authz-server/.well-known/jwks.json", StatusCode: 500, Err: errors.New("boom")},
			expectCode:     codes.Unavailable,
			expectHTTPCode: http.StatusServiceUnavailable,
			expectReason:   "JWKS_FETCH_FAILED",
			expectDetails:  1,
		},
		{
			name:           "configuration",
			err:            &jwks.ConfigurationError{Field: "JWKSURI", Message: "jwks uri is required"},
			expectCode:     codes.FailedPrecondition,
			expectHTTPCode: http.StatusBadRequest,
		},
		{
			name:           "grpc status passthrough",
			err:            status.Error(codes.PermissionDenied, "denied"),
			expectCode:     codes.PermissionDenied,
			expectHTTPCode: http.StatusForbidden,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			st := StatusFromError(tc.err)
			if st.Code() != tc.expectCode {
				t.Fatalf("expected code %s, got %s", tc.expectCode, st.Code())
			}

			recorder := httptest.NewRecorder()
			request := httptest.NewRequest(http.MethodGet, "/", nil)
			request.Header.Set(logger.RequestIDHeader, "req-789")

			WriteErrorResponse(recorder, request, st)

			if recorder.Code != tc.expectHTTPCode {
				t.Fatalf("expected http %d, got %d", tc.expectHTTPCode, recorder.Code)
			}

			_, statusObj := decodeStatus(t, recorder)

			details, _ := statusObj["details"].([]any)
			if len(details) != tc.expectDetails {
				t.Fatalf("expected %d details, got %d", tc.expectDetails, len(details))
			}

			if tc.expectReason == "" {
				return
			}

			firstDetail := details[0].(map[string]any)
			if firstDetail["@type"] != "google.rpc.ErrorInfo" || firstDetail["reason"] != tc.expectReason {
				t.Fatalf("expected ErrorInfo with reason %s, got %v", tc.expectReason, firstDetail)
			}
		})
	}
}

func TestStatusFromErrorRetryDelay(t *testing.T) {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteErrorResponse(recorder, request, StatusFromError(&jwks.RateLimitError{Limit: 10}))

	_, statusObj := decodeStatus(t, recorder)
	details := statusObj["details"].([]any)

	retry := details[1].(map[string]any)
	if retry["@type"] != "google.rpc.RetryInfo" {
		t.Fatalf("expected RetryInfo, got %v", retry["@type"])
	}

	if retry["retry_delay"] != "6s" {
		t.Fatalf("expected retry delay 6s, got %v", retry["retry_delay"])
	}
}
