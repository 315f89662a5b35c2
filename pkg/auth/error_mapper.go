package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/invenlore/jwks.resolver/pkg/jwks"
	"github.com/invenlore/jwks.resolver/pkg/logger"
	"github.com/sirupsen/logrus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
)

const errorDomain = "jwks.invenlore"

// ErrorMapper plugs into runtime.WithErrorHandler.
type ErrorMapper struct {
	Logger *logrus.Entry
}

func (m *ErrorMapper) Handler(_ context.Context, _ *runtime.ServeMux, _ runtime.Marshaler, w http.ResponseWriter, r *http.Request, err error) {
	st := StatusFromError(err)

	if m.Logger != nil {
		m.Logger.WithError(err).WithFields(logrus.Fields{
			"code": st.Code().String(),
			"path": r.URL.Path,
		}).Debug("request failed")
	}

	WriteErrorResponse(w, r, st)
}

// StatusFromError maps resolver errors onto gRPC codes; anything else goes through status.Convert.
func StatusFromError(err error) *status.Status {
	var (
		cfgErr      *jwks.ConfigurationError
		notFoundErr *jwks.SigningKeyNotFoundError
		rateErr     *jwks.RateLimitError
		fetchErr    *jwks.FetchError
	)

	switch {
	case err == nil:
		return status.New(codes.OK, "")
	case errors.As(err, &notFoundErr):
		st := status.New(codes.NotFound, notFoundErr.Error())

		detailed, attachErr := st.WithDetails(&errdetails.ErrorInfo{
			Reason:   "SIGNING_KEY_NOT_FOUND",
			Domain:   errorDomain,
			Metadata: map[string]string{"kid": notFoundErr.Kid},
		})
		if attachErr != nil {
			return st
		}

		return detailed
	case errors.As(err, &rateErr):
		st := status.New(codes.ResourceExhausted, rateErr.Error())

		detailed, attachErr := st.WithDetails(
			&errdetails.ErrorInfo{Reason: "JWKS_RATE_LIMITED", Domain: errorDomain},
			&errdetails.RetryInfo{RetryDelay: durationpb.New(retryDelay(rateErr.Limit))},
		)
		if attachErr != nil {
			return st
		}

		return detailed
	case errors.As(err, &fetchErr):
		st := status.New(codes.Unavailable, fetchErr.Error())

		detailed, attachErr := st.WithDetails(&errdetails.ErrorInfo{
			Reason:   "JWKS_FETCH_FAILED",
			Domain:   errorDomain,
			Metadata: map[string]string{"status": strconv.Itoa(fetchErr.StatusCode)},
		})
		if attachErr != nil {
			return st
		}

		return detailed
	case errors.As(err, &cfgErr):
		return status.New(codes.FailedPrecondition, cfgErr.Error())
	default:
		return status.Convert(err)
	}
}

func retryDelay(perMinute int) time.Duration {
	if perMinute <= 0 {
		return time.Minute
	}

	return time.Minute / time.Duration(perMinute)
}

type errorResponse struct {
	Status    errorStatus `json:"status"`
	RequestID string      `json:"request_id,omitempty"`
}

type errorStatus struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []interface{} `json:"details,omitempty"`
}

func WriteErrorResponse(w http.ResponseWriter, r *http.Request, st *status.Status) {
	statusCode := runtime.HTTPStatusFromCode(st.Code())
	requestID := r.Header.Get(logger.RequestIDHeader)

	response := errorResponse{
		Status: errorStatus{
			Code:    st.Code().String(),
			Message: st.Message(),
			Details: mapDetails(st.Details()),
		},
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func mapDetails(details []interface{}) []interface{} {
	if len(details) == 0 {
		return nil
	}

	mapped := make([]interface{}, 0, len(details))
	for _, detail := range details {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			mapped = append(mapped, map[string]interface{}{
				"@type":    "google.rpc.ErrorInfo",
				"reason":   d.Reason,
				"domain":   d.Domain,
				"metadata": d.Metadata,
			})
		case *errdetails.RetryInfo:
			mapped = append(mapped, map[string]interface{}{
				"@type":       "google.rpc.RetryInfo",
				"retry_delay": d.RetryDelay.AsDuration().String(),
			})
		default:
			mapped = append(mapped, map[string]interface{}{
				"@type": fmt.Sprintf("%T", detail),
				"value": detail,
			})
		}
	}

	return mapped
}
