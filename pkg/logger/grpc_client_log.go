package logger

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

func ClientLoggingInterceptor(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	start := time.Now()

	err := invoker(ctx, method, req, reply, cc, opts...)

	entry := logrus.WithFields(logrus.Fields{
		"scope":       "grpc.client",
		"method":      method,
		"code":        status.Code(err).String(),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if err != nil {
		entry.WithError(err).Warn("grpc call failed")
	} else {
		entry.Debug("grpc call finished")
	}

	return err
}
