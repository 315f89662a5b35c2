package transport

import (
	"fmt"

	"github.com/invenlore/jwks.resolver/pkg/logger"
	identity_v1 "github.com/invenlore/proto/pkg/identity/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// NewIdentityClient creates a lazily connecting client for the identity service.
func NewIdentityClient(addr string) (*grpc.ClientConn, identity_v1.IdentityInternalServiceClient, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(logger.ClientLoggingInterceptor),
	}

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create identity client for %s: %w", addr, err)
	}

	return conn, identity_v1.NewIdentityInternalServiceClient(conn), nil
}
