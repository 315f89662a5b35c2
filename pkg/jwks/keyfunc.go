package jwks

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Keyfunc resolves the verification key of a token from its "kid" header.
func (c *Client) Keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if token == nil || token.Method == nil {
			return nil, errors.New("token is invalid")
		}

		kid, _ := token.Header["kid"].(string)

		key, err := c.GetSigningKey(ctx, kid)
		if err != nil {
			return nil, err
		}

		return key.PublicKey(), nil
	}
}
