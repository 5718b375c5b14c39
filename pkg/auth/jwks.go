package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidAudience is returned for tokens not issued for this service.
var ErrInvalidAudience = errors.New("token audience does not include this service")

// TokenValidator validates a raw JWT and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
	Close()
}

// JWKSConfig contains configuration for the JWKS client.
type JWKSConfig struct {
	// EnableVerification controls whether JWT signatures are verified.
	// Without it tokens are only parsed, for local development.
	EnableVerification bool
	// JWKSEndpoints maps issuer URLs to their JWKS endpoint URLs.
	JWKSEndpoints map[string]string
	// Audience, when set, must be one of the token's audiences.
	Audience string
}

// JWKSClient validates JWT signatures with the public keys published by
// the configured issuers. Tokens from other issuers are rejected.
type JWKSClient struct {
	keys   map[string]keyfunc.Keyfunc
	cancel context.CancelFunc
	config *JWKSConfig
}

// NewJWKSClient fetches the key sets of all configured issuers. Key sets
// are refreshed in the background until Close is called.
func NewJWKSClient(config *JWKSConfig) (*JWKSClient, error) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &JWKSClient{
		keys:   make(map[string]keyfunc.Keyfunc),
		cancel: cancel,
		config: config,
	}

	if !config.EnableVerification {
		return client, nil
	}

	for issuer, jwksURL := range config.JWKSEndpoints {
		kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create JWKS client for %s: %w", issuer, err)
		}
		client.keys[issuer] = kf
	}

	return client, nil
}

// ValidateToken verifies the token signature against its issuer's keys and
// returns the claims.
func (c *JWKSClient) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := c.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if c.config.Audience != "" && !slices.Contains(claims.Audience, c.config.Audience) {
		return nil, ErrInvalidAudience
	}
	return claims, nil
}

func (c *JWKSClient) parse(tokenString string) (*Claims, error) {
	if !c.config.EnableVerification {
		parser := jwt.NewParser(jwt.WithoutClaimsValidation())
		claims := &Claims{}
		if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
			return nil, fmt.Errorf("failed to parse token: %w", err)
		}
		return claims, nil
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		kf, ok := c.keys[claims.Issuer]
		if !ok {
			return nil, fmt.Errorf("unauthorized issuer: %s", claims.Issuer)
		}
		return kf.Keyfunc(token)
	}, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384"}))
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	return claims, nil
}

// Close stops the background key set refresh.
func (c *JWKSClient) Close() {
	c.cancel()
}

var _ TokenValidator = (*JWKSClient)(nil)
