// Package testhelpers provides utilities for testing scorecard components.
package testhelpers

import (
	"encoding/base64"
	"encoding/json"
)

// GenerateTestJWT creates an unsigned token (alg: none) for use when token
// verification is disabled. The token is issued for the scorecard audience.
func GenerateTestJWT(username string, roles ...string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))

	claims := map[string]any{
		"sub":                username,
		"aud":                "scorecard",
		"preferred_username": username,
	}
	if len(roles) > 0 {
		claims["roles"] = roles
	}
	payload, _ := json.Marshal(claims)

	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + "."
}

// GenerateTestJWTWithBearer returns the token with the "Bearer " prefix of
// an Authorization header.
func GenerateTestJWTWithBearer(username string, roles ...string) string {
	return "Bearer " + GenerateTestJWT(username, roles...)
}
