package protocol

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// TenantClaim extracts the tenant identifier from a bearer token's
// payload without verifying its signature.
//
// This is a deliberate trust decision, not an oversight: the local
// transport only operates inside a tenant's own network, and the claim
// comparison is a coarse guard against accidental cross-tenant control,
// not authentication. The cloud path authorizes at the broker instead.
func TenantClaim(token string) (string, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("error decoding token: %w", err)
	}

	for _, key := range []string{"tenantId", "tenant_id", "tid"} {
		if v, ok := claims[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, nil
			}
		}
	}
	return "", fmt.Errorf("token has no tenant claim")
}
