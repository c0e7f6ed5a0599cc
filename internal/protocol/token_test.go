package protocol_test

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versewall/versewall/internal/protocol"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestTenantClaim(t *testing.T) {
	tests := []struct {
		name    string
		claims  jwt.MapClaims
		want    string
		wantErr bool
	}{
		{
			name:   "tenantId claim",
			claims: jwt.MapClaims{"tenantId": "church-1", "sub": "user-1"},
			want:   "church-1",
		},
		{
			name:   "snake case fallback",
			claims: jwt.MapClaims{"tenant_id": "church-2"},
			want:   "church-2",
		},
		{
			name:   "tid fallback",
			claims: jwt.MapClaims{"tid": "church-3"},
			want:   "church-3",
		},
		{
			name:    "no tenant claim",
			claims:  jwt.MapClaims{"sub": "user-1"},
			wantErr: true,
		},
		{
			name:    "empty tenant claim",
			claims:  jwt.MapClaims{"tenantId": ""},
			wantErr: true,
		},
		{
			name:    "non-string tenant claim",
			claims:  jwt.MapClaims{"tenantId": 42},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tenant, err := protocol.TenantClaim(signedToken(t, tt.claims))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tenant)
		})
	}

	t.Run("garbage token", func(t *testing.T) {
		_, err := protocol.TenantClaim("not-a-token")
		assert.Error(t, err)
	})
}
