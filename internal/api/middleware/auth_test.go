package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnc-guild/attendance-engine/internal/domain"
)

func generateKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	publicPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: der,
	})
	return key, string(publicPEM)
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims Claims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestAuthenticateJWT(t *testing.T) {
	key, publicPEM := generateKeyPair(t)
	cfg := AuthConfig{JWTPublicKey: publicPEM}

	t.Run("valid member token", func(t *testing.T) {
		token := signToken(t, key, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "thorgar",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			CharacterID: 42,
			Role:        "member",
		})

		result := Authenticate("Bearer "+token, "", cfg)
		require.NoError(t, result.Error)
		assert.True(t, result.Success)
		assert.Equal(t, "jwt", result.AuthType)
		assert.Equal(t, uint64(42), result.CharacterID)
		assert.Equal(t, domain.RoleMember, result.Role)
	})

	t.Run("officer role carries decision capability", func(t *testing.T) {
		token := signToken(t, key, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			CharacterID: 7,
			Role:        "officer",
		})

		result := Authenticate("Bearer "+token, "", cfg)
		require.True(t, result.Success)
		assert.True(t, result.Role.CanDecide())
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		token := signToken(t, key, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			CharacterID: 7,
			Role:        "overlord",
		})

		result := Authenticate("Bearer "+token, "", cfg)
		assert.False(t, result.Success)
		assert.Error(t, result.Error)
	})

	t.Run("token without character is rejected", func(t *testing.T) {
		token := signToken(t, key, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Role: "member",
		})

		result := Authenticate("Bearer "+token, "", cfg)
		assert.False(t, result.Success)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		token := signToken(t, key, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
			CharacterID: 42,
			Role:        "member",
		})

		result := Authenticate("Bearer "+token, "", cfg)
		assert.False(t, result.Success)
		assert.Error(t, result.Error)
	})

	t.Run("token signed with another key is rejected", func(t *testing.T) {
		otherKey, _ := generateKeyPair(t)
		token := signToken(t, otherKey, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			CharacterID: 42,
			Role:        "member",
		})

		result := Authenticate("Bearer "+token, "", cfg)
		assert.False(t, result.Success)
	})
}

func TestAuthenticateAPIKey(t *testing.T) {
	cfg := AuthConfig{APIKeys: []string{"secret-key"}}

	t.Run("valid key acts as admin", func(t *testing.T) {
		result := Authenticate("APIKey secret-key", "", cfg)
		require.NoError(t, result.Error)
		assert.True(t, result.Success)
		assert.Equal(t, "apikey", result.AuthType)
		assert.Equal(t, domain.RoleAdmin, result.Role)
		assert.Zero(t, result.CharacterID)
	})

	t.Run("acting character header binds the actor", func(t *testing.T) {
		result := Authenticate("APIKey secret-key", "17", cfg)
		require.True(t, result.Success)
		assert.Equal(t, uint64(17), result.CharacterID)
	})

	t.Run("malformed acting character header is rejected", func(t *testing.T) {
		result := Authenticate("APIKey secret-key", "not-a-number", cfg)
		assert.False(t, result.Success)
		assert.Error(t, result.Error)
	})

	t.Run("invalid key is rejected", func(t *testing.T) {
		result := Authenticate("APIKey wrong", "", cfg)
		assert.False(t, result.Success)
	})
}

func TestAuthenticateHeaderShapes(t *testing.T) {
	cfg := AuthConfig{APIKeys: []string{"secret-key"}}

	t.Run("missing header", func(t *testing.T) {
		result := Authenticate("", "", cfg)
		assert.False(t, result.Success)
		assert.Error(t, result.Error)
	})

	t.Run("malformed header", func(t *testing.T) {
		result := Authenticate("Bearer", "", cfg)
		assert.False(t, result.Success)
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		result := Authenticate("Basic dXNlcjpwYXNz", "", cfg)
		assert.False(t, result.Success)
	})
}
