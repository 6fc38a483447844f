package middleware

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/bnc-guild/attendance-engine/internal/domain"
	"github.com/bnc-guild/attendance-engine/internal/logger"
)

const (
	AUTH_TYPE_KEY      = "auth_type"
	ACTOR_CHARACTER_ID = "actor_character_id"
	ACTOR_ROLE_KEY     = "actor_role"
	JWT_CLAIMS_KEY     = "jwt_claims"
)

// actingCharacterHeader lets API-key callers state which character acts on
// their behalf; JWT callers carry it in the token instead
const actingCharacterHeader = "X-Acting-Character"

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTPublicKey string // RSA public key in PEM format
	APIKeys      []string
}

// Claims are the JWT claims issued by the guild's auth service. The character
// id and role bind the token to one roster entry.
type Claims struct {
	jwt.RegisteredClaims
	CharacterID uint64 `json:"character_id"`
	Role        string `json:"role"`
}

// AuthResult holds the result of authentication
type AuthResult struct {
	Success     bool
	AuthType    string // "jwt" or "apikey"
	Claims      *Claims
	CharacterID uint64
	Role        domain.Role
	Error       error
}

// Authenticate validates the Authorization header and returns the
// authentication result. API-key callers act with admin capability; their
// acting character, when needed, comes from the X-Acting-Character header.
func Authenticate(authHeader, actingCharacter string, cfg AuthConfig) AuthResult {
	// Create a map for faster API key lookup
	apiKeyMap := make(map[string]bool)
	for _, key := range cfg.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	result := AuthResult{
		Success: false,
	}

	if authHeader == "" {
		result.Error = errors.New("missing Authorization header")
		return result
	}

	// Parse the authorization header
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		result.Error = errors.New("invalid Authorization header format")
		return result
	}

	authType := strings.ToLower(parts[0])
	credentials := parts[1]

	switch authType {
	case "bearer":
		// JWT authentication
		claims, err := validateJWT(credentials, cfg.JWTPublicKey)
		if err != nil {
			result.Error = err
			return result
		}
		role := domain.Role(strings.ToLower(claims.Role))
		if role != domain.RoleMember && !role.CanDecide() {
			result.Error = fmt.Errorf("unknown role in token: %s", claims.Role)
			return result
		}
		if claims.CharacterID == 0 {
			result.Error = errors.New("token carries no character")
			return result
		}
		result.Success = true
		result.AuthType = "jwt"
		result.Claims = claims
		result.CharacterID = claims.CharacterID
		result.Role = role

	case "apikey":
		// API Key authentication
		err := validateAPIKey(credentials, apiKeyMap)
		if err != nil {
			result.Error = err
			return result
		}
		result.Success = true
		result.AuthType = "apikey"
		result.Role = domain.RoleAdmin
		if actingCharacter != "" {
			id, err := strconv.ParseUint(actingCharacter, 10, 64)
			if err != nil {
				result.Success = false
				result.Error = fmt.Errorf("invalid %s header: %w", actingCharacterHeader, err)
				return result
			}
			result.CharacterID = id
		}

	default:
		result.Error = fmt.Errorf("unsupported authorization type: %s", authType)
		return result
	}

	return result
}

// Auth returns a gin middleware for authentication
// It supports both JWT (Bearer token) and API Key authentication
func Auth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		result := Authenticate(authHeader, c.GetHeader(actingCharacterHeader), cfg)

		if !result.Success {
			logger.Warn("Authentication failed",
				zap.Error(result.Error),
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Authentication failed",
					"details": result.Error.Error(),
				},
			})
			return
		}

		// Store authentication info in context
		c.Set(AUTH_TYPE_KEY, result.AuthType)
		c.Set(ACTOR_CHARACTER_ID, result.CharacterID)
		c.Set(ACTOR_ROLE_KEY, result.Role)
		if result.Claims != nil {
			c.Set(JWT_CLAIMS_KEY, result.Claims)
			logger.Debug("JWT authentication successful",
				zap.String("path", c.Request.URL.Path),
				zap.Uint64("character_id", result.CharacterID),
				zap.String("role", string(result.Role)),
			)
		} else {
			logger.Debug("API Key authentication successful",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
		}

		c.Next()
	}
}

// Actor returns the authenticated actor's character id and role. It is only
// meaningful on routes behind Auth.
func Actor(c *gin.Context) (uint64, domain.Role) {
	id, _ := c.Get(ACTOR_CHARACTER_ID)
	role, _ := c.Get(ACTOR_ROLE_KEY)
	characterID, _ := id.(uint64)
	actorRole, ok := role.(domain.Role)
	if !ok {
		actorRole = domain.RoleGuest
	}
	return characterID, actorRole
}

// RequireOfficer aborts the request unless the actor may approve, reject and
// perform the other privileged mutations.
func RequireOfficer() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, role := Actor(c)
		if !role.CanDecide() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "forbidden",
					"message": "Officer capability required",
				},
			})
			return
		}
		c.Next()
	}
}

// validateJWT validates a JWT token with RSA signature and returns claims
func validateJWT(tokenString string, publicKeyPEM string) (*Claims, error) {
	if publicKeyPEM == "" {
		return nil, errors.New("JWT public key not configured")
	}

	// Parse the RSA public key
	publicKey, err := parseRSAPublicKey(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
	}

	// Parse and validate the token with claims
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is RSA
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return publicKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	// Validate standard claims
	now := time.Now()

	// Check expiration
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(now) {
		return nil, errors.New("token has expired")
	}

	// Check not before
	if claims.NotBefore != nil && claims.NotBefore.After(now) {
		return nil, errors.New("token not yet valid")
	}

	return claims, nil
}

// parseRSAPublicKey parses an RSA public key from PEM format
func parseRSAPublicKey(publicKeyPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, errors.New("failed to parse PEM block containing public key")
	}

	// Try parsing as PKIX (most common format)
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		// Try parsing as PKCS1 format
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}

	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not an RSA key")
	}

	return rsaKey, nil
}

// validateAPIKey validates an API key
func validateAPIKey(apiKey string, validKeys map[string]bool) error {
	if len(validKeys) == 0 {
		return errors.New("no API keys configured")
	}

	if !validKeys[apiKey] {
		return errors.New("invalid API key")
	}

	return nil
}
