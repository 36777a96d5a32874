// Package middleware holds the gin middleware shared by the HTTP routes.
package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/errs"
	"github.com/vispark/vispark-api/pkg/logger"
)

const (
	headerAPIKey = "X-API-Key"
	headerAuth   = "Authorization"
	bearerPrefix = "Bearer "

	userIDKey = "vispark.user_id"
)

// APIKeyAuth provides API key authentication middleware.
type APIKeyAuth struct {
	apiKeys map[string]bool
	logger  *zap.Logger
}

// NewAPIKeyAuth creates a new API key authentication middleware.
// If no keys are provided, all requests will be rejected.
func NewAPIKeyAuth(apiKeys []string, log *zap.Logger) *APIKeyAuth {
	// Build a map for O(1) lookup
	keyMap := make(map[string]bool, len(apiKeys))
	for _, key := range apiKeys {
		if key != "" {
			keyMap[key] = true
		}
	}

	return &APIKeyAuth{
		apiKeys: keyMap,
		logger:  logger.OrNop(log),
	}
}

// Middleware validates the X-API-Key header, falling back to
// Authorization: Bearer <key>.
func (a *APIKeyAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.isValidAPIKey(extractAPIKey(c.Request)) {
			a.logger.Warn("unauthorized request - invalid or missing API key",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.String("client_ip", c.ClientIP()),
			)
			Abort(c, http.StatusUnauthorized, fmt.Errorf("%w: invalid or missing API key", errs.ErrUnauthenticated))
			return
		}
		c.Next()
	}
}

func extractAPIKey(r *http.Request) string {
	if apiKey := r.Header.Get(headerAPIKey); apiKey != "" {
		return apiKey
	}
	return bearerToken(r)
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get(headerAuth)
	if strings.HasPrefix(authHeader, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
	}
	return ""
}

// isValidAPIKey compares in constant time.
func (a *APIKeyAuth) isValidAPIKey(providedKey string) bool {
	if providedKey == "" || len(a.apiKeys) == 0 {
		return false
	}

	for validKey := range a.apiKeys {
		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(validKey)) == 1 {
			return true
		}
	}

	return false
}

// Claims are the Supabase access token claims the API reads.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuth verifies Supabase access tokens (HS256, signed with the project's
// JWT secret) and stores the user id from the sub claim.
type JWTAuth struct {
	secret []byte
	parser *jwt.Parser
	logger *zap.Logger
}

// NewJWTAuth creates a JWTAuth. An empty secret rejects every request.
func NewJWTAuth(secret string, log *zap.Logger) *JWTAuth {
	return &JWTAuth{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
		logger: logger.OrNop(log),
	}
}

// Middleware rejects requests without a valid bearer token.
func (a *JWTAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := a.Authenticate(bearerToken(c.Request))
		if err != nil {
			a.logger.Debug("rejected bearer token",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			Abort(c, http.StatusUnauthorized, err)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// Authenticate validates a raw token and returns its user id.
func (a *JWTAuth) Authenticate(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, fmt.Errorf("%w: missing bearer token", errs.ErrUnauthenticated)
	}
	if len(a.secret) == 0 {
		return uuid.Nil, fmt.Errorf("%w: jwt secret not configured", errs.ErrUnauthenticated)
	}

	claims := &Claims{}
	_, err := a.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, fmt.Errorf("%w: token expired", errs.ErrUnauthenticated)
		}
		return uuid.Nil, fmt.Errorf("%w: invalid token: %v", errs.ErrUnauthenticated, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: token has no user", errs.ErrUnauthenticated)
	}
	return userID, nil
}

// UserID returns the authenticated user set by JWTAuth.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// SetUserID stores a user id on the context.
func SetUserID(c *gin.Context, id uuid.UUID) {
	c.Set(userIDKey, id)
}

// Abort stops the chain with the standard {"error","message"} body.
func Abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":   errs.Code(err),
		"message": err.Error(),
	})
}
