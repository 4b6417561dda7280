package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mealsnap/backend/internal/models"
	"github.com/mealsnap/backend/internal/types"
)

// TokenValidator is an interface for validating JWT tokens
type TokenValidator interface {
	ValidateToken(token string) (*types.TokenClaims, error)
}

// AuthMiddleware creates a middleware that requires a valid JWT token
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := claimsFromHeader(c, validator)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID.String())
		c.Set("user_name", claims.Name)
		c.Next()
	}
}

// PermissiveAuthMiddleware resolves the user when it can but never blocks
// the request: a missing or invalid token yields the unknown-user sentinel.
// The meal-capture routes run behind this so a failed identity resolution
// degrades a save instead of rejecting it.
func PermissiveAuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := claimsFromHeader(c, validator)
		if err != nil {
			c.Set("user_id", models.UnknownUserID)
			c.Next()
			return
		}

		c.Set("user_id", claims.UserID.String())
		c.Set("user_name", claims.Name)
		c.Next()
	}
}

// CurrentUserID returns the user id resolved by the auth middleware, or the
// unknown-user sentinel when nothing was set.
func CurrentUserID(c *gin.Context) string {
	if id, ok := c.Get("user_id"); ok {
		if s, ok := id.(string); ok && s != "" {
			return s
		}
	}
	return models.UnknownUserID
}

type authError string

func (e authError) Error() string { return string(e) }

func claimsFromHeader(c *gin.Context, validator TokenValidator) (*types.TokenClaims, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, authError("missing authorization header")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, authError("invalid authorization header format")
	}

	return validator.ValidateToken(parts[1])
}
