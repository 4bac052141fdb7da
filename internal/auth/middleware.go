package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ContextKeyUserID   = "user_id"
	ContextKeyEmail    = "user_email"
	ContextKeyUsername = "user_username"
	ContextKeyClaims   = "user_claims"
)

// Middleware authenticates requests with a Bearer access token.
func Middleware(validator *Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   ErrUnauthorized.Code,
				"message": "missing or malformed authorization header",
			})
			return
		}

		claims, err := validator.ValidateAccessToken(tokenString)
		if err != nil {
			authErr, ok := err.(AuthError)
			if !ok {
				authErr = ErrInvalidToken
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   authErr.Code,
				"message": authErr.Message,
			})
			return
		}

		setUserContext(c, claims)
		c.Next()
	}
}

// OptionalMiddleware sets user context when a valid token is present but
// never rejects the request.
func OptionalMiddleware(validator *Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, ok := bearerToken(c); ok {
			if claims, err := validator.ValidateAccessToken(tokenString); err == nil {
				setUserContext(c, claims)
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func setUserContext(c *gin.Context, claims *UserClaims) {
	c.Set(ContextKeyUserID, claims.UserID)
	c.Set(ContextKeyEmail, claims.Email)
	c.Set(ContextKeyUsername, claims.Username)
	c.Set(ContextKeyClaims, claims)
}

// GetUserID extracts the user ID from the Gin context.
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get(ContextKeyUserID); exists {
		return userID.(string)
	}
	return ""
}

// GetUserClaims extracts the full user claims from the Gin context.
func GetUserClaims(c *gin.Context) *UserClaims {
	if claims, exists := c.Get(ContextKeyClaims); exists {
		return claims.(*UserClaims)
	}
	return nil
}
