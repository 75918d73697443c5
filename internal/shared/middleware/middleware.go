package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"waitly/internal/shared/config"
	"waitly/internal/shared/utils/request"
	"waitly/internal/shared/utils/response"
	"waitly/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// WaitlistAccessChecker decides whether an organization may manage a waitlist
type WaitlistAccessChecker interface {
	GetWaitlistAccess(ctx context.Context, organizationID string, waitlistID uuid.UUID) error
}

// JWTAuth validates the bearer access token and exposes its user_id,
// organization_id and role claims on the gin context
func JWTAuth(cfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "Authorization header is required", nil, nil)
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "authorization header format must be Bearer {token}", nil, nil)
			c.Abort()
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.Secret), nil
		})
		if err != nil || !token.Valid {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid or expired token", nil, nil)
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid token claims", nil, nil)
			c.Abort()
			return
		}
		if tokenType, ok := claims["type"]; !ok || tokenType != "access" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid token type", nil, nil)
			c.Abort()
			return
		}

		c.Set("user_id", claims["user_id"])
		c.Set("organization_id", claims["organization_id"])
		c.Set("user_role", claims["role"])

		c.Next()
	}
}

// RequireRoles middleware checks if user has any of the required roles
func RequireRoles(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get("user_role")
		if !exists {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "user role not found in context", nil, nil)
			c.Abort()
			return
		}

		role, _ := userRole.(string)
		if !slices.Contains(requiredRoles, role) {
			response.RespondJSON(c, "error", http.StatusForbidden, "Insufficient permissions", nil, nil)
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireWaitlistAccess rejects requests for a :waitlist_id the caller's
// organization does not own
func RequireWaitlistAccess(checker WaitlistAccessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		waitlistID, ok := request.UUIDParam(c, "waitlist_id")
		if !ok {
			c.Abort()
			return
		}

		if err := checker.GetWaitlistAccess(c.Request.Context(), request.OrganizationID(c), waitlistID); err != nil {
			response.RespondError(c, err, true)
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequestLogger logs every request once it has been served
func RequestLogger(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.LogHTTPRequest(c, time.Since(start))
	}
}
