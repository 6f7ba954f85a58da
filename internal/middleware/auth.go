package middleware

import (
	"net/http"
	"strings"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/pkg/jwt"
	"hotelbooking/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

// JWTAuth verifies the bearer token and stores the caller as an ActorContext.
func JWTAuth(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
			c.Abort()
			return
		}

		role, ok := domain.ParseRole(claims.Role)
		if !ok {
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "Unknown role")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", string(role))
		c.Set(actorKey, domain.ActorContext{UserID: claims.UserID, Role: role})
		c.Next()
	}
}

// Actor returns the authenticated caller. Routes without JWTAuth get a zero-permission guest.
func Actor(c *gin.Context) domain.ActorContext {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(domain.ActorContext); ok {
			return actor
		}
	}
	return domain.ActorContext{Role: domain.RoleGuest}
}
