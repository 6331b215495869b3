package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rentora/internal/domain"
	"rentora/internal/pkg/response"
)

// RequireRole ensures the authenticated actor carries one of the given roles.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFrom(c)
		if actor.ID == 0 {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			c.Abort()
			return
		}

		for _, r := range roles {
			if actor.HasRole(r) {
				c.Next()
				return
			}
		}

		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
		c.Abort()
	}
}

// StaffOnly admits admins, managers and branch staff.
func StaffOnly() gin.HandlerFunc {
	return RequireRole(domain.RoleAdmin, domain.RoleManager, domain.RoleStaff)
}

// AdminOnly admits admins alone.
func AdminOnly() gin.HandlerFunc {
	return RequireRole(domain.RoleAdmin)
}
