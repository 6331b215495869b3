package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rentora/internal/domain"
	jwtsvc "rentora/internal/pkg/jwt"
	"rentora/internal/pkg/response"
)

const actorKey = "actor"

// Auth validates the bearer token and stores the resolved domain.Actor in the
// request context. Everything downstream consumes the Actor value, never the
// raw claims.
func Auth(jwt *jwtsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or malformed Authorization header")
			c.Abort()
			return
		}

		tokenStr := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		claims, err := jwt.ValidateToken(tokenStr)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			c.Abort()
			return
		}

		roles := make([]domain.Role, 0, len(claims.Roles))
		for _, r := range claims.Roles {
			roles = append(roles, domain.Role(r))
		}
		c.Set(actorKey, domain.Actor{
			ID:     claims.UserID,
			Roles:  roles,
			Branch: claims.Branch,
		})

		c.Next()
	}
}

// ActorFrom returns the Actor resolved by Auth, or a zero Actor when the
// route is not authenticated.
func ActorFrom(c *gin.Context) domain.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return domain.Actor{}
	}
	actor, _ := v.(domain.Actor)
	return actor
}
