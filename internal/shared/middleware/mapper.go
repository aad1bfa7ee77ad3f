package middleware

import (
	"mapvault-backend/internal/shared/response"

	"github.com/gin-gonic/gin"
)

// RoleMapper is the capability required to submit maps.
const RoleMapper = "mapper"

// MapperMiddleware gates endpoints that require the mapper role. The role
// check lives here, in the HTTP adapter, so the map service itself never
// inspects roles.
func MapperMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(ContextRoles)
		if !exists {
			response.Forbidden(c, "mapper role required")
			c.Abort()
			return
		}

		roles, ok := v.([]string)
		if !ok {
			response.Forbidden(c, "mapper role required")
			c.Abort()
			return
		}

		for _, role := range roles {
			if role == RoleMapper {
				c.Next()
				return
			}
		}

		response.Forbidden(c, "mapper role required")
		c.Abort()
	}
}
