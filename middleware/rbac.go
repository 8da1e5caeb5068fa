package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sharath018/field-visit-backend/internal/visit"
)

// RBACMiddleware lets the request through only for the listed roles.
func RBACMiddleware(allowed ...visit.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := visit.SessionFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		for _, role := range allowed {
			if sess.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unauthorized", "guard": visit.GuardRole})
	}
}

// RequireAdmin is RBACMiddleware for admins only.
func RequireAdmin() gin.HandlerFunc {
	return RBACMiddleware(visit.RoleAdmin)
}
