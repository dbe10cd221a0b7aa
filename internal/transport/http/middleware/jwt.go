package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gopherai-insect/internal/pkg/jwtutil"
	"gopherai-insect/internal/transport/http/response"
)

const ContextAdminKey = "admin_subject"

// AdminJWT guards key-management routes. With an empty secret the routes
// stay open.
func AdminJWT(secret string) gin.HandlerFunc {
	if strings.TrimSpace(secret) == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing authorization header")
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid authorization scheme")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
			return
		}
		if claims.Role != jwtutil.RoleAdmin {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "admin role required")
			return
		}

		c.Set(ContextAdminKey, claims.Subject)
		c.Next()
	}
}
