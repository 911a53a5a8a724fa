package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"civitas.backend/pkg/crypto"
	"civitas.backend/pkg/jwt"
)

const (
	// APIKeyHeader carries the operations API key.
	APIKeyHeader = "X-API-Key"
	// opsSubject is the subject recorded for API-key authenticated requests.
	opsSubject = "ops"
)

// APIKeyOrAdminMiddleware protects operational endpoints. A request is
// admitted either with the ops API key (checked against its bcrypt hash) or
// with a bearer token carrying the admin role. A present but wrong API key is
// rejected outright and never falls through to bearer auth.
func APIKeyOrAdminMiddleware(jwtService *jwt.JWTService, opsKeyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader(APIKeyHeader); key != "" {
			if opsKeyHash != "" && crypto.CheckSecret(key, opsKeyHash) {
				c.Set(SubjectKey, opsSubject)
				c.Set(SubjectRoleKey, "admin")
				c.Next()
				return
			}
			log.Printf("[APIKeyOrAdminMiddleware] Request to %s failed: invalid API key", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			return
		}

		authHeader := c.GetHeader(AuthorizationHeader)
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header is required",
			})
			return
		}

		claims, err := jwtService.ValidateToken(strings.TrimPrefix(authHeader, BearerPrefix))
		if err != nil {
			log.Printf("[APIKeyOrAdminMiddleware] Request to %s failed: %v", c.Request.URL.Path, err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token",
			})
			return
		}
		if claims.Role != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
			})
			return
		}

		c.Set(SubjectKey, claims.Subject)
		c.Set(SubjectEmailKey, claims.Email)
		c.Set(SubjectRoleKey, claims.Role)

		c.Next()
	}
}
