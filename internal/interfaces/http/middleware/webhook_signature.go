package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"civitas.backend/pkg/crypto"
	"civitas.backend/pkg/logger"
)

// SignatureHeader carries the provider's hex HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Webhook-Signature"

// WebhookSignatureMiddleware authenticates provider webhook deliveries. A bad
// or missing signature is the one webhook failure that must NOT be
// acknowledged with a 2xx: the payload cannot be trusted at all.
func WebhookSignatureMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		signature := c.GetHeader(SignatureHeader)
		if signature == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Webhook signature is required",
			})
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "Failed to read request body",
			})
			return
		}
		// Restore the body for the handler.
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		if !crypto.VerifySignature(body, signature, secret) {
			logger.Warn(c.Request.Context(), "webhook signature verification failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid webhook signature",
			})
			return
		}

		c.Next()
	}
}
