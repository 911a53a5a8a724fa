package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"civitas.backend/pkg/logger"
	"civitas.backend/pkg/redis"
)

// webhookDedupeKeyPrefix namespaces seen-event keys in redis.
const webhookDedupeKeyPrefix = "civitas:webhook:event:"

// WebhookDedupeMiddleware short-circuits redelivered webhook events by their
// provider event id. Processing downstream is idempotent regardless, so the
// filter is best effort: a redis failure or a payload without an id lets the
// event through.
func WebhookDedupeMiddleware(ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "Failed to read request body",
			})
			return
		}
		// Restore the body for the handler.
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		var probe struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(body, &probe) != nil || probe.ID == "" {
			c.Next()
			return
		}

		key := webhookDedupeKeyPrefix + probe.ID
		fresh, err := redis.SetNX(c.Request.Context(), key, 1, ttl)
		if err != nil {
			logger.Warn(c.Request.Context(), "webhook dedupe unavailable, processing anyway",
				zap.String("event_id", probe.ID), zap.Error(err))
			c.Next()
			return
		}
		if !fresh {
			c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
			c.Abort()
			return
		}

		c.Next()

		// A failed delivery must stay retryable: release the claim so the
		// provider's redelivery is not swallowed as a duplicate.
		if c.Writer.Status() >= http.StatusInternalServerError {
			if err := redis.Del(context.Background(), key); err != nil {
				logger.Warn(c.Request.Context(), "failed to release webhook dedupe claim",
					zap.String("event_id", probe.ID), zap.Error(err))
			}
		}
	}
}
