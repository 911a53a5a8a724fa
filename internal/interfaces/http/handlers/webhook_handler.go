package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"civitas.backend/internal/domain/entities"
	"civitas.backend/internal/usecases"
)

// WebhookHandler handles webhook endpoints
type WebhookHandler struct {
	webhookUsecase *usecases.WebhookUsecase
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhookUsecase *usecases.WebhookUsecase) *WebhookHandler {
	return &WebhookHandler{webhookUsecase: webhookUsecase}
}

// HandlePaymentWebhook handles incoming events from the payment provider.
// Anything that parsed and passed signature verification is acknowledged with
// 2xx; business-level handling must not cause a redelivery storm.
// POST /api/v1/webhooks/payment
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	var event entities.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.webhookUsecase.Process(c.Request.Context(), &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to process webhook"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
