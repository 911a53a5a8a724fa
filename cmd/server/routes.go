package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"civitas.backend/internal/interfaces/http/handlers"
)

type routeDeps struct {
	registrationHandler        *handlers.RegistrationHandler
	webhookHandler             *handlers.WebhookHandler
	citizenHandler             *handlers.CitizenHandler
	authMiddleware             gin.HandlerFunc
	adminMiddleware            gin.HandlerFunc
	webhookSignatureMiddleware gin.HandlerFunc
	webhookDedupeMiddleware    gin.HandlerFunc
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		// Registration routes
		registrations := v1.Group("/registrations")
		{
			// The initial run is authenticated by the identity token inside
			// the payload, not by a session.
			registrations.POST("", d.registrationHandler.Register)
			registrations.GET("/:id", d.authMiddleware, d.registrationHandler.GetRegistration)
		}

		// Citizen routes (protected)
		citizens := v1.Group("/citizens")
		citizens.Use(d.authMiddleware)
		{
			citizens.GET("/:id", d.citizenHandler.GetCitizen)
			citizens.DELETE("/:id", d.citizenHandler.DeleteCitizen)
		}

		// Admin routes (ops API key or admin bearer token)
		admin := v1.Group("/admin")
		admin.Use(d.adminMiddleware)
		{
			admin.POST("/citizens/:id/ban", d.citizenHandler.BanCitizen)
			admin.POST("/citizens/:id/unban", d.citizenHandler.UnbanCitizen)
		}

		// Webhook for the payment provider (signature-authenticated, then
		// deduplicated by event id)
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/payment", d.webhookSignatureMiddleware, d.webhookDedupeMiddleware, d.webhookHandler.HandlePaymentWebhook)
		}
	}
}

func applyCORSMiddleware(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID, X-Webhook-Signature")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}

func registerHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "civitas-backend",
			"version": "0.1.0",
		})
	})
}

func registerMetricsRoute(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
