package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"civitas.backend/internal/interfaces/http/handlers"
)

func TestRegisterAPIV1Routes_RegistersKeyRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	registerAPIV1Routes(r, routeDeps{
		registrationHandler:        &handlers.RegistrationHandler{},
		webhookHandler:             &handlers.WebhookHandler{},
		citizenHandler:             &handlers.CitizenHandler{},
		authMiddleware:             func(c *gin.Context) { c.Next() },
		adminMiddleware:            func(c *gin.Context) { c.Next() },
		webhookSignatureMiddleware: func(c *gin.Context) { c.Next() },
		webhookDedupeMiddleware:    func(c *gin.Context) { c.Next() },
	})

	expects := []struct {
		method string
		path   string
	}{
		{"POST", "/api/v1/registrations"},
		{"GET", "/api/v1/registrations/:id"},
		{"GET", "/api/v1/citizens/:id"},
		{"DELETE", "/api/v1/citizens/:id"},
		{"POST", "/api/v1/admin/citizens/:id/ban"},
		{"POST", "/api/v1/admin/citizens/:id/unban"},
		{"POST", "/api/v1/webhooks/payment"},
	}

	routes := r.Routes()
	for _, exp := range expects {
		found := false
		for _, route := range routes {
			if route.Method == exp.method && route.Path == exp.path {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("route %s %s not registered", exp.method, exp.path)
		}
	}
}

func TestRegisterAPIV1Routes_RouteResponds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerHealthRoute(r)
	registerAPIV1Routes(r, routeDeps{
		registrationHandler:        &handlers.RegistrationHandler{},
		webhookHandler:             &handlers.WebhookHandler{},
		citizenHandler:             &handlers.CitizenHandler{},
		authMiddleware:             func(c *gin.Context) { c.Next() },
		adminMiddleware:            func(c *gin.Context) { c.Next() },
		webhookSignatureMiddleware: func(c *gin.Context) { c.Next() },
		webhookDedupeMiddleware:    func(c *gin.Context) { c.Next() },
	})

	// Smoke: unrelated helper route still works after route registration.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
