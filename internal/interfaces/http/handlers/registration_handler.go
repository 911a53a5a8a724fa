package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"civitas.backend/internal/domain/entities"
	domainerrors "civitas.backend/internal/domain/errors"
	"civitas.backend/internal/interfaces/http/middleware"
	"civitas.backend/internal/interfaces/http/response"
	"civitas.backend/internal/usecases"
)

// RegistrationHandler handles registration endpoints
type RegistrationHandler struct {
	registrationUsecase *usecases.RegistrationUsecase
}

// NewRegistrationHandler creates a new registration handler
func NewRegistrationHandler(registrationUsecase *usecases.RegistrationUsecase) *RegistrationHandler {
	return &RegistrationHandler{registrationUsecase: registrationUsecase}
}

// Register runs the registration saga, streaming newline-delimited JSON
// progress events and a final result line over a single response.
// POST /api/v1/registrations
func (h *RegistrationHandler) Register(c *gin.Context) {
	var input entities.RegistrationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ErrorWithError(c, http.StatusBadRequest, domainerrors.CodeInvalidInput, err.Error())
		return
	}

	// Headers must be committed before the first event; any later failure is
	// reported in-stream as a terminal event, not as an HTTP status.
	c.Writer.Header().Set("Content-Type", "application/x-ndjson")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.WriteHeader(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	enc := json.NewEncoder(c.Writer)

	var mu sync.Mutex
	writeLine := func(v interface{}) {
		mu.Lock()
		defer mu.Unlock()
		if err := enc.Encode(v); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	result, err := h.registrationUsecase.Execute(c.Request.Context(), &input, func(ev entities.ProgressEvent) {
		writeLine(ev)
	})
	if err != nil {
		// The terminal event carrying the error code is already on the wire.
		return
	}

	writeLine(gin.H{"result": result})
}

// GetRegistration returns the persisted saga state for resumption.
// GET /api/v1/registrations/:id
func (h *RegistrationHandler) GetRegistration(c *gin.Context) {
	id := c.Param("id")

	subject, _ := middleware.GetSubject(c)
	role, _ := middleware.GetSubjectRole(c)
	if subject != id && role != "admin" {
		response.ErrorWithError(c, http.StatusForbidden, domainerrors.CodeUnauthorized, "Cannot access another citizen's registration")
		return
	}

	state, err := h.registrationUsecase.Resume(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}
