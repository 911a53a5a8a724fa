package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainerrors "civitas.backend/internal/domain/errors"
	"civitas.backend/internal/interfaces/http/middleware"
	"civitas.backend/internal/interfaces/http/response"
	"civitas.backend/internal/usecases"
)

// CitizenHandler handles citizen account endpoints
type CitizenHandler struct {
	citizenUsecase *usecases.CitizenUsecase
}

// NewCitizenHandler creates a new citizen handler
func NewCitizenHandler(citizenUsecase *usecases.CitizenUsecase) *CitizenHandler {
	return &CitizenHandler{citizenUsecase: citizenUsecase}
}

// GetCitizen returns a citizen profile
// GET /api/v1/citizens/:id
func (h *CitizenHandler) GetCitizen(c *gin.Context) {
	id := c.Param("id")

	if !h.authorize(c, id) {
		return
	}

	citizen, err := h.citizenUsecase.GetProfile(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, citizen)
}

// DeleteCitizen closes a citizen account (soft delete)
// DELETE /api/v1/citizens/:id
func (h *CitizenHandler) DeleteCitizen(c *gin.Context) {
	id := c.Param("id")

	if !h.authorize(c, id) {
		return
	}

	if err := h.citizenUsecase.CloseAccount(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// BanCitizen marks a citizen account as banned (admin only)
// POST /api/v1/admin/citizens/:id/ban
func (h *CitizenHandler) BanCitizen(c *gin.Context) {
	id := c.Param("id")

	if err := h.citizenUsecase.Ban(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"banned": true})
}

// UnbanCitizen restores a banned citizen account (admin only)
// POST /api/v1/admin/citizens/:id/unban
func (h *CitizenHandler) UnbanCitizen(c *gin.Context) {
	id := c.Param("id")

	if err := h.citizenUsecase.Unban(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"banned": false})
}

// authorize allows the owner and admins through.
func (h *CitizenHandler) authorize(c *gin.Context, id string) bool {
	subject, _ := middleware.GetSubject(c)
	role, _ := middleware.GetSubjectRole(c)
	if subject != id && role != "admin" {
		response.ErrorWithError(c, http.StatusForbidden, domainerrors.CodeUnauthorized, "Cannot access another citizen's account")
		return false
	}
	return true
}
