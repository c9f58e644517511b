package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/meridian/internal/middleware"
	"github.com/huangang/meridian/internal/services"
	"github.com/huangang/meridian/pkg/response"
)

type InvitationHandler struct {
	service *services.InvitationService
}

func NewInvitationHandler(service *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{service: service}
}

func (h *InvitationHandler) Create(c *gin.Context) {
	meridianID, ok := paramID(c, "id", "meridian")
	if !ok {
		return
	}
	var req services.CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	inv, err := h.service.Create(meridianID, &req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, inv)
}

func (h *InvitationHandler) ListPending(c *gin.Context) {
	meridianID, ok := paramID(c, "id", "meridian")
	if !ok {
		return
	}
	invitations, err := h.service.ListPending(meridianID, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, invitations)
}

// Preview shows what a token grants without consuming it.
func (h *InvitationHandler) Preview(c *gin.Context) {
	preview, err := h.service.Preview(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, preview)
}

func (h *InvitationHandler) Accept(c *gin.Context) {
	result, err := h.service.Accept(c.Param("token"), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

func (h *InvitationHandler) Revoke(c *gin.Context) {
	token := c.Param("token")
	if err := h.service.Revoke(token, middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"revoked": true})
}
