package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/meridian/internal/middleware"
	"github.com/huangang/meridian/internal/services"
	"github.com/huangang/meridian/pkg/response"
)

type MeridianHandler struct {
	service *services.MeridianService
}

func NewMeridianHandler(service *services.MeridianService) *MeridianHandler {
	return &MeridianHandler{service: service}
}

func (h *MeridianHandler) Create(c *gin.Context) {
	var req services.CreateMeridianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	meridian, err := h.service.Create(&req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, meridian)
}

func (h *MeridianHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id", "meridian")
	if !ok {
		return
	}
	meridian, err := h.service.GetByID(id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, meridian)
}

func (h *MeridianHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id", "meridian")
	if !ok {
		return
	}
	var req services.UpdateMeridianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	meridian, err := h.service.Update(id, &req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, meridian)
}

// Delete deactivates a meridian; its data stays but drops off every board.
func (h *MeridianHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id", "meridian")
	if !ok {
		return
	}
	if err := h.service.Delete(id, middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}
