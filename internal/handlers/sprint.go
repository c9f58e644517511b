package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/meridian/internal/middleware"
	"github.com/huangang/meridian/internal/services"
	"github.com/huangang/meridian/pkg/response"
)

type SprintHandler struct {
	service *services.SprintService
}

func NewSprintHandler(service *services.SprintService) *SprintHandler {
	return &SprintHandler{service: service}
}

func (h *SprintHandler) Create(c *gin.Context) {
	var req services.CreateSprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	sprint, err := h.service.Create(&req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sprint)
}

func (h *SprintHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id", "sprint")
	if !ok {
		return
	}
	var req services.UpdateFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	sprint, err := h.service.UpdateField(id, req.Field, req.Value, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, sprint)
}

func (h *SprintHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id", "sprint")
	if !ok {
		return
	}
	if err := h.service.Delete(id, middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}
