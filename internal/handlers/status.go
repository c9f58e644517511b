package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/meridian/internal/middleware"
	"github.com/huangang/meridian/internal/services"
	"github.com/huangang/meridian/pkg/response"
)

type StatusHandler struct {
	service *services.StatusService
}

func NewStatusHandler(service *services.StatusService) *StatusHandler {
	return &StatusHandler{service: service}
}

func (h *StatusHandler) List(c *gin.Context) {
	meridianID, ok := paramID(c, "id", "meridian")
	if !ok {
		return
	}
	statuses, err := h.service.List(meridianID, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, statuses)
}

func (h *StatusHandler) Create(c *gin.Context) {
	meridianID, ok := paramID(c, "id", "meridian")
	if !ok {
		return
	}
	var req services.CreateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	status, err := h.service.Create(meridianID, &req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, status)
}

func (h *StatusHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id", "status")
	if !ok {
		return
	}
	var req services.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	status, err := h.service.Update(id, &req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

// Delete removes a status and reports where its items went.
func (h *StatusHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id", "status")
	if !ok {
		return
	}
	result, err := h.service.Delete(id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
