package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/meridian/internal/middleware"
	"github.com/huangang/meridian/internal/services"
	"github.com/huangang/meridian/pkg/response"
)

type ItemHandler struct {
	items    *services.WorkItemService
	activity *services.ActivityService
}

func NewItemHandler(items *services.WorkItemService, activity *services.ActivityService) *ItemHandler {
	return &ItemHandler{items: items, activity: activity}
}

func (h *ItemHandler) Create(c *gin.Context) {
	var req services.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	item, err := h.items.CreateItem(&req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update applies a single {field, value} change.
func (h *ItemHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id", "item")
	if !ok {
		return
	}
	var req services.UpdateFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	item, err := h.items.UpdateField(id, req.Field, req.Value, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, item)
}

func (h *ItemHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id", "item")
	if !ok {
		return
	}
	n, err := h.items.DeleteItem(id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"id": id, "deleted": n})
}

func (h *ItemHandler) ListActivity(c *gin.Context) {
	id, ok := paramID(c, "id", "item")
	if !ok {
		return
	}
	entries, err := h.activity.List(id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, entries)
}

func (h *ItemHandler) Comment(c *gin.Context) {
	id, ok := paramID(c, "id", "item")
	if !ok {
		return
	}
	var req services.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	entry, err := h.activity.Comment(id, req.Note, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}
