package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/meridian/internal/middleware"
	"github.com/huangang/meridian/internal/services"
	"github.com/huangang/meridian/pkg/response"
)

type BoardHandler struct {
	service *services.BoardService
}

func NewBoardHandler(service *services.BoardService) *BoardHandler {
	return &BoardHandler{service: service}
}

// Get returns the caller's whole board in one payload.
func (h *BoardHandler) Get(c *gin.Context) {
	board, err := h.service.Get(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, board)
}
