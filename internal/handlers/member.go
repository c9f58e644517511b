package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/meridian/internal/middleware"
	"github.com/huangang/meridian/internal/services"
	"github.com/huangang/meridian/pkg/response"
)

type MemberHandler struct {
	service *services.MemberService
}

func NewMemberHandler(service *services.MemberService) *MemberHandler {
	return &MemberHandler{service: service}
}

func (h *MemberHandler) List(c *gin.Context) {
	meridianID, ok := paramID(c, "id", "meridian")
	if !ok {
		return
	}
	members, err := h.service.List(meridianID, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, members)
}

func (h *MemberHandler) Add(c *gin.Context) {
	meridianID, ok := paramID(c, "id", "meridian")
	if !ok {
		return
	}
	var req services.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	member, err := h.service.AddMember(meridianID, &req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, member)
}

func (h *MemberHandler) ChangeRole(c *gin.Context) {
	meridianID, ok := paramID(c, "id", "meridian")
	if !ok {
		return
	}
	userID, ok := paramID(c, "userId", "user")
	if !ok {
		return
	}
	var req services.ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	member, err := h.service.ChangeRole(meridianID, userID, req.Role, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, member)
}

// Remove drops a member. Any member may remove themselves.
func (h *MemberHandler) Remove(c *gin.Context) {
	meridianID, ok := paramID(c, "id", "meridian")
	if !ok {
		return
	}
	userID, ok := paramID(c, "userId", "user")
	if !ok {
		return
	}
	if err := h.service.RemoveMember(meridianID, userID, middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"meridianId": meridianID, "userId": userID})
}
