package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huangang/meridian/pkg/response"
)

// paramID parses a numeric path parameter, answering 400 when it is not one.
func paramID(c *gin.Context, name, label string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+label+" id")
		return 0, false
	}
	return uint(id), true
}
