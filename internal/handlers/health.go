package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// CheckHealth pings the database and reports its clock.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	var dbTime string
	err := h.db.Raw("SELECT CURRENT_TIMESTAMP").Row().Scan(&dbTime)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"db":      "error",
			"version": Version,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"db":      "ok",
		"dbTime":  dbTime,
		"version": Version,
	})
}
