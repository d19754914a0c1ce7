package handlers

import (
	"net/http"

	"github.com/mispartech/new-mispartechnologies-sub001/internal/utils"

	"github.com/gin-gonic/gin"
)

// SystemHandler exposes host diagnostics for the kiosk admin view.
type SystemHandler struct{}

func NewSystemHandler() *SystemHandler {
	return &SystemHandler{}
}

func (h *SystemHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/system", h.GetSystemStats)
	router.GET("/health", h.Health)
}

func (h *SystemHandler) GetSystemStats(c *gin.Context) {
	c.JSON(http.StatusOK, utils.GetSystemStats())
}

func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
