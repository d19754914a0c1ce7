package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/mispartech/new-mispartechnologies-sub001/config"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/api/middleware"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/database"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/integrations/visionhub"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/server/sse"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/session"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/workflow"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// maxUploadBytes bounds enrollment photo uploads.
const maxUploadBytes = 10 << 20

// KioskHandler serves the kiosk front-end API.
type KioskHandler struct {
	cfg        *config.Config
	store      session.Store
	controller *workflow.Controller
	repo       database.Repository
	hub        *sse.Hub
}

// NewKioskHandler creates the kiosk API handler.
func NewKioskHandler(cfg *config.Config, store session.Store, controller *workflow.Controller,
	repo database.Repository, hub *sse.Hub) *KioskHandler {
	return &KioskHandler{
		cfg:        cfg,
		store:      store,
		controller: controller,
		repo:       repo,
		hub:        hub,
	}
}

// RegisterRoutes registers all kiosk API routes.
func (h *KioskHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/session", h.GetSession)
	router.POST("/enroll", h.Enroll)
	router.GET("/state", h.GetState)
	router.POST("/reset", h.Reset)
	router.POST("/reenroll", h.ReEnroll)
	router.POST("/camera/retry", h.RetryCamera)
	router.GET("/sightings", h.ListSightings)
	router.GET("/events", h.StreamEvents)
}

// GetSession returns the trial session and its remaining time.
func (h *KioskHandler) GetSession(c *gin.Context) {
	sess, err := h.store.GetOrCreate()
	if err != nil {
		log.Errorf("Failed to get or create trial session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": middleware.TranslateFor(c, "error.session")})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sess.ID,
		"created_at": sess.CreatedAt,
		"enrolled":   sess.EnrolledAt != nil,
		"expires_at": sess.ExpiresAt,
		"remaining":  h.store.TimeRemaining(),
	})
}

// Enroll accepts an uploaded photo and runs the one-shot enrollment.
func (h *KioskHandler) Enroll(c *gin.Context) {
	file, _, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": middleware.TranslateFor(c, "error.no_photo")})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": middleware.TranslateFor(c, "error.no_photo")})
		return
	}

	result, err := h.controller.EnrollPhoto(c.Request.Context(), imageData)
	if err != nil {
		var svcErr *visionhub.ServiceError
		switch {
		case errors.As(err, &svcErr):
			log.Warnf("Enrollment call failed: %v", svcErr)
			// Retryable: the workflow stays in the enroll phase.
			c.JSON(http.StatusBadGateway, gin.H{"error": middleware.TranslateFor(c, "error.network")})
		case errors.Is(err, workflow.ErrSessionUnavailable):
			log.Errorf("Trial session unavailable during enrollment: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": middleware.TranslateFor(c, "error.session")})
		default:
			log.Warnf("Enrollment photo rejected before upload: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": middleware.TranslateFor(c, "error.bad_image")})
		}
		return
	}

	if !result.Success {
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"code":    result.Code,
			"message": middleware.TranslateFor(c, enrollMessageKey(result.Code)),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": middleware.TranslateFor(c, "enroll.success"),
	})
}

// enrollMessageKey maps backend rejection codes to message keys.
func enrollMessageKey(code string) string {
	switch code {
	case visionhub.CodeUnusablePhoto:
		return "error.unusable_photo"
	case visionhub.CodeDuplicateIdentity:
		return "error.duplicate_identity"
	default:
		return "error.enroll_failed"
	}
}

// GetState returns the workflow snapshot for the UI.
func (h *KioskHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.State())
}

// Reset returns from the result phase to live recognition.
func (h *KioskHandler) Reset(c *gin.Context) {
	h.controller.Reset()
	c.JSON(http.StatusOK, gin.H{"phase": h.controller.Phase()})
}

// ReEnroll discards tracked state and returns to the enrollment phase.
func (h *KioskHandler) ReEnroll(c *gin.Context) {
	h.controller.ReEnroll()
	c.JSON(http.StatusOK, gin.H{"phase": h.controller.Phase()})
}

// RetryCamera re-attempts camera acquisition after a permission failure.
func (h *KioskHandler) RetryCamera(c *gin.Context) {
	h.controller.RetryCamera()
	c.JSON(http.StatusOK, h.controller.State())
}

// ListSightings returns the recent local recognition history.
func (h *KioskHandler) ListSightings(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	sightings, err := h.repo.GetRecentSightings(limit)
	if err != nil {
		log.Errorf("Failed to list sightings: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": middleware.TranslateFor(c, "error.history")})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sightings": sightings})
}

// StreamEvents streams workflow state over SSE.
func (h *KioskHandler) StreamEvents(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	client := make(sse.Client, 8)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent("message", string(message))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
