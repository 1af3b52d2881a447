package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"supportdesk/internal/infrastructure"
	"supportdesk/internal/queue"
	"supportdesk/internal/usecases"
)

// DeviceLink is the linked-device WhatsApp session (device mode only).
type DeviceLink interface {
	Status() infrastructure.DeviceStatus
	QRPNG(size int) ([]byte, error)
	Logout(ctx context.Context) error
}

type QueueStats interface {
	Stats() queue.Stats
}

type AdminHandler struct {
	auth   *usecases.AuthUsecase
	device DeviceLink
	queue  QueueStats
}

func NewAdminHandler(auth *usecases.AuthUsecase, device DeviceLink, jobs QueueStats) *AdminHandler {
	return &AdminHandler{
		auth:   auth,
		device: device,
		queue:  jobs,
	}
}

// GetAllUsers returns list of all dashboard operators
func (h *AdminHandler) GetAllUsers(c *gin.Context) {
	users, err := h.auth.Users(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *AdminHandler) QueueStats(c *gin.Context) {
	if h.queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Queue not running"})
		return
	}
	c.JSON(http.StatusOK, h.queue.Stats())
}

// WhatsAppQR returns the pairing QR code as PNG.
func (h *AdminHandler) WhatsAppQR(c *gin.Context) {
	if h.device == nil {
		c.String(http.StatusServiceUnavailable, "WhatsApp device mode not enabled")
		return
	}
	if h.device.Status().LoggedIn {
		c.String(http.StatusOK, "Already logged in")
		return
	}
	png, err := h.device.QRPNG(256)
	if errors.Is(err, infrastructure.ErrNoQRCode) {
		c.String(http.StatusAccepted, "QR code not yet available. Please wait...")
		return
	}
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to generate QR code")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *AdminHandler) WhatsAppStatus(c *gin.Context) {
	if h.device == nil {
		c.JSON(http.StatusOK, gin.H{"connected": false, "error": "WhatsApp device mode not enabled"})
		return
	}
	c.JSON(http.StatusOK, h.device.Status())
}

func (h *AdminHandler) WhatsAppLogout(c *gin.Context) {
	if h.device == nil {
		c.JSON(http.StatusOK, gin.H{"status": "logged_out", "message": "WhatsApp device mode not enabled"})
		return
	}
	if err := h.device.Logout(c.Request.Context()); err != nil {
		log.Warn().Err(err).Msg("whatsapp logout failed")
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}
