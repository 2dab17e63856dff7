package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"kasbot/internal/observability"
	"kasbot/internal/usecases"
)

// AdminHandler serves the operator endpoints.
type AdminHandler struct {
	auth   *usecases.AuthUsecase
	admin  *usecases.AdminUsecase
	logger *observability.Logger
}

func NewAdminHandler(auth *usecases.AuthUsecase, admin *usecases.AdminUsecase, logger *observability.Logger) *AdminHandler {
	if logger == nil {
		logger = observability.Nop()
	}
	return &AdminHandler{
		auth:   auth,
		admin:  admin,
		logger: logger.WithComponent("admin_handler"),
	}
}

func (h *AdminHandler) Login(c *gin.Context) {
	var loginReq struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&loginReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, err := h.auth.Login(loginReq.Username, loginReq.Password)
	switch {
	case errors.Is(err, usecases.ErrAuthDisabled):
		c.JSON(http.StatusNotFound, gin.H{"error": "admin endpoints are disabled"})
		return
	case err != nil:
		h.logger.WithContext(c.Request.Context()).Warn().
			Str("username", loginReq.Username).
			Str("ip", c.ClientIP()).
			Msg("admin login rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Debug reports knowledge health.
func (h *AdminHandler) Debug(c *gin.Context) {
	c.JSON(http.StatusOK, h.admin.Health())
}

// Refresh forces a reload and scrape pass.
func (h *AdminHandler) Refresh(c *gin.Context) {
	res, err := h.admin.Refresh(c.Request.Context())
	if err != nil {
		h.logger.WithContext(c.Request.Context()).Error().Err(err).Msg("manual refresh failed")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// WhatsAppQR renders the pending link code as a PNG.
func (h *AdminHandler) WhatsAppQR(c *gin.Context) {
	code, err := h.admin.WhatsAppQR()
	if err != nil {
		c.String(http.StatusNotFound, "WhatsApp not configured")
		return
	}
	if code == "" {
		if h.admin.WhatsAppStatus().LoggedIn {
			c.String(http.StatusOK, "Already logged in")
			return
		}
		c.String(http.StatusAccepted, "QR code not yet available. Please wait...")
		return
	}

	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to generate QR code")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *AdminHandler) WhatsAppStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.admin.WhatsAppStatus())
}
