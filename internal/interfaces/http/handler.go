package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"kasbot/internal/entities"
	"kasbot/internal/interfaces"
	"kasbot/internal/observability"
	"kasbot/internal/usecases"
)

const livenessText = "KAS Bot is running"

type chatResponse struct {
	Reply       string                `json:"reply"`
	Context     map[string]any        `json:"context"`
	Suggestions []entities.Suggestion `json:"suggestions,omitempty"`
}

// Handler serves the chat widget.
type Handler struct {
	responder   interfaces.Responder
	errorStatus int
	logger      *observability.Logger
}

func NewHandler(responder interfaces.Responder, errorStatus int, logger *observability.Logger) *Handler {
	if logger == nil {
		logger = observability.Nop()
	}
	if errorStatus == 0 {
		errorStatus = http.StatusOK
	}
	return &Handler{
		responder:   responder,
		errorStatus: errorStatus,
		logger:      logger.WithComponent("chat_handler"),
	}
}

// Routes bundles everything SetupRoutes mounts.
type Routes struct {
	Chat         *Handler
	Admin        *AdminHandler
	Middleware   *Middleware
	MaxBodyBytes int64
}

func SetupRoutes(r *gin.Engine, rt Routes) {
	m := rt.Middleware

	r.Use(m.Recovery())
	r.Use(RequestID())
	r.Use(m.AccessLog())
	r.Use(SecurityHeaders())
	if rt.MaxBodyBytes > 0 {
		r.Use(RequestSizeLimiter(rt.MaxBodyBytes))
	}
	r.Use(m.CORSMiddleware())

	// Public Routes
	r.GET("/", rt.Chat.Liveness)
	r.POST("/chat", m.RateLimitPerIP(), rt.Chat.Chat)

	if rt.Admin == nil {
		return
	}
	r.POST("/auth/login", rt.Admin.Login)

	// Operator Routes
	admin := r.Group("/")
	admin.Use(m.AuthRequired())
	{
		admin.GET("/debug", rt.Admin.Debug)
		admin.POST("/refresh", rt.Admin.Refresh)
		admin.GET("/whatsapp/qr", rt.Admin.WhatsAppQR)
		admin.GET("/whatsapp/status", rt.Admin.WhatsAppStatus)
	}
}

func (h *Handler) Liveness(c *gin.Context) {
	c.String(http.StatusOK, livenessText)
}

// Chat answers POST /chat. Business outcomes are always 200; internal faults
// return the generic retry reply with the caller's context and the configured
// error status.
func (h *Handler) Chat(c *gin.Context) {
	ctx := c.Request.Context()
	log := h.logger.WithContext(ctx)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		if isBodyTooLarge(err) {
			log.Warn().Msg("chat body too large")
		} else {
			log.Error().Err(err).Msg("read chat body failed")
		}
		h.fail(c, nil)
		return
	}

	var req map[string]any
	if len(bytes.TrimSpace(body)) > 0 {
		var raw any
		if err := json.Unmarshal(body, &raw); err != nil {
			log.Warn().Err(err).Msg("chat body is not JSON")
			h.fail(c, nil)
			return
		}
		req, _ = raw.(map[string]any)
	}

	message, _ := req["message"].(string)
	message = TruncateString(SanitizeString(message), MaxMessageRunes)

	msg := entities.Message{
		From:     c.ClientIP(),
		Content:  message,
		Platform: "web",
	}
	reply, err := h.responder.Respond(ctx, msg, entities.ParseContext(req["context"]))
	if err != nil {
		log.Error().Err(err).Msg("chat turn failed")
		h.fail(c, req["context"])
		return
	}

	c.JSON(http.StatusOK, chatResponse{
		Reply:       reply.Text,
		Context:     reply.Context.Map(),
		Suggestions: reply.Suggestions,
	})
}

// fail echoes the caller's context object, or {} when there was none.
func (h *Handler) fail(c *gin.Context, callerContext any) {
	ctxObj, ok := callerContext.(map[string]any)
	if !ok {
		ctxObj = map[string]any{}
	}
	c.JSON(h.errorStatus, chatResponse{
		Reply:   usecases.TemporaryErrorReply,
		Context: ctxObj,
	})
}
