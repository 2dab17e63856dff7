package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"kasbot/internal/infrastructure"
	"kasbot/internal/observability"
	"kasbot/internal/usecases"
)

const (
	headerRequestID = "X-Request-ID"
	ctxKeyUser      = "user"
)

const tooManyRequestsReply = "برجاء الانتظار قليلاً ثم المحاولة مرة أخرى."

type Middleware struct {
	auth        *usecases.AuthUsecase
	limiter     *infrastructure.MessageRateLimiter // nil disables per-IP limiting
	origins     map[string]bool
	errorStatus int
	logger      *observability.Logger
}

func NewMiddleware(auth *usecases.AuthUsecase, limiter *infrastructure.MessageRateLimiter, allowedOrigins []string, errorStatus int, logger *observability.Logger) *Middleware {
	if logger == nil {
		logger = observability.Nop()
	}
	if errorStatus == 0 {
		errorStatus = http.StatusOK
	}
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[strings.TrimRight(o, "/")] = true
	}
	return &Middleware{
		auth:        auth,
		limiter:     limiter,
		origins:     origins,
		errorStatus: errorStatus,
		logger:      logger.WithComponent("http"),
	}
}

// AuthRequired accepts only admin tokens issued by POST /auth/login.
func (m *Middleware) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.auth == nil || !m.auth.Enabled() {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "admin endpoints are disabled"})
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		user, err := m.auth.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(ctxKeyUser, user.Username)
		c.Next()
	}
}

// RateLimitPerIP limits requests per client IP. Rejections keep the chat
// JSON shape so the widget can show the text.
func (m *Middleware) RateLimitPerIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.limiter == nil {
			c.Next()
			return
		}

		key := "ip:" + c.ClientIP()
		if !m.limiter.Allow(key) {
			wait := m.limiter.WaitTime(key)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			m.logger.WithContext(c.Request.Context()).Warn().
				Str("ip", c.ClientIP()).
				Dur("retry_after", wait).
				Msg("chat rate limited")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, chatResponse{
				Reply:   tooManyRequestsReply,
				Context: map[string]any{},
			})
			return
		}

		c.Next()
	}
}

// CORSMiddleware echoes allowed origins only. Preflights end here with 204.
func (m *Middleware) CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		if origin != "" && m.origins[strings.TrimRight(origin, "/")] {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Max-Age", "600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestID tags every request with an id, reusing the caller's when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Header(headerRequestID, id)
		c.Request = c.Request.WithContext(observability.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// AccessLog writes one line per request.
func (m *Middleware) AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		evt := m.logger.WithContext(c.Request.Context()).Info()
		if status >= http.StatusInternalServerError {
			evt = m.logger.WithContext(c.Request.Context()).Error()
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Str("ip", c.ClientIP()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// Recovery turns a panic into the generic chat reply so clients always get JSON.
func (m *Middleware) Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		m.logger.WithContext(c.Request.Context()).Error().
			Interface("panic", recovered).
			Str("path", c.Request.URL.Path).
			Msg("panic recovered")
		c.AbortWithStatusJSON(m.errorStatus, chatResponse{
			Reply:   usecases.TemporaryErrorReply,
			Context: map[string]any{},
		})
	})
}

// SecurityHeaders adds security headers to prevent common attacks
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")
		c.Writer.Header().Set("X-Frame-Options", "DENY")
		c.Writer.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// RequestSizeLimiter limits request body size to prevent DoS
func RequestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
