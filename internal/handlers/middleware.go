package handlers

import (
	"strings"
	"time"

	"github.com/Bright-River-CGI/lifestyle-app/internal/logger"
	"github.com/Bright-River-CGI/lifestyle-app/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	HeaderRequestID    = "X-Request-ID"
	contextIdentityKey = "identity"
	contextTokenKey    = "token"
)

// RequestID propagates or generates a request id and attaches a logger
// carrying it to the request context.
func RequestID(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)

		reqLog := log.With(zap.String("request_id", id))
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), reqLog))
		c.Next()
	}
}

func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.FromContext(c.Request.Context()).Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// AuthRequired resolves the bearer token to an Identity.
func AuthRequired(users services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			AbortWithError(c, services.ErrUnauthenticated)
			return
		}

		who, err := users.Resolve(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextIdentityKey, who)
		c.Set(contextTokenKey, token)
		reqLog := logger.FromContext(c.Request.Context()).With(zap.String("user_id", who.UserID.String()))
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), reqLog))
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func identity(c *gin.Context) services.Identity {
	if v, ok := c.Get(contextIdentityKey); ok {
		if who, ok := v.(services.Identity); ok {
			return who
		}
	}
	return services.Identity{}
}
