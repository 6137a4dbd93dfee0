package router

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/onprem-bridge/internal/api/handler"
	"github.com/cuongbtq/onprem-bridge/internal/audit"
	"github.com/cuongbtq/onprem-bridge/internal/auth"
	"github.com/gin-gonic/gin"
)

// LoggerMiddleware logs HTTP requests with slog
func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}

		// Bridge agents poll continuously; idle pulls are only worth debug output.
		if c.Writer.Status() == http.StatusNoContent {
			level = slog.LevelDebug
		}

		logger.LogAttrs(c.Request.Context(), level, "HTTP Request",
			slog.Int("status", c.Writer.Status()),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("ip", c.ClientIP()),
			slog.Duration("latency", time.Since(start)),
			slog.Int("body_size", c.Writer.Size()),
		)

		for _, e := range c.Errors {
			logger.Error("Request error",
				slog.String("error", e.Error()),
				slog.Uint64("type", uint64(e.Type)),
			)
		}
	}
}

// CORSMiddleware handles Cross-Origin Resource Sharing
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// AgentTokenMiddleware admits only requests carrying the shared bridge agent
// token. The comparison runs over digests so neither content nor length leaks
// through timing.
func AgentTokenMiddleware(token string, auditor *audit.Auditor, logger *slog.Logger) gin.HandlerFunc {
	want := sha256.Sum256([]byte(token))

	return func(c *gin.Context) {
		presented, _ := auth.BearerToken(c.GetHeader("Authorization"))
		got := sha256.Sum256([]byte(presented))

		if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
			logger.Warn("Rejected bridge agent request",
				slog.String("path", c.Request.URL.Path),
				slog.String("ip", c.ClientIP()),
			)
			auditor.Emit(c.Request.Context(), audit.Record{
				Action: audit.ActionAgentUnauthorized,
				JobID:  c.Param("jobId"),
				Reason: "unauthorized_bridge_agent",
			})
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized_bridge_agent",
			})
			return
		}

		c.Next()
	}
}

// CallerAuthMiddleware verifies the caller bearer token and stores the
// resulting tools.Caller under handler.CallerKey.
func CallerAuthMiddleware(verifier auth.Verifier, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid_token",
			})
			return
		}

		caller, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			logger.Info("Rejected caller token", slog.String("error", err.Error()))
			c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid_token",
			})
			return
		}

		c.Set(handler.CallerKey, caller)
		c.Next()
	}
}
