package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/onprem-bridge/internal/tools"
	"github.com/gin-gonic/gin"
)

// RequestHandler serves the caller-facing request API
type RequestHandler struct {
	logger *slog.Logger
	tools  *tools.Service
}

// NewRequestHandler creates a new RequestHandler instance
func NewRequestHandler(deps *Dependencies) *RequestHandler {
	return &RequestHandler{
		logger: deps.Logger,
		tools:  deps.Tools,
	}
}

// CreateRequest handles POST /api/v1/requests
// Queues a bridge job; a repeated idempotency key returns the original job.
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	var in tools.EnqueueInput
	if err := bindStrictJSON(c, &in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	out, err := h.tools.Enqueue(c.Request.Context(), callerFrom(c), in)
	if err != nil {
		h.writeError(c, err, "")
		return
	}

	status := http.StatusAccepted
	if out.Reused {
		status = http.StatusOK
	}
	c.JSON(status, out)
}

// GetRequest handles GET /api/v1/requests/:requestId
func (h *RequestHandler) GetRequest(c *gin.Context) {
	requestID := c.Param("requestId")

	out, err := h.tools.ReadResult(c.Request.Context(), callerFrom(c), tools.ReadResultInput{RequestID: requestID})
	if err != nil {
		h.writeError(c, err, requestID)
		return
	}

	c.JSON(http.StatusOK, out)
}

func (h *RequestHandler) writeError(c *gin.Context, err error, requestID string) {
	var verr *tools.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": verr.Error(),
		})
	case errors.Is(err, tools.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": err.Error(),
		})
	case errors.Is(err, tools.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "request_not_found",
			"requestId": requestID,
		})
	default:
		h.logger.Error("Bridge request failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal_error",
		})
	}
}
