package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/onprem-bridge/internal/api/dto"
	"github.com/cuongbtq/onprem-bridge/internal/audit"
	"github.com/cuongbtq/onprem-bridge/internal/bridge/domain"
	"github.com/cuongbtq/onprem-bridge/internal/bridge/store"
	"github.com/cuongbtq/onprem-bridge/internal/metrics"
	"github.com/cuongbtq/onprem-bridge/internal/signing"
	"github.com/gin-gonic/gin"
)

// issuedAtLayout renders UTC timestamps with millisecond precision
const issuedAtLayout = "2006-01-02T15:04:05.000Z"

// Job listing page sizes
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// BridgeStore is the part of the job store used by the agent protocol
type BridgeStore interface {
	PullNextQueued(ctx context.Context) (domain.Job, bool, error)
	Complete(ctx context.Context, jobID string, result json.RawMessage) (domain.Job, error)
	Stats() store.Stats
	List(filter store.ListFilter) ([]domain.Job, error)
}

// BridgeHandler serves the agent-facing pull/result protocol
type BridgeHandler struct {
	logger  *slog.Logger
	store   BridgeStore
	signer  *signing.Signer
	auditor *audit.Auditor
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewBridgeHandler creates a new BridgeHandler instance
func NewBridgeHandler(deps *Dependencies) *BridgeHandler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &BridgeHandler{
		logger:  deps.Logger,
		store:   deps.Store,
		signer:  deps.Signer,
		auditor: deps.Auditor,
		metrics: deps.Metrics,
		now:     now,
	}
}

// PullJob handles POST /bridge/jobs/pull
// Hands the oldest queued job to the agent, or answers 204 when idle.
func (h *BridgeHandler) PullJob(c *gin.Context) {
	ctx := c.Request.Context()

	job, ok, err := h.store.PullNextQueued(ctx)
	if err != nil {
		h.logger.Error("Failed to pull bridge job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal_error",
		})
		return
	}
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}

	payload := domain.JobPayload{
		JobID:      job.JobID,
		RequestID:  job.RequestID,
		CustomerID: job.CustomerID,
		Resource:   job.Resource,
		IssuedAt:   h.now().UTC().Format(issuedAtLayout),
	}

	signature, err := h.signer.Sign(payload)
	if err != nil {
		h.logger.Error("Failed to sign job payload",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal_error",
		})
		return
	}

	h.auditor.Emit(ctx, audit.Record{
		Action:    audit.ActionJobPulled,
		JobID:     job.JobID,
		RequestID: job.RequestID,
	})
	h.metrics.JobPulled()

	c.JSON(http.StatusOK, dto.PullJobResponse{
		Payload:   payload,
		Signature: signature,
	})
}

// PostResult handles POST /bridge/jobs/:jobId/result
// Verifies the agent's signature over {jobId, result} before completing the job.
func (h *BridgeHandler) PostResult(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("jobId")

	var req dto.PostResultRequest
	if err := bindStrictJSON(c, &req); err != nil {
		h.logger.Warn("Invalid result body",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid_request_body",
		})
		return
	}

	envelope := domain.ResultEnvelope{JobID: jobID, Result: req.Result}
	if !h.signer.Verify(envelope, req.Signature) {
		h.auditor.Emit(ctx, audit.Record{
			Action: audit.ActionResultRejected,
			JobID:  jobID,
			Reason: "invalid_result_signature",
		})
		h.metrics.SignatureRejected()
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid_result_signature",
		})
		return
	}

	// Store the canonical form the signature covers, not the request bytes.
	result, err := signing.Canonicalize(req.Result)
	if err != nil {
		h.logger.Error("Failed to canonicalize verified result",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal_error",
		})
		return
	}

	job, err := h.store.Complete(ctx, jobID, result)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownJob) {
			h.auditor.Emit(ctx, audit.Record{
				Action: audit.ActionResultRejected,
				JobID:  jobID,
				Reason: "job_not_found",
			})
			c.JSON(http.StatusNotFound, gin.H{
				"error": "job_not_found",
			})
			return
		}

		h.logger.Error("Failed to complete bridge job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal_error",
		})
		return
	}

	h.auditor.Emit(ctx, audit.Record{
		Action:    audit.ActionResultReceived,
		JobID:     job.JobID,
		RequestID: job.RequestID,
		Status:    string(job.Status),
	})
	h.metrics.JobCompleted(job.CreatedAt, job.UpdatedAt)

	c.JSON(http.StatusOK, dto.PostResultResponse{
		OK:     true,
		Status: job.Status,
	})
}

// Stats handles GET /bridge/stats
func (h *BridgeHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Stats())
}

// ListJobs handles GET /bridge/jobs
// Pages through job summaries in insertion order. Results are never listed.
func (h *BridgeHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid_query",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Warn("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid_cursor",
		})
		return
	}

	// One extra row tells whether another page exists.
	jobs, err := h.store.List(store.ListFilter{
		Status:   domain.Status(req.Status),
		Cursor:   cursor,
		PageSize: req.PageSize + 1,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCursor) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid_cursor",
			})
			return
		}
		h.logger.Error("Failed to list bridge jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal_error",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	summaries := make([]dto.JobSummary, len(jobs))
	for i, job := range jobs {
		summaries[i] = dto.JobSummary{
			JobID:      job.JobID,
			RequestID:  job.RequestID,
			CustomerID: job.CustomerID,
			Resource:   job.Resource,
			Status:     job.Status,
			CreatedAt:  job.CreatedAt.UTC().Format(time.RFC3339Nano),
			UpdatedAt:  job.UpdatedAt.UTC().Format(time.RFC3339Nano),
		}
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&store.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.JobID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       summaries,
		NextCursor: nextCursor,
	})
}
