package dto

import (
	"encoding/json"

	"github.com/cuongbtq/onprem-bridge/internal/bridge/domain"
)

// PullJobResponse is returned by POST /bridge/jobs/pull when a job is available
type PullJobResponse struct {
	Payload   domain.JobPayload `json:"payload"`
	Signature string            `json:"signature"`
}

// PostResultRequest is the body of POST /bridge/jobs/:jobId/result.
// Signature covers {jobId, result}.
type PostResultRequest struct {
	Result    json.RawMessage `json:"result"`
	Signature string          `json:"signature"`
}

// PostResultResponse acknowledges an accepted result
type PostResultResponse struct {
	OK     bool          `json:"ok"`
	Status domain.Status `json:"status"`
}

// MinimizedResult is the result body the agent posts for a job. Data is
// null when the on-prem system has no record for the customer.
type MinimizedResult struct {
	RequestID  string          `json:"requestId"`
	CustomerID string          `json:"customerId"`
	Resource   domain.Resource `json:"resource"`
	Data       any             `json:"data"`
}

// ListJobsRequest holds the query of GET /bridge/jobs
type ListJobsRequest struct {
	Status   string `form:"status" binding:"omitempty,oneof=queued processing completed"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

// JobSummary describes a job without its result
type JobSummary struct {
	JobID      string          `json:"jobId"`
	RequestID  string          `json:"requestId"`
	CustomerID string          `json:"customerId"`
	Resource   domain.Resource `json:"resource"`
	Status     domain.Status   `json:"status"`
	CreatedAt  string          `json:"createdAt"`
	UpdatedAt  string          `json:"updatedAt"`
}

// ListJobsResponse is one page of job summaries
type ListJobsResponse struct {
	Jobs       []JobSummary `json:"jobs"`
	NextCursor string       `json:"nextCursor,omitempty"`
}
