package domain

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a bridge job
type Status string

// Job status constants
const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is one of the known job states
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted:
		return true
	}
	return false
}

// Resource is the kind of on-prem record a job asks for
type Resource string

// Resource constants
const (
	ResourceInvoice  Resource = "invoice"
	ResourceContract Resource = "contract"
)

// Valid reports whether r is a supported on-prem resource
func (r Resource) Valid() bool {
	return r == ResourceInvoice || r == ResourceContract
}

// Job is one queued unit of bridge work. Result is set only once the job is completed.
type Job struct {
	JobID          string          `json:"jobId"`
	RequestID      string          `json:"requestId"`
	CustomerID     string          `json:"customerId"`
	Resource       Resource        `json:"resource"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Result         json.RawMessage `json:"result,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
}

// Clone returns a deep copy so callers never share the result buffer with the store
func (j Job) Clone() Job {
	if j.Result != nil {
		j.Result = append(json.RawMessage(nil), j.Result...)
	}
	return j
}

// JobPayload is the signed description of a pulled job handed to the agent
type JobPayload struct {
	JobID      string   `json:"jobId"`
	RequestID  string   `json:"requestId"`
	CustomerID string   `json:"customerId"`
	Resource   Resource `json:"resource"`
	IssuedAt   string   `json:"issuedAt"`
}

// ResultEnvelope is the value covered by a result signature
type ResultEnvelope struct {
	JobID  string          `json:"jobId"`
	Result json.RawMessage `json:"result"`
}
