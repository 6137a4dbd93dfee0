// Package tools implements the caller-facing bridge operations: queueing a
// data request and reading its result.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/onprem-bridge/internal/audit"
	"github.com/cuongbtq/onprem-bridge/internal/bridge/domain"
	"github.com/cuongbtq/onprem-bridge/internal/bridge/store"
	"github.com/go-playground/validator/v10"
)

// Result messages returned by Enqueue
const (
	MessageQueued = "queued_for_bridge"
	MessageReused = "duplicate_request_reused"
)

// JobStore is the part of the job store the tools need
type JobStore interface {
	CreateOrReuse(ctx context.Context, in store.CreateInput) (domain.Job, bool, error)
	GetByRequestID(requestID string) (domain.Job, bool)
}

// Auditor records audit events
type Auditor interface {
	Emit(ctx context.Context, record audit.Record)
}

// EnqueueRecorder counts enqueue requests
type EnqueueRecorder interface {
	JobEnqueued(resource string, reused bool)
}

// EnqueueInput is the request to queue a bridge job
type EnqueueInput struct {
	CustomerID     string `json:"customerId" validate:"required,customer_id"`
	Resource       string `json:"resource" validate:"required,oneof=invoice contract"`
	IdempotencyKey string `json:"idempotencyKey,omitempty" validate:"omitempty,min=8,max=128"`
}

// EnqueueOutput describes the queued or reused job
type EnqueueOutput struct {
	RequestID string        `json:"requestId"`
	JobID     string        `json:"jobId"`
	Status    domain.Status `json:"status"`
	Message   string        `json:"message"`
	Reused    bool          `json:"reused"`
}

// ReadResultInput identifies the request to read
type ReadResultInput struct {
	RequestID string `json:"requestId" validate:"required,request_id"`
}

// ReadResultOutput is the current state of a request. Result is null until
// the job completes.
type ReadResultOutput struct {
	RequestID string          `json:"requestId"`
	JobID     string          `json:"jobId"`
	Status    domain.Status   `json:"status"`
	Result    json.RawMessage `json:"result"`
}

// Service implements the caller-facing operations
type Service struct {
	store    JobStore
	auditor  Auditor
	recorder EnqueueRecorder
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService creates a Service. recorder may be nil.
func NewService(jobs JobStore, auditor Auditor, recorder EnqueueRecorder, logger *slog.Logger) *Service {
	return &Service{
		store:    jobs,
		auditor:  auditor,
		recorder: recorder,
		validate: newValidator(),
		logger:   logger,
	}
}

// Enqueue queues a new bridge job, or returns the job already queued under
// the same idempotency key.
func (s *Service) Enqueue(ctx context.Context, caller Caller, in EnqueueInput) (EnqueueOutput, error) {
	if err := s.validate.Struct(in); err != nil {
		return EnqueueOutput{}, toValidationError(err)
	}
	if !caller.HasScope(ScopeRequest) {
		return EnqueueOutput{}, fmt.Errorf("%w: missing scope %s", ErrForbidden, ScopeRequest)
	}

	job, reused, err := s.store.CreateOrReuse(ctx, store.CreateInput{
		CustomerID:     in.CustomerID,
		Resource:       domain.Resource(in.Resource),
		IdempotencyKey: in.IdempotencyKey,
	})
	if err != nil {
		return EnqueueOutput{}, fmt.Errorf("failed to queue bridge job: %w", err)
	}

	action, message := audit.ActionCreateJob, MessageQueued
	if reused {
		action, message = audit.ActionReuseJob, MessageReused
	}

	s.auditor.Emit(ctx, audit.Record{
		Action:         action,
		Actor:          caller.Actor(),
		JobID:          job.JobID,
		RequestID:      job.RequestID,
		Resource:       string(job.Resource),
		IdempotencyKey: in.IdempotencyKey,
	})
	if s.recorder != nil {
		s.recorder.JobEnqueued(string(job.Resource), reused)
	}

	s.logger.Info("Bridge request accepted",
		slog.String("request_id", job.RequestID),
		slog.String("job_id", job.JobID),
		slog.Bool("reused", reused),
	)

	return EnqueueOutput{
		RequestID: job.RequestID,
		JobID:     job.JobID,
		Status:    job.Status,
		Message:   message,
		Reused:    reused,
	}, nil
}

// ReadResult returns the status and, once completed, the result of a request
func (s *Service) ReadResult(ctx context.Context, caller Caller, in ReadResultInput) (ReadResultOutput, error) {
	if err := s.validate.Struct(in); err != nil {
		return ReadResultOutput{}, toValidationError(err)
	}
	if !caller.HasScope(ScopeRead) {
		return ReadResultOutput{}, fmt.Errorf("%w: missing scope %s", ErrForbidden, ScopeRead)
	}

	job, ok := s.store.GetByRequestID(in.RequestID)
	if !ok {
		return ReadResultOutput{}, fmt.Errorf("%w: %s", ErrRequestNotFound, in.RequestID)
	}

	s.auditor.Emit(ctx, audit.Record{
		Action:    audit.ActionReadResult,
		Actor:     caller.Actor(),
		RequestID: job.RequestID,
		Status:    string(job.Status),
	})

	out := ReadResultOutput{
		RequestID: job.RequestID,
		JobID:     job.JobID,
		Status:    job.Status,
	}
	if job.Status == domain.StatusCompleted {
		out.Result = job.Result
	}
	return out, nil
}
