// Package audit records who did what to which bridge job.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Event is the fixed event name carried by every audit record
const Event = "onprem_bridge"

// Audit actions
const (
	ActionCreateJob         = "create_bridge_job"
	ActionReuseJob          = "reuse_bridge_job"
	ActionReadResult        = "read_bridge_result"
	ActionJobPulled         = "bridge_job_pulled"
	ActionResultReceived    = "bridge_result_received"
	ActionResultRejected    = "bridge_result_rejected"
	ActionAgentUnauthorized = "bridge_agent_unauthorized"
)

// Record is a single audit entry
type Record struct {
	Event          string    `json:"event"`
	Action         string    `json:"action"`
	Actor          string    `json:"actor,omitempty"`
	JobID          string    `json:"jobId,omitempty"`
	RequestID      string    `json:"requestId,omitempty"`
	Resource       string    `json:"resource,omitempty"`
	Status         string    `json:"status,omitempty"`
	IdempotencyKey string    `json:"idempotencyKey,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Time           time.Time `json:"time"`
}

// Sink stores or forwards audit records
type Sink interface {
	Write(ctx context.Context, record Record) error
}

// Auditor fans records out to its sinks. Sink failures are logged and never
// fail the audited operation.
type Auditor struct {
	sinks  []Sink
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Auditor writing to the given sinks
func New(logger *slog.Logger, sinks ...Sink) *Auditor {
	return &Auditor{
		sinks:  sinks,
		logger: logger,
		now:    time.Now,
	}
}

// Emit stamps and writes a record to every sink
func (a *Auditor) Emit(ctx context.Context, record Record) {
	record.Event = Event
	if record.Time.IsZero() {
		record.Time = a.now().UTC()
	}

	for _, sink := range a.sinks {
		if err := sink.Write(ctx, record); err != nil {
			a.logger.Warn("Failed to write audit record",
				slog.String("action", record.Action),
				slog.String("error", err.Error()),
			)
		}
	}
}

// LogSink writes audit records to a structured logger
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Write logs the record at info level
func (s *LogSink) Write(ctx context.Context, record Record) error {
	attrs := []slog.Attr{
		slog.String("event", record.Event),
		slog.String("action", record.Action),
	}
	for _, field := range []struct{ key, value string }{
		{"actor", record.Actor},
		{"job_id", record.JobID},
		{"request_id", record.RequestID},
		{"resource", record.Resource},
		{"status", record.Status},
		{"idempotency_key", record.IdempotencyKey},
		{"reason", record.Reason},
	} {
		if field.value != "" {
			attrs = append(attrs, slog.String(field.key, field.value))
		}
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "Audit", attrs...)
	return nil
}

// Publisher is the subset of the RabbitMQ client used for audit delivery
type Publisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// AMQPSink publishes audit records as JSON messages
type AMQPSink struct {
	publisher Publisher
}

// NewAMQPSink creates an AMQPSink
func NewAMQPSink(publisher Publisher) *AMQPSink {
	return &AMQPSink{publisher: publisher}
}

// Write publishes the record
func (s *AMQPSink) Write(ctx context.Context, record Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode audit record: %w", err)
	}

	if err := s.publisher.Publish(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish audit record: %w", err)
	}
	return nil
}
