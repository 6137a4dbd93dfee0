package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	records []Record
	err     error
}

func (s *captureSink) Write(_ context.Context, record Record) error {
	s.records = append(s.records, record)
	return s.err
}

type fakePublisher struct {
	bodies       [][]byte
	contentTypes []string
	err          error
}

func (p *fakePublisher) Publish(_ context.Context, body []byte, contentType string) error {
	if p.err != nil {
		return p.err
	}
	p.bodies = append(p.bodies, body)
	p.contentTypes = append(p.contentTypes, contentType)
	return nil
}

func newJSONLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func TestAuditor_EmitStampsRecord(t *testing.T) {
	sink := &captureSink{}
	a := New(slog.New(slog.DiscardHandler), sink)

	a.Emit(context.Background(), Record{Action: ActionCreateJob, JobID: "job_1"})

	require.Len(t, sink.records, 1)
	assert.Equal(t, Event, sink.records[0].Event)
	assert.Equal(t, ActionCreateJob, sink.records[0].Action)
	assert.False(t, sink.records[0].Time.IsZero())
}

func TestAuditor_SinkFailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	failing := &captureSink{err: errors.New("broker down")}
	healthy := &captureSink{}
	a := New(newJSONLogger(&logs), failing, healthy)

	a.Emit(context.Background(), Record{Action: ActionJobPulled})

	assert.Len(t, healthy.records, 1, "later sinks still receive the record")
	assert.Contains(t, logs.String(), "Failed to write audit record")
	assert.Contains(t, logs.String(), "broker down")
}

func TestLogSink(t *testing.T) {
	var logs bytes.Buffer
	sink := NewLogSink(newJSONLogger(&logs))

	err := sink.Write(context.Background(), Record{
		Event:     Event,
		Action:    ActionReuseJob,
		Actor:     "client-a",
		RequestID: "req_1",
	})
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "onprem_bridge", entry["event"])
	assert.Equal(t, "reuse_bridge_job", entry["action"])
	assert.Equal(t, "client-a", entry["actor"])
	assert.Equal(t, "req_1", entry["request_id"])
	assert.NotContains(t, entry, "job_id", "empty fields are omitted")
}

func TestAMQPSink(t *testing.T) {
	publisher := &fakePublisher{}
	sink := NewAMQPSink(publisher)

	err := sink.Write(context.Background(), Record{Event: Event, Action: ActionResultReceived, JobID: "job_7", Status: "completed"})
	require.NoError(t, err)

	require.Len(t, publisher.bodies, 1)
	assert.Equal(t, "application/json", publisher.contentTypes[0])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(publisher.bodies[0], &decoded))
	assert.Equal(t, "bridge_result_received", decoded["action"])
	assert.Equal(t, "job_7", decoded["jobId"])
	assert.NotContains(t, decoded, "actor")
}

func TestAMQPSink_PublishError(t *testing.T) {
	sink := NewAMQPSink(&fakePublisher{err: errors.New("channel closed")})

	err := sink.Write(context.Background(), Record{Action: ActionJobPulled})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish audit record")
}
