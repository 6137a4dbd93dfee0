// Package store owns every bridge job record. Jobs live in an arena kept in
// insertion order; the request-id and idempotency-key indexes are maintained
// alongside the arena under one lock so they can never disagree with it.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cuongbtq/onprem-bridge/internal/bridge/domain"
	"github.com/google/uuid"
)

// CreateInput holds the caller-supplied parameters of a new job
type CreateInput struct {
	CustomerID     string
	Resource       domain.Resource
	IdempotencyKey string
}

// Stats is the backlog summary exposed to operators
type Stats struct {
	TotalJobs         int    `json:"totalJobs"`
	Queued            int    `json:"queued"`
	Processing        int    `json:"processing"`
	Completed         int    `json:"completed"`
	OldestQueuedAgeMs *int64 `json:"oldestQueuedAgeMs"`
}

// Store is the in-process bridge job store
type Store struct {
	mu sync.RWMutex

	jobs             []domain.Job
	byJobID          map[string]int
	byRequestID      map[string]string
	byIdempotencyKey map[string]string

	// nextQueued is the lowest arena index that may still hold a queued job.
	// Jobs never return to queued, so it only moves forward.
	nextQueued int

	persister Persister
	logger    *slog.Logger
	now       func() time.Time
	newID     func(prefix string) string
}

// Option configures a Store
type Option func(*Store)

// WithPersister sets the persistence backend invoked on every mutation
func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

// WithLogger sets the store logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator overrides how job and request ids are generated
func WithIDGenerator(newID func(prefix string) string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

// NewStore creates an empty store. Without WithPersister it is memory-only.
func NewStore(opts ...Option) *Store {
	s := &Store{
		byJobID:          make(map[string]int),
		byRequestID:      make(map[string]string),
		byIdempotencyKey: make(map[string]string),
		persister:        NopPersister{},
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:              time.Now,
		newID:            generateID,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func generateID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Restore replaces the store contents with previously persisted jobs.
// It does not trigger persistence.
func (s *Store) Restore(jobs []domain.Job) error {
	byJobID := make(map[string]int, len(jobs))
	byRequestID := make(map[string]string, len(jobs))
	byIdempotencyKey := make(map[string]string)
	arena := make([]domain.Job, 0, len(jobs))

	for _, job := range jobs {
		if _, exists := byJobID[job.JobID]; exists {
			return fmt.Errorf("duplicate job id %s", job.JobID)
		}
		if _, exists := byRequestID[job.RequestID]; exists {
			return fmt.Errorf("duplicate request id %s", job.RequestID)
		}
		if job.IdempotencyKey != "" {
			if _, exists := byIdempotencyKey[job.IdempotencyKey]; exists {
				return fmt.Errorf("duplicate idempotency key %s", job.IdempotencyKey)
			}
			byIdempotencyKey[job.IdempotencyKey] = job.JobID
		}

		byJobID[job.JobID] = len(arena)
		byRequestID[job.RequestID] = job.JobID
		arena = append(arena, job.Clone())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = arena
	s.byJobID = byJobID
	s.byRequestID = byRequestID
	s.byIdempotencyKey = byIdempotencyKey
	s.nextQueued = 0

	return nil
}

// CreateOrReuse queues a new job, or returns the job already registered
// under the same idempotency key together with reused=true.
func (s *Store) CreateOrReuse(ctx context.Context, in CreateInput) (domain.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.IdempotencyKey != "" {
		if jobID, ok := s.byIdempotencyKey[in.IdempotencyKey]; ok {
			return s.mustGet(jobID).Clone(), true, nil
		}
	}

	now := s.now().UTC()
	job := domain.Job{
		JobID:          s.uniqueID("job_", func(id string) bool { _, ok := s.byJobID[id]; return ok }),
		RequestID:      s.uniqueID("req_", func(id string) bool { _, ok := s.byRequestID[id]; return ok }),
		CustomerID:     in.CustomerID,
		Resource:       in.Resource,
		Status:         domain.StatusQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
		IdempotencyKey: in.IdempotencyKey,
	}

	s.byJobID[job.JobID] = len(s.jobs)
	s.jobs = append(s.jobs, job)
	s.byRequestID[job.RequestID] = job.JobID
	if job.IdempotencyKey != "" {
		s.byIdempotencyKey[job.IdempotencyKey] = job.JobID
	}

	if err := s.persistLocked(ctx); err != nil {
		s.jobs = s.jobs[:len(s.jobs)-1]
		delete(s.byJobID, job.JobID)
		delete(s.byRequestID, job.RequestID)
		if job.IdempotencyKey != "" {
			delete(s.byIdempotencyKey, job.IdempotencyKey)
		}
		return domain.Job{}, false, err
	}

	s.logger.Debug("Bridge job queued",
		slog.String("job_id", job.JobID),
		slog.String("request_id", job.RequestID),
	)

	return job.Clone(), false, nil
}

// PullNextQueued moves the oldest queued job to processing.
// ok is false when nothing is queued.
func (s *Store) PullNextQueued(ctx context.Context) (job domain.Job, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.nextQueued < len(s.jobs) && s.jobs[s.nextQueued].Status != domain.StatusQueued {
		s.nextQueued++
	}
	if s.nextQueued == len(s.jobs) {
		return domain.Job{}, false, nil
	}

	idx := s.nextQueued
	prev := s.jobs[idx]

	s.jobs[idx].Status = domain.StatusProcessing
	s.jobs[idx].UpdatedAt = s.now().UTC()
	s.nextQueued++

	if err := s.persistLocked(ctx); err != nil {
		s.jobs[idx] = prev
		s.nextQueued = idx
		return domain.Job{}, false, err
	}

	s.logger.Debug("Bridge job pulled",
		slog.String("job_id", prev.JobID),
	)

	return s.jobs[idx].Clone(), true, nil
}

// Complete stores the result of a job and marks it completed.
//
// The previous state is not checked: a queued job can be completed directly
// and a completed job can be completed again with a new result.
func (s *Store) Complete(ctx context.Context, jobID string, result json.RawMessage) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byJobID[jobID]
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: %s", domain.ErrUnknownJob, jobID)
	}

	if len(result) == 0 {
		result = json.RawMessage("null")
	}

	prev := s.jobs[idx]

	s.jobs[idx].Status = domain.StatusCompleted
	s.jobs[idx].Result = append(json.RawMessage(nil), result...)
	s.jobs[idx].UpdatedAt = s.now().UTC()

	if err := s.persistLocked(ctx); err != nil {
		s.jobs[idx] = prev
		return domain.Job{}, err
	}

	s.logger.Debug("Bridge job completed",
		slog.String("job_id", jobID),
		slog.String("previous_status", string(prev.Status)),
	)

	return s.jobs[idx].Clone(), nil
}

// GetByRequestID looks a job up by the caller-facing request id
func (s *Store) GetByRequestID(requestID string) (domain.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobID, ok := s.byRequestID[requestID]
	if !ok {
		return domain.Job{}, false
	}
	return s.mustGet(jobID).Clone(), true
}

// GetByJobID looks a job up by its job id
func (s *Store) GetByJobID(jobID string) (domain.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byJobID[jobID]
	if !ok {
		return domain.Job{}, false
	}
	return s.jobs[idx].Clone(), true
}

// Stats summarizes the job backlog
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{TotalJobs: len(s.jobs)}
	var oldestQueued time.Time

	for i := range s.jobs {
		switch s.jobs[i].Status {
		case domain.StatusQueued:
			stats.Queued++
			if oldestQueued.IsZero() || s.jobs[i].CreatedAt.Before(oldestQueued) {
				oldestQueued = s.jobs[i].CreatedAt
			}
		case domain.StatusProcessing:
			stats.Processing++
		case domain.StatusCompleted:
			stats.Completed++
		}
	}

	if stats.Queued > 0 {
		age := s.now().Sub(oldestQueued).Milliseconds()
		if age < 0 {
			age = 0
		}
		stats.OldestQueuedAgeMs = &age
	}

	return stats
}

// JobCursor marks the last job of a listing page
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListFilter selects a page of jobs in insertion order
type ListFilter struct {
	Status   domain.Status
	Cursor   *JobCursor
	PageSize int
}

// List returns up to PageSize jobs after the cursor, optionally restricted to
// one status. A cursor naming an unknown job, or one whose timestamp does not
// match, yields domain.ErrInvalidCursor.
func (s *Store) List(filter ListFilter) ([]domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if filter.Cursor != nil {
		idx, ok := s.byJobID[filter.Cursor.JobID]
		if !ok || !s.jobs[idx].CreatedAt.Equal(filter.Cursor.CreatedAt) {
			return nil, domain.ErrInvalidCursor
		}
		start = idx + 1
	}

	out := make([]domain.Job, 0, filter.PageSize)
	for i := start; i < len(s.jobs) && len(out) < filter.PageSize; i++ {
		if filter.Status != "" && s.jobs[i].Status != filter.Status {
			continue
		}
		out = append(out, s.jobs[i].Clone())
	}
	return out, nil
}

// Snapshot returns a copy of every job in insertion order
func (s *Store) Snapshot() []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() []domain.Job {
	out := make([]domain.Job, len(s.jobs))
	for i := range s.jobs {
		out[i] = s.jobs[i].Clone()
	}
	return out
}

func (s *Store) persistLocked(ctx context.Context) error {
	if err := s.persister.Persist(ctx, s.snapshotLocked()); err != nil {
		s.logger.Error("Failed to persist bridge jobs",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", domain.ErrPersist, err)
	}
	return nil
}

func (s *Store) mustGet(jobID string) domain.Job {
	idx, ok := s.byJobID[jobID]
	if !ok {
		panic(fmt.Sprintf("bridge store: index references missing job %s", jobID))
	}
	return s.jobs[idx]
}

func (s *Store) uniqueID(prefix string, taken func(string) bool) string {
	for {
		id := s.newID(prefix)
		if !taken(id) {
			return id
		}
	}
}
