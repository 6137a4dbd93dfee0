package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuongbtq/onprem-bridge/internal/bridge/domain"
)

// ErrCorruptStateFile is returned by LoadFile when the state file is not a
// JSON array of jobs.
var ErrCorruptStateFile = errors.New("corrupt state file")

// Persister receives a full snapshot of the store after every mutation.
// A returned error fails the mutation and the store rolls it back.
type Persister interface {
	Persist(ctx context.Context, jobs []domain.Job) error
}

// NopPersister keeps the store memory-only
type NopPersister struct{}

// Persist does nothing
func (NopPersister) Persist(context.Context, []domain.Job) error {
	return nil
}

// FilePersister rewrites a JSON state file with the full job list
type FilePersister struct {
	path string
}

// NewFilePersister creates a persister writing to path
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Path returns the state file location
func (p *FilePersister) Path() string {
	return p.path
}

// Persist writes jobs to a temporary file next to the state file and renames
// it into place, so readers never observe a half-written file.
func (p *FilePersister) Persist(ctx context.Context, jobs []domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if jobs == nil {
		jobs = []domain.Job{}
	}

	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".bridge-jobs-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tmpName, p.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}

// LoadFile reads a state file written by FilePersister. Rows that are
// malformed, violate job invariants, or repeat an id already seen are dropped
// and counted in rejected. A missing file is an empty state.
func LoadFile(path string) (jobs []domain.Job, rejected int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to read state file: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, 0, nil
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, 0, fmt.Errorf("%w: failed to parse state file: %v", ErrCorruptStateFile, err)
	}

	seenJobs := make(map[string]bool, len(rows))
	seenRequests := make(map[string]bool, len(rows))
	seenKeys := make(map[string]bool)

	for _, raw := range rows {
		job, err := decodeRow(raw)
		if err != nil {
			rejected++
			continue
		}

		if seenJobs[job.JobID] || seenRequests[job.RequestID] ||
			(job.IdempotencyKey != "" && seenKeys[job.IdempotencyKey]) {
			rejected++
			continue
		}

		seenJobs[job.JobID] = true
		seenRequests[job.RequestID] = true
		if job.IdempotencyKey != "" {
			seenKeys[job.IdempotencyKey] = true
		}
		jobs = append(jobs, job)
	}

	return jobs, rejected, nil
}

type persistedRow struct {
	JobID          string          `json:"jobId"`
	RequestID      string          `json:"requestId"`
	CustomerID     string          `json:"customerId"`
	Resource       string          `json:"resource"`
	Status         string          `json:"status"`
	CreatedAt      string          `json:"createdAt"`
	UpdatedAt      string          `json:"updatedAt"`
	Result         json.RawMessage `json:"result"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

func decodeRow(raw json.RawMessage) (domain.Job, error) {
	var row persistedRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return domain.Job{}, err
	}

	if row.JobID == "" || row.RequestID == "" || row.CustomerID == "" {
		return domain.Job{}, errors.New("missing identifier")
	}

	resource := domain.Resource(row.Resource)
	if !resource.Valid() {
		return domain.Job{}, fmt.Errorf("invalid resource %q", row.Resource)
	}

	status := domain.Status(row.Status)
	if !status.Valid() {
		return domain.Job{}, fmt.Errorf("invalid status %q", row.Status)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return domain.Job{}, fmt.Errorf("invalid createdAt: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, row.UpdatedAt)
	if err != nil {
		return domain.Job{}, fmt.Errorf("invalid updatedAt: %w", err)
	}

	hasResult := len(row.Result) > 0 && string(row.Result) != "null"
	if hasResult && status != domain.StatusCompleted {
		return domain.Job{}, errors.New("result on unfinished job")
	}

	job := domain.Job{
		JobID:      row.JobID,
		RequestID:  row.RequestID,
		CustomerID: row.CustomerID,
		Resource:   resource,
		Status:     status,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
	if status == domain.StatusCompleted {
		job.Result = json.RawMessage("null")
		if hasResult {
			job.Result = append(json.RawMessage(nil), row.Result...)
		}
	}
	job.IdempotencyKey = row.IdempotencyKey

	return job, nil
}

// LoadOrQuarantine loads the state file like LoadFile. A corrupt file is
// renamed next to itself with a ".corrupt-<unix nanos>" suffix and an empty
// state is returned, so startup proceeds and the next write cannot clobber
// the unreadable data. quarantined holds the new path when that happened.
func LoadOrQuarantine(path string, now time.Time) (jobs []domain.Job, rejected int, quarantined string, err error) {
	jobs, rejected, err = LoadFile(path)
	if err == nil || !errors.Is(err, ErrCorruptStateFile) {
		return jobs, rejected, "", err
	}

	quarantined = fmt.Sprintf("%s.corrupt-%d", path, now.UnixNano())
	if renameErr := os.Rename(path, quarantined); renameErr != nil {
		return nil, 0, "", fmt.Errorf("%w (quarantine failed: %v)", err, renameErr)
	}
	return nil, 0, quarantined, nil
}
