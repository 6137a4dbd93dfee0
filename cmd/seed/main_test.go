package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/cuongbtq/onprem-bridge/internal/bridge/domain"
	"github.com/cuongbtq/onprem-bridge/internal/bridge/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSeed_RestoresIntoStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bridge_jobs.json")

	require.NoError(t, writeSeed(context.Background(), store.NewFilePersister(path)))

	jobs, rejected, err := store.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0, rejected)
	require.Len(t, jobs, 1)

	s := store.NewStore()
	require.NoError(t, s.Restore(jobs))

	job, ok := s.GetByRequestID("req_seed_0001")
	require.True(t, ok)
	assert.Equal(t, "job_seed_0001", job.JobID)
	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.JSONEq(t, `{
		"requestId": "req_seed_0001",
		"customerId": "cust_100",
		"resource": "invoice",
		"data": {"invoiceId": "inv_seed_20001", "status": "paid", "amountCents": 9000}
	}`, string(job.Result))

	stats := s.Stats()
	assert.Equal(t, 1, stats.TotalJobs)
	assert.Equal(t, 1, stats.Completed)
	assert.Nil(t, stats.OldestQueuedAgeMs)
}

func TestSeedJobs_ReuseKeyIsIndexed(t *testing.T) {
	jobs, err := seedJobs()
	require.NoError(t, err)

	s := store.NewStore()
	require.NoError(t, s.Restore(jobs))

	job, reused, err := s.CreateOrReuse(context.Background(), store.CreateInput{
		CustomerID:     "cust_100",
		Resource:       domain.ResourceInvoice,
		IdempotencyKey: "seed-cust100-invoice-001",
	})
	require.NoError(t, err)
	assert.True(t, reused)
	assert.Equal(t, "job_seed_0001", job.JobID)

	var result map[string]any
	require.NoError(t, json.Unmarshal(job.Result, &result))
	assert.Equal(t, "cust_100", result["customerId"])
}
