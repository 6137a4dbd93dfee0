package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/cuongbtq/onprem-bridge/internal/agent"
	"github.com/cuongbtq/onprem-bridge/internal/api/dto"
	"github.com/cuongbtq/onprem-bridge/internal/bridge/domain"
	"github.com/cuongbtq/onprem-bridge/internal/bridge/store"
	"github.com/cuongbtq/onprem-bridge/shared/logger"
	"github.com/joho/godotenv"
)

const defaultStateFile = ".demo-data/bridge_jobs.json"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultPath := os.Getenv("BRIDGE_STATE_FILE")
	if defaultPath == "" {
		defaultPath = defaultStateFile
	}
	statePath := flag.String("state", defaultPath, "Path of the bridge state file to write")
	flag.Parse()

	appLogger := logger.NewDefault()

	if err := writeSeed(context.Background(), store.NewFilePersister(*statePath)); err != nil {
		return err
	}

	appLogger.Info("Seeded bridge state", slog.String("path", *statePath))
	return nil
}

// writeSeed persists a state holding one completed invoice job
func writeSeed(ctx context.Context, persister store.Persister) error {
	jobs, err := seedJobs()
	if err != nil {
		return err
	}
	if err := persister.Persist(ctx, jobs); err != nil {
		return fmt.Errorf("failed to write seed state: %w", err)
	}
	return nil
}

func seedJobs() ([]domain.Job, error) {
	result, err := json.Marshal(dto.MinimizedResult{
		RequestID:  "req_seed_0001",
		CustomerID: "cust_100",
		Resource:   domain.ResourceInvoice,
		Data: agent.Invoice{
			InvoiceID:   "inv_seed_20001",
			Status:      "paid",
			AmountCents: 9000,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode seed result: %w", err)
	}

	createdAt := time.Date(2026, time.February, 18, 8, 0, 0, 0, time.UTC)

	return []domain.Job{{
		JobID:          "job_seed_0001",
		RequestID:      "req_seed_0001",
		CustomerID:     "cust_100",
		Resource:       domain.ResourceInvoice,
		Status:         domain.StatusCompleted,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt.Add(time.Minute),
		Result:         result,
		IdempotencyKey: "seed-cust100-invoice-001",
	}}, nil
}
