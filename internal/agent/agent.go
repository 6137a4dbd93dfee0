// Package agent implements the on-prem bridge agent: it polls the control
// plane for jobs, reads the requested record from an on-prem source and
// posts back a signed, minimized result.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/onprem-bridge/internal/api/dto"
	"github.com/cuongbtq/onprem-bridge/internal/bridge/domain"
	"github.com/cuongbtq/onprem-bridge/internal/signing"
)

// Config holds agent configuration
type Config struct {
	Logger       *slog.Logger
	Client       *Client
	Source       Source
	Signer       *signing.Signer
	PollInterval time.Duration
}

// Agent is the polling bridge agent
type Agent struct {
	logger       *slog.Logger
	client       *Client
	source       Source
	signer       *signing.Signer
	pollInterval time.Duration

	// mu orders Start's registration with Stop so no cycle begins after
	// Stop has returned.
	mu       sync.Mutex
	stopped  bool
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

// New creates a new agent instance
func New(cfg *Config) *Agent {
	return &Agent{
		logger:       cfg.Logger,
		client:       cfg.Client,
		source:       cfg.Source,
		signer:       cfg.Signer,
		pollInterval: cfg.PollInterval,
		stopChan:     make(chan struct{}),
	}
}

// Start runs one cycle per poll interval until ctx is cancelled or Stop is
// called. Cycle failures are logged and never end the loop.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.wg.Add(1)
	a.mu.Unlock()
	defer a.wg.Done()

	a.logger.Info("Starting bridge agent",
		slog.Duration("poll_interval", a.pollInterval),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Bridge agent context canceled, stopping")
			return nil
		case <-a.stopChan:
			return nil
		case <-timer.C:
		}

		select {
		case <-a.stopChan:
			return nil
		default:
		}

		if _, err := a.RunOnce(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("Bridge agent cycle failed",
				slog.String("error", err.Error()),
			)
		}

		timer.Reset(a.pollInterval)
	}
}

// Stop ends the polling loop and waits for the current cycle to finish
func (a *Agent) Stop() {
	a.stopOnce.Do(func() {
		a.logger.Info("Stopping bridge agent...")
		a.mu.Lock()
		a.stopped = true
		close(a.stopChan)
		a.mu.Unlock()
	})
	a.wg.Wait()
	a.logger.Info("Bridge agent stopped")
}

// RunOnce performs a single pull, lookup and post cycle. processed is false
// when no job was queued.
func (a *Agent) RunOnce(ctx context.Context) (processed bool, err error) {
	pulled, err := a.client.Pull(ctx)
	if err != nil {
		return false, err
	}
	if pulled == nil {
		a.logger.Debug("No queued bridge job")
		return false, nil
	}

	payload := pulled.Payload
	if !a.signer.Verify(payload, pulled.Signature) {
		return false, fmt.Errorf("job %s: control plane %w", payload.JobID, domain.ErrInvalidSignature)
	}
	if !payload.Resource.Valid() {
		return false, fmt.Errorf("job %s: unsupported resource %q", payload.JobID, payload.Resource)
	}

	data, err := a.source.Lookup(ctx, payload.CustomerID, payload.Resource)
	if err != nil {
		return false, fmt.Errorf("job %s: %w", payload.JobID, err)
	}

	result, err := json.Marshal(dto.MinimizedResult{
		RequestID:  payload.RequestID,
		CustomerID: payload.CustomerID,
		Resource:   payload.Resource,
		Data:       data,
	})
	if err != nil {
		return false, fmt.Errorf("job %s: failed to encode result: %w", payload.JobID, err)
	}

	signature, err := a.signer.Sign(domain.ResultEnvelope{JobID: payload.JobID, Result: result})
	if err != nil {
		return false, fmt.Errorf("job %s: failed to sign result: %w", payload.JobID, err)
	}

	if err := a.client.PostResult(ctx, payload.JobID, result, signature); err != nil {
		return false, fmt.Errorf("job %s: %w", payload.JobID, err)
	}

	a.logger.Info("Processed bridge job",
		slog.String("job_id", payload.JobID),
		slog.String("request_id", payload.RequestID),
		slog.Bool("found", data != nil),
	)
	return true, nil
}
