package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cuongbtq/onprem-bridge/internal/api/dto"
)

// StatusError is returned when the control plane answers with an unexpected status
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed: status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s failed: status %d: %s", e.Op, e.Code, e.Body)
}

// Client talks to the control plane's bridge endpoints
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a control plane client
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Pull asks for the next queued job. It returns nil when nothing is queued.
func (c *Client) Pull(ctx context.Context) (*dto.PullJobResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/bridge/jobs/pull", nil)
	if err != nil {
		return nil, fmt.Errorf("pull failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
	default:
		return nil, statusError("pull", resp)
	}

	var pulled dto.PullJobResponse
	if err := json.NewDecoder(resp.Body).Decode(&pulled); err != nil {
		return nil, fmt.Errorf("failed to decode pulled job: %w", err)
	}
	return &pulled, nil
}

// PostResult sends a signed job result
func (c *Client) PostResult(ctx context.Context, jobID string, result json.RawMessage, signature string) error {
	body, err := json.Marshal(dto.PostResultRequest{Result: result, Signature: signature})
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/bridge/jobs/"+jobID+"/result", body)
	if err != nil {
		return fmt.Errorf("post result failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError("post result", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

func statusError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
}
