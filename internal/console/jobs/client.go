// Package jobs tracks long-running backend operations (Terraform plan
// generation and apply) through a cancellable polling state machine.
package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Status values reported by the job backend.  The backend only distinguishes
// running from terminal; the richer poller states are internal.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// StatusResult is one response from the job status endpoint.
type StatusResult struct {
	Status Status `json:"status"`

	// Result carries the raw plan text on plan completion, or the error
	// detail on failure.
	Result string `json:"result"`

	// Resources describes provisioned resources after an apply.
	Resources json.RawMessage `json:"resources"`

	// StructuredPlan is the machine-readable plan on plan completion.
	StructuredPlan json.RawMessage `json:"structured_plan"`
}

// Client talks to the backend job runner.
//
// Implementations must be safe for concurrent use.  Status fetch errors are
// transient from the poller's point of view; only terminal statuses and
// cancellation stop a poll.
type Client interface {
	// Status fetches the current state of the given job.
	Status(ctx context.Context, jobID string) (*StatusResult, error)

	// StartApply asks the backend to apply the blueprint produced by the
	// given plan job, returning the new apply job id.
	StartApply(ctx context.Context, planJobID string, blueprint json.RawMessage) (string, error)
}

const defaultHTTPTimeout = 15 * time.Second

// HTTPConfig configures the HTTP jobs client.
type HTTPConfig struct {
	// BaseURL is the job runner endpoint, without a trailing slash.
	BaseURL string
	// Timeout is the per-request timeout.  Defaults to 15s.
	Timeout time.Duration
}

type httpClient struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTP returns a Client backed by the job runner's HTTP API.
func NewHTTP(cfg HTTPConfig) Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	return &httpClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *httpClient) Status(ctx context.Context, jobID string) (*StatusResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/status/%s", c.cfg.BaseURL, jobID), nil)
	if err != nil {
		return nil, fmt.Errorf("jobs: create status request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jobs: status fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("jobs: read status body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("jobs: status fetch: HTTP %d", resp.StatusCode)
	}

	var result StatusResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("jobs: decode status: %w", err)
	}
	return &result, nil
}

// applyRequest is the wire body of POST /apply.
type applyRequest struct {
	JobID          string          `json:"job_id"`
	InfraBlueprint json.RawMessage `json:"infra_blueprint"`
}

type applyResponse struct {
	ApplyJobID string `json:"apply_job_id"`
}

func (c *httpClient) StartApply(ctx context.Context, planJobID string, blueprint json.RawMessage) (string, error) {
	data, err := json.Marshal(applyRequest{JobID: planJobID, InfraBlueprint: blueprint})
	if err != nil {
		return "", fmt.Errorf("jobs: marshal apply request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/apply", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("jobs: create apply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("jobs: apply request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("jobs: read apply body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("jobs: apply request: HTTP %d", resp.StatusCode)
	}

	var result applyResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("jobs: decode apply response: %w", err)
	}
	if result.ApplyJobID == "" {
		return "", fmt.Errorf("jobs: apply response missing apply_job_id")
	}
	return result.ApplyJobID, nil
}
