package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudcrafter/console/common/retry"
)

// Provider hands out session identities from an external identity pool.
type Provider interface {
	ObtainID(ctx context.Context) (string, error)
}

// HTTPProvider obtains identities from an identity-pool HTTP endpoint.
type HTTPProvider struct {
	baseURL string
	poolID  string
	client  *http.Client
	policy  retry.Policy
}

// ProviderConfig configures an HTTPProvider.
type ProviderConfig struct {
	BaseURL string
	PoolID  string
	Timeout time.Duration
}

// NewHTTPProvider creates an identity-pool client.
func NewHTTPProvider(cfg ProviderConfig) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		poolID:  cfg.PoolID,
		client:  &http.Client{Timeout: timeout},
		policy:  retry.Policy{Attempts: 3, BaseDelay: 200 * time.Millisecond},
	}
}

type obtainRequest struct {
	IdentityPoolID string `json:"identityPoolId"`
}

type obtainResponse struct {
	IdentityID string `json:"identityId"`
}

// ObtainID requests a fresh identity from the pool, retrying transient
// failures.
func (p *HTTPProvider) ObtainID(ctx context.Context) (string, error) {
	var id string
	err := retry.Do(ctx, p.policy, func() error {
		got, err := p.obtain(ctx)
		if err != nil {
			return err
		}
		id = got
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *HTTPProvider) obtain(ctx context.Context) (string, error) {
	body, err := json.Marshal(obtainRequest{IdentityPoolID: p.poolID})
	if err != nil {
		return "", fmt.Errorf("identity: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/identities", strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("identity: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("identity: read response: %w", err)
	}
	var out obtainResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("identity: decode response: %w", err)
	}
	if out.IdentityID == "" {
		return "", fmt.Errorf("identity: response carries no identity id")
	}
	return out.IdentityID, nil
}
