package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultLocale  = "en_US"
	defaultTimeout = 30 * time.Second
)

// Config configures the HTTP oracle client.
type Config struct {
	// BaseURL is the oracle endpoint, without a trailing slash.
	BaseURL string

	// BotID and BotAliasID select the deployed bot revision to talk to.
	BotID      string
	BotAliasID string

	// LocaleID is the conversation locale.  Defaults to en_US when empty.
	LocaleID string

	// APIKey is the bearer token used to authenticate, when the deployment
	// requires one.  Empty means no Authorization header is sent.
	APIKey string

	// Timeout is the HTTP request timeout.  Defaults to 30s.
	Timeout time.Duration
}

// httpClient implements Client over the oracle's recognize-text endpoint.
type httpClient struct {
	cfg    Config
	client *http.Client
}

// NewHTTP returns a Client backed by the oracle's HTTP API.  The returned
// client is safe for concurrent use.
func NewHTTP(cfg Config) Client {
	if cfg.LocaleID == "" {
		cfg.LocaleID = defaultLocale
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &httpClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal oracle wire types ---

type recognizeRequest struct {
	BotID             string            `json:"botId,omitempty"`
	BotAliasID        string            `json:"botAliasId,omitempty"`
	LocaleID          string            `json:"localeId"`
	SessionID         string            `json:"sessionId"`
	Text              string            `json:"text"`
	SessionAttributes map[string]string `json:"sessionAttributes"`
}

type recognizeResponse struct {
	Messages []struct {
		Content string `json:"content"`
	} `json:"messages"`
	SessionState struct {
		SessionAttributes map[string]string `json:"sessionAttributes"`
		Intent            struct {
			Name string `json:"name"`
		} `json:"intent"`
		DialogAction struct {
			SlotToElicit string `json:"slotToElicit"`
		} `json:"dialogAction"`
	} `json:"sessionState"`
}

// Recognize performs one turn exchange.  Attributes pass through verbatim;
// the reply's attribute bag is returned exactly as received (empty map when
// the oracle omitted it).
func (c *httpClient) Recognize(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	attrs := req.SessionAttributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	body := recognizeRequest{
		BotID:             c.cfg.BotID,
		BotAliasID:        c.cfg.BotAliasID,
		LocaleID:          c.cfg.LocaleID,
		SessionID:         req.SessionID,
		Text:              req.Text,
		SessionAttributes: attrs,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("oracle: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/recognize-text", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("oracle: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}

	var wire recognizeResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	result := &TurnResult{
		SessionAttributes: wire.SessionState.SessionAttributes,
		IntentName:        wire.SessionState.Intent.Name,
		SlotToElicit:      wire.SessionState.DialogAction.SlotToElicit,
	}
	if result.SessionAttributes == nil {
		result.SessionAttributes = map[string]string{}
	}
	for _, m := range wire.Messages {
		result.Messages = append(result.Messages, m.Content)
	}
	return result, nil
}
