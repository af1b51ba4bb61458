// Package voice escalates a chat conversation to a live phone callback.
//
// It holds the REST client for the outbound-call platform and the
// two-turn escalation handler: first turn asks the user for a callback
// number, second turn canonicalises the number and places the call.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rivertownball/riverchat/internal/log"
)

// ErrCallRejected indicates the platform accepted the request but
// reported a non-success status.
var ErrCallRejected = errors.New("call rejected by platform")

// CallRequest is the payload sent to the call platform.
type CallRequest struct {
	PhoneNumber     string `json:"phone_number"`
	Task            string `json:"task"`
	Voice           string `json:"voice"`
	MaxDuration     int    `json:"max_duration"`
	WaitForGreeting bool   `json:"wait_for_greeting"`
	Record          bool   `json:"record"`
}

// callResponse is the platform's synchronous reply.
type callResponse struct {
	Status  string `json:"status"`
	CallID  string `json:"call_id"`
	Message string `json:"message"`
}

// Client is a lightweight call-platform API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     log.Logger
}

// NewClient creates a call-platform client. The timeout bounds each
// call-placement request end to end.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger log.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("voice base URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("voice API key is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// PlaceCall submits a call request and waits for the platform's
// synchronous accept/reject. A non-2xx response or a non-success status
// in the body is an error.
func (c *Client) PlaceCall(ctx context.Context, req CallRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling call request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/calls", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building call request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("placing call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading call response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: HTTP %d: %s", ErrCallRejected, resp.StatusCode, respBody)
	}

	var parsed callResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("decoding call response: %w", err)
	}
	if parsed.Status != "success" {
		return fmt.Errorf("%w: status %q: %s", ErrCallRejected, parsed.Status, parsed.Message)
	}

	c.logger.Info("call placed", "call_id", parsed.CallID)
	return nil
}
