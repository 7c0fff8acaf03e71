package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	executePath = "/api/node/execute"
	healthPath  = "/api/node/health"
)

// Client talks to worker nodes. One instance is shared by the dispatcher
// and the heartbeat loop.
type Client struct {
	http *http.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Execute sends a sub-task and decodes the per-symbol results. Responses
// carrying an unexpected schema id are rejected.
func (c *Client) Execute(ctx context.Context, address string, req ExecuteRequest) (*ExecuteResponse, error) {
	req.SchemaID = SchemaID
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, nodeURL(address, executePath), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()
	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("node %s returned %d: %s", address, httpResp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var resp ExecuteResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("node %s returned malformed response: %w", address, err)
	}
	if resp.SchemaID != SchemaID {
		return nil, fmt.Errorf("node %s responded with schema %q, want %q", address, resp.SchemaID, SchemaID)
	}
	return &resp, nil
}

// Health probes a node's heartbeat endpoint.
func (c *Client) Health(ctx context.Context, address string) (*HealthResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, nodeURL(address, healthPath), nil)
	if err != nil {
		return nil, err
	}
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("node %s health returned %d", address, httpResp.StatusCode)
	}
	var resp HealthResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func nodeURL(address, path string) string {
	address = strings.TrimRight(address, "/")
	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		address = "http://" + address
	}
	return address + path
}
