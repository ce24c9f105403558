// Package guiproxy implements the dispatcher.GuiProxy capability: an HTTP
// client that reaches the co-resident GUI helper over its own loopback
// port, keeping the dispatcher and the loopback server decoupled from each
// other's types (§9's cyclic-GUI-proxy note).
package guiproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// callTimeout bounds a GUI-capability call awaiting the helper's HTTP
// response, per §5's "30s read timeout" rule.
const callTimeout = 30 * time.Second

// probeTimeout bounds the tools/list liveness probe.
const probeTimeout = time.Second

// Client talks to the GUI helper's loopback HTTP bridge.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client pointed at the helper's loopback bridge (default
// port 3460, per §6's port table).
func New(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{}}
}

// Call forwards a GUI-capability method verbatim to the helper and
// decodes its JSON result.
func (c *Client) Call(ctx context.Context, method string, params map[string]any) (any, error) {
	body, err := json.Marshal(map[string]any{"action": method, "params": params})
	if err != nil {
		return nil, fmt.Errorf("marshal gui call: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/action", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gui helper unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gui helper returned status %d: %s", resp.StatusCode, raw)
	}

	var result any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("decode gui response: %w", err)
		}
	}
	return result, nil
}

// Probe posts {action:"getTabs"} and reports whether the helper answers
// HTTP 200 within one second, per the tools/list browser-tool rule.
func (c *Client) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	body, _ := json.Marshal(map[string]any{"action": "getTabs"})
	req, err := http.NewRequestWithContext(probeCtx, http.MethodPost, c.baseURL+"/action", bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
