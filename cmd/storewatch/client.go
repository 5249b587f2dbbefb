package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"storewatch/config"
	"storewatch/internal/monitor"
)

const requestTimeout = 15 * time.Second

// apiClient talks to a running daemon over its HTTP API.
type apiClient struct {
	base string
	http *http.Client
}

// resolveClient picks the daemon URL: --server wins, then --context, then
// the config file's current context, then STOREWATCH_SERVER.
func resolveClient(server, contextName string) (*apiClient, error) {
	if server != "" {
		return newAPIClient(server), nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if contextName != "" {
		ctx, ok := cfg.Contexts[contextName]
		if !ok {
			return nil, fmt.Errorf("context %q not found", contextName)
		}
		return newAPIClient(ctx.URL), nil
	}
	if _, ctx, ok := cfg.Current(); ok {
		return newAPIClient(ctx.URL), nil
	}
	if v := os.Getenv("STOREWATCH_SERVER"); v != "" {
		return newAPIClient(v), nil
	}
	return nil, fmt.Errorf("no daemon configured: pass --server, or run 'storewatch context add'")
}

func newAPIClient(base string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: requestTimeout},
	}
}

func (c *apiClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, out)
}

func (c *apiClient) post(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodPost, path, out)
}

func (c *apiClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError extracts the daemon's {"error": "..."} body when present.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("daemon: %s (status %d)", e.Error, resp.StatusCode)
	}
	return fmt.Errorf("daemon returned status %d", resp.StatusCode)
}

// Response shapes, mirroring the daemon's handlers.

type dashboardSummary struct {
	Total       int       `json:"total"`
	Online      int       `json:"online"`
	Offline     int       `json:"offline"`
	Unknown     int       `json:"unknown"`
	LastUpdated time.Time `json:"last_updated"`
}

type dashboardResponse struct {
	Stores  []monitor.StoreSnapshot `json:"stores"`
	Summary dashboardSummary        `json:"summary"`
}

type storeResponse struct {
	monitor.StoreSnapshot
	IsOnline bool `json:"is_online"`
}

type alertsResponse struct {
	Alerts []monitor.Alert `json:"alerts"`
}

type sweepResponse struct {
	Hydrated    int `json:"hydrated"`
	Transitions int `json:"transitions"`
}

type healthResponse struct {
	Status             string         `json:"status"`
	UptimeSeconds      int            `json:"uptime_seconds"`
	HeartbeatsAccepted int64          `json:"heartbeats_accepted"`
	HeartbeatsRejected int64          `json:"heartbeats_rejected"`
	Stores             map[string]int `json:"stores"`
}
