package shipper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storewatch/internal/monitor"
)

const (
	liveTimeout   = 10 * time.Second
	replayTimeout = 5 * time.Second
)

// Ack is the server's ingestion response.
type Ack struct {
	Status               string `json:"status"`
	TotalStoresMonitored int    `json:"total_stores_monitored"`
}

// StatusError is a non-2xx server response. Replays treat it as
// non-retryable: the entry is skipped rather than blocking the drain.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Body)
}

// IsNetworkError reports whether err is a transport-level failure
// (connection refused, timeout) rather than a server rejection. Network
// failures abort a buffer drain; rejections skip the entry.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	return !errors.As(err, &se)
}

// Client posts heartbeats to the monitoring server.
type Client struct {
	baseURL string
	live    *http.Client
	replay  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		live:    &http.Client{Timeout: liveTimeout},
		replay:  &http.Client{Timeout: replayTimeout},
	}
}

// SendLive posts to the live ingestion endpoint.
func (c *Client) SendLive(ctx context.Context, hb monitor.Heartbeat) (Ack, error) {
	return c.post(ctx, c.live, "/heartbeat", hb)
}

// SendBuffered posts to the replay endpoint with the shorter replay timeout.
func (c *Client) SendBuffered(ctx context.Context, hb monitor.Heartbeat) (Ack, error) {
	return c.post(ctx, c.replay, "/heartbeat/buffered", hb)
}

func (c *Client) post(ctx context.Context, httpClient *http.Client, path string, hb monitor.Heartbeat) (Ack, error) {
	body, err := json.Marshal(hb)
	if err != nil {
		return Ack{}, fmt.Errorf("marshal heartbeat: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Ack{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return Ack{}, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Ack{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(detail))}
	}

	var ack Ack
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		// A 2xx with an unreadable body still counts as delivered.
		return Ack{Status: "ok"}, nil
	}
	return ack, nil
}
