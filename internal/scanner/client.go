// Package scanner talks to the antivirus sidecar. The sidecar wraps the
// signature engines behind a small HTTP API; a scan of a large payload can
// take minutes, so the client carries its own long timeout and callers must
// not hold database work open across a call.
package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Verdict is the aggregated result of scanning a file or a directory tree.
type Verdict struct {
	Infected         bool     `json:"infected"`
	ThreatName       string   `json:"threatName,omitempty"`
	SignatureMatches []string `json:"signatureMatches"`
	ScannedFiles     []string `json:"scannedFiles"`
	InfectedFiles    []string `json:"infectedFiles"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "scanner").Logger(),
	}
}

// Scan submits a path to the sidecar. The sidecar detects whether the path
// is a file or a directory and scans directories recursively.
func (c *Client) Scan(ctx context.Context, path string) (*Verdict, error) {
	body, err := json.Marshal(map[string]string{"path": path})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scan", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("scanner returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var verdict Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, fmt.Errorf("decode scan response: %w", err)
	}

	c.logger.Info().
		Str("path", path).
		Bool("infected", verdict.Infected).
		Int("scannedFiles", len(verdict.ScannedFiles)).
		Dur("elapsed", time.Since(started)).
		Msg("scan completed")

	return &verdict, nil
}

// Ping checks that the sidecar is up and its engines are loaded.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("scanner health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scanner health check returned status %d", resp.StatusCode)
	}
	return nil
}
