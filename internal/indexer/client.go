// Package indexer provides HTTP communication with a Prowlarr-compatible
// indexer aggregator: keyword search across configured indexers and pushing
// a chosen release to the aggregator's download client.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/catalog"
)

const apiKeyHeader = "X-Api-Key" //nolint:gosec // header name constant, not a credential

// Client provides HTTP communication with the indexer aggregator.
type Client struct {
	baseURL    string
	apiKey     string
	minSeeders int
	httpClient *http.Client
	logger     zerolog.Logger
}

// ClientConfig contains configuration for creating a new aggregator client.
type ClientConfig struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	MinSeeders int
}

// NewClient creates a new aggregator HTTP client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("indexer URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("indexer API key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		minSeeders: cfg.MinSeeders,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "indexer-client").Logger(),
	}, nil
}

// Search executes a keyword search. kind selects the category code
// (movie → 2000, show → 5000). Malformed entries and results below the
// configured seeder floor are dropped, not fatal.
func (c *Client) Search(ctx context.Context, query string, kind catalog.MediaKind) ([]SearchResult, error) {
	category := CategoryMovies
	searchType := "movie"
	if kind == catalog.KindShow {
		category = CategoryTV
		searchType = "tvsearch"
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("type", searchType)
	params.Add("categories", strconv.Itoa(category))

	path := "/api/v1/search?" + params.Encode()

	c.logger.Info().
		Str("query", query).
		Str("kind", string(kind)).
		Msg("executing search request")

	var payloads []json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &payloads); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(payloads))
	dropped := 0
	for _, raw := range payloads {
		var p searchResultPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			dropped++
			continue
		}
		r, ok := p.toResult()
		if !ok {
			dropped++
			continue
		}
		if r.Seeders < c.minSeeders {
			continue
		}
		results = append(results, r)
	}

	if dropped > 0 {
		c.logger.Warn().
			Int("dropped", dropped).
			Str("query", query).
			Msg("dropped malformed search results")
	}

	c.logger.Info().Int("results", len(results)).Str("query", query).Msg("search completed")
	return results, nil
}

// Enqueue instructs the aggregator to push the release to its configured
// download client.
func (c *Client) Enqueue(ctx context.Context, releaseGUID string, indexerID int) error {
	body := map[string]any{
		"guid":      releaseGUID,
		"indexerId": indexerID,
	}

	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/search", body, nil); err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}

	c.logger.Info().
		Str("releaseGuid", releaseGUID).
		Int("indexerId", indexerID).
		Msg("release pushed to download client")

	return nil
}

// TestConnection verifies connectivity by fetching system status.
func (c *Client) TestConnection(ctx context.Context) error {
	var status struct {
		Version string `json:"version"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/system/status", nil, &status); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}

	c.logger.Info().Str("version", status.Version).Msg("connection test successful")
	return nil
}

// ListIndexers fetches the indexers configured on the aggregator.
func (c *Client) ListIndexers(ctx context.Context) ([]Indexer, error) {
	var indexers []Indexer
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/indexer", nil, &indexers); err != nil {
		return nil, fmt.Errorf("failed to fetch indexers: %w", err)
	}
	return indexers, nil
}

// CountEnabledIndexers returns how many configured indexers are enabled.
func (c *Client) CountEnabledIndexers(ctx context.Context) (int, error) {
	indexers, err := c.ListIndexers(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, idx := range indexers {
		if idx.Enabled {
			count++
		}
	}
	return count, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(apiKeyHeader, c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
