package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/crypto"
)

const tokenHeader = "X-Plex-Token" //nolint:gosec // header name, not a credential

var (
	ErrAuthRejected = errors.New("catalog rejected credentials")
	ErrNotFound     = errors.New("catalog item not found")
)

// Client provides HTTP communication with a Plex-compatible media catalog.
// Callers pass tokens explicitly on every call; the client never caches them.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// ClientConfig contains configuration for creating a new catalog client.
type ClientConfig struct {
	URL     string
	Timeout time.Duration
}

// NewClient creates a new catalog HTTP client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("catalog URL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "catalog-client").Logger(),
	}, nil
}

// mediaContainer is the catalog's JSON envelope.
type mediaContainer struct {
	MediaContainer struct {
		Size     int `json:"size"`
		Metadata []struct {
			GUID      string `json:"guid"`
			RatingKey string `json:"ratingKey"`
			Title     string `json:"title"`
			Year      int    `json:"year"`
			Type      string `json:"type"`
		} `json:"Metadata"`
	} `json:"MediaContainer"`
}

// FetchWatchlist returns all watchlist entries for the given token.
func (c *Client) FetchWatchlist(ctx context.Context, token string) ([]WatchlistEntry, error) {
	var container mediaContainer
	if err := c.doJSON(ctx, http.MethodGet, "/library/sections/watchlist/all", token, &container); err != nil {
		return nil, err
	}

	entries := make([]WatchlistEntry, 0, len(container.MediaContainer.Metadata))
	for _, m := range container.MediaContainer.Metadata {
		if m.GUID == "" {
			c.logger.Warn().Str("title", m.Title).Msg("dropping watchlist entry without guid")
			continue
		}
		entries = append(entries, WatchlistEntry{
			GUID:      m.GUID,
			RatingKey: m.RatingKey,
			Title:     m.Title,
			Year:      m.Year,
			Kind:      ParseKind(m.Type),
		})
	}

	c.logger.Debug().
		Int("entries", len(entries)).
		Str("token", crypto.Mask(token)).
		Msg("fetched watchlist")

	return entries, nil
}

// ExistsInLibrary reports whether the local library already holds the entry.
// True only when exactly one item with the same guid is reported.
func (c *Client) ExistsInLibrary(ctx context.Context, token string, entry WatchlistEntry) (bool, error) {
	path := "/library/all?guid=" + url.QueryEscape(entry.GUID)

	var container mediaContainer
	if err := c.doJSON(ctx, http.MethodGet, path, token, &container); err != nil {
		return false, err
	}

	return container.MediaContainer.Size == 1, nil
}

// RemoveFromWatchlist removes an entry from the account's watchlist.
func (c *Client) RemoveFromWatchlist(ctx context.Context, token, ratingKey string) error {
	path := "/actions/removeFromWatchlist?ratingKey=" + url.QueryEscape(ratingKey)
	return c.doJSON(ctx, http.MethodPut, path, token, nil)
}

// AddToWatchlist puts an entry back on the account's watchlist.
// Used to re-queue an acquisition after an infected payload was purged.
func (c *Client) AddToWatchlist(ctx context.Context, token, ratingKey string) error {
	path := "/actions/addToWatchlist?ratingKey=" + url.QueryEscape(ratingKey)
	return c.doJSON(ctx, http.MethodPut, path, token, nil)
}

// AccountInfo resolves the account behind a token. Health checks only.
func (c *Client) AccountInfo(ctx context.Context, token string) (*AccountInfo, error) {
	var info AccountInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/v2/user", token, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(tokenHeader, token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logger.Warn().
			Str("path", path).
			Str("token", crypto.Mask(token)).
			Msg("catalog rejected token")
		return ErrAuthRejected
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("catalog request failed with status %d", resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode catalog response: %w", err)
		}
	}

	return nil
}
