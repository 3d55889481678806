// Package metadata resolves display titles to original titles and languages
// to improve search recall for non-English-native content. All failures are
// soft: a nil result means "use the display title as-is".
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/catalog"
)

// OriginalTitle is the result of a metadata lookup.
type OriginalTitle struct {
	Title    string
	Language string // ISO 639-1 code, e.g. "en", "es"
}

// Client queries a TMDB-compatible metadata provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// ClientConfig contains configuration for creating a metadata client.
// An empty APIKey produces a client whose lookups always return nil.
type ClientConfig struct {
	URL    string
	APIKey string
}

// NewClient creates a new metadata client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With().Str("component", "metadata-client").Logger(),
	}
}

type searchResponse struct {
	Results []struct {
		Title            string `json:"title"`
		Name             string `json:"name"`
		OriginalTitle    string `json:"original_title"`
		OriginalName     string `json:"original_name"`
		OriginalLanguage string `json:"original_language"`
	} `json:"results"`
}

// Lookup resolves (title, year, kind) to the original title and language.
// Returns nil (not an error) when the provider is unconfigured, unreachable,
// or has no match.
func (c *Client) Lookup(ctx context.Context, title string, year int, kind catalog.MediaKind) *OriginalTitle {
	if c.apiKey == "" {
		return nil
	}

	var path string
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("query", title)

	if kind == catalog.KindShow {
		path = "/search/tv"
		if year > 0 {
			params.Set("first_air_date_year", strconv.Itoa(year))
		}
	} else {
		path = "/search/movie"
		if year > 0 {
			params.Set("year", strconv.Itoa(year))
		}
	}

	reqURL := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("title", title).Msg("metadata lookup failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("title", title).
			Msg("metadata lookup returned error status")
		return nil
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.Warn().Err(err).Str("title", title).Msg("failed to decode metadata response")
		return nil
	}

	if len(result.Results) == 0 {
		return nil
	}

	first := result.Results[0]
	original := first.OriginalTitle
	if original == "" {
		original = first.OriginalName
	}
	if original == "" || first.OriginalLanguage == "" {
		return nil
	}

	c.logger.Debug().
		Str("title", title).
		Str("originalTitle", original).
		Str("language", first.OriginalLanguage).
		Msg("resolved original title")

	return &OriginalTitle{Title: original, Language: first.OriginalLanguage}
}

// BuildQuery assembles the search query for an entry: the original title when
// the original language is not English, otherwise the display title, with the
// year appended in either case.
func BuildQuery(entry catalog.WatchlistEntry, original *OriginalTitle) string {
	title := entry.Title
	if original != nil && original.Language != "en" && original.Title != "" {
		title = original.Title
	}
	return fmt.Sprintf("%s %d", title, entry.Year)
}
