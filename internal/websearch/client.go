// Package websearch provides a thin client for the Tavily search API.
//
// The client only performs the HTTP call; query normalization and result
// caching live with the callers so the same client serves both the chat
// tool and any future admin surface.
package websearch

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

	"github.com/rs/zerolog/log"

	"github.com/pmfonseca/wedding-assistant/internal/config"
)

const (
	searchDepthBasic = "basic"
	maxResults       = 5
	maxResponseBytes = 1 << 20
)

// ErrNotConfigured is returned when no API key is present.
var ErrNotConfigured = errors.New("websearch: api key not configured")

// Result is one web hit returned by the search API.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Response is the distilled search outcome handed to callers.
type Response struct {
	Answer  string   `json:"answer"`
	Results []Result `json:"results"`
	Query   string   `json:"query"`
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
	MaxResults    int    `json:"max_results"`
}

type searchResponse struct {
	Answer  string   `json:"answer"`
	Results []Result `json:"results"`
}

// Client calls the Tavily search endpoint.
type Client struct {
	endpoint string
	apiKey   string
	httpc    *http.Client
}

// NewClient builds a Client from the web search configuration section.
func NewClient(cfg config.WebSearchConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		httpc:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Search runs one web search. The original query is sent upstream
// verbatim; callers normalize separately for cache keying.
func (c *Client) Search(ctx context.Context, query string) (*Response, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("websearch: empty query")
	}

	body, err := json.Marshal(searchRequest{
		APIKey:        c.apiKey,
		Query:         query,
		SearchDepth:   searchDepthBasic,
		IncludeAnswer: true,
		MaxResults:    maxResults,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("websearch: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Str("query", query).Msg("web search upstream error")
		return nil, fmt.Errorf("websearch: upstream returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("websearch: decode response: %w", err)
	}

	out := &Response{
		Answer:  parsed.Answer,
		Results: parsed.Results,
		Query:   query,
	}
	if out.Results == nil {
		out.Results = []Result{}
	}
	log.Debug().Str("query", query).Int("results", len(out.Results)).Msg("web search completed")
	return out, nil
}
