// Package tools registers the agent's callable tools: web search backed by
// the query cache, and read-only access to the wedding guest and event
// tables. Tool failures are reported inside the JSON payload handed back to
// the model, mirroring how the search surface degrades when the upstream
// API is unavailable or unconfigured.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/pmfonseca/wedding-assistant/internal/agent"
	"github.com/pmfonseca/wedding-assistant/internal/cache"
	"github.com/pmfonseca/wedding-assistant/internal/llm"
	"github.com/pmfonseca/wedding-assistant/internal/repo"
	"github.com/pmfonseca/wedding-assistant/internal/websearch"
)

var searchWebSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "The search query to look up on the web"
		}
	},
	"required": ["query"]
}`)

// SearchWebResult is the payload returned to the model for one search.
type SearchWebResult struct {
	Answer    string             `json:"answer,omitempty"`
	Results   []websearch.Result `json:"results"`
	Query     string             `json:"query"`
	FromCache bool               `json:"from_cache,omitempty"`
	CachedAt  *time.Time         `json:"cached_at,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// SearchWebTool answers web queries through the Tavily client, consulting
// the normalized-query cache first.
type SearchWebTool struct {
	DB     *gorm.DB
	Client *websearch.Client
	TTL    time.Duration
}

// Register adds the search_web tool to the registry.
func (t *SearchWebTool) Register(reg *agent.Registry) {
	reg.Register(llm.Tool{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        "search_web",
			Description: "Search the web for current information, news, facts, or any information not in your knowledge base. Use this when you need real-time or up-to-date information.",
			Parameters:  searchWebSchema,
		},
	}, t.execute)
}

func (t *SearchWebTool) execute(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}

	if !t.Client.Enabled() {
		return &SearchWebResult{
			Error:   "Web search API key not configured. Please add your search API key in settings.",
			Results: []websearch.Result{},
			Query:   in.Query,
		}, nil
	}

	normalized := cache.NormalizeQuery(in.Query)
	hash := cache.QueryHash(in.Query)

	entry, err := repo.GetCacheEntry(ctx, t.DB, hash, time.Now())
	switch {
	case err == nil:
		var cached websearch.Response
		if decodeErr := json.Unmarshal([]byte(entry.Results), &cached); decodeErr == nil {
			if hitErr := repo.RecordCacheHit(ctx, t.DB, entry.ID, time.Now()); hitErr != nil {
				log.Warn().Err(hitErr).Str("cache_id", entry.ID).Msg("record cache hit")
			}
			log.Debug().Str("query", normalized).Int("hit_count", entry.HitCount+1).Msg("search cache hit")
			cachedAt := entry.CreatedAt
			return &SearchWebResult{
				Answer:    cached.Answer,
				Results:   cached.Results,
				Query:     in.Query,
				FromCache: true,
				CachedAt:  &cachedAt,
			}, nil
		}
		// Unreadable cache rows fall through to a fresh search.
		log.Warn().Str("cache_id", entry.ID).Msg("corrupt search cache entry, refetching")
	case errors.Is(err, repo.ErrNotFound):
	default:
		log.Warn().Err(err).Str("query", normalized).Msg("search cache lookup failed")
	}

	resp, err := t.Client.Search(ctx, in.Query)
	if err != nil {
		return &SearchWebResult{
			Error:   err.Error(),
			Results: []websearch.Result{},
			Query:   in.Query,
		}, nil
	}

	if body, err := json.Marshal(resp); err == nil {
		if _, err := repo.UpsertCacheEntry(ctx, t.DB, normalized, hash, string(body), t.TTL); err != nil {
			log.Warn().Err(err).Str("query", normalized).Msg("save search cache entry")
		}
	}

	return &SearchWebResult{
		Answer:  resp.Answer,
		Results: resp.Results,
		Query:   in.Query,
	}, nil
}
