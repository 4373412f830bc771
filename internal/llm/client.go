// Package llm – HTTP client for GitHub Models
//
// This file implements the Client used for both chat completions and
// embeddings. Both endpoints live under one base URL and share a bearer
// token, so a single client owns the transport, timeout, and error shaping.
// Errors carry the upstream status via StatusError; callers decide how to
// map them to user-facing responses.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pmfonseca/wedding-assistant/internal/config"
)

// Client talks to an OpenAI-compatible chat-completions and embeddings API.
// The zero value is not usable; construct with NewClient.
type Client struct {
	endpoint       string
	token          string
	defaultModel   string
	temperature    float64
	maxTokens      int
	embeddingModel string
	embeddingDim   int

	httpc *http.Client
}

// NewClient builds a Client from the LLM configuration section.
func NewClient(cfg config.LLMConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint:       strings.TrimRight(cfg.Endpoint, "/"),
		token:          cfg.Token,
		defaultModel:   cfg.DefaultModel,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		embeddingModel: cfg.EmbeddingModel,
		embeddingDim:   cfg.EmbeddingDimension,
		httpc:          &http.Client{Timeout: timeout},
	}
}

// DefaultModel returns the configured default completion model.
func (c *Client) DefaultModel() string { return c.defaultModel }

// Dimension returns the configured embedding vector width, 0 when unset.
// Consumers use it to validate vectors before persisting or comparing them.
func (c *Client) Dimension() int { return c.embeddingDim }

// ChatCompletion sends req and returns the decoded response. When req leaves
// Model, Temperature, or MaxTokens zero the client's configured defaults are
// applied. Upstream failures come back as *StatusError.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if len(req.Messages) == 0 {
		return nil, ErrEmptyInput
	}
	if req.Model == "" {
		req.Model = c.defaultModel
	}
	if req.Temperature == 0 {
		req.Temperature = c.temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.maxTokens
	}

	start := time.Now()
	var resp ChatResponse
	if err := c.post(ctx, "/chat/completions", req.Model, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	log.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Int("tools", len(req.Tools)).
		Int("total_tokens", resp.Usage.TotalTokens).
		Dur("elapsed", time.Since(start)).
		Msg("chat completion")
	return &resp, nil
}

// Embed computes the embedding for a single text.
func (c *Client) Embed(ctx context.Context, text string) (Embedding, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return Embedding{}, err
	}
	return out[0], nil
}

// EmbedBatch computes embeddings for texts in one upstream call. Blank texts
// are filtered out before the request; the result holds one vector per
// surviving text, in the original order. An input with nothing left after
// filtering fails with ErrEmptyInput. Token counts are apportioned evenly
// because the upstream only reports a batch total.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	kept := make([]string, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return nil, ErrEmptyInput
	}

	req := embeddingRequest{Model: c.embeddingModel, Input: kept}
	var resp embeddingResponse
	if err := c.post(ctx, "/embeddings", c.embeddingModel, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(kept) {
		return nil, fmt.Errorf("llm: embeddings response had %d vectors for %d inputs", len(resp.Data), len(kept))
	}

	perText := resp.Usage.TotalTokens / len(kept)
	out := make([]Embedding, len(kept))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("llm: embeddings response index %d out of range", d.Index)
		}
		out[d.Index] = Embedding{Vector: d.Embedding, TokenCount: perText}
	}
	return out, nil
}

// post encodes body, performs the request, and decodes into out. Non-2xx
// responses are turned into *StatusError with the upstream message shaped
// for display.
func (c *Client) post(ctx context.Context, path, model string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("llm: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("llm: %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("llm: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := upstreamMessage(raw, resp.Status)
		log.Warn().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("model", model).
			Msg("llm upstream error")
		return &StatusError{Code: resp.StatusCode, Model: model, Message: shapeUpstreamMessage(model, msg)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("llm: decode response: %w", err)
	}
	return nil
}

// upstreamMessage digs the human-readable message out of an error body.
// Bodies come as {"error":{"message":...}} or {"message":...}; anything else
// falls back to the raw text or HTTP status line.
func upstreamMessage(raw []byte, status string) string {
	var envelope struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Error != nil && envelope.Error.Message != "" {
			return envelope.Error.Message
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		return s
	}
	return status
}
