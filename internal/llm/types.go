// Package llm – wire types
//
// This file defines the request/response shapes for the OpenAI-compatible
// chat-completions and embeddings endpoints exposed by GitHub Models. Tool
// definitions follow the function-calling schema so the agent layer can hand
// the model callable tools and read back structured tool invocations.
package llm

import "encoding/json"

// Chat roles accepted by the completions endpoint.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single chat message. Content is a pointer because assistant
// messages that carry tool calls may have a null content field on the wire.
type Message struct {
	Role       string     `json:"role"`
	Content    *string    `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Text returns the message content, or "" when content is null.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// TextMessage builds a plain-content message for the given role.
func TextMessage(role, content string) Message {
	return Message{Role: role, Content: &content}
}

// ToolMessage builds the tool-role message that answers a specific tool call.
func ToolMessage(callID, content string) Message {
	return Message{Role: RoleTool, Content: &content, ToolCallID: callID}
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool declares a callable function to the model.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction is the function half of a tool declaration. Parameters is a
// JSON Schema object describing the accepted arguments.
type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ChatRequest is the body sent to POST /chat/completions.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Tools       []Tool    `json:"tools,omitempty"`
}

// Usage reports token accounting for a completed call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Choice is one candidate completion.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// ChatResponse is the body returned by POST /chat/completions.
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// First returns the first choice's message, or a zero Message when the
// response carries no choices.
func (r *ChatResponse) First() Message {
	if len(r.Choices) == 0 {
		return Message{}
	}
	return r.Choices[0].Message
}

// embeddingRequest is the body sent to POST /embeddings. Input is a slice
// even for single texts; the endpoint accepts both shapes but one canonical
// form keeps encoding simple.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingDatum struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type embeddingResponse struct {
	Data  []embeddingDatum `json:"data"`
	Usage Usage            `json:"usage"`
}

// Embedding is one computed vector with its approximate token cost.
type Embedding struct {
	Vector     []float32
	TokenCount int
}
