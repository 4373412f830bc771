package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pmfonseca/wedding-assistant/internal/config"
	"github.com/pmfonseca/wedding-assistant/internal/llm"
)

// ChatClient is the slice of the LLM client the agent needs.
type ChatClient interface {
	ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
	DefaultModel() string
}

// Reply is the final assistant answer for one turn.
type Reply struct {
	Content    string
	Model      string
	ToolRounds int
}

// Agent runs the tool-calling loop against a chat model.
type Agent struct {
	Client        ChatClient
	Registry      *Registry
	SystemMessage string
	MaxToolRounds int
}

// New wires an Agent from the LLM configuration section.
func New(client ChatClient, registry *Registry, cfg config.LLMConfig) *Agent {
	return &Agent{
		Client:        client,
		Registry:      registry,
		SystemMessage: cfg.SystemMessage,
		MaxToolRounds: cfg.MaxToolRounds,
	}
}

// Respond runs one conversational turn. The additional context block, when
// present, is prepended to the system message so retrieved knowledge and
// memories frame the whole exchange. Tool calls are executed and fed back
// until the model produces plain text; a turn that exceeds the round
// ceiling fails with the last assistant content in the error.
func (a *Agent) Respond(ctx context.Context, model string, history []llm.Message, userMessage, additionalContext string) (*Reply, error) {
	system := a.SystemMessage
	if additionalContext != "" {
		system = additionalContext + "\n\n" + system
	}
	return a.RespondWithSystem(ctx, model, system, history, userMessage)
}

// RespondWithSystem is Respond with a fully composed system message,
// for callers that interleave several context blocks around the base
// instructions.
func (a *Agent) RespondWithSystem(ctx context.Context, model, system string, history []llm.Message, userMessage string) (*Reply, error) {
	if strings.TrimSpace(userMessage) == "" {
		return nil, llm.ErrEmptyInput
	}
	if model == "" {
		model = a.Client.DefaultModel()
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.TextMessage(llm.RoleSystem, system))
	messages = append(messages, history...)
	messages = append(messages, llm.TextMessage(llm.RoleUser, userMessage))

	tools := a.Registry.Definitions()

	rounds := 0
	for {
		resp, err := a.Client.ChatCompletion(ctx, llm.ChatRequest{
			Model:    model,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, llm.ErrNoChoices
		}

		assistant := resp.First()
		if len(assistant.ToolCalls) == 0 {
			return &Reply{Content: assistant.Text(), Model: model, ToolRounds: rounds}, nil
		}

		rounds++
		if rounds > a.MaxToolRounds {
			return nil, fmt.Errorf("agent: tool round limit %d exceeded (last content: %q)", a.MaxToolRounds, assistant.Text())
		}

		messages = append(messages, assistant)
		for _, call := range assistant.ToolCalls {
			messages = append(messages, llm.ToolMessage(call.ID, a.runTool(ctx, call)))
		}
	}
}

// runTool executes one tool call and renders its outcome as the JSON body
// of the tool message. Handler failures are reported to the model as an
// error payload rather than aborting the turn.
func (a *Agent) runTool(ctx context.Context, call llm.ToolCall) string {
	name := call.Function.Name
	args := json.RawMessage(call.Function.Arguments)
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	log.Debug().Str("tool", name).Msg("executing tool")
	result, err := a.Registry.Execute(ctx, name, args)
	if err != nil {
		log.Warn().Err(err).Str("tool", name).Msg("tool execution failed")
		return errorPayload(err)
	}

	body, err := json.Marshal(result)
	if err != nil {
		log.Warn().Err(err).Str("tool", name).Msg("tool result not serializable")
		return errorPayload(err)
	}
	return string(body)
}

func errorPayload(err error) string {
	body, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		return `{"error":"tool execution failed"}`
	}
	return string(body)
}
