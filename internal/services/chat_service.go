// Package services – ChatService
//
// This file implements ChatService, the application-level component that
// owns one chat turn end to end. It validates inputs, checks conversation
// ownership, assembles the system context (cross-conversation memories
// first, base instructions, then retrieved document context), runs the
// tool-calling agent, and persists the user/assistant message pair
// atomically.
//
// Optional enhancement: it also auto-generates a conversation title from
// the first user prompt when the conversation still has a default/empty
// title.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include conversation/user identifiers and pagination parameters where
// applicable.
package services

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/pmfonseca/wedding-assistant/internal/agent"
	"github.com/pmfonseca/wedding-assistant/internal/config"
	"github.com/pmfonseca/wedding-assistant/internal/domain"
	"github.com/pmfonseca/wedding-assistant/internal/llm"
	"github.com/pmfonseca/wedding-assistant/internal/memory"
	"github.com/pmfonseca/wedding-assistant/internal/rag"
	"github.com/pmfonseca/wedding-assistant/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"

	// default titles we consider placeholders eligible for auto-generation
	defaultTitleNew      = "New conversation"
	defaultTitleUntitled = "Untitled"
)

// ContextRetriever supplies the knowledge-base block for a prompt.
type ContextRetriever interface {
	RelevantContext(ctx context.Context, query string) (string, error)
}

// MemoryRecall supplies and maintains cross-conversation memories.
type MemoryRecall interface {
	RecentSummaries(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
	SummarizeIfNeeded(ctx context.Context, conversationID, userID string)
}

// ChatService coordinates one chat turn: context assembly, the agent loop,
// and persistence.
type ChatService struct {
	DB        *gorm.DB
	Agent     *agent.Agent
	Retriever ContextRetriever
	Memory    MemoryRecall

	SystemMessage string
	AllowedModels []string

	// Optional guards
	MaxPromptRunes int

	// Title generation config
	TitleLocale language.Tag
	TitleMaxLen int
}

// NewChatService wires a ChatService from the LLM configuration section.
func NewChatService(db *gorm.DB, ag *agent.Agent, retriever ContextRetriever, mem MemoryRecall, cfg config.LLMConfig) *ChatService {
	return &ChatService{
		DB:             db,
		Agent:          ag,
		Retriever:      retriever,
		Memory:         mem,
		SystemMessage:  cfg.SystemMessage,
		AllowedModels:  cfg.Models,
		MaxPromptRunes: 8000,
		TitleLocale:    language.Und,
		TitleMaxLen:    60,
	}
}

// Answer validates the prompt, verifies the conversation, assembles the
// system context, runs the agent, and persists both user and assistant
// messages atomically. It may auto-generate a conversation title, and
// afterwards triggers best-effort memory summarization.
func (s *ChatService) Answer(ctx context.Context, userID, conversationID, prompt, model string) (*domain.ChatMessage, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Answer",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	// Normalize & validate prompt
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(prompt) > s.MaxPromptRunes {
		return nil, ErrTooLong
	}
	if model != "" && !s.modelAllowed(model) {
		return nil, ErrUnknownModel
	}

	// Ensure the conversation exists and belongs to the user
	conv, err := repo.GetConversation(ctx, s.DB, conversationID, userID)
	if err != nil {
		return nil, ErrConversationNotFound
	}

	system := s.composeSystem(ctx, userID, prompt)

	history, err := s.history(conversationID)
	if err != nil {
		return nil, err
	}

	reply, err := s.Agent.RespondWithSystem(ctx, model, system, history, prompt)
	if err != nil {
		return nil, err
	}

	// Persist user + assistant (and maybe update title) in one transaction
	var assistantMsg *domain.ChatMessage
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.CreateMessage(tx, conversationID, roleUser, prompt, ""); err != nil {
			return err
		}
		m, err := repo.CreateMessage(tx, conversationID, roleAssistant, reply.Content, reply.Model)
		if err != nil {
			return err
		}
		assistantMsg = m

		if err := repo.TouchConversation(ctx, tx, conversationID, time.Now().UTC()); err != nil {
			return err
		}

		// Auto-title if placeholder
		if s.shouldAutoTitle(conv.Title) {
			gen := s.generateTitleFromPrompt(prompt)
			if gen != "" {
				gen = s.clipTitle(gen)
				if uerr := tx.Model(&domain.Conversation{}).Where("id = ?", conversationID).Update("title", gen).Error; uerr == nil {
					conv.Title = gen
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Memory.SummarizeIfNeeded(ctx, conversationID, userID)

	return assistantMsg, nil
}

// composeSystem builds the turn's system message: memories first, base
// instructions, then the retrieved document block when it found anything.
// Both context sources are best effort; a failing one is skipped.
func (s *ChatService) composeSystem(ctx context.Context, userID, prompt string) string {
	system := s.SystemMessage

	summaries, err := s.Memory.RecentSummaries(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("memory recall failed")
	} else if memCtx := memory.FormatContext(summaries); memCtx != "" {
		system = memCtx + "\n\n" + system
	}

	docCtx, err := s.Retriever.RelevantContext(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("document retrieval failed")
	} else if docCtx != rag.NoDocumentsContext {
		system = system + "\n\n" + docCtx
	}

	return system
}

// history loads the conversation's prior messages as chat turns.
func (s *ChatService) history(conversationID string) ([]llm.Message, error) {
	rows, err := repo.ListMessages(s.DB, conversationID, 0)
	if err != nil {
		return nil, err
	}
	out := make([]llm.Message, len(rows))
	for i, m := range rows {
		out[i] = llm.TextMessage(m.Role, m.Content)
	}
	return out, nil
}

func (s *ChatService) modelAllowed(model string) bool {
	if len(s.AllowedModels) == 0 {
		return true
	}
	for _, m := range s.AllowedModels {
		if m == model {
			return true
		}
	}
	return false
}

// ListPage returns paginated messages for a conversation.
func (s *ChatService) ListPage(ctx context.Context, conversationID string, page, pageSize int) ([]domain.ChatMessage, int64, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	// Ensure the conversation exists
	var convCount int64
	if err := s.DB.WithContext(ctx).Model(&domain.Conversation{}).Where("id = ?", conversationID).Count(&convCount).Error; err != nil {
		return nil, 0, err
	}
	if convCount == 0 {
		return nil, 0, ErrConversationNotFound
	}

	total, err := repo.CountMessages(s.DB.WithContext(ctx), conversationID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ChatMessage{}, 0, nil
	}

	items, err := repo.ListMessagesPage(s.DB.WithContext(ctx), conversationID, offset, pageSize)
	return items, total, err
}

// shouldAutoTitle reports whether the current title is a placeholder.
func (s *ChatService) shouldAutoTitle(current string) bool {
	t := strings.TrimSpace(strings.ToLower(current))
	return t == "" || t == strings.ToLower(defaultTitleNew) || t == strings.ToLower(defaultTitleUntitled)
}

// generateTitleFromPrompt derives a concise title from the prompt.
func (s *ChatService) generateTitleFromPrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ""
	}
	toks := titleWordRE.FindAllString(strings.ToLower(prompt), -1)
	if len(toks) == 0 {
		return ""
	}

	titleCaser := cases.Title(s.TitleLocaleOrDefault())
	out := make([]string, 0, 8)

	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, titleCaser.String(w))
		if len(out) >= 8 {
			break
		}
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, " ")
}

// clipTitle truncates a generated title to the configured maximum rune length.
func (s *ChatService) clipTitle(title string) string {
	max := s.TitleMaxLen
	if max <= 0 {
		max = 60
	}
	if utf8.RuneCountInString(title) > max {
		return string([]rune(title)[:max])
	}
	return title
}

// TitleLocaleOrDefault returns the configured locale for casing or English if unset.
func (s *ChatService) TitleLocaleOrDefault() language.Tag {
	if s.TitleLocale == language.Und {
		return language.English
	}
	return s.TitleLocale
}

// --- Title generation helpers ---

// Extract Unicode letters with optional trailing numbers (e.g., "menu2026").
var titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

// Minimal English stop-words set for compact titles.
var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
}
