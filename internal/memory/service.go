// Package memory maintains cross-conversation memory.
//
// After a conversation accumulates enough exchanges it is distilled into a
// short summary with key topics and an importance score. Later turns in
// other conversations recall the most recent important summaries and fold
// them into the system context, so the assistant keeps continuity without
// replaying full histories.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/pmfonseca/wedding-assistant/internal/config"
	"github.com/pmfonseca/wedding-assistant/internal/domain"
	"github.com/pmfonseca/wedding-assistant/internal/llm"
	"github.com/pmfonseca/wedding-assistant/internal/repo"
)

const (
	// summaryModel is pinned to the stronger model; summaries are rare and
	// their quality compounds across future conversations.
	summaryModel       = "gpt-4o"
	summaryTemperature = 0.3
	summaryMaxTokens   = 500

	// minMessagesToSummarize is the threshold for the automatic path,
	// minMessagesForSummary the floor below which generation refuses.
	minMessagesToSummarize = 4
	minMessagesForSummary  = 2

	fallbackImportance = 5
	maxFallbackSummary = 500
)

const summaryPrompt = `You are analyzing a conversation to create a concise memory summary. Extract the most important information that should be remembered in future conversations.

Focus on:
- Key facts and information shared
- Important decisions or preferences mentioned
- Specific details about events, people, or dates
- Action items or follow-ups needed
- Any wedding-specific details (dates, venues, guest counts, etc.)

Provide your response in this JSON format:
{
  "summary": "A concise 2-3 sentence summary of the key points",
  "key_topics": ["topic1", "topic2", "topic3"],
  "importance_score": 1-10 (how important is this conversation to remember)
}

CONVERSATION TO SUMMARIZE:
`

// SummarizerClient is the slice of the LLM client summarization needs.
type SummarizerClient interface {
	ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// Stats aggregates a user's stored memories.
type Stats struct {
	TotalSummaries    int64   `json:"total_summaries"`
	TotalMessages     int64   `json:"total_messages"`
	AverageImportance float64 `json:"average_importance"`
}

// Service creates, recalls, and formats conversation summaries.
type Service struct {
	DB     *gorm.DB
	Client SummarizerClient

	RecallLimit   int
	MinImportance int
}

// NewService wires a Service from the memory configuration section.
func NewService(db *gorm.DB, client SummarizerClient, cfg config.MemoryConfig) *Service {
	return &Service{
		DB:            db,
		Client:        client,
		RecallLimit:   cfg.RecallLimit,
		MinImportance: cfg.MinImportance,
	}
}

// ShouldSummarize reports whether the conversation has enough messages and
// no summary yet.
func (s *Service) ShouldSummarize(ctx context.Context, conversationID string) (bool, error) {
	_, err := repo.GetSummaryByConversation(ctx, s.DB, conversationID)
	if err == nil {
		return false, nil
	}
	if err != repo.ErrNotFound {
		return false, err
	}

	count, err := repo.CountMessages(s.DB, conversationID)
	if err != nil {
		return false, err
	}
	return count >= minMessagesToSummarize, nil
}

// Summarize generates and stores the summary for one conversation. A
// conversation with fewer than two messages yields (nil, nil). When a
// concurrent turn already stored a summary the existing one is returned.
func (s *Service) Summarize(ctx context.Context, conversationID, userID string) (*domain.ConversationSummary, error) {
	messages, err := repo.ListMessages(s.DB, conversationID, 0)
	if err != nil {
		return nil, err
	}
	if len(messages) < minMessagesForSummary {
		return nil, nil
	}

	lines := make([]string, len(messages))
	for i, m := range messages {
		lines[i] = fmt.Sprintf("%s: %s", strings.ToUpper(m.Role), m.Content)
	}

	resp, err := s.Client.ChatCompletion(ctx, llm.ChatRequest{
		Model:       summaryModel,
		Messages:    []llm.Message{llm.TextMessage(llm.RoleUser, summaryPrompt+strings.Join(lines, "\n\n"))},
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generate summary: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.ErrNoChoices
	}

	parsed := parseSummaryReply(resp.First().Text())

	saved, err := repo.CreateSummary(ctx, s.DB, conversationID, userID, parsed.Summary, parsed.KeyTopics, parsed.ImportanceScore, len(messages))
	if err == repo.ErrSummaryExists {
		log.Debug().Str("conversation_id", conversationID).Msg("summary already created by concurrent turn")
		return repo.GetSummaryByConversation(ctx, s.DB, conversationID)
	}
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("conversation_id", conversationID).
		Int("importance", saved.ImportanceScore).
		Int("messages", saved.MessageCount).
		Msg("conversation summarized")
	return saved, nil
}

// SummarizeIfNeeded runs the check-then-generate pair. It is best effort:
// callers invoke it after a turn and a failure must not fail the turn.
func (s *Service) SummarizeIfNeeded(ctx context.Context, conversationID, userID string) {
	ok, err := s.ShouldSummarize(ctx, conversationID)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("summary eligibility check failed")
		return
	}
	if !ok {
		return
	}
	if _, err := s.Summarize(ctx, conversationID, userID); err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("summary generation failed")
	}
}

type summaryReply struct {
	Summary         string   `json:"summary"`
	KeyTopics       []string `json:"key_topics"`
	ImportanceScore int      `json:"importance_score"`
}

// parseSummaryReply extracts the JSON object from the model reply. Models
// sometimes wrap the JSON in prose or fences; anything unparseable falls
// back to storing the raw text with neutral importance.
func parseSummaryReply(text string) summaryReply {
	fallback := summaryReply{
		Summary:         truncate(text, maxFallbackSummary),
		KeyTopics:       []string{},
		ImportanceScore: fallbackImportance,
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fallback
	}

	var parsed summaryReply
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return fallback
	}
	if parsed.Summary == "" {
		return fallback
	}
	if parsed.KeyTopics == nil {
		parsed.KeyTopics = []string{}
	}
	if parsed.ImportanceScore == 0 {
		parsed.ImportanceScore = fallbackImportance
	}
	return parsed
}

// truncate caps s at max runes. Byte slicing would split a multibyte
// character when the fallback summary carries accents or emoji.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// RecentSummaries returns the user's most recent summaries at or above the
// configured importance floor.
func (s *Service) RecentSummaries(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	return repo.ListRecentSummaries(ctx, s.DB, userID, s.MinImportance, s.RecallLimit)
}

// FormatContext renders summaries as the memory block for the system
// message. No summaries yields an empty string.
func FormatContext(summaries []domain.ConversationSummary) string {
	if len(summaries) == 0 {
		return ""
	}

	items := make([]string, len(summaries))
	for i, sum := range summaries {
		topics := repo.DecodeTopics(sum)
		suffix := ""
		if len(topics) > 0 {
			suffix = fmt.Sprintf(" [Topics: %s]", strings.Join(topics, ", "))
		}
		items[i] = fmt.Sprintf("%d. (%s%s): %s", i+1, sum.CreatedAt.Format("Jan 2"), suffix, sum.Summary)
	}

	var b strings.Builder
	b.WriteString("PREVIOUS CONVERSATION MEMORIES:\n")
	b.WriteString("The following are summaries of recent conversations with this user. Use this context to maintain continuity and avoid asking for information already discussed.\n\n")
	b.WriteString(strings.Join(items, "\n\n"))
	b.WriteString("\n\n---")
	return b.String()
}

// Delete removes one of the user's summaries.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	return repo.DeleteSummary(ctx, s.DB, id, userID)
}

// UserStats reports aggregate memory statistics for one user.
func (s *Service) UserStats(ctx context.Context, userID string) (*Stats, error) {
	count, messageTotal, avg, err := repo.SummaryStats(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	return &Stats{
		TotalSummaries:    count,
		TotalMessages:     messageTotal,
		AverageImportance: math.Round(avg*10) / 10,
	}, nil
}
