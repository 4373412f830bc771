package memory

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pmfonseca/wedding-assistant/internal/config"
	"github.com/pmfonseca/wedding-assistant/internal/domain"
	"github.com/pmfonseca/wedding-assistant/internal/llm"
	"github.com/pmfonseca/wedding-assistant/internal/repo"
)

func newMemoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "memory.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.ChatMessage{}, &domain.ConversationSummary{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type fakeSummarizer struct {
	reply    string
	err      error
	requests []llm.ChatRequest
}

func (f *fakeSummarizer) ChatCompletion(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Choices: []llm.Choice{{Message: llm.TextMessage(llm.RoleAssistant, f.reply)}}}, nil
}

func memoryConfig() config.MemoryConfig {
	return config.MemoryConfig{RecallLimit: 5, MinImportance: 3}
}

func seedTurns(t *testing.T, db *gorm.DB, conversationID string, turns int) {
	t.Helper()
	for i := 0; i < turns; i++ {
		if _, err := repo.CreateMessage(db, conversationID, "user", "question", ""); err != nil {
			t.Fatalf("seed user message: %v", err)
		}
		if _, err := repo.CreateMessage(db, conversationID, "assistant", "answer", "gpt-4o-mini"); err != nil {
			t.Fatalf("seed assistant message: %v", err)
		}
	}
}

func TestShouldSummarize(t *testing.T) {
	db := newMemoryDB(t)
	svc := NewService(db, &fakeSummarizer{}, memoryConfig())
	ctx := context.Background()

	ok, err := svc.ShouldSummarize(ctx, "c1")
	if err != nil || ok {
		t.Fatalf("empty conversation: (%v, %v)", ok, err)
	}

	seedTurns(t, db, "c1", 1)
	ok, err = svc.ShouldSummarize(ctx, "c1")
	if err != nil || ok {
		t.Fatalf("two messages: (%v, %v)", ok, err)
	}

	seedTurns(t, db, "c1", 1)
	ok, err = svc.ShouldSummarize(ctx, "c1")
	if err != nil || !ok {
		t.Fatalf("four messages: (%v, %v)", ok, err)
	}

	if _, err := repo.CreateSummary(ctx, db, "c1", "u1", "done", nil, 5, 4); err != nil {
		t.Fatalf("seed summary: %v", err)
	}
	ok, err = svc.ShouldSummarize(ctx, "c1")
	if err != nil || ok {
		t.Fatalf("already summarized: (%v, %v)", ok, err)
	}
}

func TestSummarize_ParsesModelJSON(t *testing.T) {
	db := newMemoryDB(t)
	client := &fakeSummarizer{reply: `Here you go:
{"summary": "Venue booked for September.", "key_topics": ["venue", "dates"], "importance_score": 8}`}
	svc := NewService(db, client, memoryConfig())
	seedTurns(t, db, "c1", 2)

	sum, err := svc.Summarize(context.Background(), "c1", "u1")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Summary != "Venue booked for September." || sum.ImportanceScore != 8 || sum.MessageCount != 4 {
		t.Fatalf("summary: %+v", sum)
	}
	if topics := repo.DecodeTopics(*sum); len(topics) != 2 || topics[0] != "venue" {
		t.Fatalf("topics: %v", topics)
	}

	req := client.requests[0]
	if req.Model != "gpt-4o" || req.Temperature != 0.3 || req.MaxTokens != 500 {
		t.Fatalf("request: model=%q temp=%v max=%d", req.Model, req.Temperature, req.MaxTokens)
	}
	prompt := req.Messages[0].Text()
	if !strings.Contains(prompt, "USER: question") || !strings.Contains(prompt, "ASSISTANT: answer") {
		t.Fatalf("prompt transcript missing: %q", prompt)
	}
}

func TestSummarize_FallbackOnProseReply(t *testing.T) {
	db := newMemoryDB(t)
	svc := NewService(db, &fakeSummarizer{reply: "The couple discussed catering options at length."}, memoryConfig())
	seedTurns(t, db, "c1", 2)

	sum, err := svc.Summarize(context.Background(), "c1", "u1")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Summary != "The couple discussed catering options at length." || sum.ImportanceScore != 5 {
		t.Fatalf("summary: %+v", sum)
	}
	if topics := repo.DecodeTopics(*sum); len(topics) != 0 {
		t.Fatalf("topics: %v", topics)
	}
}

func TestSummarize_TooFewMessages(t *testing.T) {
	db := newMemoryDB(t)
	client := &fakeSummarizer{reply: "{}"}
	svc := NewService(db, client, memoryConfig())
	seedTurns(t, db, "c1", 0)

	sum, err := svc.Summarize(context.Background(), "c1", "u1")
	if err != nil || sum != nil {
		t.Fatalf("expected (nil, nil), got (%+v, %v)", sum, err)
	}
	if len(client.requests) != 0 {
		t.Fatal("model called for empty conversation")
	}
}

func TestSummarize_ExistingSummaryWins(t *testing.T) {
	db := newMemoryDB(t)
	svc := NewService(db, &fakeSummarizer{reply: `{"summary":"late","importance_score":2}`}, memoryConfig())
	seedTurns(t, db, "c1", 2)

	if _, err := repo.CreateSummary(context.Background(), db, "c1", "u1", "first", nil, 7, 4); err != nil {
		t.Fatalf("seed summary: %v", err)
	}

	sum, err := svc.Summarize(context.Background(), "c1", "u1")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Summary != "first" {
		t.Fatalf("expected existing summary, got %+v", sum)
	}
}

func TestSummarize_ClientError(t *testing.T) {
	db := newMemoryDB(t)
	svc := NewService(db, &fakeSummarizer{err: errors.New("model offline")}, memoryConfig())
	seedTurns(t, db, "c1", 2)

	if _, err := svc.Summarize(context.Background(), "c1", "u1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseSummaryReply(t *testing.T) {
	got := parseSummaryReply(`{"summary":"s","key_topics":null,"importance_score":0}`)
	if got.Summary != "s" || got.KeyTopics == nil || len(got.KeyTopics) != 0 || got.ImportanceScore != 5 {
		t.Fatalf("defaults not applied: %+v", got)
	}

	long := strings.Repeat("x", 600)
	got = parseSummaryReply(long)
	if len(got.Summary) != 500 {
		t.Fatalf("fallback truncation: %d", len(got.Summary))
	}

	got = parseSummaryReply(`{"summary": "", "importance_score": 9} trailing`)
	if got.ImportanceScore != 5 {
		t.Fatalf("empty summary should trigger fallback: %+v", got)
	}
}

func TestTruncate_RuneSafe(t *testing.T) {
	if got := truncate("häagen", 20); got != "häagen" {
		t.Fatalf("short string changed: %q", got)
	}
	// Multibyte text must be cut between characters, never inside one.
	long := strings.Repeat("café ", 200)
	got := truncate(long, 500)
	if n := len([]rune(got)); n != 500 {
		t.Fatalf("rune length = %d", n)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid UTF-8: %q", got[len(got)-6:])
	}
	if got := truncate("ασδφ", 2); got != "ασ" {
		t.Fatalf("truncate(ασδφ, 2) = %q", got)
	}
}

func TestRecentSummaries_AppliesFloorAndLimit(t *testing.T) {
	db := newMemoryDB(t)
	svc := NewService(db, &fakeSummarizer{}, config.MemoryConfig{RecallLimit: 2, MinImportance: 3})
	ctx := context.Background()

	for i, imp := range []int{1, 4, 6, 9} {
		conv := string(rune('a' + i))
		if _, err := repo.CreateSummary(ctx, db, conv, "u1", "s", nil, imp, 4); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	got, err := svc.RecentSummaries(ctx, "u1")
	if err != nil {
		t.Fatalf("RecentSummaries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d summaries", len(got))
	}
	for _, s := range got {
		if s.ImportanceScore < 3 {
			t.Fatalf("importance floor violated: %+v", s)
		}
	}
}

func TestFormatContext(t *testing.T) {
	if got := FormatContext(nil); got != "" {
		t.Fatalf("empty summaries: %q", got)
	}

	created := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	summaries := []domain.ConversationSummary{
		{Summary: "Venue booked.", KeyTopics: `["venue","budget"]`, CreatedAt: created},
		{Summary: "Guest list drafted.", KeyTopics: "[]", CreatedAt: created},
	}

	got := FormatContext(summaries)
	if !strings.HasPrefix(got, "PREVIOUS CONVERSATION MEMORIES:\n") {
		t.Fatalf("missing header: %q", got)
	}
	if !strings.Contains(got, "1. (Mar 7 [Topics: venue, budget]): Venue booked.") {
		t.Fatalf("missing first item: %q", got)
	}
	if !strings.Contains(got, "2. (Mar 7): Guest list drafted.") {
		t.Fatalf("missing second item: %q", got)
	}
	if !strings.HasSuffix(got, "\n\n---") {
		t.Fatalf("missing trailer: %q", got)
	}
}

func TestUserStats(t *testing.T) {
	db := newMemoryDB(t)
	svc := NewService(db, &fakeSummarizer{}, memoryConfig())
	ctx := context.Background()

	stats, err := svc.UserStats(ctx, "u1")
	if err != nil || stats.TotalSummaries != 0 {
		t.Fatalf("empty stats: (%+v, %v)", stats, err)
	}

	if _, err := repo.CreateSummary(ctx, db, "c1", "u1", "s", nil, 4, 4); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.CreateSummary(ctx, db, "c2", "u1", "s", nil, 7, 6); err != nil {
		t.Fatalf("seed: %v", err)
	}

	stats, err = svc.UserStats(ctx, "u1")
	if err != nil {
		t.Fatalf("UserStats: %v", err)
	}
	if stats.TotalSummaries != 2 || stats.TotalMessages != 10 || stats.AverageImportance != 5.5 {
		t.Fatalf("stats: %+v", stats)
	}
}
