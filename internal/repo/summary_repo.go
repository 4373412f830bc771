// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ConversationSummary model, the cross-conversation memory store.
//
// Key topics are persisted as a JSON array string; encoding and decoding
// happen here so services deal only in []string.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pmfonseca/wedding-assistant/internal/domain"
)

// ErrSummaryExists indicates a summary was already stored for the
// conversation; the unique index on conversation_id makes creation
// first-writer-wins under concurrency.
var ErrSummaryExists = errors.New("summary already exists for conversation")

// CreateSummary inserts a summary row. Importance is clamped to [1,10] and
// topics are JSON-encoded. Returns ErrSummaryExists on a duplicate
// conversation ID.
func CreateSummary(ctx context.Context, db *gorm.DB, conversationID, userID, summary string, topics []string, importance, messageCount int) (*domain.ConversationSummary, error) {
	if importance < 1 {
		importance = 1
	}
	if importance > 10 {
		importance = 10
	}
	if topics == nil {
		topics = []string{}
	}
	enc, err := json.Marshal(topics)
	if err != nil {
		return nil, err
	}
	s := &domain.ConversationSummary{
		ID:              uuid.NewString(),
		ConversationID:  conversationID,
		UserID:          userID,
		Summary:         summary,
		KeyTopics:       string(enc),
		ImportanceScore: importance,
		MessageCount:    messageCount,
		CreatedAt:       time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrSummaryExists
		}
		return nil, err
	}
	return s, nil
}

// GetSummaryByConversation fetches the summary for a conversation, or
// ErrNotFound.
func GetSummaryByConversation(ctx context.Context, db *gorm.DB, conversationID string) (*domain.ConversationSummary, error) {
	var s domain.ConversationSummary
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListRecentSummaries returns up to limit of the user's summaries with
// importance >= minImportance, newest first.
func ListRecentSummaries(ctx context.Context, db *gorm.DB, userID string, minImportance, limit int) ([]domain.ConversationSummary, error) {
	var out []domain.ConversationSummary
	q := db.WithContext(ctx).
		Where("user_id = ? AND importance_score >= ?", userID, minImportance).
		Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// DeleteSummary removes a summary owned by userID. Returns ErrNotFound when
// nothing matched.
func DeleteSummary(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.ConversationSummary{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SummaryStats reports the user's summary count, the total number of
// messages those summaries cover, and the mean importance.
func SummaryStats(ctx context.Context, db *gorm.DB, userID string) (count, totalMessages int64, avgImportance float64, err error) {
	q := db.WithContext(ctx).
		Model(&domain.ConversationSummary{}).
		Where("user_id = ?", userID)
	if err = q.Count(&count).Error; err != nil {
		return 0, 0, 0, err
	}
	if count == 0 {
		return 0, 0, 0, nil
	}
	var row struct {
		Messages int64
		Avg      float64
	}
	err = db.WithContext(ctx).
		Model(&domain.ConversationSummary{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(message_count), 0) AS messages, AVG(importance_score) AS avg").
		Scan(&row).Error
	if err != nil {
		return 0, 0, 0, err
	}
	return count, row.Messages, row.Avg, nil
}

// DecodeTopics parses the stored key_topics JSON array. Malformed data
// yields an empty slice rather than an error.
func DecodeTopics(s domain.ConversationSummary) []string {
	var topics []string
	if err := json.Unmarshal([]byte(s.KeyTopics), &topics); err != nil || topics == nil {
		return []string{}
	}
	return topics
}
