// Package services – ConversationService
//
// This file implements the ConversationService, which manages the lifecycle
// of conversations. It validates and normalizes titles, enforces ownership
// rules, and coordinates repository operations for creating, listing (with
// pagination), renaming, and deleting conversations. Title handling is
// intentionally minimal here because automatic title generation is performed
// in ChatService on the first user message.
//
// Service-level errors (e.g., ErrConversationNotFound) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/pmfonseca/wedding-assistant/internal/domain"
	"golang.org/x/text/language"
)

// ConversationRepo defines the repository contract required by
// ConversationService. Implementations are responsible for persistence of
// conversation aggregates.
type ConversationRepo interface {
	// CreateConversation inserts a new conversation row for the given user.
	CreateConversation(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Conversation, error)

	// ListConversations returns all conversations belonging to the user (non-paginated).
	ListConversations(ctx context.Context, db *gorm.DB, userID string) ([]domain.Conversation, error)

	// GetConversation fetches a conversation by ID ensuring it belongs to the user.
	GetConversation(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Conversation, error)

	// UpdateConversationTitle updates a conversation's title (only if it belongs to the user).
	UpdateConversationTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error

	// DeleteConversation soft-deletes a conversation owned by the user.
	DeleteConversation(ctx context.Context, db *gorm.DB, id, userID string) error

	// CountConversations returns the total number of conversations for pagination.
	CountConversations(ctx context.Context, db *gorm.DB, userID string) (int64, error)

	// ListConversationsPage returns a page of conversations belonging to the user.
	ListConversationsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Conversation, error)
}

// ConversationService provides conversation-level operations such as
// creating, listing, renaming, and deleting conversations. It enforces
// title rules and ensures ownership constraints.
type ConversationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the conversation repository used by this service.
	Repo ConversationRepo

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
	// TitleLocale is retained for compatibility; auto-titling is handled in ChatService.
	TitleLocale language.Tag
}

// NewConversationService constructs a ConversationService with sane defaults
// for title handling.
func NewConversationService(db *gorm.DB, r ConversationRepo) *ConversationService {
	return &ConversationService{
		DB:          db,
		Repo:        r,
		TitleMaxLen: 60,
		TitleLocale: language.Und,
	}
}

// Create inserts a new conversation owned by userID with the provided title.
// Titles are normalized, trimmed, clipped, and a default fallback is applied.
func (s *ConversationService) Create(ctx context.Context, userID, title string) (*domain.Conversation, error) {
	title = normalizeTitle(title)
	if title == "" {
		title = "New conversation"
	}
	return s.Repo.CreateConversation(ctx, s.DB, userID, s.clip(title))
}

// List returns all conversations for a user (non-paginated).
// Prefer ListPage for scalability on large datasets.
func (s *ConversationService) List(ctx context.Context, userID string) ([]domain.Conversation, error) {
	return s.Repo.ListConversations(ctx, s.DB, userID)
}

// ListPage returns a page of conversations for a user (paginated).
// It applies defaults for invalid page/pageSize and returns total count.
func (s *ConversationService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Conversation, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountConversations(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Conversation{}, 0, nil
	}

	items, err := s.Repo.ListConversationsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Get fetches one conversation owned by the user.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*domain.Conversation, error) {
	conv, err := s.Repo.GetConversation(ctx, s.DB, conversationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conv, nil
}

// UpdateTitle updates a conversation's title, ensuring it exists and
// belongs to the given user. Falls back to "Untitled" if title is blank.
func (s *ConversationService) UpdateTitle(ctx context.Context, userID, conversationID, title string) error {
	title = normalizeTitle(title)
	if title == "" {
		title = "Untitled"
	}
	// Ensure the conversation exists and belongs to the user.
	if _, err := s.Repo.GetConversation(ctx, s.DB, conversationID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrConversationNotFound
		}
		return err
	}
	return s.Repo.UpdateConversationTitle(ctx, s.DB, conversationID, userID, s.clip(title))
}

// Delete soft-deletes a conversation owned by the user.
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID string) error {
	if err := s.Repo.DeleteConversation(ctx, s.DB, conversationID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrConversationNotFound
		}
		return err
	}
	return nil
}

// clip truncates a conversation title to the configured maximum rune length.
func (s *ConversationService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return string([]rune(title)[:s.TitleMaxLen])
	}
	return title
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	s = whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
	return s
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
