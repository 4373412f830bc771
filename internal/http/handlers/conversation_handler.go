// Conversation HTTP handlers.
//
// This file exposes REST endpoints for conversation resources:
//   - POST   /conversations               (create)
//   - GET    /conversations               (list, paginated, ETag support)
//   - GET    /conversations/{id}          (fetch one)
//   - PUT    /conversations/{id}/title    (rename)
//   - DELETE /conversations/{id}          (delete)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pmfonseca/wedding-assistant/internal/domain"
	"github.com/pmfonseca/wedding-assistant/internal/memory"
	"github.com/pmfonseca/wedding-assistant/internal/rag"
	"github.com/pmfonseca/wedding-assistant/internal/repo"
	"github.com/pmfonseca/wedding-assistant/internal/services"
	"github.com/pmfonseca/wedding-assistant/internal/sysutil"
	"github.com/pmfonseca/wedding-assistant/internal/utils"
)

//
// Service contracts (context-aware)
//

// ConversationService defines conversation lifecycle operations consumed by
// HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ConversationService interface {
	// Create starts a new conversation for userID with an optional title.
	Create(ctx context.Context, userID, title string) (*domain.Conversation, error)
	// List returns all conversations for a user (legacy, non-paginated).
	List(ctx context.Context, userID string) ([]domain.Conversation, error)
	// ListPage returns a page of conversations for a user and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Conversation, int64, error)
	// Get fetches one conversation owned by userID.
	Get(ctx context.Context, userID, conversationID string) (*domain.Conversation, error)
	// UpdateTitle renames a conversation that belongs to userID.
	UpdateTitle(ctx context.Context, userID, conversationID, title string) error
	// Delete removes a conversation that belongs to userID.
	Delete(ctx context.Context, userID, conversationID string) error
}

// ChatService defines the chat-turn operations consumed by HTTP handlers.
type ChatService interface {
	// Answer appends a user prompt and an assistant reply to a conversation atomically.
	Answer(ctx context.Context, userID, conversationID, prompt, model string) (*domain.ChatMessage, error)
	// ListPage returns a page of messages within a conversation and the total count.
	ListPage(ctx context.Context, conversationID string, page, pageSize int) ([]domain.ChatMessage, int64, error)
}

// MemoryService defines the cross-conversation memory operations consumed by
// HTTP handlers.
type MemoryService interface {
	// RecentSummaries returns the user's recallable conversation memories.
	RecentSummaries(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
	// Delete forgets one memory owned by userID.
	Delete(ctx context.Context, id, userID string) error
	// UserStats reports aggregate memory statistics for one user.
	UserStats(ctx context.Context, userID string) (*memory.Stats, error)
}

// Handlers bundles all HTTP endpoint implementations and their dependencies.
type Handlers struct {
	convSvc   ConversationService
	chatSvc   ChatService
	memorySvc MemoryService
	ingester  *rag.Ingester
	retriever *rag.Retriever
	db        *gorm.DB
}

// New constructs and returns a Handlers instance bound to the given services.
func New(convSvc ConversationService, chatSvc ChatService, memorySvc MemoryService, ingester *rag.Ingester, retriever *rag.Retriever, db *gorm.DB) *Handlers {
	return &Handlers{
		convSvc:   convSvc,
		chatSvc:   chatSvc,
		memorySvc: memorySvc,
		ingester:  ingester,
		retriever: retriever,
		db:        db,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		return strings.TrimSpace(sysutil.FirstNonEmpty(c.GetHeader("X-User-ID"), "demo-user"))
	}
	return "demo-user"
}

//
// DTOs
//

// CreateConversationRequest is the JSON payload for creating a conversation.
type CreateConversationRequest struct {
	// Title optionally sets the conversation title; a default is used when empty.
	Title string `json:"title" example:"Venue shortlist"`
}

// UpdateConversationTitleRequest is the JSON payload for renaming a conversation.
type UpdateConversationTitleRequest struct {
	// Title is the new conversation name (1–255 chars).
	Title string `json:"title" binding:"required,min=1,max=255" example:"Catering decisions"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListConversationsResponse wraps a page of conversations and pagination
// information.
type ListConversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
	Pagination    Pagination            `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

//
// Handlers
//

// CreateConversation godoc
// @ID          createConversation
// @Summary     Create a new conversation
// @Description Creates a conversation for the current user and returns the resource.
// @Tags        Conversations
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateConversationRequest  true  "Create conversation payload"
//
// @Success     201  {object}  domain.Conversation
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations [post]
func (h *Handlers) CreateConversation(c *gin.Context) {
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	title := strings.TrimSpace(req.Title)

	conv, err := h.convSvc.Create(c.Request.Context(), userID(c), title)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, conv)
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations (paginated)
// @Description Returns a page of the user's conversations. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Conversations
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListConversationsResponse
// @Header      200  {string} ETag           "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.convSvc.(*services.ConversationService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.ConversationsStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"conversations:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	// Fetch page.
	items, total, err := h.convSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListConversationsResponse{
		Conversations: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}

// GetConversation godoc
// @ID          getConversation
// @Summary     Fetch one conversation
// @Tags        Conversations
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Conversation ID (UUID)" format(uuid)
//
// @Success     200  {object} domain.Conversation
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Router      /conversations/{id} [get]
func (h *Handlers) GetConversation(c *gin.Context) {
	conversationID := c.Param("id")
	if _, err := uuid.Parse(conversationID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	conv, err := h.convSvc.Get(c.Request.Context(), userID(c), conversationID)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, conv)
}

// UpdateConversationTitle godoc
// @ID          updateConversationTitle
// @Summary     Rename a conversation
// @Description Updates the title of a conversation owned by the current user.
// @Tags        Conversations
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"          example(user123)
// @Param       id         path    string  true  "Conversation ID (UUID)"         format(uuid)
// @Param       body       body    handlers.UpdateConversationTitleRequest  true  "New title"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations/{id}/title [put]
func (h *Handlers) UpdateConversationTitle(c *gin.Context) {
	conversationID := c.Param("id")
	if _, err := uuid.Parse(conversationID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	var req UpdateConversationTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required (1–255 chars)")
		return
	}

	if err := h.convSvc.UpdateTitle(c.Request.Context(), userID(c), conversationID, req.Title); err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		return
	}

	noContent(c)
}

// DeleteConversation godoc
// @ID          deleteConversation
// @Summary     Delete a conversation
// @Tags        Conversations
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"   example(user123)
// @Param       id         path    string  true  "Conversation ID (UUID)"  format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Router      /conversations/{id} [delete]
func (h *Handlers) DeleteConversation(c *gin.Context) {
	conversationID := c.Param("id")
	if _, err := uuid.Parse(conversationID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	if err := h.convSvc.Delete(c.Request.Context(), userID(c), conversationID); err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	noContent(c)
}
