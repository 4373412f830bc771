// Memory HTTP handlers.
//
// Cross-conversation memories are summaries distilled from past
// conversations. These endpoints let a user inspect and prune what the
// assistant remembers about them:
//   - GET    /memories        (recent summaries above the importance floor)
//   - DELETE /memories/{id}   (forget one memory)
//   - GET    /memories/stats  (aggregate counts)
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pmfonseca/wedding-assistant/internal/repo"
)

// MemoryView is the JSON shape for one conversation memory, with the stored
// topics JSON decoded into a list.
type MemoryView struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversation_id"`
	Summary         string    `json:"summary"`
	KeyTopics       []string  `json:"key_topics"`
	ImportanceScore int       `json:"importance_score"`
	MessageCount    int       `json:"message_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// ListMemoriesResponse wraps the user's recallable memories.
type ListMemoriesResponse struct {
	Memories []MemoryView `json:"memories"`
}

// ListMemories godoc
// @ID          listMemories
// @Summary     List conversation memories
// @Description Returns the user's most recent conversation summaries at or above
// @Description the configured importance floor, newest first.
// @Tags        Memories
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object} handlers.ListMemoriesResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /memories [get]
func (h *Handlers) ListMemories(c *gin.Context) {
	summaries, err := h.memorySvc.RecentSummaries(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	views := make([]MemoryView, len(summaries))
	for i, sum := range summaries {
		views[i] = MemoryView{
			ID:              sum.ID,
			ConversationID:  sum.ConversationID,
			Summary:         sum.Summary,
			KeyTopics:       repo.DecodeTopics(sum),
			ImportanceScore: sum.ImportanceScore,
			MessageCount:    sum.MessageCount,
			CreatedAt:       sum.CreatedAt,
		}
	}
	ok(c, http.StatusOK, ListMemoriesResponse{Memories: views})
}

// DeleteMemory godoc
// @ID          deleteMemory
// @Summary     Delete a conversation memory
// @Description Removes one memory belonging to the current user. The assistant
// @Description will no longer recall it in future conversations.
// @Tags        Memories
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Memory ID (UUID)"       format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Memory not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /memories/{id} [delete]
func (h *Handlers) DeleteMemory(c *gin.Context) {
	memoryID := c.Param("id")
	if _, err := uuid.Parse(memoryID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "memory id must be a UUID")
		return
	}

	if err := h.memorySvc.Delete(c.Request.Context(), memoryID, userID(c)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "memory not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// MemoryStats godoc
// @ID          memoryStats
// @Summary     Memory statistics for the current user
// @Tags        Memories
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object} memory.Stats
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /memories/stats [get]
func (h *Handlers) MemoryStats(c *gin.Context) {
	stats, err := h.memorySvc.UserStats(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, stats)
}
