// Knowledge-base document HTTP handlers.
//
// This file exposes REST endpoints for the document store that backs
// retrieval:
//   - POST   /documents         (multipart upload, chunk + embed + index)
//   - GET    /documents         (list all documents with processing status)
//   - DELETE /documents/{id}    (remove a document and its chunks)
//   - GET    /documents/stats   (collection-level counts)
//   - POST   /search            (similarity search over indexed chunks)
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pmfonseca/wedding-assistant/internal/rag"
	"github.com/pmfonseca/wedding-assistant/internal/repo"
)

// maxUploadBytes caps a single document upload. Larger files are rejected
// at the handler before any extraction work happens.
const maxUploadBytes = 10 << 20

//
// DTOs
//

// SearchRequest is the JSON payload for a knowledge-base similarity search.
type SearchRequest struct {
	// Query is the natural-language search text.
	Query string `json:"query" binding:"required,min=1" example:"catering options for 120 guests"`
}

// SearchResponse wraps a ranked list of matching chunks.
type SearchResponse struct {
	Results []rag.SearchResult `json:"results"`
	Query   string             `json:"query"`
}

//
// Handlers
//

// UploadDocument godoc
// @ID          uploadDocument
// @Summary     Upload a document into the knowledge base
// @Description Accepts a multipart file (PDF or TXT), extracts its text,
// @Description chunks and embeds it, and makes it searchable. Processing status is
// @Description reflected on the returned document record.
// @Tags        Documents
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       file       formData file   true  "Document file (max 10 MB)"
//
// @Success     201  {object}  domain.Document
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     422  {object}  handlers.ErrorResponse  "Unsupported or unreadable document"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /documents [post]
func (h *Handlers) UploadDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart field 'file' required")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "file exceeds 10 MB limit")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot read uploaded file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "cannot read uploaded file")
		return
	}
	if len(data) > maxUploadBytes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "file exceeds 10 MB limit")
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	doc, err := h.ingester.Ingest(c.Request.Context(), fileHeader.Filename, contentType, data, userID(c))
	if err != nil {
		switch {
		case errors.Is(err, rag.ErrUnsupportedType), errors.Is(err, rag.ErrEmptyDocument):
			fail(c, http.StatusUnprocessableEntity, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, doc)
}

// ListDocuments godoc
// @ID          listDocuments
// @Summary     List knowledge-base documents
// @Description Returns all uploaded documents, newest first, including processing status.
// @Tags        Documents
// @Produce     json
//
// @Success     200  {array}   domain.Document
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /documents [get]
func (h *Handlers) ListDocuments(c *gin.Context) {
	docs, err := repo.ListDocuments(c.Request.Context(), h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, docs)
}

// DeleteDocument godoc
// @ID          deleteDocument
// @Summary     Delete a knowledge-base document
// @Description Removes a document and all of its indexed chunks.
// @Tags        Documents
// @Produce     json
//
// @Param       id  path  string  true  "Document ID (UUID)"  format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Document not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /documents/{id} [delete]
func (h *Handlers) DeleteDocument(c *gin.Context) {
	documentID := c.Param("id")
	if _, err := uuid.Parse(documentID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "document id must be a UUID")
		return
	}

	if err := repo.DeleteDocument(c.Request.Context(), h.db, documentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "document not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// DocumentStats godoc
// @ID          documentStats
// @Summary     Knowledge-base collection statistics
// @Description Returns document, chunk, and byte counts for the searchable collection.
// @Tags        Documents
// @Produce     json
//
// @Success     200  {object} rag.CollectionStats
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /documents/stats [get]
func (h *Handlers) DocumentStats(c *gin.Context) {
	stats, err := h.retriever.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, stats)
}

// SearchDocuments godoc
// @ID          searchDocuments
// @Summary     Search the knowledge base
// @Description Embeds the query and returns the most similar indexed chunks,
// @Description best match first. An empty collection yields an empty result list.
// @Tags        Documents
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SearchRequest  true  "Search payload"
//
// @Success     200  {object} handlers.SearchResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /search [post]
func (h *Handlers) SearchDocuments(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "query required")
		return
	}

	query := strings.TrimSpace(req.Query)
	results, err := h.retriever.Search(c.Request.Context(), query)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if results == nil {
		results = []rag.SearchResult{}
	}
	ok(c, http.StatusOK, SearchResponse{Results: results, Query: query})
}
