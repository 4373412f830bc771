package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pmfonseca/wedding-assistant/internal/config"
	"github.com/pmfonseca/wedding-assistant/internal/domain"
	"github.com/pmfonseca/wedding-assistant/internal/llm"
	"github.com/pmfonseca/wedding-assistant/internal/rag"
	"github.com/pmfonseca/wedding-assistant/internal/repo"
)

// docEmbedder satisfies both rag.Embedder and rag.QueryEmbedder with
// deterministic vectors so similarity ranking is predictable.
type docEmbedder struct{}

func (docEmbedder) Embed(context.Context, string) (llm.Embedding, error) {
	return llm.Embedding{Vector: []float32{1, 0}}, nil
}

func (docEmbedder) EmbedBatch(_ context.Context, texts []string) ([]llm.Embedding, error) {
	out := make([]llm.Embedding, len(texts))
	for i := range texts {
		out[i] = llm.Embedding{Vector: []float32{1, 0}}
	}
	return out, nil
}

func (docEmbedder) Dimension() int { return 2 }

func newDocHandlers(t *testing.T) (*Handlers, *gorm.DB) {
	t.Helper()
	db := newHandlerDB(t, &domain.Document{}, &domain.DocumentChunk{})
	cfg := config.RAGConfig{
		ChunkSize:           200,
		ChunkOverlap:        20,
		EmbedBatchSize:      5,
		SearchLimit:         5,
		SimilarityThreshold: 0.5,
	}
	ingester := rag.NewIngester(db, docEmbedder{}, cfg)
	retriever := rag.NewRetriever(db, docEmbedder{}, cfg)
	return New(stubConvSvc{}, stubChatSvc{}, stubMemorySvc{}, ingester, retriever, db), db
}

// multipartFile builds a multipart body with one file field.
func multipartFile(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// ---------- UploadDocument ----------

func TestUploadDocument_Success_List_Stats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newDocHandlers(t)
	r := gin.New()
	r.POST("/documents", h.UploadDocument)
	r.GET("/documents", h.ListDocuments)
	r.GET("/documents/stats", h.DocumentStats)

	body, ctype := multipartFile(t, "file", "venues.txt", "text/plain",
		[]byte("Quinta do Torneiro hosts up to 150 guests in the palm garden."))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", ctype)
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload -> %d body=%s", w.Code, w.Body.String())
	}
	var doc domain.Document
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("json: %v", err)
	}
	if doc.Filename != "venues.txt" || doc.Status != domain.DocumentStatusCompleted {
		t.Fatalf("unexpected document: %#v", doc)
	}

	// list shows it
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/documents", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d", w.Code)
	}
	var docs []domain.Document
	if err := json.Unmarshal(w.Body.Bytes(), &docs); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != doc.ID {
		t.Fatalf("unexpected list: %#v", docs)
	}

	// stats count it
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/documents/stats", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("stats -> %d", w.Code)
	}
	var stats rag.CollectionStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("json: %v", err)
	}
	if stats.DocumentCount != 1 || stats.ChunkCount < 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func TestUploadDocument_MissingFile_And_UnsupportedType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newDocHandlers(t)
	r := gin.New()
	r.POST("/documents", h.UploadDocument)

	// no multipart field
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewBufferString("nope"))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing file -> %d", w.Code)
	}

	// unsupported extension -> 422
	body, ctype := multipartFile(t, "file", "photo.png", "image/png", []byte{0x89, 0x50, 0x4e, 0x47})
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", ctype)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unsupported -> %d body=%s", w.Code, w.Body.String())
	}
}

// ---------- DeleteDocument ----------

func TestDeleteDocument_UUID_NotFound_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, db := newDocHandlers(t)
	r := gin.New()
	r.DELETE("/documents/:id", h.DeleteDocument)

	doc, err := repo.CreateDocument(context.Background(), db, "old.txt", "text/plain", 10, "u1")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// bad UUID
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/documents/not-uuid", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("uuid 400 -> %d", w.Code)
	}

	// unknown id -> 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/documents/"+uuid.NewString(), nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing -> %d", w.Code)
	}

	// success -> 204
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/documents/"+doc.ID, nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete -> %d", w.Code)
	}
}

// ---------- SearchDocuments ----------

func TestSearchDocuments_BadRequest_Empty_Hit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newDocHandlers(t)
	r := gin.New()
	r.POST("/documents", h.UploadDocument)
	r.POST("/search", h.SearchDocuments)

	// missing query -> 400
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewBufferString(`{"query":"  "}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank query -> %d", w.Code)
	}

	// empty collection -> 200 with empty results
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/search", bytes.NewBufferString(`{"query":"venues"}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("empty search -> %d", w.Code)
	}
	var out SearchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Results == nil || len(out.Results) != 0 || out.Query != "venues" {
		t.Fatalf("unexpected empty search body: %#v", out)
	}

	// index a document, then search hits it
	body, ctype := multipartFile(t, "file", "catering.txt", "text/plain",
		[]byte("The caterer offers a seafood rice option for the reception dinner."))
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", ctype)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload -> %d body=%s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/search", bytes.NewBufferString(`{"query":"reception dinner"}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("search -> %d body=%s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(out.Results) != 1 || out.Results[0].Filename != "catering.txt" {
		t.Fatalf("unexpected results: %#v", out.Results)
	}
	if out.Results[0].Similarity < 0.99 {
		t.Fatalf("expected identical vectors to score ~1.0, got %f", out.Results[0].Similarity)
	}
}
