package rag

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/pmfonseca/wedding-assistant/internal/domain"
	"github.com/pmfonseca/wedding-assistant/internal/llm"
	"github.com/pmfonseca/wedding-assistant/internal/repo"
)

type fakeQueryEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeQueryEmbedder) Embed(context.Context, string) (llm.Embedding, error) {
	f.calls++
	if f.err != nil {
		return llm.Embedding{}, f.err
	}
	return llm.Embedding{Vector: f.vector, TokenCount: 3}, nil
}

func seedSearchableDoc(t *testing.T, db *gorm.DB, filename string, vectors ...[]float32) *domain.Document {
	t.Helper()
	doc, err := repo.CreateDocument(context.Background(), db, filename, "text/plain", 100, "planner")
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	rows := make([]repo.NewChunk, len(vectors))
	for i, v := range vectors {
		rows[i] = repo.NewChunk{
			ChunkIndex: i,
			Content:    fmt.Sprintf("%s chunk %d", filename, i),
			Embedding:  v,
			TokenCount: 4,
		}
	}
	if err := repo.InsertChunks(context.Background(), db, doc.ID, rows); err != nil {
		t.Fatalf("InsertChunks: %v", err)
	}
	if err := repo.MarkDocumentCompleted(context.Background(), db, doc.ID); err != nil {
		t.Fatalf("MarkDocumentCompleted: %v", err)
	}
	return doc
}

func TestRetriever_Search_EmptyKnowledgeBaseSkipsEmbedding(t *testing.T) {
	db := newRagDB(t)
	emb := &fakeQueryEmbedder{vector: []float32{1, 0}}
	r := NewRetriever(db, emb, ragConfig())

	results, err := r.Search(context.Background(), "catering options")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results != nil {
		t.Fatalf("results = %+v", results)
	}
	if emb.calls != 0 {
		t.Fatalf("embedder called %d times on empty knowledge base", emb.calls)
	}
}

func TestRetriever_Search_RanksAboveThreshold(t *testing.T) {
	db := newRagDB(t)
	seedSearchableDoc(t, db, "venues.txt", []float32{1, 0}, []float32{0.8, 0.6}, []float32{0, 1})
	r := NewRetriever(db, &fakeQueryEmbedder{vector: []float32{1, 0}}, ragConfig())

	results, err := r.Search(context.Background(), "venue")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// similarities: 1.0, 0.8, 0.0 with threshold 0.5
	if len(results) != 2 {
		t.Fatalf("got %d results: %+v", len(results), results)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Fatal("results not sorted by similarity")
	}
	if results[0].Filename != "venues.txt" {
		t.Fatalf("filename = %q", results[0].Filename)
	}
}

func TestRetriever_RelevantContext_Sentinel(t *testing.T) {
	db := newRagDB(t)
	r := NewRetriever(db, &fakeQueryEmbedder{vector: []float32{1, 0}}, ragConfig())

	got, err := r.RelevantContext(context.Background(), "anything")
	if err != nil {
		t.Fatalf("RelevantContext: %v", err)
	}
	if got != NoDocumentsContext {
		t.Fatalf("got %q", got)
	}
}

func TestRetriever_RelevantContext_Format(t *testing.T) {
	db := newRagDB(t)
	seedSearchableDoc(t, db, "venues.txt", []float32{1, 0})
	r := NewRetriever(db, &fakeQueryEmbedder{vector: []float32{1, 0}}, ragConfig())

	got, err := r.RelevantContext(context.Background(), "venue")
	if err != nil {
		t.Fatalf("RelevantContext: %v", err)
	}
	if !strings.HasPrefix(got, "RELEVANT KNOWLEDGE BASE CONTEXT:\n\n") {
		t.Fatalf("missing header: %q", got)
	}
	if !strings.Contains(got, "[Document 1: venues.txt (Relevance: 100.0%)]\nvenues.txt chunk 0") {
		t.Fatalf("missing document block: %q", got)
	}
	if !strings.Contains(got, "use the above context to answer the user's question") {
		t.Fatalf("missing instruction: %q", got)
	}
}

func TestRetriever_Stats(t *testing.T) {
	db := newRagDB(t)
	seedSearchableDoc(t, db, "venues.txt", []float32{1, 0}, []float32{0, 1})
	r := NewRetriever(db, &fakeQueryEmbedder{vector: []float32{1, 0}}, ragConfig())

	stats, err := r.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.DocumentCount != 1 || stats.ChunkCount != 2 || stats.TotalSize != 100 {
		t.Fatalf("stats: %+v", stats)
	}
}
