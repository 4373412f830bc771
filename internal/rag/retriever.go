// Package rag – retrieval
//
// The retriever answers "what does the knowledge base say about X": it
// embeds the query, runs the similarity scan, and formats the winning
// chunks into a context block for the system prompt. When nothing clears
// the similarity threshold it returns a fixed sentinel line instead of an
// empty string, which tells the model explicitly that the knowledge base
// had nothing.
package rag

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/pmfonseca/wedding-assistant/internal/config"
	"github.com/pmfonseca/wedding-assistant/internal/llm"
	"github.com/pmfonseca/wedding-assistant/internal/repo"
)

// NoDocumentsContext is injected when retrieval finds nothing relevant.
const NoDocumentsContext = "No relevant documents found in the knowledge base."

// SearchResult is one retrieved chunk with its provenance.
type SearchResult struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// QueryEmbedder is the slice of the LLM client retrieval needs.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) (llm.Embedding, error)
}

// Retriever performs similarity search over ingested chunks.
type Retriever struct {
	DB       *gorm.DB
	Embedder QueryEmbedder

	Limit     int
	Threshold float64
}

// NewRetriever wires a Retriever from the RAG configuration section.
func NewRetriever(db *gorm.DB, embedder QueryEmbedder, cfg config.RAGConfig) *Retriever {
	return &Retriever{
		DB:        db,
		Embedder:  embedder,
		Limit:     cfg.SearchLimit,
		Threshold: cfg.SimilarityThreshold,
	}
}

// Search returns the most similar chunks for the query, best first. An
// empty knowledge base returns an empty slice without calling the
// embedding API.
func (r *Retriever) Search(ctx context.Context, query string) ([]SearchResult, error) {
	ok, err := repo.HasCompletedDocuments(ctx, r.DB)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	emb, err := r.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := repo.SearchChunks(ctx, r.DB, emb.Vector, r.Threshold, r.Limit)
	if err != nil {
		return nil, err
	}

	out := make([]SearchResult, len(matches))
	for i, m := range matches {
		out[i] = SearchResult{
			ChunkID:    m.Chunk.ID,
			DocumentID: m.Chunk.DocumentID,
			Filename:   m.Filename,
			Content:    m.Chunk.Content,
			Similarity: m.Similarity,
		}
	}
	return out, nil
}

// RelevantContext runs Search and renders the results as a prompt block.
// No results yields NoDocumentsContext, never an empty string.
func (r *Retriever) RelevantContext(ctx context.Context, query string) (string, error) {
	results, err := r.Search(ctx, query)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return NoDocumentsContext, nil
	}

	parts := make([]string, len(results))
	for i, res := range results {
		name := res.Filename
		if name == "" {
			name = "Unknown"
		}
		parts[i] = fmt.Sprintf("[Document %d: %s (Relevance: %.1f%%)]\n%s", i+1, name, res.Similarity*100, res.Content)
	}

	var b strings.Builder
	b.WriteString("RELEVANT KNOWLEDGE BASE CONTEXT:\n\n")
	b.WriteString(strings.Join(parts, "\n\n---\n\n"))
	b.WriteString("\n\nPlease use the above context to answer the user's question. If the context doesn't contain relevant information, acknowledge that and use your general knowledge.")
	return b.String(), nil
}

// HasDocuments reports whether any completed documents are searchable.
func (r *Retriever) HasDocuments(ctx context.Context) (bool, error) {
	return repo.HasCompletedDocuments(ctx, r.DB)
}

// CollectionStats summarizes the searchable knowledge base.
type CollectionStats struct {
	DocumentCount int64 `json:"document_count"`
	ChunkCount    int64 `json:"chunk_count"`
	TotalSize     int64 `json:"total_size"`
}

// Stats returns collection-level counts for the admin surface.
func (r *Retriever) Stats(ctx context.Context) (*CollectionStats, error) {
	docs, chunks, size, err := repo.CollectionStats(ctx, r.DB)
	if err != nil {
		return nil, err
	}
	return &CollectionStats{DocumentCount: docs, ChunkCount: chunks, TotalSize: size}, nil
}
