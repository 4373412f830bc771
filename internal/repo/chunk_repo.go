// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for DocumentChunk
// rows and the vector similarity scan used for retrieval.
//
// Embeddings are stored as JSON-encoded float32 arrays in a TEXT column, so
// similarity is computed in process: the scan loads candidate chunks from
// completed documents, decodes each vector, and ranks by cosine similarity.
// At knowledge-base scale (hundreds of chunks) a full scan is cheap and
// avoids an external vector store.
package repo

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pmfonseca/wedding-assistant/internal/domain"
)

// NewChunk describes one chunk to persist alongside its embedding.
type NewChunk struct {
	ChunkIndex     int
	Content        string
	Embedding      []float32
	TokenCount     int
	CharacterStart int
	CharacterEnd   int
}

// ChunkMatch is one similarity-scan result.
type ChunkMatch struct {
	Chunk      domain.DocumentChunk
	Filename   string
	Similarity float64
}

// InsertChunks persists a batch of chunks for a document in a single
// transaction. Embeddings are JSON-encoded for storage.
func InsertChunks(ctx context.Context, db *gorm.DB, documentID string, chunks []NewChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]domain.DocumentChunk, 0, len(chunks))
	now := time.Now().UTC()
	for _, c := range chunks {
		enc, err := json.Marshal(c.Embedding)
		if err != nil {
			return err
		}
		rows = append(rows, domain.DocumentChunk{
			ID:             uuid.NewString(),
			DocumentID:     documentID,
			ChunkIndex:     c.ChunkIndex,
			Content:        c.Content,
			Embedding:      string(enc),
			TokenCount:     c.TokenCount,
			CharacterStart: c.CharacterStart,
			CharacterEnd:   c.CharacterEnd,
			CreatedAt:      now,
		})
	}
	return db.WithContext(ctx).Create(&rows).Error
}

// CountChunks returns the number of chunks stored for a document.
func CountChunks(ctx context.Context, db *gorm.DB, documentID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.DocumentChunk{}).
		Where("document_id = ?", documentID).
		Count(&total).Error
	return total, err
}

// HasCompletedDocuments reports whether at least one document finished
// ingestion. Retrieval short-circuits when the knowledge base is empty.
func HasCompletedDocuments(ctx context.Context, db *gorm.DB) (bool, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("status = ?", domain.DocumentStatusCompleted).
		Count(&total).Error
	return total > 0, err
}

// SearchChunks ranks the chunks of completed documents by cosine similarity
// against queryVec and returns up to limit matches whose similarity is at
// least threshold, best first. Chunks whose stored vector cannot be decoded
// or whose dimension differs from the query are skipped.
func SearchChunks(ctx context.Context, db *gorm.DB, queryVec []float32, threshold float64, limit int) ([]ChunkMatch, error) {
	type row struct {
		domain.DocumentChunk
		Filename string
	}
	var rows []row
	err := db.WithContext(ctx).
		Model(&domain.DocumentChunk{}).
		Select("document_chunks.*, documents.filename AS filename").
		Joins("JOIN documents ON documents.id = document_chunks.document_id").
		Where("documents.status = ?", domain.DocumentStatusCompleted).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	matches := make([]ChunkMatch, 0, len(rows))
	for _, r := range rows {
		var vec []float32
		if err := json.Unmarshal([]byte(r.Embedding), &vec); err != nil {
			continue
		}
		sim, ok := cosineSimilarity(queryVec, vec)
		if !ok || sim < threshold {
			continue
		}
		matches = append(matches, ChunkMatch{
			Chunk:      r.DocumentChunk,
			Filename:   r.Filename,
			Similarity: sim,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// cosineSimilarity returns the cosine of the angle between a and b. The
// second return is false when dimensions differ or either vector is zero.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}
