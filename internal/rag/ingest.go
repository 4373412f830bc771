// Package rag – ingestion pipeline
//
// Ingestion takes an uploaded file through extract -> chunk -> embed ->
// persist. The document row is created up front in the processing state so
// the upload is visible immediately; any failure after that point marks
// the row failed with the error recorded rather than leaving it stuck.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/pmfonseca/wedding-assistant/internal/config"
	"github.com/pmfonseca/wedding-assistant/internal/domain"
	"github.com/pmfonseca/wedding-assistant/internal/llm"
	"github.com/pmfonseca/wedding-assistant/internal/repo"
)

// Embedder is the slice of the LLM client ingestion needs. Dimension returns
// the expected vector width, 0 when the provider does not declare one.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([]llm.Embedding, error)
	Dimension() int
}

// Ingester runs the document processing pipeline.
type Ingester struct {
	DB       *gorm.DB
	Embedder Embedder

	Chunker   Chunker
	BatchSize int
}

// NewIngester wires an Ingester from the RAG configuration section.
func NewIngester(db *gorm.DB, embedder Embedder, cfg config.RAGConfig) *Ingester {
	return &Ingester{
		DB:       db,
		Embedder: embedder,
		Chunker: Chunker{
			Size:    cfg.ChunkSize,
			Overlap: cfg.ChunkOverlap,
		},
		BatchSize: cfg.EmbedBatchSize,
	}
}

// Ingest processes one uploaded file end to end and returns the document
// row in its final state. Extraction or embedding failures mark the
// document failed and return the underlying error; the caller decides how
// to surface it.
func (in *Ingester) Ingest(ctx context.Context, filename, contentType string, data []byte, uploadedBy string) (*domain.Document, error) {
	// Reject unreadable types before any row exists, so a bad upload does
	// not leave a failed document behind.
	if !SupportedType(filename, contentType) {
		return nil, ErrUnsupportedType
	}

	doc, err := repo.CreateDocument(ctx, in.DB, filename, contentType, int64(len(data)), uploadedBy)
	if err != nil {
		return nil, err
	}

	if err := in.process(ctx, doc.ID, filename, contentType, data); err != nil {
		if markErr := repo.MarkDocumentFailed(ctx, in.DB, doc.ID, err.Error()); markErr != nil {
			log.Error().Err(markErr).Str("document_id", doc.ID).Msg("mark document failed")
		}
		log.Warn().Err(err).Str("document_id", doc.ID).Str("filename", filename).Msg("document ingestion failed")
		doc.Status = domain.DocumentStatusFailed
		doc.ErrorMessage = err.Error()
		return doc, err
	}

	if err := repo.MarkDocumentCompleted(ctx, in.DB, doc.ID); err != nil {
		return nil, err
	}
	doc.Status = domain.DocumentStatusCompleted
	return doc, nil
}

func (in *Ingester) process(ctx context.Context, documentID, filename, contentType string, data []byte) error {
	text, err := ExtractText(filename, contentType, data)
	if err != nil {
		return err
	}

	chunks := in.Chunker.Split(text)
	if len(chunks) == 0 {
		return ErrEmptyDocument
	}

	batch := in.BatchSize
	if batch < 1 {
		batch = 1
	}

	// Embed and persist batch by batch so a long document does not hold
	// one giant transaction or one oversized embeddings request.
	for start := 0; start < len(chunks); start += batch {
		end := start + batch
		if end > len(chunks) {
			end = len(chunks)
		}
		window := chunks[start:end]

		// Blank chunks are dropped here, mirroring the embedder's own
		// filtering, so vectors and rows stay paired one to one.
		kept := make([]Chunk, 0, len(window))
		texts := make([]string, 0, len(window))
		for _, c := range window {
			if strings.TrimSpace(c.Content) == "" {
				continue
			}
			kept = append(kept, c)
			texts = append(texts, c.Content)
		}
		if len(kept) == 0 {
			continue
		}

		embeddings, err := in.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(embeddings) != len(kept) {
			return fmt.Errorf("embedding batch returned %d vectors for %d chunks", len(embeddings), len(kept))
		}
		if dim := in.Embedder.Dimension(); dim > 0 {
			for _, e := range embeddings {
				if len(e.Vector) != dim {
					return fmt.Errorf("embedding has %d dimensions, expected %d", len(e.Vector), dim)
				}
			}
		}

		rows := make([]repo.NewChunk, len(kept))
		for i, c := range kept {
			rows[i] = repo.NewChunk{
				ChunkIndex:     c.Index,
				Content:        c.Content,
				Embedding:      embeddings[i].Vector,
				TokenCount:     EstimateTokens(c.Content),
				CharacterStart: c.CharacterStart,
				CharacterEnd:   c.CharacterEnd,
			}
		}
		if err := repo.InsertChunks(ctx, in.DB, documentID, rows); err != nil {
			return err
		}
	}

	log.Info().
		Str("document_id", documentID).
		Str("filename", filename).
		Int("chunks", len(chunks)).
		Msg("document ingested")
	return nil
}
