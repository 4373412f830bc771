// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Document
// model, which tracks uploaded knowledge-base files through their ingestion
// lifecycle (processing -> completed | failed).
//
// Error semantics follow the rest of the package: missing rows surface as
// ErrNotFound (an alias of gorm.ErrRecordNotFound), other DB errors are
// propagated raw.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pmfonseca/wedding-assistant/internal/domain"
)

// CreateDocument inserts a new Document row in the processing state.
// The ID is a generated UUID and UploadedAt is set to UTC now.
func CreateDocument(ctx context.Context, db *gorm.DB, filename, fileType string, fileSize int64, uploadedBy string) (*domain.Document, error) {
	d := &domain.Document{
		ID:         uuid.NewString(),
		Filename:   filename,
		FileType:   fileType,
		FileSize:   fileSize,
		UploadedBy: uploadedBy,
		Status:     domain.DocumentStatusProcessing,
		UploadedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

// GetDocument fetches a document by ID, or ErrNotFound.
func GetDocument(ctx context.Context, db *gorm.DB, id string) (*domain.Document, error) {
	var d domain.Document
	if err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDocuments returns all documents ordered by upload time descending.
func ListDocuments(ctx context.Context, db *gorm.DB) ([]domain.Document, error) {
	var out []domain.Document
	err := db.WithContext(ctx).
		Order("uploaded_at desc").
		Find(&out).Error
	return out, err
}

// MarkDocumentCompleted transitions a document to the completed state and
// clears any previous error message. Returns ErrNotFound if no row matched.
func MarkDocumentCompleted(ctx context.Context, db *gorm.DB, id string) error {
	return updateDocumentStatus(ctx, db, id, domain.DocumentStatusCompleted, "")
}

// MarkDocumentFailed transitions a document to the failed state, recording
// why ingestion did not finish. Returns ErrNotFound if no row matched.
func MarkDocumentFailed(ctx context.Context, db *gorm.DB, id, errMsg string) error {
	return updateDocumentStatus(ctx, db, id, domain.DocumentStatusFailed, errMsg)
}

func updateDocumentStatus(ctx context.Context, db *gorm.DB, id, status, errMsg string) error {
	res := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "error_message": errMsg})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteDocument removes a document row. Its chunks go with it via the
// ON DELETE CASCADE constraint. Returns ErrNotFound if no row matched.
func DeleteDocument(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.Document{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CollectionStats reports the size of the searchable knowledge base:
// completed documents, their cumulative byte size, and total chunk rows.
func CollectionStats(ctx context.Context, db *gorm.DB) (documents int64, chunks int64, totalSize int64, err error) {
	var row struct {
		N    int64
		Size int64
	}
	err = db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("status = ?", domain.DocumentStatusCompleted).
		Select("COUNT(*) AS n, COALESCE(SUM(file_size),0) AS size").
		Scan(&row).Error
	if err != nil {
		return 0, 0, 0, err
	}
	if err = db.WithContext(ctx).Model(&domain.DocumentChunk{}).Count(&chunks).Error; err != nil {
		return 0, 0, 0, err
	}
	return row.N, chunks, row.Size, nil
}

// CountDocumentsByStatus returns the number of documents per status value.
func CountDocumentsByStatus(ctx context.Context, db *gorm.DB) (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Document{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
