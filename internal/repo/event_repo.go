// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides read-side repository functions for the
// Event model.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/pmfonseca/wedding-assistant/internal/domain"
)

// ListEvents returns all wedding events in chronological order.
func ListEvents(ctx context.Context, db *gorm.DB) ([]domain.Event, error) {
	var out []domain.Event
	err := db.WithContext(ctx).
		Order("event_date asc").
		Find(&out).Error
	return out, err
}
