// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides read-side repository functions for the
// Guest model. Guests are written by the RSVP flow; the chat tools only
// query them, so no create/update helpers live here.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/pmfonseca/wedding-assistant/internal/domain"
)

// Guest list filters accepted by ListGuests.
const (
	GuestFilterAll        = "all"
	GuestFilterConfirmed  = "confirmed"
	GuestFilterDeclined   = "declined"
	GuestFilterMaybe      = "maybe"
	GuestFilterNoResponse = "no_response"
	GuestFilterSent       = "sent"
	GuestFilterPending    = "pending"
)

// GuestStats aggregates RSVP state across the guest list. Party counts
// (total_people, confirmed_people) sum total_guests per invitation; the
// rest count invitation rows.
type GuestStats struct {
	TotalGuests     int64 `json:"total_guests"`
	TotalPeople     int64 `json:"total_people"`
	Confirmed       int64 `json:"confirmed"`
	ConfirmedPeople int64 `json:"confirmed_people"`
	Declined        int64 `json:"declined"`
	Maybe           int64 `json:"maybe"`
	NoResponse      int64 `json:"no_response"`
	InvitesSent     int64 `json:"invites_sent"`
	InvitesPending  int64 `json:"invites_pending"`
}

// ListGuests returns guests ordered by name, optionally narrowed by one of
// the GuestFilter values. Unknown filters behave like "all".
func ListGuests(ctx context.Context, db *gorm.DB, filter string) ([]domain.Guest, error) {
	q := db.WithContext(ctx).Order("name asc")
	switch filter {
	case GuestFilterConfirmed:
		q = q.Where("attending = ?", domain.AttendingYes)
	case GuestFilterDeclined:
		q = q.Where("attending = ?", domain.AttendingNo)
	case GuestFilterMaybe:
		q = q.Where("attending = ?", domain.AttendingPerhaps)
	case GuestFilterNoResponse:
		q = q.Where("attending IS NULL OR attending = ''")
	case GuestFilterSent:
		q = q.Where("save_the_date_sent = ?", true)
	case GuestFilterPending:
		q = q.Where("save_the_date_sent = ?", false)
	}
	var out []domain.Guest
	err := q.Find(&out).Error
	return out, err
}

// GetGuestStats computes RSVP aggregates in a single scan of the guest list.
func GetGuestStats(ctx context.Context, db *gorm.DB) (*GuestStats, error) {
	var guests []domain.Guest
	if err := db.WithContext(ctx).Find(&guests).Error; err != nil {
		return nil, err
	}
	stats := &GuestStats{}
	for _, g := range guests {
		stats.TotalGuests++
		party := int64(g.TotalGuests)
		if party < 1 {
			party = 1
		}
		stats.TotalPeople += party
		switch g.Attending {
		case domain.AttendingYes:
			stats.Confirmed++
			stats.ConfirmedPeople += party
		case domain.AttendingNo:
			stats.Declined++
		case domain.AttendingPerhaps:
			stats.Maybe++
		default:
			stats.NoResponse++
		}
		if g.SaveTheDateSent {
			stats.InvitesSent++
		} else {
			stats.InvitesPending++
		}
	}
	return stats, nil
}
