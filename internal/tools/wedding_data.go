package tools

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/pmfonseca/wedding-assistant/internal/agent"
	"github.com/pmfonseca/wedding-assistant/internal/domain"
	"github.com/pmfonseca/wedding-assistant/internal/llm"
	"github.com/pmfonseca/wedding-assistant/internal/repo"
)

var (
	emptySchema = json.RawMessage(`{
	"type": "object",
	"properties": {},
	"required": []
}`)

	listGuestsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"filter": {
			"type": "string",
			"enum": ["confirmed", "declined", "maybe", "no_response", "sent", "pending", "all"],
			"description": "Filter guests by their status"
		}
	},
	"required": []
}`)
)

// GuestView is the trimmed guest row handed to the model.
type GuestView struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Language        string `json:"language,omitempty"`
	TotalGuests     int    `json:"total_guests"`
	Attending       string `json:"attending,omitempty"`
	SaveTheDateSent bool   `json:"save_the_date_sent"`
}

// EventView is the event row handed to the model.
type EventView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Venue       string `json:"venue,omitempty"`
	EventDate   string `json:"event_date"`
}

// WeddingDataTools exposes read-only guest and event queries as agent
// tools.
type WeddingDataTools struct {
	DB *gorm.DB
}

// Register adds the guest and event tools to the registry.
func (t *WeddingDataTools) Register(reg *agent.Registry) {
	reg.Register(llm.Tool{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        "get_guest_statistics",
			Description: "Get statistics about wedding guests including total count, confirmations, declines, and RSVP status",
			Parameters:  emptySchema,
		},
	}, t.guestStatistics)

	reg.Register(llm.Tool{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        "list_guests",
			Description: "List all guests or filter by status (confirmed, declined, maybe, no_response, sent, pending)",
			Parameters:  listGuestsSchema,
		},
	}, t.listGuests)

	reg.Register(llm.Tool{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        "list_events",
			Description: "List all wedding events with their details",
			Parameters:  emptySchema,
		},
	}, t.listEvents)
}

func (t *WeddingDataTools) guestStatistics(ctx context.Context, _ json.RawMessage) (any, error) {
	return repo.GetGuestStats(ctx, t.DB)
}

func (t *WeddingDataTools) listGuests(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Filter string `json:"filter"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}

	guests, err := repo.ListGuests(ctx, t.DB, in.Filter)
	if err != nil {
		return nil, err
	}

	out := make([]GuestView, len(guests))
	for i, g := range guests {
		out[i] = GuestView{
			ID:              g.ID,
			Name:            g.Name,
			Email:           g.Email,
			Phone:           g.Phone,
			Language:        g.Language,
			TotalGuests:     g.TotalGuests,
			Attending:       g.Attending,
			SaveTheDateSent: g.SaveTheDateSent,
		}
	}
	return out, nil
}

func (t *WeddingDataTools) listEvents(ctx context.Context, _ json.RawMessage) (any, error) {
	events, err := repo.ListEvents(ctx, t.DB)
	if err != nil {
		return nil, err
	}

	out := make([]EventView, len(events))
	for i, e := range events {
		out[i] = eventView(e)
	}
	return out, nil
}

func eventView(e domain.Event) EventView {
	return EventView{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Venue:       e.Venue,
		EventDate:   e.EventDate.Format("2006-01-02"),
	}
}
