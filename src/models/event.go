package models

import (
	"encoding/json"
	"esn/src/types"
	"fmt"
	"time"
)

type Event struct {
	ID             uint              `gorm:"primarykey" json:"id"`
	Title          string            `json:"title,omitempty"`
	Location       string            `json:"location,omitempty"`
	Date           time.Time         `json:"date,omitempty"`
	StartTime      string            `json:"start_time,omitempty"`
	EndTime        string            `json:"end_time,omitempty"`
	Price          int64             `json:"price,omitempty"`
	Status         types.EventStatus `gorm:"default:'upcoming'" json:"status,omitempty"`
	TicketTemplate *string           `json:"ticket_template,omitempty"`
	TicketFields   *string           `json:"ticket_fields,omitempty"`

	types.Timestamps
}

// Field ids understood by the ticket compositor. FieldQR is a sentinel, it
// renders a vCard QR code instead of text.
const (
	FieldName          = "name"
	FieldNumber        = "number"
	FieldAddress       = "address"
	FieldTitle         = "title"
	FieldOrganization  = "organization"
	FieldWebsite       = "website"
	FieldEmail         = "email"
	FieldTicketID      = "ticketId"
	FieldTicketDetails = "ticketDetails"
	FieldQR            = "qr"
)

var knownFieldIds = map[string]bool{
	FieldName:          true,
	FieldNumber:        true,
	FieldAddress:       true,
	FieldTitle:         true,
	FieldOrganization:  true,
	FieldWebsite:       true,
	FieldEmail:         true,
	FieldTicketID:      true,
	FieldTicketDetails: true,
	FieldQR:            true,
}

// TicketField is one descriptor from an Event's admin-authored layout. X and Y
// are the anchor point of the rendered value; for FieldQR the anchor is the
// center of the code and FontSize is its side length in pixels.
type TicketField struct {
	ID       string  `json:"id"`
	Show     bool    `json:"show"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	FontSize float64 `json:"fontSize"`
	Color    string  `json:"color"`
}

// ParseTicketFields decodes the serialized field layout of an Event. Unknown
// field ids are rejected at load time rather than skipped at render time, so
// a typo in the admin layout surfaces before any ticket is generated.
func ParseTicketFields(raw string) ([]TicketField, error) {
	if raw == "" {
		return nil, nil
	}
	var fields []TicketField
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("invalid ticket field config: %w", err)
	}
	for i, f := range fields {
		if !knownFieldIds[f.ID] {
			return nil, fmt.Errorf("invalid ticket field config: unknown field id %q at index %d", f.ID, i)
		}
	}
	return fields, nil
}

// Fields returns the parsed layout, or nil when the event predates field
// configuration (the compositor then falls back to the legacy layout).
func (e *Event) Fields() ([]TicketField, error) {
	if e.TicketFields == nil {
		return nil, nil
	}
	return ParseTicketFields(*e.TicketFields)
}
