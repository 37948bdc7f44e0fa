package tickets

import (
	"esn/src/models"
	"fmt"
	"strings"
)

// VCardPayload builds the vCard 3.0 text embedded in the ticket QR code so
// scanning a ticket imports the attendee's contact card.
func VCardPayload(req *models.TicketRequest) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCARD\n")
	b.WriteString("VERSION:3.0\n")
	fmt.Fprintf(&b, "FN:%s\n", req.Name)
	if req.Title != nil && *req.Title != "" {
		fmt.Fprintf(&b, "TITLE:%s\n", *req.Title)
	}
	if req.Organization != nil && *req.Organization != "" {
		fmt.Fprintf(&b, "ORG:%s\n", *req.Organization)
	}
	if req.Address != nil && *req.Address != "" {
		fmt.Fprintf(&b, "ADR:;;%s;;;;\n", *req.Address)
	}
	if req.Website != nil && *req.Website != "" {
		fmt.Fprintf(&b, "URL:%s\n", *req.Website)
	}
	if req.Email != "" {
		fmt.Fprintf(&b, "EMAIL:%s\n", req.Email)
	}
	if req.Phone != "" {
		fmt.Fprintf(&b, "TEL:%s\n", req.Phone)
	}
	b.WriteString("END:VCARD")
	return b.String()
}
