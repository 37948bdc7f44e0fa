package mailer

import (
	"bytes"
	"esn/src/lib"
	"esn/src/models"
	"fmt"
	"log"
	"os"

	"github.com/gosimple/slug"
	"github.com/wneessen/go-mail"
)

// SendResult is the structured outcome of a delivery attempt. Transport
// errors never escape this package, the orchestration around ticket issuance
// relies on that to keep delivery best-effort.
type SendResult struct {
	OK        bool   `json:"ok"`
	MessageID string `json:"message_id,omitempty"`
	Err       string `json:"error,omitempty"`
}

type TicketEmailInput struct {
	To    string
	Name  string
	Png   []byte
	Event *models.Event
}

var sendFunc = defaultSend

// transportClient prefers the Gmail account when one is configured, matching
// how operators run the service today, and falls back to the generic SMTP
// settings otherwise.
func transportClient() (*mail.Client, error) {
	if os.Getenv("GMAIL_USERNAME") != "" {
		return lib.SMTPNewGmail()
	}
	return lib.GetSMTPClient()
}

func defaultSend(msg *mail.Msg) error {
	c, err := transportClient()
	if err != nil {
		return err
	}
	return c.DialAndSend(msg)
}

// NewSendFunc Replace the delivery transport with a custom implementation
func NewSendFunc(fn func(*mail.Msg) error) {
	sendFunc = fn
}

// AttachmentName derives the ticket filename from the requester's name,
// lowercased with spaces turned into hyphens.
func AttachmentName(name string) string {
	return fmt.Sprintf("%s-ticket.png", slug.Make(name))
}

// SendTicketEmail delivers the generated ticket image to the requester.
func SendTicketEmail(in *TicketEmailInput) *SendResult {
	msg := mail.NewMsg()
	from := os.Getenv("SMTP_FROM")
	if err := msg.FromFormat("Event Solution Nepal", from); err != nil {
		return &SendResult{Err: fmt.Sprintf("invalid sender address: %s", err.Error())}
	}
	if err := msg.To(in.To); err != nil {
		return &SendResult{Err: fmt.Sprintf("invalid recipient address: %s", err.Error())}
	}
	msg.Subject(fmt.Sprintf("Your ticket for %s", in.Event.Title))
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextHTML, ticketEmailBody(in))
	if err := msg.AttachReader(AttachmentName(in.Name), bytes.NewReader(in.Png)); err != nil {
		return &SendResult{Err: fmt.Sprintf("could not attach ticket: %s", err.Error())}
	}
	if err := sendFunc(msg); err != nil {
		log.Printf("[mailer] Error sending ticket to %s: %s\n", in.To, err.Error())
		return &SendResult{Err: err.Error()}
	}
	return &SendResult{OK: true, MessageID: msg.GetMessageID()}
}

func ticketEmailBody(in *TicketEmailInput) string {
	ev := in.Event
	return fmt.Sprintf(`<html>
<body>
<p>Dear %s,</p>
<p>Thank you for your payment. Your ticket for <strong>%s</strong> is attached to this email.</p>
<ul>
<li><strong>Date:</strong> %s</li>
<li><strong>Time:</strong> %s - %s</li>
<li><strong>Location:</strong> %s</li>
</ul>
<p>Please present the attached ticket at the venue entrance.</p>
<p>Event Solution Nepal</p>
</body>
</html>`,
		in.Name, ev.Title, ev.Date.Format("January 2, 2006"), ev.StartTime, ev.EndTime, ev.Location)
}
