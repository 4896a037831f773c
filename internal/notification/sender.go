// Package notification delivers the reservation workflow emails: approval
// requests to administrators and outcomes to requesters.
package notification

import "context"

// Sender delivers one message to one recipient.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// Message is a single email with a plain text body and an optional HTML
// alternative.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}
