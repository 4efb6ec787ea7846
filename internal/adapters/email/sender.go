// Package email delivers rendered reports through an external provider.
package email

import (
	"context"
	"time"
)

// SendRequest is one outgoing message.
type SendRequest struct {
	To      []string
	From    string // empty uses the sender's default
	Subject string
	HTML    string
	ReplyTo string

	Attachment string // file name for a copy of HTML; empty sends none
	Category   string // provider tag, e.g. "s13_report"
}

// SendResult is the provider's acknowledgement.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}

// NewSender returns a Resend sender when apiKey is set and a logging no-op
// sender otherwise.
// PRE: from is a valid sender address when apiKey is set
func NewSender(apiKey, from string) Sender {
	if apiKey == "" {
		return NewNoopSender()
	}
	return NewResendSender(apiKey, from)
}
