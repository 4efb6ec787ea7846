package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
)

// ResendSender delivers reports through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a sender with a default from address.
// PRE: apiKey is a valid Resend API key; from is a valid sender address
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from}
}

// Send delivers one message. When req.Attachment is set the HTML body is
// also attached under that file name so the report can be saved and printed.
// PRE: req has at least one recipient and a subject
// POST: message queued; returns the Resend message id
func (s *ResendSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      req.To,
		Subject: req.Subject,
		Html:    req.HTML,
		ReplyTo: req.ReplyTo,
	}
	if req.From != "" {
		params.From = req.From
	}
	if req.Attachment != "" {
		params.Attachments = []*resend.Attachment{{
			Filename: req.Attachment,
			Content:  []byte(req.HTML),
		}}
	}
	if req.Category != "" {
		params.Tags = []resend.Tag{{Name: "category", Value: req.Category}}
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return SendResult{}, fmt.Errorf("resend: %w", err)
	}
	slog.Debug("resend_accepted", "message_id", sent.Id, "category", req.Category)
	return SendResult{MessageID: sent.Id, SentAt: time.Now()}, nil
}
