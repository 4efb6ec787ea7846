package email

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// NoopSender logs messages instead of delivering them. Used when no provider
// key is configured.
type NoopSender struct {
	sent atomic.Int64
}

// NewNoopSender creates a new NoopSender.
func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

// Send logs the message.
// PRE: none
// POST: returns a synthetic message id; nothing is delivered
func (s *NoopSender) Send(_ context.Context, req SendRequest) (SendResult, error) {
	n := s.sent.Add(1)
	slog.Info("report_event", "event", "email_skipped", "to", req.To, "subject", req.Subject, "bytes", len(req.HTML))
	return SendResult{
		MessageID: fmt.Sprintf("noop-%d", n),
		SentAt:    time.Now(),
	}, nil
}

// Sent returns how many messages were accepted.
func (s *NoopSender) Sent() int64 {
	return s.sent.Load()
}
