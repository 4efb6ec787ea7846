package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	emailAdapter "territorios/internal/adapters/email"
)

// Report email errors
var (
	ErrNoRecipients     = errors.New("at least one recipient is required")
	ErrInvalidRecipient = errors.New("recipient address is invalid")
	ErrEmptyReport      = errors.New("report body is empty")
)

// EmailReportInput carries input for sending the S-13 report by email.
type EmailReportInput struct {
	To      []string
	Subject string
	HTML    string
	ReplyTo string

	// ServiceYear names the attached copy, e.g. "2024/2025".
	ServiceYear string
}

// EmailReportDeps holds dependencies for EmailReport.
type EmailReportDeps struct {
	Sender emailAdapter.Sender
}

// ExecuteEmailReport sends an already rendered report.
// PRE: at least one valid recipient; HTML non-empty
// POST: report handed to the sender; returns the provider message id
func ExecuteEmailReport(ctx context.Context, input EmailReportInput, deps EmailReportDeps) (emailAdapter.SendResult, error) {
	var to []string
	for _, raw := range input.To {
		addr := strings.TrimSpace(raw)
		if addr == "" {
			continue
		}
		if _, err := mail.ParseAddress(addr); err != nil {
			return emailAdapter.SendResult{}, ErrInvalidRecipient
		}
		to = append(to, addr)
	}
	if len(to) == 0 {
		return emailAdapter.SendResult{}, ErrNoRecipients
	}
	if strings.TrimSpace(input.HTML) == "" {
		return emailAdapter.SendResult{}, ErrEmptyReport
	}

	subject := input.Subject
	if subject == "" {
		subject = "S-13 Registro de asignación de territorio"
	}

	res, err := deps.Sender.Send(ctx, emailAdapter.SendRequest{
		To:         to,
		Subject:    subject,
		HTML:       input.HTML,
		ReplyTo:    input.ReplyTo,
		Attachment: reportFileName(input.ServiceYear),
		Category:   "s13_report",
	})
	if err != nil {
		slog.Error("report_event", "event", "s13_email_failed", "recipients", len(to), "error", err)
		return emailAdapter.SendResult{}, err
	}
	slog.Info("report_event", "event", "s13_emailed", "recipients", len(to), "message_id", res.MessageID)
	return res, nil
}

// reportFileName is the attachment name for a service year such as
// "2024/2025", giving "S-13_2024-2025.html".
func reportFileName(serviceYear string) string {
	if serviceYear == "" {
		return "S-13.html"
	}
	return "S-13_" + strings.ReplaceAll(serviceYear, "/", "-") + ".html"
}
