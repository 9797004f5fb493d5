package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/mltrack/backend/internal/config"
	"github.com/mltrack/backend/internal/domain"
	"github.com/mltrack/backend/internal/infrastructure/logger"
)

// EmailNotifier delivers terminal task outcomes by email through
// SendGrid: one message per outcome, one recipient list for all of them.
type EmailNotifier struct {
	client      *sendgrid.Client
	fromName    string
	fromAddress string
	to          []string
	logger      *logger.Logger
}

func NewEmailNotifier(cfg config.NotificationsConfig, log *logger.Logger) *EmailNotifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &EmailNotifier{
		client:      sendgrid.NewSendClient(cfg.SendgridAPIKey),
		fromName:    cfg.FromName,
		fromAddress: cfg.FromAddress,
		to:          cfg.To,
		logger:      log,
	}
}

func (n *EmailNotifier) TaskFinished(ctx context.Context, task domain.Task, message, detail string) error {
	subject := fmt.Sprintf("mltrack: %s", message)
	body := message
	if detail != "" {
		body += "\n\nTrainer error:\n" + detail
	}
	body += fmt.Sprintf("\n\nTask: %s\nType: %s\nFinal status: %s\n", task.ID, task.Type, task.Status)

	from := mail.NewEmail(n.fromName, n.fromAddress)
	var lastErr error
	for _, rcpt := range n.to {
		email := mail.NewSingleEmail(from, subject, mail.NewEmail("", rcpt), body, body)
		response, err := n.client.SendWithContext(ctx, email)
		if err == nil && response.StatusCode >= 400 {
			err = fmt.Errorf("sendgrid error: status %d", response.StatusCode)
		}
		if err != nil {
			n.logger.Warnw("notification email failed", "to", rcpt, "task_id", task.ID, "error", err)
			lastErr = err
			continue
		}
		n.logger.Infow("notification email sent", "to", rcpt, "task_id", task.ID, "status", response.StatusCode)
	}
	return lastErr
}
