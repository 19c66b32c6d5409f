// Package mailer delivers finished intake records by email through Resend.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/resendlabs/resend-go"

	coreconfig "github.com/m3rciful/intakebot/core/config"
	"github.com/m3rciful/intakebot/core/logger"
	"github.com/m3rciful/intakebot/intake"
)

const (
	recordSubject        = "Uusi asiakaspyyntö"
	supplementarySubject = "Lisäviesti asiakkaalta"
)

// Client implements the intake notifier on top of the Resend API.
type Client struct {
	resend *resend.Client
	from   string
	to     string
}

// New builds a mail client from validated configuration.
func New(cfg coreconfig.MailConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("mailer: api key is required")
	}
	if strings.TrimSpace(cfg.From) == "" || strings.TrimSpace(cfg.To) == "" {
		return nil, fmt.Errorf("mailer: from and to addresses are required")
	}

	return &Client{
		resend: resend.NewClient(cfg.APIKey),
		from:   fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From),
		to:     cfg.To,
	}, nil
}

// Notify sends the finished record with its photos attached.
func (c *Client) Notify(ctx context.Context, rec intake.Record) error {
	request := &resend.SendEmailRequest{
		From:        c.from,
		To:          []string{c.to},
		Subject:     recordSubject,
		Text:        formatRecordBody(rec),
		Attachments: loadAttachments(ctx, rec.Attachments),
	}

	if _, err := c.resend.Emails.Send(request); err != nil {
		return fmt.Errorf("send intake mail: %w", err)
	}
	logger.Info(ctx, "mail", "mail.sent",
		slog.String("record_id", rec.ID),
		slog.Int("count", len(rec.Attachments)),
	)
	return nil
}

// NotifySupplementary sends a post-finish free-text message.
func (c *Client) NotifySupplementary(ctx context.Context, msg intake.Supplementary) error {
	request := &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{c.to},
		Subject: supplementarySubject,
		Text:    formatSupplementaryBody(msg),
	}

	if _, err := c.resend.Emails.Send(request); err != nil {
		return fmt.Errorf("send supplementary mail: %w", err)
	}
	logger.Info(ctx, "mail", "mail.sent",
		slog.String("record_id", msg.ID),
	)
	return nil
}

func formatRecordBody(rec intake.Record) string {
	return fmt.Sprintf(`Uusi pyyntö on vastaanotettu:

Nimi: %s
Puhelin: %s
Kuvaus: %s
Kieli: %s
`, rec.Name, rec.Phone, rec.Description, rec.Language)
}

func formatSupplementaryBody(msg intake.Supplementary) string {
	return fmt.Sprintf(`Nimi: %s
Puhelin: %s
Kieli: %s

Lisäviesti / Доп. сообщение:
%s
`, msg.Name, msg.Phone, msg.Language, msg.Text)
}

// loadAttachments reads the referenced photo files. Unreadable files are
// logged and skipped so one lost photo does not sink the notification.
func loadAttachments(ctx context.Context, refs []string) []resend.Attachment {
	if len(refs) == 0 {
		return nil
	}
	attachments := make([]resend.Attachment, 0, len(refs))
	for _, ref := range refs {
		content, err := os.ReadFile(ref)
		if err != nil {
			logger.Warn(ctx, "mail", "attachment.skip",
				slog.String("photo", ref),
				slog.String("err", err.Error()),
			)
			continue
		}
		attachments = append(attachments, resend.Attachment{
			Content:  string(content),
			Filename: filepath.Base(ref),
		})
	}
	return attachments
}
