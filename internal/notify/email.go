// Package notify delivers end-of-run email notifications: a summary when a
// run changed anything, a failure message when a run died during setup.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/tovald/stocksync/internal/config"
	"github.com/tovald/stocksync/internal/obs"
	"github.com/tovald/stocksync/internal/sync"
)

// Mailer sends notifications over SMTP with HTML bodies.
type Mailer struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
}

// NewMailer builds an SMTP notifier from configuration.
func NewMailer(cfg config.Config) *Mailer {
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	to := make([]string, 0, 2)
	for _, a := range strings.Split(cfg.MailTo, ",") {
		if a = strings.TrimSpace(a); a != "" {
			to = append(to, a)
		}
	}
	return &Mailer{
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		auth: auth,
		from: cfg.MailFrom,
		to:   to,
	}
}

// SendSummary mails the end-of-run summary.
func (m *Mailer) SendSummary(ctx context.Context, runID string, s sync.RunSummary) error {
	subject, body, err := RenderSummary(runID, s)
	if err != nil {
		return err
	}
	return m.send(subject, body)
}

// SendFailure mails the fatal-run diagnostic.
func (m *Mailer) SendFailure(ctx context.Context, runID string, stage sync.State, runErr error) error {
	subject, body, err := RenderFailure(runID, stage, runErr, time.Now())
	if err != nil {
		return err
	}
	return m.send(subject, body)
}

func (m *Mailer) send(subject, htmlBody string) error {
	if len(m.to) == 0 {
		return fmt.Errorf("no recipients configured")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	if err := smtp.SendMail(m.addr, m.auth, m.from, m.to, []byte(b.String())); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	obs.Logger.Info("mail_sent", "subject", subject, "recipients", len(m.to))
	return nil
}

// LogNotifier is the fallback when SMTP is not configured: notifications are
// written to the log instead of mailed.
type LogNotifier struct{}

// SendSummary logs the summary subject line.
func (LogNotifier) SendSummary(ctx context.Context, runID string, s sync.RunSummary) error {
	subject, _, err := RenderSummary(runID, s)
	if err != nil {
		return err
	}
	obs.Logger.Info("notification", "run_id", runID, "subject", subject)
	return nil
}

// SendFailure logs the failure subject line.
func (LogNotifier) SendFailure(ctx context.Context, runID string, stage sync.State, runErr error) error {
	subject, _, err := RenderFailure(runID, stage, runErr, time.Now())
	if err != nil {
		return err
	}
	obs.Logger.Error("notification", "run_id", runID, "subject", subject, "error", runErr.Error())
	return nil
}

// FromConfig picks the SMTP mailer when configured, the log fallback
// otherwise.
func FromConfig(cfg config.Config) sync.Notifier {
	if cfg.SMTPHost == "" || cfg.MailTo == "" {
		return LogNotifier{}
	}
	return NewMailer(cfg)
}
