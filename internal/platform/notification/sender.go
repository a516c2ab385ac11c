// Package notification delivers outbound email. Sends happen off the request
// path and failures are logged, never returned to the caller that triggered
// them.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wneessen/go-mail"
)

// ErrNotConfigured is returned by the sender used when SMTP credentials are
// missing.
var ErrNotConfigured = errors.New("smtp not configured")

// EmailSender sends one HTML email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
}

// SMTPSender delivers over SMTP with STARTTLS and PLAIN auth. The username
// doubles as the From address.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewEmailSender returns an SMTPSender, or a sender that always fails with
// ErrNotConfigured when credentials are absent.
func NewEmailSender(cfg SMTPConfig) EmailSender {
	if cfg.Username == "" || cfg.Password == "" {
		return disabledSender{}
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(s.cfg.FromName, s.cfg.Username); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	client, err := mail.NewClient(s.cfg.Host,
		mail.WithPort(s.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(15*time.Second),
	)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

type disabledSender struct{}

func (disabledSender) SendEmail(context.Context, string, string, string) error {
	return ErrNotConfigured
}

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu    sync.Mutex
	calls []EmailCall
	Err   error
}

func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	return m.Err
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}
