package notification

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestTemplateEngine_RegisterAndRender(t *testing.T) {
	eng := NewTemplateEngine()
	eng.RegisterTemplate(Template{
		ID:      "test-tpl",
		Subject: "Olá {{name}}",
		Body:    "Caro(a) {{name}}, seu código é {{code}}.",
	})

	subject, body, err := eng.Render("test-tpl", map[string]string{"name": "Ana", "code": "1234"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Olá Ana" {
		t.Errorf("subject = %q", subject)
	}
	if body != "Caro(a) Ana, seu código é 1234." {
		t.Errorf("body = %q", body)
	}
}

func TestTemplateEngine_RenderMissing(t *testing.T) {
	if _, _, err := NewTemplateEngine().Render("nonexistent", nil); err == nil {
		t.Fatal("expected error for missing template")
	}
}

func TestTemplateEngine_EscapesBodyValues(t *testing.T) {
	_, body, err := NewTemplateEngine().Render(TemplateWelcome, map[string]string{
		"name":     "<script>alert(1)</script>",
		"platform": "Plataforma Digital",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(body, "<script>") {
		t.Error("expected name to be HTML-escaped")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("expected escaped name in body")
	}
}

func TestNewEmailSender_DisabledWithoutCredentials(t *testing.T) {
	s := NewEmailSender(SMTPConfig{Host: "smtp.example.com", Port: 587})
	if err := s.SendEmail(context.Background(), "a@b.c", "s", "b"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	if _, ok := NewEmailSender(SMTPConfig{Username: "u", Password: "p"}).(*SMTPSender); !ok {
		t.Error("expected SMTPSender when credentials are set")
	}
}

func TestNotifier_SendWelcome(t *testing.T) {
	mock := &MockEmailSender{}
	n := NewNotifier(mock, "Plataforma Digital", zerolog.Nop())

	if !n.SendWelcome(context.Background(), "ana@example.com", "Ana") {
		t.Fatal("expected SendWelcome to report success")
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 email, got %d", len(calls))
	}
	if calls[0].To != "ana@example.com" {
		t.Errorf("unexpected recipient %q", calls[0].To)
	}
	if calls[0].Subject != "Bem-vindo(a) à Plataforma Digital!" {
		t.Errorf("unexpected subject %q", calls[0].Subject)
	}
	if !strings.Contains(calls[0].Body, "Olá, Ana!") {
		t.Error("expected greeting with the user's name")
	}
}

func TestNotifier_SendWelcomeFailureReturnsFalse(t *testing.T) {
	var buf bytes.Buffer
	mock := &MockEmailSender{Err: errors.New("connection refused")}
	n := NewNotifier(mock, "Plataforma Digital", zerolog.New(&buf))

	if n.SendWelcome(context.Background(), "ana@example.com", "Ana") {
		t.Fatal("expected failure to be reported as false")
	}
	if !strings.Contains(buf.String(), "welcome email failed") {
		t.Errorf("expected failure to be logged, got %s", buf.String())
	}
}

func TestNotifier_SendWelcomeNotConfigured(t *testing.T) {
	n := NewNotifier(NewEmailSender(SMTPConfig{}), "Plataforma Digital", zerolog.Nop())
	if n.SendWelcome(context.Background(), "ana@example.com", "Ana") {
		t.Fatal("expected false when SMTP is not configured")
	}
}

func TestNotifier_AsyncAndWait(t *testing.T) {
	mock := &MockEmailSender{}
	n := NewNotifier(mock, "Plataforma Digital", zerolog.Nop())

	n.NotifyWelcomeAsync("a@example.com", "A")
	n.NotifyWelcomeAsync("b@example.com", "B")
	n.Wait()

	if got := len(mock.Calls()); got != 2 {
		t.Errorf("expected 2 emails after Wait, got %d", got)
	}
}
