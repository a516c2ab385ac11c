package notification

import (
	"fmt"
	"html"
	"strings"
	"sync"
)

const TemplateWelcome = "welcome"

// Template is an email whose {{key}} placeholders are filled at render time.
type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine renders registered templates. Values are HTML-escaped
// before substitution.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.RegisterTemplate(Template{
		ID:      TemplateWelcome,
		Subject: "Bem-vindo(a) à {{platform}}!",
		Body:    welcomeBody,
	})
	return e
}

func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render leaves placeholders with no matching key untouched.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, html.EscapeString(v))
	}
	return subject, body, nil
}

const welcomeBody = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: 'Segoe UI', Arial, sans-serif; background-color: #f5f5f5; margin: 0; padding: 20px;">
  <div style="max-width: 600px; margin: 0 auto; background-color: white; border-radius: 12px; overflow: hidden;">
    <div style="background: #667eea; color: white; padding: 40px 30px; text-align: center;">
      <h1 style="margin: 0; font-size: 28px;">Cadastro Concluído!</h1>
    </div>
    <div style="padding: 40px 30px;">
      <h2 style="color: #333; margin-top: 0;">Olá, {{name}}!</h2>
      <p style="color: #666; line-height: 1.6;">Seu cadastro foi realizado com sucesso na <strong>{{platform}}</strong>.</p>
      <p style="color: #666; line-height: 1.6;">Agora você já pode fazer login e registrar o diagnóstico situacional da sua UBS.</p>
      <p style="color: #666; line-height: 1.6;">Se você não criou esta conta, por favor ignore este email.</p>
    </div>
    <div style="background-color: #f8f9fa; padding: 20px 30px; text-align: center; color: #888; font-size: 13px;">
      <p>{{platform}}</p>
    </div>
  </div>
</body>
</html>
`
