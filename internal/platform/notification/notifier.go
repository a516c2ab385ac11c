package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultSendTimeout = 30 * time.Second

// Notifier sends the account emails. Async sends are detached from the
// triggering request; Wait blocks until in-flight sends finish, for shutdown.
type Notifier struct {
	sender   EmailSender
	tpl      *TemplateEngine
	logger   zerolog.Logger
	platform string
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewNotifier(sender EmailSender, platform string, logger zerolog.Logger) *Notifier {
	return &Notifier{
		sender:   sender,
		tpl:      NewTemplateEngine(),
		logger:   logger,
		platform: platform,
		timeout:  defaultSendTimeout,
	}
}

// SendWelcome reports whether the welcome email went out.
func (n *Notifier) SendWelcome(ctx context.Context, email, name string) bool {
	subject, body, err := n.tpl.Render(TemplateWelcome, map[string]string{
		"name":     name,
		"platform": n.platform,
	})
	if err != nil {
		n.logger.Error().Err(err).Msg("render welcome email")
		return false
	}

	if err := n.sender.SendEmail(ctx, email, subject, body); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			n.logger.Warn().Str("to", email).Msg("SMTP not configured, welcome email skipped")
			return false
		}
		n.logger.Error().Err(err).Str("to", email).Msg("welcome email failed")
		return false
	}

	n.logger.Info().Str("to", email).Msg("welcome email sent")
	return true
}

// NotifyWelcomeAsync queues SendWelcome on its own goroutine with a fresh
// deadline.
func (n *Notifier) NotifyWelcomeAsync(email, name string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		n.SendWelcome(ctx, email, name)
	}()
}

func (n *Notifier) Wait() {
	n.wg.Wait()
}
