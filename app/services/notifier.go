package services

import (
	"context"
	"net/url"
	"time"

	"github.com/shashiranjanraj/phonedeals/pkg/event"
	"github.com/shashiranjanraj/phonedeals/pkg/logger"
	"github.com/shashiranjanraj/phonedeals/pkg/mail"
)

const sendTimeout = 30 * time.Second

// Notifier turns account events into email. Delivery is best effort.
type Notifier struct {
	mailer   mail.Mailer
	frontend string
}

func NewNotifier(m mail.Mailer, frontendURL string) *Notifier {
	return &Notifier{mailer: m, frontend: frontendURL}
}

// Register subscribes n to the account events on bus.
func (n *Notifier) Register(bus *event.Bus) {
	bus.Listen(EventUserRegistered, n.onRegistered)
	bus.Listen(EventResetRequested, n.onResetRequested)
	bus.Listen(EventPasswordChanged, n.onPasswordChanged)
}

func (n *Notifier) link(view, param, token string) string {
	q := url.Values{}
	q.Set("view", view)
	q.Set(param, token)
	return n.frontend + "/auth?" + q.Encode()
}

func (n *Notifier) onRegistered(payload any) {
	ut, ok := payload.(UserToken)
	if !ok {
		return
	}
	n.send(ut, "verify_email", "Verify your email", map[string]string{
		"Name":        ut.User.FirstName,
		"Link":        n.link("verify", "emailToken", ut.Token),
		"DeclineLink": n.link("verify-fail", "emailToken", ut.Token),
	})
}

func (n *Notifier) onResetRequested(payload any) {
	ut, ok := payload.(UserToken)
	if !ok {
		return
	}
	n.send(ut, "reset_password", "Reset your password", map[string]string{
		"Name": ut.User.FirstName,
		"Link": n.link("reset", "resetToken", ut.Token),
	})
}

func (n *Notifier) onPasswordChanged(payload any) {
	ut, ok := payload.(UserToken)
	if !ok {
		return
	}
	n.send(ut, "password_changed", "Your password was changed", map[string]string{
		"Name": ut.User.FirstName,
	})
}

func (n *Notifier) send(ut UserToken, tmpl, subject string, data any) {
	body, err := mail.Render(tmpl, data)
	if err != nil {
		logger.Error("mail render failed", "template", tmpl, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	err = n.mailer.Send(ctx, mail.Message{To: []string{ut.User.Email}, Subject: subject, HTML: body})
	if err != nil {
		logger.Error("mail send failed", "template", tmpl, "user_id", ut.User.ID, "error", err)
	}
}
