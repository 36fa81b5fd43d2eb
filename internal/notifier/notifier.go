package notifier

import (
	"context"
	"fmt"

	"magiclink_service/internal/models"

	"gopkg.in/gomail.v2"
)

// Notifier delivers a magic-link email out-of-band. Implementations report
// failures as plain errors; the issuer decides what degrading gracefully
// means.
type Notifier interface {
	Send(ctx context.Context, msg models.Message) error
}

// Mailer sends directly over SMTP.
type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	ReplyTo  string
}

// Send dials and sends in a goroutine so a stuck SMTP conversation cannot
// outlive the caller's context.
func (m *Mailer) Send(ctx context.Context, msg models.Message) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- m.send(msg)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (m *Mailer) send(msg models.Message) error {
	const op = "notifier.Mailer.send"

	mail := gomail.NewMessage()
	mail.SetHeader("To", msg.Email)
	mail.SetHeader("From", m.From)
	if m.ReplyTo != "" {
		mail.SetHeader("Reply-To", m.ReplyTo)
	}
	mail.SetHeader("Subject", msg.Subject)
	mail.SetBody("text/html", Body(msg.Link))

	dialer := gomail.NewDialer(m.Host, m.Port, m.Username, m.Password)

	if err := dialer.DialAndSend(mail); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Body renders the magic-link email body.
func Body(link string) string {
	return fmt.Sprintf(
		`<p>Click the link below to sign in. It can be used once and expires soon.</p>
<p><a href="%s">Sign in</a></p>
<p>If you did not request this email, you can safely ignore it.</p>`,
		link,
	)
}
