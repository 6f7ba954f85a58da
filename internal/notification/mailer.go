package notification

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Mailer sends plain HTML mail over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailer(host string, port int, username, password, from string) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mail := gomail.NewMessage()
	mail.SetHeader("From", m.from)
	mail.SetHeader("To", msg.Recipient)
	mail.SetHeader("Subject", msg.Subject)
	mail.SetBody("text/html", fmt.Sprintf(`<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">%s</div>`, msg.Body))

	if err := m.dialer.DialAndSend(mail); err != nil {
		return fmt.Errorf("send %s to %s: %w", msg.Template, msg.Recipient, err)
	}
	return nil
}
