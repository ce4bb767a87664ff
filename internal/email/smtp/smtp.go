package smtp

import (
	"context"
	"fmt"
	"time"

	mail "github.com/wneessen/go-mail"
)

type SMTP struct {
	From     string
	FromName string
	Host     string
	User     string
	Pass     string
	Port     int
}

func New(host, user, pass string, port int, from, fromName string) *SMTP {
	if from == "" {
		from = user
	}
	return &SMTP{
		From:     from,
		FromName: fromName,
		Host:     host,
		User:     user,
		Pass:     pass,
		Port:     port,
	}
}

func (s *SMTP) message(subject, text, html string, recipients []string) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(s.FromName, s.From); err != nil {
		return nil, fmt.Errorf("erro no smtp, campo 'from': %w", err)
	}
	if err := m.To(recipients...); err != nil {
		return nil, fmt.Errorf("to error: %w", err)
	}
	m.Subject(subject)
	if text != "" {
		m.SetBodyString(mail.TypeTextPlain, text)
		m.AddAlternativeString(mail.TypeTextHTML, html)
	} else {
		m.SetBodyString(mail.TypeTextHTML, html)
	}
	return m, nil
}

func (s *SMTP) Send(subject, text, html string, recipients []string) error {
	m, err := s.message(subject, text, html, recipients)
	if err != nil {
		return err
	}
	c, err := mail.NewClient(
		s.Host,
		mail.WithPort(s.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.User),
		mail.WithPassword(s.Pass),
		mail.WithTimeout(15*time.Second),
	)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return c.DialAndSendWithContext(ctx, m)
}
