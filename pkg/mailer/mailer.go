package mailer

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"
)

// Message is a single outgoing email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// dialer is the subset of *gomail.Dialer used here.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPMailer struct {
	dialer dialer
	from   string
	name   string
}

func NewSMTPMailer(cfg Config) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		name:   cfg.FromName,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", m.from, m.name)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	if msg.TextBody != "" {
		gm.SetBody("text/plain", msg.TextBody)
		if msg.HTMLBody != "" {
			gm.AddAlternative("text/html", msg.HTMLBody)
		}
	} else {
		gm.SetBody("text/html", msg.HTMLBody)
	}

	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	return nil
}

// LogMailer only logs messages. It is used when SMTP is not configured.
type LogMailer struct {
	mu   sync.Mutex
	Sent []Message
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, msg)
	m.mu.Unlock()

	log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email not sent, smtp disabled")
	return nil
}
