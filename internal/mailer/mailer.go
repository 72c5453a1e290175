// Package mailer sends transactional email through an SMTP relay.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"devshelf/internal/middleware"
	"devshelf/internal/observability"

	"github.com/wneessen/go-mail"
)

// SendTimeout bounds one SMTP dial-and-send.
const SendTimeout = 15 * time.Second

// Message kinds, used as metric labels.
const (
	KindContact       = "contact"
	KindPasswordReset = "password_reset"
)

// Message is a plain-text email.
type Message struct {
	Kind    string
	To      []string
	ReplyTo string
	Subject string
	Text    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds SMTP relay settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// New returns an SMTP mailer, or a LogMailer when no host is configured.
func New(cfg Config) Mailer {
	if cfg.Host == "" {
		middleware.Logger.Info("SMTP host not configured, emails will be logged only")
		return NewLogMailer()
	}
	return &SMTPMailer{cfg: cfg}
}

// SMTPMailer sends each message over a fresh SMTP connection.
type SMTPMailer struct {
	cfg Config
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) (err error) {
	defer func() {
		observability.EmailsSent.WithLabelValues(msg.Kind, observability.StatusLabel(err)).Inc()
	}()

	ctx, cancel := context.WithTimeout(ctx, SendTimeout)
	defer cancel()

	ctx, span := observability.StartClientSpan(ctx, "smtp.send")
	defer func() { observability.EndSpan(span, err) }()

	email, err := m.build(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTimeout(SendTimeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, email); err != nil {
		middleware.Logger.ErrorContext(ctx, "email delivery failed",
			slog.String("kind", msg.Kind),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (m *SMTPMailer) build(msg Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, errors.New("email has no recipients")
	}
	email := mail.NewMsg()
	if err := email.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := email.To(msg.To...); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	if msg.ReplyTo != "" {
		if err := email.ReplyTo(msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("reply-to address: %w", err)
		}
	}
	email.Subject(msg.Subject)
	email.SetBodyString(mail.TypeTextPlain, msg.Text)
	return email, nil
}

// LogMailer logs messages instead of sending them and keeps them for inspection.
type LogMailer struct {
	mu   sync.Mutex
	sent []Message
}

// NewLogMailer returns an empty LogMailer.
func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("email has no recipients")
	}
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	observability.EmailsSent.WithLabelValues(msg.Kind, observability.StatusOK).Inc()
	middleware.Logger.InfoContext(ctx, "email logged",
		slog.String("kind", msg.Kind),
		slog.Any("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}

// Sent returns a copy of every message passed to Send.
func (m *LogMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
