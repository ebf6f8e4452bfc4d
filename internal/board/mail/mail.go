// Package mail sends the board's transactional email.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"corkboard/pkg/platform/privacy"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends through an SMTP relay, retrying failed attempts with a
// linear backoff (backoff, 2*backoff, ...).
type SMTPMailer struct {
	addr        string
	host        string
	auth        smtp.Auth
	from        string
	maxAttempts int
	backoff     time.Duration
	send        SendFunc
	logger      *slog.Logger
}

type Option func(*SMTPMailer)

func WithAuth(username, password string) Option {
	return func(m *SMTPMailer) {
		if username != "" {
			m.auth = smtp.PlainAuth("", username, password, m.host)
		}
	}
}

func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(m *SMTPMailer) {
		if maxAttempts > 0 {
			m.maxAttempts = maxAttempts
		}
		if backoff >= 0 {
			m.backoff = backoff
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *SMTPMailer) {
		m.logger = logger
	}
}

// WithSendFunc replaces smtp.SendMail.
func WithSendFunc(send SendFunc) Option {
	return func(m *SMTPMailer) {
		m.send = send
	}
}

func NewSMTPMailer(host string, port int, from string, opts ...Option) *SMTPMailer {
	m := &SMTPMailer{
		addr:        net.JoinHostPort(host, strconv.Itoa(port)),
		host:        host,
		from:        from,
		maxAttempts: 3,
		backoff:     500 * time.Millisecond,
		send:        smtp.SendMail,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send delivers msg, giving up after maxAttempts or when ctx is done.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	raw := m.render(msg)
	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if lastErr = m.send(m.addr, m.auth, m.from, []string{msg.To}, raw); lastErr == nil {
			return nil
		}
		m.logger.WarnContext(ctx, "email send failed",
			"attempt", attempt,
			"to", privacy.MaskEmail(msg.To),
			"error", lastErr,
		)
		if attempt == m.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("send email: %w", ctx.Err())
		case <-time.After(time.Duration(attempt) * m.backoff):
		}
	}
	return fmt.Errorf("send email after %d attempts: %w", m.maxAttempts, lastErr)
}

func (m *SMTPMailer) render(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// LogMailer writes messages to the log instead of sending them. It is used
// when no SMTP host is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "email not sent (no smtp host configured)",
		"to", privacy.MaskEmail(msg.To),
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
