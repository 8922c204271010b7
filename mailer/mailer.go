// Package mailer provides the notification transports: SMTP for production
// and a console writer for development.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/jananicare/accounts"
)

// SendFunc matches smtp.SendMail
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPConfig holds the relay settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Domain   string
}

// SMTP delivers notifications over SMTP. smtp.SendMail upgrades the
// connection with STARTTLS when the server offers it.
type SMTP struct {
	cfg  SMTPConfig
	send SendFunc
}

var _ accounts.Transport = (*SMTP)(nil)

// NewSMTP creates an SMTP transport
func NewSMTP(cfg SMTPConfig) *SMTP {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTP{cfg: cfg, send: smtp.SendMail}
}

// WithSendFunc replaces the network call, used by tests
func (s *SMTP) WithSendFunc(fn SendFunc) *SMTP {
	if fn != nil {
		s.send = fn
	}
	return s
}

// Deliver implements accounts.Transport
func (s *SMTP) Deliver(ctx context.Context, msg *accounts.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	raw := FormatMessage(s.cfg.From, s.cfg.Domain, msg)

	if err := s.send(addr, auth, s.cfg.From, msg.Recipients, raw); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "smtp delivery failed").
			WithMetadata(map[string]any{
				"host":       s.cfg.Host,
				"message_id": msg.ID,
			})
	}

	return nil
}

// Console writes notifications to a writer instead of sending them
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

var _ accounts.Transport = (*Console)(nil)

// NewConsole writes to out, stdout when nil
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

// Deliver implements accounts.Transport
func (c *Console) Deliver(_ context.Context, msg *accounts.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sep := strings.Repeat("-", 79)
	_, err := fmt.Fprintf(c.out, "%s\nMessage-ID: %s\nTo: %s\nSubject: %s\n\n%s\n%s\n",
		sep, msg.ID, strings.Join(msg.Recipients, ", "), msg.Subject, msg.Body, sep)
	return err
}

// FormatMessage builds the RFC 5322 payload for a notification
func FormatMessage(from, domain string, msg *accounts.Notification) []byte {
	if domain == "" {
		domain = "localhost"
	}

	date := msg.CreatedAt
	if date.IsZero() {
		date = time.Now()
	}

	var b bytes.Buffer
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}

	header("From", from)
	header("To", strings.Join(msg.Recipients, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", date.Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", msg.ID, domain))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="UTF-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))

	return b.Bytes()
}
