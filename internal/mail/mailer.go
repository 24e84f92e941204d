// Package mail sends plain-text notification emails (verification codes and
// contact-form messages).
package mail

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNoRecipients is returned when Send is called without addresses.
var ErrNoRecipients = errors.New("mail: no recipients")

// Mailer delivers a message to a list of recipients.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// SMTPConfig holds the outgoing server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	StartTLS bool
}

// SMTPMailer sends through an SMTP relay.
type SMTPMailer struct {
	cfg SMTPConfig
}

// New returns an SMTPMailer when cfg names a host and sender, and a
// LogMailer otherwise.
func New(cfg SMTPConfig) Mailer {
	if cfg.Host == "" || cfg.From == "" {
		log.Warn().Msg("smtp not configured; emails will only be logged")
		return LogMailer{}
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPMailer{cfg: cfg}
}

// Send delivers one message to all recipients.
func (m *SMTPMailer) Send(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return ErrNoRecipients
	}
	msg := buildMessage(m.cfg.From, m.cfg.FromName, to, subject, body)
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(15 * time.Second)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if m.cfg.StartTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
				return err
			}
		}
	}
	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(m.cfg.From); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	wc, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(msg); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct{}

// Send logs the envelope and subject.
func (LogMailer) Send(_ context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return ErrNoRecipients
	}
	log.Info().Strs("to", to).Str("subject", subject).Int("body_bytes", len(body)).Msg("mail (not sent)")
	return nil
}

func buildMessage(from, fromName string, to []string, subject, body string) []byte {
	fromHeader := from
	if fromName != "" {
		fromHeader = fmt.Sprintf("%s <%s>", encodeHeader(fromName), from)
	}
	var b strings.Builder
	b.WriteString("From: " + fromHeader + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	b.WriteString("Subject: " + encodeHeader(subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// encodeHeader applies RFC 2047 base64 encoding when s is not plain ASCII.
func encodeHeader(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 128 {
			return "=?UTF-8?B?" + base64.StdEncoding.EncodeToString([]byte(s)) + "?="
		}
	}
	return s
}
