package auth

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"property-marketplace/internal/config"
)

var errHeaderInjection = errors.New("mail header contains a line break")

// Sender delivers account emails
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewSender returns an SMTP sender, or a LogSender when no SMTP host is configured
func NewSender(cfg config.MailConfig) Sender {
	if cfg.Host == "" {
		log.Println("[Mail] SMTP host not configured, outgoing mail is logged without its body")
		return LogSender{}
	}
	log.Printf("[Mail] Sending through %s:%d as %s", cfg.Host, cfg.Port, cfg.From)
	return NewSMTPSender(cfg)
}

// SMTPSender delivers plain text mail with net/smtp
type SMTPSender struct {
	addr     string
	from     string
	auth     smtp.Auth
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	var a smtp.Auth
	if cfg.Username != "" {
		a = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPSender{
		addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		from:     cfg.From,
		auth:     a,
		sendMail: smtp.SendMail,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := s.message(to, subject, body)
	if err != nil {
		return err
	}
	if err := s.sendMail(s.addr, s.auth, s.from, []string{to}, msg); err != nil {
		log.WithField("to", to).Errorf("[Mail] SMTP delivery failed: %v", err)
		return fmt.Errorf("smtp error: %w", err)
	}
	log.WithFields(log.Fields{"to": to, "subject": subject}).Info("[Mail] Sent")
	return nil
}

func (s *SMTPSender) message(to, subject, body string) ([]byte, error) {
	for _, h := range []string{s.from, to, subject} {
		if strings.ContainsAny(h, "\r\n") {
			return nil, errHeaderInjection
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String()), nil
}

// LogSender records that a mail was due without delivering it. The body may
// carry credentials such as reset links, so it is never logged.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to, subject, body string) error {
	log.WithFields(log.Fields{
		"to":      to,
		"subject": subject,
		"bytes":   len(body),
	}).Warn("[Mail] Not delivered, no SMTP host configured")
	return nil
}
