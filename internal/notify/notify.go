// Package notify delivers patient-facing notifications.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EmailSender sends a single plain-text email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

const (
	cancellationSubject = "Your appointment on {{date}} has been cancelled"
	cancellationBody    = "Dear patient,\n\nYour appointment scheduled for {{date}} has been cancelled.\nReason: {{reason}}\n\n{{refund}}\n"
)

// Render replaces {{key}} placeholders. Unknown keys are left untouched.
func Render(tpl string, data map[string]string) string {
	out := tpl
	for k, v := range data {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}

type Notifier struct {
	email EmailSender
	loc   *time.Location
}

func NewNotifier(email EmailSender, loc *time.Location) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{email: email, loc: loc}
}

// SendAppointmentCancellationEmail tells a patient their appointment was
// cancelled. refunded is the amount credited back to their wallet, zero when
// nothing was refunded.
func (n *Notifier) SendAppointmentCancellationEmail(ctx context.Context, to string, at time.Time, reason string, refunded int64, currency string) error {
	if to == "" {
		return fmt.Errorf("notify: recipient is required")
	}
	refund := "No refund applies to this cancellation."
	if refunded > 0 {
		refund = fmt.Sprintf("%d.%02d %s has been credited to your wallet.", refunded/100, refunded%100, currency)
	}
	data := map[string]string{
		"date":   at.In(n.loc).Format("Mon 02 Jan 2006 15:04"),
		"reason": reason,
		"refund": refund,
	}
	return n.email.SendEmail(ctx, to, Render(cancellationSubject, data), Render(cancellationBody, data))
}

// smtpTimeout bounds a whole SMTP exchange when the context has no deadline.
const smtpTimeout = 30 * time.Second

// SMTPSender sends mail through an SMTP relay, upgrading to TLS when the
// server offers STARTTLS.
type SMTPSender struct {
	addr string
	host string
	from string
	auth smtp.Auth
}

func NewSMTPSender(addr, username, password, from string) *SMTPSender {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPSender{addr: addr, host: host, from: from, auth: auth}
}

// SendEmail runs the SMTP exchange under the context's deadline, or
// smtpTimeout when it has none. Cancelling ctx aborts the connection.
func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(smtpTimeout)
	}

	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("smtp deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := s.deliver(conn, to, buildMessage(s.from, to, subject, body)); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("smtp send: %w", ctx.Err())
		}
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) deliver(conn net.Conn, to string, msg []byte) error {
	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}); err != nil {
			return err
		}
	}
	if s.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(s.auth); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(s.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogSender writes emails to the log instead of sending them. Used when no
// SMTP relay is configured.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{log: logger}
}

func (s *LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.log.Info().
		Str("to", to).
		Str("subject", subject).
		Int("body_bytes", len(body)).
		Msg("email not sent, no smtp relay configured")
	return nil
}
