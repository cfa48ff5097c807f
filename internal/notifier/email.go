package notifier

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"connectoralert/internal/config"
	"connectoralert/internal/models"
)

// ValidateEmailConfig checks the SMTP settings needed to send alerts.
func ValidateEmailConfig(c config.EmailConfig) error {
	if c.Host == "" {
		return errors.New("SMTP host is required")
	}
	if c.Port == 0 {
		return errors.New("SMTP port is required")
	}
	if c.From == "" {
		return errors.New("from address is required")
	}
	if _, err := mail.ParseAddress(c.From); err != nil {
		return fmt.Errorf("invalid from address %q: %w", c.From, err)
	}
	if len(c.Recipients) == 0 {
		return errors.New("at least one recipient is required")
	}
	for _, rcpt := range c.Recipients {
		if _, err := mail.ParseAddress(rcpt); err != nil {
			return fmt.Errorf("invalid recipient %q: %w", rcpt, err)
		}
	}
	return nil
}

// EmailNotifier sends alerts via SMTP.
type EmailNotifier struct {
	config    config.EmailConfig
	templates *Templates
	now       func() time.Time
}

// NewEmailNotifier creates a new email notifier.
func NewEmailNotifier(cfg config.EmailConfig) (*EmailNotifier, error) {
	if err := ValidateEmailConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid email config: %w", err)
	}

	templates, err := ParseTemplates(cfg.Subject, cfg.Body)
	if err != nil {
		return nil, err
	}

	return &EmailNotifier{
		config:    cfg,
		templates: templates,
		now:       time.Now,
	}, nil
}

// Name returns "email".
func (e *EmailNotifier) Name() string {
	return "email"
}

// Send mails the rendered alert to all configured recipients.
func (e *EmailNotifier) Send(ctx context.Context, alert *models.Alert) error {
	subject, body, err := e.templates.Render(alert)
	if err != nil {
		return err
	}

	return e.sendMail(ctx, e.buildMessage(subject, body))
}

// Close is a no-op; every Send opens its own SMTP session.
func (e *EmailNotifier) Close() error {
	return nil
}

// buildMessage builds a plain text RFC 5322 message.
func (e *EmailNotifier) buildMessage(subject, body string) []byte {
	var msg strings.Builder

	msg.WriteString(fmt.Sprintf("From: %s\r\n", e.config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(e.config.Recipients, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString(fmt.Sprintf("Date: %s\r\n", e.now().Format(time.RFC1123Z)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")

	body = strings.ReplaceAll(body, "\r\n", "\n")
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))

	return []byte(msg.String())
}

// sendMail delivers msg via SMTP. The whole session is bounded by ctx.
func (e *EmailNotifier) sendMail(ctx context.Context, msg []byte) error {
	addr := net.JoinHostPort(e.config.Host, fmt.Sprint(e.config.Port))
	tlsConfig := &tls.Config{ServerName: e.config.Host}

	var conn net.Conn
	var err error
	dialer := &net.Dialer{Timeout: 30 * time.Second}

	if e.config.Port == 465 {
		// Implicit TLS (SMTPS)
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: tlsConfig}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, e.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start SMTP session: %w", err)
	}
	defer client.Close()

	if e.config.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	}

	if e.config.Username != "" && e.config.Password != "" {
		auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(extractEmail(e.config.From)); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}

	for _, rcpt := range e.config.Recipients {
		if err := client.Rcpt(extractEmail(rcpt)); err != nil {
			return fmt.Errorf("failed to add recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}

	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data: %w", err)
	}

	return client.Quit()
}

// extractEmail extracts the address from a "Name <email>" form.
func extractEmail(addr string) string {
	if parsed, err := mail.ParseAddress(addr); err == nil {
		return parsed.Address
	}
	return addr
}
