// Package email sends transactional mail through the SMTP settings
// administrators configure in the console.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/trustflow/service-core/internal/settings"
)

var ErrNotConfigured = errors.New("smtp is not configured")

// Message is a single outbound mail.
type Message struct {
	To      string
	Subject string
	Body    string
	HTML    bool
}

// Sender delivers a message through a configured transport.
type Sender interface {
	Send(ctx context.Context, cfg *settings.SMTPConfig, msg *Message) error
}

// SettingsSource yields the current SMTP configuration.
type SettingsSource interface {
	SMTP(ctx context.Context) (*settings.SMTPConfig, error)
}

// Service resolves SMTP settings at send time so configuration changes take
// effect without a restart.
type Service struct {
	source SettingsSource
	sender Sender
}

func NewService(source SettingsSource, sender Sender) *Service {
	if sender == nil {
		sender = &SMTPSender{}
	}
	return &Service{source: source, sender: sender}
}

func (s *Service) Send(ctx context.Context, msg *Message) error {
	cfg, err := s.source.SMTP(ctx)
	if err != nil {
		if errors.Is(err, settings.ErrNotFound) {
			return ErrNotConfigured
		}
		return err
	}
	return s.sender.Send(ctx, cfg, msg)
}

// TestConnection verifies the configured host accepts mail from the
// configured sender without delivering anything.
func (s *Service) TestConnection(ctx context.Context) error {
	cfg, err := s.source.SMTP(ctx)
	if err != nil {
		if errors.Is(err, settings.ErrNotFound) {
			return ErrNotConfigured
		}
		return err
	}
	probe, ok := s.sender.(interface {
		Probe(ctx context.Context, cfg *settings.SMTPConfig) error
	})
	if !ok {
		return nil
	}
	return probe.Probe(ctx, cfg)
}

// SendPasswordReset mails the reset link for the given token.
func (s *Service) SendPasswordReset(ctx context.Context, to, firstName, resetURL string) error {
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>We received a request to reset your TrustFlow password. Click the link below to choose a new one. The link expires in one hour and can be used once.</p>
<p><a href=%q>Reset your password</a></p>
<p>If you did not request this, you can ignore this email.</p>`, firstName, resetURL)
	return s.Send(ctx, &Message{
		To:      to,
		Subject: "Reset your TrustFlow password",
		Body:    body,
		HTML:    true,
	})
}

// SMTPSender delivers mail over net/smtp with PLAIN auth and optional TLS.
type SMTPSender struct{}

func (SMTPSender) Send(ctx context.Context, cfg *settings.SMTPConfig, msg *Message) error {
	client, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(cfg.FromEmail); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := wc.Write(encode(cfg, msg)); err != nil {
		wc.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return client.Quit()
}

// Probe opens, authenticates, and quits without sending.
func (SMTPSender) Probe(ctx context.Context, cfg *settings.SMTPConfig) error {
	client, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Quit()
}

func dial(ctx context.Context, cfg *settings.SMTPConfig) (*smtp.Client, error) {
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("smtp dial: %w", err)
	}
	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}
	if cfg.EnableSSL {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
				client.Close()
				return nil, fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}
	if cfg.UserName != "" {
		auth := smtp.PlainAuth("", cfg.UserName, cfg.Password, cfg.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("smtp auth: %w", err)
		}
	}
	return client, nil
}

func encode(cfg *settings.SMTPConfig, msg *Message) []byte {
	from := cfg.FromEmail
	if cfg.DisplayName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.DisplayName, cfg.FromEmail)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	if msg.HTML {
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	} else {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
