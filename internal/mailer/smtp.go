// Package mailer delivers verification email over SMTP.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/keysmith-dev/keysmith-server/internal/config"
	"github.com/keysmith-dev/keysmith-server/internal/logger"
	"github.com/keysmith-dev/keysmith-server/internal/model"
)

var _ model.Mailer = (*SMTP)(nil)

// SMTP sends verification tokens through an SMTP relay. STARTTLS is
// attempted when the server advertises it.
type SMTP struct {
	host     string
	port     string
	username string
	password string
	from     string
	logger   *logger.Logger
}

// New creates a mailer from SMTP configuration. When no host is
// configured it returns a logging stub so local setups work without a
// relay.
func New(cfg config.Mail, logger *logger.Logger) model.Mailer {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		logger.Info("mailer: no SMTP host configured, tokens are logged instead of sent")
		return &logMailer{logger: logger}
	}
	return &SMTP{
		host:     host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		logger:   logger,
	}
}

// SendVerification delivers a verification token to email.
func (m *SMTP) SendVerification(ctx context.Context, email, token string, purpose model.VerificationPurpose) error {
	msg := buildMessage(m.from, email, subjectFor(purpose), bodyFor(purpose, token))

	if err := m.send(ctx, email, msg); err != nil {
		m.logger.Error("mailer: delivery failed", "email", email, "purpose", purpose, "error", err)
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	m.logger.Info("mailer: verification email sent", "email", email, "purpose", purpose)
	return nil
}

func (m *SMTP) send(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(m.host, m.port)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return err
		}
	}

	if m.username != "" && m.password != "" {
		auth := smtp.PlainAuth("", m.username, m.password, m.host)
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(m.from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func subjectFor(purpose model.VerificationPurpose) string {
	if purpose == model.PurposeRecover {
		return "Your account recovery code"
	}
	return "Confirm your email address"
}

func bodyFor(purpose model.VerificationPurpose, token string) string {
	if purpose == model.PurposeRecover {
		return fmt.Sprintf("A recovery was requested for your account.\n\nRecovery code: %s\n\nIf you did not request this, ignore the message.", token)
	}
	return fmt.Sprintf("Enter this code to finish creating your account.\n\nVerification code: %s", token)
}

func buildMessage(from, to, subject, body string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// logMailer writes tokens to the log. Development only; verification is
// still enforced, the operator reads the code from server output.
type logMailer struct {
	logger *logger.Logger
}

func (m *logMailer) SendVerification(_ context.Context, email, token string, purpose model.VerificationPurpose) error {
	m.logger.Info("mailer: verification token issued", "email", email, "purpose", purpose, "token", token)
	return nil
}
