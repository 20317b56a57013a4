// Package mail delivers candidate invitations over SMTP.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// Invitation is the content of one invitation email
type Invitation struct {
	To             string
	CompanyName    string
	InterviewTitle string
	Link           string
}

// Sender sends invitation emails
type Sender interface {
	SendInvitation(ctx context.Context, inv Invitation) error
}

// Config holds SMTP settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer implements Sender with net/smtp. With no host configured it only logs.
type Mailer struct {
	cfg    Config
	logger *slog.Logger
	send   sendFunc
	now    func() time.Time
}

// NewMailer creates a new Mailer
func NewMailer(cfg Config, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{
		cfg:    cfg,
		logger: logger,
		send:   smtp.SendMail,
		now:    time.Now,
	}
}

// Enabled reports whether an SMTP host is configured
func (m *Mailer) Enabled() bool {
	return m.cfg.Host != ""
}

// SendInvitation sends one invitation email
func (m *Mailer) SendInvitation(ctx context.Context, inv Invitation) error {
	to, err := mail.ParseAddress(inv.To)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", inv.To, err)
	}

	if !m.Enabled() {
		m.logger.Info("mail disabled, invitation not sent",
			"to", to.Address,
			"interview", inv.InterviewTitle,
			"link", inv.Link,
		)
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	from := mail.Address{Name: inv.CompanyName, Address: m.cfg.From}
	msg := m.buildMessage(from, to, inv)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, auth, m.cfg.From, []string{to.Address}, msg); err != nil {
		return fmt.Errorf("failed to send invitation to %s: %w", to.Address, err)
	}

	m.logger.Info("sent interview invitation", "to", to.Address, "interview", inv.InterviewTitle)
	return nil
}

func (m *Mailer) buildMessage(from mail.Address, to *mail.Address, inv Invitation) []byte {
	company := inv.CompanyName
	if company == "" {
		company = "The hiring team"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from.String())
	fmt.Fprintf(&b, "To: %s\r\n", to.String())
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", "Interview Invitation: "+inv.InterviewTitle))
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")

	body := fmt.Sprintf(`Dear Candidate,

You have been invited by %s to participate in an interview titled "%s".

Please access the interview using the following link:
%s

This link is unique to you and can only be used once. Please complete the interview at your earliest convenience.

Best regards,
%s
`, company, inv.InterviewTitle, inv.Link, company)

	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// ValidAddress reports whether s parses as a single email address
func ValidAddress(s string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	return err == nil && addr.Name == "" && strings.Contains(addr.Address, "@")
}
