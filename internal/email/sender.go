package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// Config holds the SMTP relay settings. An empty Host disables sending; the
// sender logs and drops instead of failing follow-up creation.
type Config struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

func (c Config) Enabled() bool {
	return c.Host != "" && c.Port != 0 && c.From != ""
}

// FollowUpNotification describes a missed-call or voicemail follow-up for
// agent notification.
type FollowUpNotification struct {
	To         string
	LeadName   string
	FromNumber string
	Reason     string
	DueDate    time.Time
}

// Sender delivers follow-up notification emails via SMTP.
type Sender struct {
	cfg Config
	log *slog.Logger
	// dialFunc allows injecting a custom dialer for testing.
	dialFunc func(addr string, tlsConfig *tls.Config) (smtpClient, error)
}

// smtpClient abstracts the methods used from *smtp.Client for testing.
type smtpClient interface {
	Hello(localName string) error
	Extension(ext string) (bool, string)
	StartTLS(config *tls.Config) error
	Auth(a smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

func NewSender(cfg Config, log *slog.Logger) *Sender {
	return &Sender{
		cfg:      cfg,
		log:      log.With("component", "email"),
		dialFunc: defaultDial,
	}
}

// SendFollowUpNotification emails the agent about a newly created follow-up.
// Callers treat delivery as best-effort and bound it with a context timeout.
func (s *Sender) SendFollowUpNotification(ctx context.Context, n FollowUpNotification) error {
	if !s.cfg.Enabled() {
		s.log.Info("smtp not configured, dropping follow-up email", "to", n.To)
		return nil
	}
	if n.To == "" {
		return fmt.Errorf("email: no recipient address")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	tlsConfig := &tls.Config{ServerName: s.cfg.Host}

	client, err := s.dialFunc(addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("email: connecting to smtp server: %w", err)
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return fmt.Errorf("email: smtp hello: %w", err)
	}
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("email: smtp starttls: %w", err)
		}
	}
	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("email: smtp auth: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("email: smtp mail from: %w", err)
	}
	if err := client.Rcpt(n.To); err != nil {
		return fmt.Errorf("email: smtp rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("email: smtp data: %w", err)
	}
	if _, err := w.Write(buildMessage(s.cfg.From, n)); err != nil {
		w.Close()
		return fmt.Errorf("email: smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("email: smtp data close: %w", err)
	}

	if err := client.Quit(); err != nil {
		s.log.Warn("smtp quit error (non-fatal)", "error", err)
	}

	s.log.Info("follow-up notification email sent", "to", n.To, "reason", n.Reason)
	return nil
}

func defaultDial(addr string, tlsConfig *tls.Config) (smtpClient, error) {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)
	return smtp.NewClient(conn, host)
}

func buildMessage(from string, n FollowUpNotification) []byte {
	var buf bytes.Buffer

	lead := n.LeadName
	if lead == "" {
		lead = n.FromNumber
	}
	subject := fmt.Sprintf("Follow-up needed: %s from %s", n.Reason, lead)
	body := fmt.Sprintf(
		"A follow-up was created for %s.\n\n"+
			"Reason: %s\n"+
			"Caller: %s\n"+
			"Due: %s\n",
		lead,
		n.Reason,
		n.FromNumber,
		n.DueDate.Format("Mon, 02 Jan 2006 3:04 PM"),
	)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", n.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: text/plain; charset=utf-8\r\n")
	fmt.Fprintf(&buf, "\r\n")
	buf.WriteString(body)

	return buf.Bytes()
}
