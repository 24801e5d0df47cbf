package notification

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"mime"
	"net"
	"net/http"
	"net/mail"
	"net/smtp"
	"regexp"
	"strings"
	"time"

	"github.com/bher20/equotemanager/internal/storage"
	"github.com/rotisserie/eris"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// ErrNotConfigured is returned when no enabled email config is stored.
var ErrNotConfigured = errors.New("email not configured or disabled")

const resendEndpoint = "https://api.resend.com/emails"

// Email providers accepted in storage.EmailConfig.Provider.
const (
	ProviderSMTP     = "smtp"
	ProviderGmail    = "gmail"
	ProviderSendgrid = "sendgrid"
	ProviderResend   = "resend"
)

// message is one outgoing notification, independent of the provider.
type message struct {
	From    mail.Address
	To      string
	ReplyTo string // customer address on lead emails, may be empty
	Subject string
	HTML    string
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// text is the plain-text alternative of the HTML body.
func (m message) text() string {
	lines := strings.Split(html.UnescapeString(tagPattern.ReplaceAllString(m.HTML, "")), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// headerSafe drops CR and LF so customer names cannot inject headers.
func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

type Service struct {
	storage   storage.Storage
	client    *http.Client
	resendURL string
}

func NewService(s storage.Storage) *Service {
	return &Service{
		storage:   s,
		client:    &http.Client{Timeout: 15 * time.Second},
		resendURL: resendEndpoint,
	}
}

func (s *Service) GetConfig(ctx context.Context) (*storage.EmailConfig, error) {
	return s.storage.GetEmailConfig(ctx)
}

// SaveConfig stores the single email config row.
func (s *Service) SaveConfig(ctx context.Context, cfg storage.EmailConfig) error {
	return eris.Wrap(s.storage.SaveEmailConfig(ctx, cfg), "save email config")
}

// SendEmail sends an HTML email with the stored config.
func (s *Service) SendEmail(ctx context.Context, to, subject, body string) error {
	return s.deliver(ctx, message{To: to, Subject: subject, HTML: body})
}

func (s *Service) deliver(ctx context.Context, m message) error {
	cfg, err := s.storage.GetEmailConfig(ctx)
	if err != nil {
		return err
	}
	if cfg == nil || !cfg.Enabled {
		return ErrNotConfigured
	}
	return s.send(ctx, cfg, m)
}

// TestConfig sends a test email with cfg without saving it.
func (s *Service) TestConfig(ctx context.Context, cfg storage.EmailConfig, to string) error {
	return s.send(ctx, &cfg, message{
		To:      to,
		Subject: "eQuoteManager test email",
		HTML:    "<p>Lead notifications from eQuoteManager will arrive at this address.</p>",
	})
}

func (s *Service) send(ctx context.Context, cfg *storage.EmailConfig, m message) error {
	m.From = mail.Address{Name: cfg.FromName, Address: cfg.FromAddress}
	m.Subject = headerSafe(m.Subject)
	m.ReplyTo = headerSafe(m.ReplyTo)

	var err error
	switch cfg.Provider {
	case ProviderSMTP, ProviderGmail:
		err = sendSMTP(ctx, cfg, m)
	case ProviderSendgrid:
		err = sendSendgrid(ctx, cfg, m)
	case ProviderResend:
		err = s.sendResend(ctx, cfg, m)
	default:
		return fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
	return eris.Wrapf(err, "send via %s", cfg.Provider)
}

// rfc822 renders m as an HTML mail message.
func (m message) rfc822() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.From.String())
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	if m.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", m.ReplyTo)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(m.HTML)
	b.WriteString("\r\n")
	return b.Bytes()
}

// sendSMTP supports implicit TLS ("ssl"), STARTTLS ("tls") and plain
// connections. Gmail is SMTP with an app password.
func sendSMTP(ctx context.Context, cfg *storage.EmailConfig, m message) error {
	addr := net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port))
	dialer := &net.Dialer{Timeout: 15 * time.Second}

	var (
		conn net.Conn
		err  error
	)
	if cfg.Encryption == "ssl" {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: cfg.Host}}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return err
	}

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if cfg.Encryption == "tls" {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return errors.New("server does not offer STARTTLS")
		}
		if err := c.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
			return err
		}
	}
	if cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)); err != nil {
			return err
		}
	}
	if err := c.Mail(cfg.FromAddress); err != nil {
		return err
	}
	if err := c.Rcpt(m.To); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(m.rfc822()); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func sendSendgrid(ctx context.Context, cfg *storage.EmailConfig, m message) error {
	msg := sgmail.NewSingleEmail(
		sgmail.NewEmail(m.From.Name, m.From.Address),
		m.Subject,
		sgmail.NewEmail("", m.To),
		m.text(),
		m.HTML,
	)
	if m.ReplyTo != "" {
		msg.SetReplyTo(sgmail.NewEmail("", m.ReplyTo))
	}
	resp, err := sendgrid.NewSendClient(cfg.APIKey).SendWithContext(ctx, msg)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

type resendPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	ReplyTo string `json:"reply_to,omitempty"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

func (s *Service) sendResend(ctx context.Context, cfg *storage.EmailConfig, m message) error {
	body, err := json.Marshal(resendPayload{
		From:    fmt.Sprintf("%s <%s>", m.From.Name, m.From.Address),
		To:      m.To,
		ReplyTo: m.ReplyTo,
		Subject: m.Subject,
		HTML:    m.HTML,
		Text:    m.text(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.resendURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("resend status %d: %s", resp.StatusCode, msg)
	}
	return nil
}
