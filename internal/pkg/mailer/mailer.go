package mailer

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Config holds SMTP settings
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Message is a single outbound email
type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends email over SMTP. Without credentials it runs in dev mode and only logs.
type Mailer struct {
	config  Config
	devMode bool
	send    sendFunc
}

// New creates a mailer
func New(cfg Config) *Mailer {
	return &Mailer{
		config:  cfg,
		devMode: cfg.Username == "" || cfg.Password == "",
		send:    smtp.SendMail,
	}
}

// DevMode reports whether messages are logged instead of sent
func (m *Mailer) DevMode() bool {
	return m.devMode
}

// Send delivers msg
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.devMode {
		log.Infow("mail not sent (dev mode)", "to", strings.Join(msg.To, ","), "subject", msg.Subject, "body", msg.Text)
		return nil
	}

	addr := fmt.Sprintf("%s:%s", m.config.Host, m.config.Port)
	auth := smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	if err := m.send(addr, auth, m.config.From, msg.To, m.build(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", strings.Join(msg.To, ","), err)
	}
	return nil
}

func (m *Mailer) build(msg Message) []byte {
	var body bytes.Buffer
	boundary := fmt.Sprintf("boundary_%d", time.Now().UnixNano())
	body.WriteString(fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: multipart/alternative; boundary=%s\r\n\r\n",
		m.config.FromName, m.config.From, strings.Join(msg.To, ", "), msg.Subject, boundary))
	body.WriteString(fmt.Sprintf("--%s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n", boundary, msg.Text))
	if msg.HTML != "" {
		body.WriteString(fmt.Sprintf("--%s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n", boundary, msg.HTML))
	}
	body.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return body.Bytes()
}

// SendOTP emails a one-time code. The stated expiry is derived from ttl.
func (m *Mailer) SendOTP(ctx context.Context, to, code string, ttl time.Duration) error {
	return m.Send(ctx, OTPMessage(to, code, ttl))
}

// OTPMessage builds the verification code email
func OTPMessage(to, code string, ttl time.Duration) Message {
	expiry := ExpiryText(ttl)
	return Message{
		To:      []string{to},
		Subject: "Classroom - Verification Code",
		Text: fmt.Sprintf("Your verification code is %s. It expires in %s.\r\n\r\nIf you did not request this, please ignore this email.",
			code, expiry),
		HTML: fmt.Sprintf(`<!DOCTYPE html><html><body style="font-family:Arial;background-color:#f5f5f5;"><table width="600" align="center" bgcolor="#ffffff" style="border-radius:12px;"><tr><td style="padding:32px 40px;"><h2 style="margin:0 0 10px 0;">VERIFICATION CODE</h2><p>Your code is below. It expires in %s:</p><p style="font-size:40px;font-weight:bold;letter-spacing:10px;margin:0;">%s</p><p style="margin-top:24px;color:#999999;font-size:13px;">If you did not request this, please ignore this email.</p></td></tr></table></body></html>`,
			expiry, code),
	}
}

// ExpiryText renders ttl as "5 minutes", "1 minute" or "30 seconds"
func ExpiryText(ttl time.Duration) string {
	if ttl >= time.Minute && ttl%time.Minute == 0 {
		n := int(ttl / time.Minute)
		if n == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", n)
	}
	n := int(ttl / time.Second)
	if n == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", n)
}
