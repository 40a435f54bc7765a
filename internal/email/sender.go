package email

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strconv"
	"time"

	"github.com/sponsorhub/internal/config"
)

type Sender struct {
	cfg *config.SMTPConfig
}

func NewSender(cfg *config.SMTPConfig) *Sender {
	return &Sender{cfg: cfg}
}

func (s *Sender) send(ctx context.Context, to, subject, body string) error {
	if s.cfg.Username == "" || s.cfg.Password == "" {
		return fmt.Errorf("email: SMTP not configured")
	}
	from := s.cfg.FromEmail
	if from == "" {
		from = s.cfg.Username
	}
	var buf bytes.Buffer
	buf.WriteString("From: " + s.cfg.FromName + " <" + from + ">\r\n")
	buf.WriteString("To: " + to + "\r\n")
	buf.WriteString("Subject: " + subject + "\r\n")
	buf.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	buf.WriteString(body)
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	done := make(chan error, 1)
	go func() { done <- smtp.SendMail(addr, auth, from, []string{to}, buf.Bytes()) }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (s *Sender) SendOTP(ctx context.Context, to, code string) error {
	body := fmt.Sprintf("Your sign-in code: %s\n\nThe code is valid for 5 minutes.", code)
	return s.send(ctx, to, "Your sign-in code", body)
}

// SendApprovalDecision notifies a user that their signup was approved or
// rejected.
func (s *Sender) SendApprovalDecision(ctx context.Context, to string, approved bool, reason string) error {
	if approved {
		return s.send(ctx, to, "Your account is approved",
			"Your account has been approved. You can sign in now.")
	}
	body := "Your signup was not approved."
	if reason != "" {
		body += "\n\nReason: " + reason
	}
	return s.send(ctx, to, "Your signup was not approved", body)
}

// SendTest sends a test mail (code TEST-xxxx) to verify SMTP settings.
func (s *Sender) SendTest(ctx context.Context, to string) error {
	code := fmt.Sprintf("TEST-%d", time.Now().Unix()%10000)
	return s.SendOTP(ctx, to, code)
}
