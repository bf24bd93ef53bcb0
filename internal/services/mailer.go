package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"loanapp-backend/internal/config"
)

type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// NewMailer returns the SendGrid mailer when an API key is configured and a
// logging stand-in otherwise, so dev environments run without mail creds.
func NewMailer(cfg *config.Config, log *slog.Logger) Mailer {
	if cfg.SendGridAPIKey != "" {
		return NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailFrom)
	}
	return &LogMailer{log: log}
}

type SendGridMailer struct {
	apiKey   string
	from     string
	endpoint string
	client   *http.Client
}

func NewSendGridMailer(apiKey, from string) *SendGridMailer {
	return &SendGridMailer{
		apiKey:   strings.TrimSpace(apiKey),
		from:     strings.TrimSpace(from),
		endpoint: "https://api.sendgrid.com/v3/mail/send",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPersonalization struct {
	To      []sendGridAddress `json:"to"`
	Subject string            `json:"subject"`
}

type sendGridMailSendRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Content          []sendGridContent         `json:"content"`
}

func (m *SendGridMailer) Send(ctx context.Context, to []string, subject, body string) error {
	if m.apiKey == "" {
		return fmt.Errorf("missing SENDGRID_API_KEY")
	}
	if m.from == "" {
		return fmt.Errorf("missing MAIL_FROM")
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	recipients := make([]sendGridAddress, 0, len(to))
	for _, addr := range to {
		recipients = append(recipients, sendGridAddress{Email: strings.TrimSpace(addr)})
	}

	reqBody := sendGridMailSendRequest{
		Personalizations: []sendGridPersonalization{{To: recipients, Subject: subject}},
		From:             sendGridAddress{Email: m.from, Name: "LoanApp"},
		Content:          []sendGridContent{{Type: "text/plain", Value: body}},
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// SendGrid returns 202 Accepted on success.
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("sendgrid mail send http %d", resp.StatusCode)
	}
	return nil
}

// LogMailer records outbound mail instead of delivering it.
type LogMailer struct {
	log *slog.Logger
}

func (m *LogMailer) Send(_ context.Context, to []string, subject, body string) error {
	m.log.Info("email suppressed, no mail provider configured",
		"to", strings.Join(to, ","),
		"subject", subject,
		"body", body,
	)
	return nil
}
