package services

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/shopspring/decimal"

	"loanapp-backend/internal/models"
)

const (
	activationSubject = "Activate Your LoanApp Account"
	resetSubject      = "Reset Your LoanApp Password"
	blockedSubject    = "LoanApp Account Blocked"
	unblockedSubject  = "LoanApp Account Unblocked"
	fraudAlertSubject = "Flagged Loan Detected"
)

var codeEmailTmpl = template.Must(template.New("code").Parse(
	`Hello {{.Name}},

{{.Intro}}

Your code is: {{.Code}}

It expires in {{.TTL}} and can be used once. If you did not request this, ignore this email.

LoanApp
`))

var statusEmailTmpl = template.Must(template.New("status").Parse(
	`Hello {{.Name}},

{{.Body}}

LoanApp
`))

type codeEmailData struct {
	Name  string
	Intro string
	Code  string
	TTL   string
}

func renderCodeEmail(user *models.User, purpose, code string, ttl time.Duration) (string, string, error) {
	data := codeEmailData{Name: displayName(user), Code: code, TTL: ttl.String()}
	subject := activationSubject
	data.Intro = "Use the code below to activate your LoanApp account."
	if purpose == models.PurposeReset {
		subject = resetSubject
		data.Intro = "Use the code below to reset your LoanApp password."
	}

	var b strings.Builder
	if err := codeEmailTmpl.Execute(&b, data); err != nil {
		return "", "", fmt.Errorf("render %s email: %w", purpose, err)
	}
	return subject, b.String(), nil
}

func renderBlockedEmail(user *models.User, blocked bool) (string, string, error) {
	subject := blockedSubject
	body := "Your LoanApp account has been blocked by an administrator. Contact support if you believe this is a mistake."
	if !blocked {
		subject = unblockedSubject
		body = "Your LoanApp account has been unblocked. You can log in again."
	}

	var b strings.Builder
	err := statusEmailTmpl.Execute(&b, struct{ Name, Body string }{displayName(user), body})
	if err != nil {
		return "", "", fmt.Errorf("render account status email: %w", err)
	}
	return subject, b.String(), nil
}

func fraudAlertBody(userEmail string, amount decimal.Decimal, reason string) string {
	return fmt.Sprintf(
		"Flagged Loan Alert\n\nUser: %s\nAmount: %s\nReason: %s\n",
		userEmail, amount.StringFixed(2), reason,
	)
}

func displayName(user *models.User) string {
	name := strings.TrimSpace(user.FirstName)
	if name == "" {
		name = user.Username
	}
	return name
}
