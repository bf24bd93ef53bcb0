package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"loanapp-backend/internal/models"
)

const (
	velocityWindow    = 24 * time.Hour
	maxLoansPerWindow = 3
	maxDomainUsers    = 10

	reasonVelocity = "More than 3 loans in 24 hours"
	reasonAmount   = "Amount exceeds NGN 5,000,000"
	reasonDomain   = "Email domain used by more than 10 users"
)

var maxLoanAmount = decimal.NewFromInt(5_000_000)

type LoanHistory interface {
	CountForUserSince(ctx context.Context, userID string, since time.Time) (int64, error)
}

type DomainCounter interface {
	CountByEmailDomain(ctx context.Context, domain string) (int64, error)
}

// FraudEvaluator classifies a new submission before it is persisted. Rules
// run in fixed priority order and short-circuit at the first match.
type FraudEvaluator struct {
	loans LoanHistory
	users DomainCounter
}

func NewFraudEvaluator(loans LoanHistory, users DomainCounter) *FraudEvaluator {
	return &FraudEvaluator{loans: loans, users: users}
}

// Evaluate returns the flag reason for the submission, or "" when the loan
// should stay pending.
func (e *FraudEvaluator) Evaluate(ctx context.Context, user *models.User, amount decimal.Decimal, now time.Time) (string, error) {
	recent, err := e.loans.CountForUserSince(ctx, user.ID, now.Add(-velocityWindow))
	if err != nil {
		return "", fmt.Errorf("count recent loans: %w", err)
	}
	if recent >= maxLoansPerWindow {
		return reasonVelocity, nil
	}

	// Strictly greater than: an application at exactly the limit passes.
	if amount.GreaterThan(maxLoanAmount) {
		return reasonAmount, nil
	}

	sharers, err := e.users.CountByEmailDomain(ctx, emailDomain(user.Email))
	if err != nil {
		return "", fmt.Errorf("count domain users: %w", err)
	}
	if sharers > maxDomainUsers {
		return reasonDomain, nil
	}

	return "", nil
}

// emailDomain is the substring after the last "@", lowercased.
func emailDomain(email string) string {
	idx := strings.LastIndex(email, "@")
	if idx < 0 {
		return strings.ToLower(email)
	}
	return strings.ToLower(email[idx+1:])
}
