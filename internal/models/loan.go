package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LoanStatusPending  = "pending"
	LoanStatusApproved = "approved"
	LoanStatusRejected = "rejected"
	LoanStatusFlagged  = "flagged"
)

func ValidLoanStatus(status string) bool {
	switch status {
	case LoanStatusPending, LoanStatusApproved, LoanStatusRejected, LoanStatusFlagged:
		return true
	}
	return false
}

type LoanApplication struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	AmountRequested decimal.Decimal `json:"amount_requested"`
	Purpose         string          `json:"purpose"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	CreatedBy       *string         `json:"-"`
	UpdatedBy       *string         `json:"-"`
}

// FraudFlag is an append-only annotation on a loan application. It marks the
// application for review, it never blocks it.
type FraudFlag struct {
	ID                string    `json:"id"`
	LoanApplicationID string    `json:"loan_application_id"`
	Reason            string    `json:"reason"`
	CreatedAt         time.Time `json:"created_at"`
}
