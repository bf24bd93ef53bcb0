package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"loanapp-backend/internal/models"
	"loanapp-backend/internal/repo"
	"loanapp-backend/internal/utils"
)

// LoanStore is the ledger surface for submissions and moderation.
type LoanStore interface {
	Create(ctx context.Context, loan *models.LoanApplication) error
	CreateFlagged(ctx context.Context, loan *models.LoanApplication, reason string) error
	CountForUserSince(ctx context.Context, userID string, since time.Time) (int64, error)
	List(ctx context.Context, filters repo.LoanFilters) ([]models.LoanApplication, int64, error)
	GetByID(ctx context.Context, id string) (*models.LoanApplication, error)
	UpdateStatus(ctx context.Context, id, status, actor string) (*models.LoanApplication, error)
	FlagsForLoan(ctx context.Context, loanID string) ([]models.FraudFlag, error)
}

type LoanService struct {
	loans    LoanStore
	fraud    *FraudEvaluator
	mailer   Mailer
	opsEmail string
	log      *slog.Logger
}

func NewLoanService(loans LoanStore, fraud *FraudEvaluator, mailer Mailer, opsEmail string, log *slog.Logger) *LoanService {
	return &LoanService{loans: loans, fraud: fraud, mailer: mailer, opsEmail: opsEmail, log: log}
}

// Submit evaluates the fraud rules and persists the application with the
// resulting status. A flag is a successful outcome, not an error.
func (s *LoanService) Submit(ctx context.Context, user *models.User, amount decimal.Decimal, purpose string) (*models.LoanApplication, error) {
	reason, err := s.fraud.Evaluate(ctx, user, amount, time.Now().UTC())
	if err != nil {
		return nil, internalError("could not evaluate loan application")
	}

	loan := &models.LoanApplication{
		UserID:          user.ID,
		AmountRequested: amount,
		Purpose:         purpose,
		Status:          models.LoanStatusPending,
		CreatedBy:       &user.ID,
		UpdatedBy:       &user.ID,
	}

	if reason == "" {
		if err := s.loans.Create(ctx, loan); err != nil {
			return nil, internalError("could not save loan application")
		}
		return loan, nil
	}

	if err := s.loans.CreateFlagged(ctx, loan, reason); err != nil {
		return nil, internalError("could not save loan application")
	}

	// Best effort: a mail outage must not undo an accepted submission.
	body := fraudAlertBody(user.Email, amount, reason)
	if err := s.mailer.Send(ctx, []string{s.opsEmail}, fraudAlertSubject, body); err != nil {
		s.log.Error("fraud alert email failed", "loan_id", loan.ID, "reason", reason, "error", err)
	}
	return loan, nil
}

func (s *LoanService) ListForUser(ctx context.Context, userID string, query url.Values, page, perPage int) ([]models.LoanApplication, int64, error) {
	items, total, err := s.loans.List(ctx, repo.LoanFilters{
		UserID:  &userID,
		Query:   query,
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		return nil, 0, internalError("could not list loan applications")
	}
	return items, total, nil
}

func (s *LoanService) ListAll(ctx context.Context, query url.Values, page, perPage int) ([]models.LoanApplication, int64, error) {
	items, total, err := s.loans.List(ctx, repo.LoanFilters{Query: query, Page: page, PerPage: perPage})
	if err != nil {
		return nil, 0, internalError("could not list loan applications")
	}
	return items, total, nil
}

// Detail returns one application with its fraud flags, for review.
func (s *LoanService) Detail(ctx context.Context, id string) (*models.LoanApplication, []models.FraudFlag, error) {
	loan, err := s.loans.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, utils.NewAppError(http.StatusNotFound, "NOT_FOUND", "Loan application not found.", nil)
		}
		return nil, nil, internalError("could not look up loan application")
	}

	flags, err := s.loans.FlagsForLoan(ctx, id)
	if err != nil {
		return nil, nil, internalError("could not look up fraud flags")
	}
	return loan, flags, nil
}

func (s *LoanService) UpdateStatus(ctx context.Context, id, status, actor string) (*models.LoanApplication, error) {
	if !models.ValidLoanStatus(status) {
		return nil, utils.NewAppError(http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed.",
			map[string]string{"status": "must be one of: pending approved rejected flagged"})
	}

	loan, err := s.loans.UpdateStatus(ctx, id, status, actor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.NewAppError(http.StatusNotFound, "NOT_FOUND", "Loan application not found.", nil)
		}
		return nil, internalError("could not update loan status")
	}
	return loan, nil
}
