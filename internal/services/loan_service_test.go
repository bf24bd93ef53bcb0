package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"loanapp-backend/internal/models"
	"loanapp-backend/internal/services"
)

const opsEmail = "ops@loanapp.test"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLoanService(loans *MockLoanStore, users *MockDomainCounter, mailer *MockMailer) *services.LoanService {
	fraud := services.NewFraudEvaluator(loans, users)
	return services.NewLoanService(loans, fraud, mailer, opsEmail, testLogger())
}

func TestSubmitCleanLoanStaysPending(t *testing.T) {
	t.Parallel()

	loans := &MockLoanStore{}
	users := &MockDomainCounter{}
	mailer := &MockMailer{}

	loans.On("CountForUserSince", mock.Anything, "user-1", mock.Anything).Return(int64(0), nil)
	users.On("CountByEmailDomain", mock.Anything, "example.com").Return(int64(1), nil)
	loans.On("Create", mock.Anything, mock.Anything).Return(nil)

	svc := newLoanService(loans, users, mailer)
	loan, err := svc.Submit(context.Background(), fraudUser(), decimal.NewFromInt(250_000), "rent")

	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusPending, loan.Status)
	assert.Equal(t, "user-1", loan.UserID)
	require.NotNil(t, loan.CreatedBy)
	assert.Equal(t, "user-1", *loan.CreatedBy)
	mailer.AssertNotCalled(t, "Send")
	loans.AssertExpectations(t)
}

func TestSubmitFlaggedLoanAlertsOps(t *testing.T) {
	t.Parallel()

	loans := &MockLoanStore{}
	users := &MockDomainCounter{}
	mailer := &MockMailer{}

	loans.On("CountForUserSince", mock.Anything, "user-1", mock.Anything).Return(int64(0), nil)
	loans.On("CreateFlagged", mock.Anything, mock.Anything, "Amount exceeds NGN 5,000,000").Return(nil)
	mailer.On("Send", mock.Anything, []string{opsEmail}, "Flagged Loan Detected", mock.Anything).Return(nil)

	svc := newLoanService(loans, users, mailer)
	loan, err := svc.Submit(context.Background(), fraudUser(), decimal.NewFromInt(6_000_000), "expansion")

	require.NoError(t, err)
	require.NotNil(t, loan)
	loans.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	loans.AssertExpectations(t)
	mailer.AssertExpectations(t)
}

func TestSubmitFlaggedLoanSurvivesMailOutage(t *testing.T) {
	t.Parallel()

	loans := &MockLoanStore{}
	users := &MockDomainCounter{}
	mailer := &MockMailer{}

	loans.On("CountForUserSince", mock.Anything, "user-1", mock.Anything).Return(int64(5), nil)
	loans.On("CreateFlagged", mock.Anything, mock.Anything, "More than 3 loans in 24 hours").Return(nil)
	mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp down"))

	svc := newLoanService(loans, users, mailer)
	loan, err := svc.Submit(context.Background(), fraudUser(), decimal.NewFromInt(1000), "rent")

	require.NoError(t, err)
	require.NotNil(t, loan)
	loans.AssertExpectations(t)
	mailer.AssertExpectations(t)
}

func TestSubmitPersistenceFailure(t *testing.T) {
	t.Parallel()

	loans := &MockLoanStore{}
	users := &MockDomainCounter{}
	mailer := &MockMailer{}

	loans.On("CountForUserSince", mock.Anything, "user-1", mock.Anything).Return(int64(0), nil)
	users.On("CountByEmailDomain", mock.Anything, "example.com").Return(int64(1), nil)
	loans.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	svc := newLoanService(loans, users, mailer)
	_, err := svc.Submit(context.Background(), fraudUser(), decimal.NewFromInt(1000), "rent")

	require.Error(t, err)
	mailer.AssertNotCalled(t, "Send")
}

func TestDetailIncludesFlags(t *testing.T) {
	t.Parallel()

	loans := &MockLoanStore{}
	users := &MockDomainCounter{}
	mailer := &MockMailer{}

	stored := &models.LoanApplication{ID: "loan-1", Status: models.LoanStatusFlagged}
	flags := []models.FraudFlag{{ID: "flag-1", LoanApplicationID: "loan-1", Reason: "Amount exceeds NGN 5,000,000"}}
	loans.On("GetByID", mock.Anything, "loan-1").Return(stored, nil)
	loans.On("FlagsForLoan", mock.Anything, "loan-1").Return(flags, nil)

	svc := newLoanService(loans, users, mailer)
	loan, got, err := svc.Detail(context.Background(), "loan-1")

	require.NoError(t, err)
	assert.Equal(t, "loan-1", loan.ID)
	require.Len(t, got, 1)
	assert.Equal(t, "Amount exceeds NGN 5,000,000", got[0].Reason)
}

func TestDetailMissingLoan(t *testing.T) {
	t.Parallel()

	loans := &MockLoanStore{}
	loans.On("GetByID", mock.Anything, "nope").Return(nil, pgx.ErrNoRows)

	svc := newLoanService(loans, &MockDomainCounter{}, &MockMailer{})
	_, _, err := svc.Detail(context.Background(), "nope")

	require.Error(t, err)
	loans.AssertNotCalled(t, "FlagsForLoan", mock.Anything, mock.Anything)
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		status     string
		storeErr   error
		wantErr    bool
		wantUpdate bool
	}{
		{name: "approve", status: "approved", wantUpdate: true},
		{name: "reject", status: "rejected", wantUpdate: true},
		{name: "unknown status rejected before the store", status: "escalated", wantErr: true},
		{name: "missing loan", status: "approved", storeErr: pgx.ErrNoRows, wantErr: true, wantUpdate: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			loans := &MockLoanStore{}
			users := &MockDomainCounter{}
			mailer := &MockMailer{}

			if tc.wantUpdate {
				var updated *models.LoanApplication
				if tc.storeErr == nil {
					updated = &models.LoanApplication{ID: "loan-1", Status: tc.status}
				}
				loans.On("UpdateStatus", mock.Anything, "loan-1", tc.status, "admin-1").
					Return(updated, tc.storeErr)
			}

			svc := newLoanService(loans, users, mailer)
			loan, err := svc.UpdateStatus(context.Background(), "loan-1", tc.status, "admin-1")

			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.status, loan.Status)
			loans.AssertExpectations(t)
		})
	}
}
