package services_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"loanapp-backend/internal/models"
	"loanapp-backend/internal/repo"
	"loanapp-backend/internal/services"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStore) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserStore) UpdateProfile(ctx context.Context, id string, upd repo.ProfileUpdate, actor string) (*models.User, error) {
	args := m.Called(ctx, id, upd, actor)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStore) SetActive(ctx context.Context, id string, active bool, actor string) (*models.User, error) {
	args := m.Called(ctx, id, active, actor)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockCodeStore struct {
	mock.Mock
}

func (m *MockCodeStore) Replace(ctx context.Context, userID, purpose, code string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, purpose, code, expiresAt)
	return args.Error(0)
}

func (m *MockCodeStore) Find(ctx context.Context, userID, code, purpose string) (*models.ActivationCode, error) {
	args := m.Called(ctx, userID, code, purpose)
	if ac := args.Get(0); ac != nil {
		return ac.(*models.ActivationCode), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCodeStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Issue(user *models.User) (*services.TokenPair, error) {
	args := m.Called(user)
	if tp := args.Get(0); tp != nil {
		return tp.(*services.TokenPair), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTokenIssuer) Validate(tokenString, wantType string) (*services.Claims, error) {
	args := m.Called(tokenString, wantType)
	if c := args.Get(0); c != nil {
		return c.(*services.Claims), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, to []string, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

type MockLoanStore struct {
	mock.Mock
}

func (m *MockLoanStore) Create(ctx context.Context, loan *models.LoanApplication) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanStore) CreateFlagged(ctx context.Context, loan *models.LoanApplication, reason string) error {
	args := m.Called(ctx, loan, reason)
	return args.Error(0)
}

func (m *MockLoanStore) CountForUserSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	args := m.Called(ctx, userID, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLoanStore) List(ctx context.Context, filters repo.LoanFilters) ([]models.LoanApplication, int64, error) {
	args := m.Called(ctx, filters)
	if items := args.Get(0); items != nil {
		return items.([]models.LoanApplication), args.Get(1).(int64), args.Error(2)
	}
	return nil, args.Get(1).(int64), args.Error(2)
}

func (m *MockLoanStore) GetByID(ctx context.Context, id string) (*models.LoanApplication, error) {
	args := m.Called(ctx, id)
	if l := args.Get(0); l != nil {
		return l.(*models.LoanApplication), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanStore) FlagsForLoan(ctx context.Context, loanID string) ([]models.FraudFlag, error) {
	args := m.Called(ctx, loanID)
	if flags := args.Get(0); flags != nil {
		return flags.([]models.FraudFlag), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanStore) UpdateStatus(ctx context.Context, id, status, actor string) (*models.LoanApplication, error) {
	args := m.Called(ctx, id, status, actor)
	if l := args.Get(0); l != nil {
		return l.(*models.LoanApplication), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockDomainCounter struct {
	mock.Mock
}

func (m *MockDomainCounter) CountByEmailDomain(ctx context.Context, domain string) (int64, error) {
	args := m.Called(ctx, domain)
	return args.Get(0).(int64), args.Error(1)
}
