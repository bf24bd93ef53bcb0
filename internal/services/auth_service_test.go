package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"loanapp-backend/internal/config"
	"loanapp-backend/internal/models"
	"loanapp-backend/internal/services"
	"loanapp-backend/internal/utils"
)

const testPassword = "open-sesame-42"

type authDeps struct {
	users  *MockUserStore
	codes  *MockCodeStore
	tokens *MockTokenIssuer
	mailer *MockMailer
	svc    *services.AuthService
}

func setupAuth(t *testing.T) *authDeps {
	t.Helper()

	d := &authDeps{
		users:  &MockUserStore{},
		codes:  &MockCodeStore{},
		tokens: &MockTokenIssuer{},
		mailer: &MockMailer{},
	}
	cfg := &config.Config{
		PasswordMinLen:    8,
		ActivationCodeTTL: 5 * time.Minute,
	}
	d.svc = services.NewAuthService(d.users, d.codes, d.tokens, d.mailer, cfg, testLogger())
	return d
}

func activeUser(t *testing.T) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        "jane@example.com",
		Username:     "user_ab12cd34",
		FirstName:    "Jane",
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		IsActive:     true,
	}
}

func tokenPair() *services.TokenPair {
	return &services.TokenPair{AccessToken: "access", RefreshToken: "refresh"}
}

func appErrorMessage(t *testing.T, err error) string {
	t.Helper()

	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	return appErr.Message
}

func TestRegisterIssuesActivationCode(t *testing.T) {
	t.Parallel()

	d := setupAuth(t)
	d.users.On("EmailExists", mock.Anything, "new@example.com").Return(false, nil)
	d.users.On("UsernameExists", mock.Anything, mock.Anything).Return(false, nil)
	d.users.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.codes.On("Replace", mock.Anything, mock.Anything, models.PurposeActivation,
		mock.MatchedBy(func(code string) bool { return len(code) == 6 }), mock.Anything).Return(nil)
	d.mailer.On("Send", mock.Anything, []string{"new@example.com"}, "Activate Your LoanApp Account", mock.Anything).
		Return(nil)

	user, err := d.svc.Register(context.Background(), "Jane", "Doe", "new@example.com", testPassword)

	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.Contains(t, user.Username, "user_")
	assert.NotEqual(t, testPassword, user.PasswordHash)
	d.codes.AssertExpectations(t)
	d.mailer.AssertExpectations(t)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	t.Parallel()

	d := setupAuth(t)
	d.users.On("EmailExists", mock.Anything, "taken@example.com").Return(true, nil)

	_, err := d.svc.Register(context.Background(), "Jane", "Doe", "taken@example.com", testPassword)

	require.Error(t, err)
	d.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	t.Parallel()

	d := setupAuth(t)

	_, err := d.svc.Register(context.Background(), "Jane", "Doe", "new@example.com", "short")

	require.Error(t, err)
	assert.Equal(t, "Validation failed.", appErrorMessage(t, err))
	d.users.AssertNotCalled(t, "EmailExists", mock.Anything, mock.Anything)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		identifier  string
		password    string
		setup       func(d *authDeps, user *models.User)
		wantMessage string
	}{
		{
			name:       "by email",
			identifier: "jane@example.com",
			password:   testPassword,
			setup: func(d *authDeps, user *models.User) {
				d.users.On("GetByEmail", mock.Anything, "jane@example.com").Return(user, nil)
				d.tokens.On("Issue", user).Return(tokenPair(), nil)
			},
		},
		{
			name:       "by username when email lookup misses",
			identifier: "user_ab12cd34",
			password:   testPassword,
			setup: func(d *authDeps, user *models.User) {
				d.users.On("GetByEmail", mock.Anything, "user_ab12cd34").Return(nil, pgx.ErrNoRows)
				d.users.On("GetByUsername", mock.Anything, "user_ab12cd34").Return(user, nil)
				d.tokens.On("Issue", user).Return(tokenPair(), nil)
			},
		},
		{
			name:       "unknown identifier",
			identifier: "ghost@example.com",
			password:   testPassword,
			setup: func(d *authDeps, user *models.User) {
				d.users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, pgx.ErrNoRows)
				d.users.On("GetByUsername", mock.Anything, "ghost@example.com").Return(nil, pgx.ErrNoRows)
			},
			wantMessage: "Invalid email/username or password.",
		},
		{
			name:       "wrong password gets the same generic message",
			identifier: "jane@example.com",
			password:   "not-the-password",
			setup: func(d *authDeps, user *models.User) {
				d.users.On("GetByEmail", mock.Anything, "jane@example.com").Return(user, nil)
			},
			wantMessage: "Invalid email/username or password.",
		},
		{
			name:       "inactive account",
			identifier: "jane@example.com",
			password:   testPassword,
			setup: func(d *authDeps, user *models.User) {
				user.IsActive = false
				d.users.On("GetByEmail", mock.Anything, "jane@example.com").Return(user, nil)
			},
			wantMessage: "Account not activated.",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d := setupAuth(t)
			user := activeUser(t)
			tc.setup(d, user)

			res, err := d.svc.Login(context.Background(), tc.identifier, tc.password)

			if tc.wantMessage != "" {
				require.Error(t, err)
				assert.Equal(t, tc.wantMessage, appErrorMessage(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user.ID, res.User.ID)
			assert.Equal(t, "access", res.Tokens.AccessToken)
		})
	}
}

func TestActivateConsumesCode(t *testing.T) {
	t.Parallel()

	d := setupAuth(t)
	user := activeUser(t)
	user.IsActive = false
	code := &models.ActivationCode{
		ID:        "code-1",
		UserID:    user.ID,
		Code:      "123456",
		Purpose:   models.PurposeActivation,
		ExpiresAt: time.Now().Add(time.Minute),
	}

	activated := activeUser(t)
	d.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	d.codes.On("Find", mock.Anything, user.ID, "123456", models.PurposeActivation).Return(code, nil)
	d.users.On("SetActive", mock.Anything, user.ID, true, user.ID).Return(activated, nil)
	d.codes.On("Delete", mock.Anything, "code-1").Return(nil)
	d.tokens.On("Issue", activated).Return(tokenPair(), nil)

	res, err := d.svc.Activate(context.Background(), user.Email, "123456")

	require.NoError(t, err)
	assert.True(t, res.User.IsActive)
	d.codes.AssertExpectations(t)
}

func TestActivateExpiredCodeIsDeleted(t *testing.T) {
	t.Parallel()

	d := setupAuth(t)
	user := activeUser(t)
	code := &models.ActivationCode{
		ID:        "code-1",
		UserID:    user.ID,
		Code:      "123456",
		Purpose:   models.PurposeActivation,
		ExpiresAt: time.Now().Add(-time.Minute),
	}

	d.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	d.codes.On("Find", mock.Anything, user.ID, "123456", models.PurposeActivation).Return(code, nil)
	d.codes.On("Delete", mock.Anything, "code-1").Return(nil)

	_, err := d.svc.Activate(context.Background(), user.Email, "123456")

	require.Error(t, err)
	assert.Equal(t, "Activation code expired.", appErrorMessage(t, err))
	d.codes.AssertExpectations(t)
	d.users.AssertNotCalled(t, "SetActive", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestActivateWrongCodeGetsGenericMessage(t *testing.T) {
	t.Parallel()

	d := setupAuth(t)
	user := activeUser(t)

	d.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	d.codes.On("Find", mock.Anything, user.ID, "000000", models.PurposeActivation).Return(nil, pgx.ErrNoRows)

	_, err := d.svc.Activate(context.Background(), user.Email, "000000")

	require.Error(t, err)
	assert.Equal(t, "Invalid or expired activation code.", appErrorMessage(t, err))
}

func TestResetPasswordUpdatesHashAndConsumesCode(t *testing.T) {
	t.Parallel()

	d := setupAuth(t)
	user := activeUser(t)
	code := &models.ActivationCode{
		ID:        "code-2",
		UserID:    user.ID,
		Code:      "654321",
		Purpose:   models.PurposeReset,
		ExpiresAt: time.Now().Add(time.Minute),
	}

	d.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	d.codes.On("Find", mock.Anything, user.ID, "654321", models.PurposeReset).Return(code, nil)
	d.users.On("UpdateProfile", mock.Anything, user.ID, mock.Anything, user.ID).Return(user, nil)
	d.codes.On("Delete", mock.Anything, "code-2").Return(nil)

	err := d.svc.ResetPassword(context.Background(), user.Email, "654321", "brand-new-password")

	require.NoError(t, err)
	d.codes.AssertExpectations(t)
}

func TestForgotPasswordSendsResetCode(t *testing.T) {
	t.Parallel()

	d := setupAuth(t)
	user := activeUser(t)

	d.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	d.codes.On("Replace", mock.Anything, user.ID, models.PurposeReset, mock.Anything, mock.Anything).Return(nil)
	d.mailer.On("Send", mock.Anything, []string{user.Email}, "Reset Your LoanApp Password", mock.Anything).
		Return(nil)

	err := d.svc.ForgotPassword(context.Background(), user.Email)

	require.NoError(t, err)
	d.mailer.AssertExpectations(t)
}

func TestForgotPasswordMailFailurePropagates(t *testing.T) {
	t.Parallel()

	d := setupAuth(t)
	user := activeUser(t)

	d.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	d.codes.On("Replace", mock.Anything, user.ID, models.PurposeReset, mock.Anything, mock.Anything).Return(nil)
	d.mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp down"))

	err := d.svc.ForgotPassword(context.Background(), user.Email)

	require.Error(t, err)
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		setup   func(d *authDeps, user *models.User)
		wantErr bool
	}{
		{
			name: "valid refresh token",
			setup: func(d *authDeps, user *models.User) {
				claims := &services.Claims{UserID: user.ID, TokenType: services.TokenTypeRefresh}
				d.tokens.On("Validate", "token", services.TokenTypeRefresh).Return(claims, nil)
				d.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
				d.tokens.On("Issue", user).Return(tokenPair(), nil)
			},
		},
		{
			name: "access token rejected for refresh",
			setup: func(d *authDeps, user *models.User) {
				d.tokens.On("Validate", "token", services.TokenTypeRefresh).
					Return(nil, errors.New("wrong token type"))
			},
			wantErr: true,
		},
		{
			name: "blocked user cannot refresh",
			setup: func(d *authDeps, user *models.User) {
				user.IsActive = false
				claims := &services.Claims{UserID: user.ID, TokenType: services.TokenTypeRefresh}
				d.tokens.On("Validate", "token", services.TokenTypeRefresh).Return(claims, nil)
				d.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d := setupAuth(t)
			user := activeUser(t)
			tc.setup(d, user)

			res, err := d.svc.Refresh(context.Background(), "token")

			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user.ID, res.User.ID)
		})
	}
}
