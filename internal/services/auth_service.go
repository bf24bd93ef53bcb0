package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"loanapp-backend/internal/config"
	"loanapp-backend/internal/models"
	"loanapp-backend/internal/repo"
	"loanapp-backend/internal/utils"
)

// UserStore is the user-directory surface the auth flows need.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	UpdateProfile(ctx context.Context, id string, upd repo.ProfileUpdate, actor string) (*models.User, error)
	SetActive(ctx context.Context, id string, active bool, actor string) (*models.User, error)
}

type CodeStore interface {
	Replace(ctx context.Context, userID, purpose, code string, expiresAt time.Time) error
	Find(ctx context.Context, userID, code, purpose string) (*models.ActivationCode, error)
	Delete(ctx context.Context, id string) error
}

type AuthService struct {
	users  UserStore
	codes  CodeStore
	tokens TokenIssuer
	mailer Mailer
	cfg    *config.Config
	log    *slog.Logger
}

type LoginResult struct {
	User   *models.User
	Tokens *TokenPair
}

func NewAuthService(users UserStore, codes CodeStore, tokens TokenIssuer, mailer Mailer, cfg *config.Config, log *slog.Logger) *AuthService {
	return &AuthService{users: users, codes: codes, tokens: tokens, mailer: mailer, cfg: cfg, log: log}
}

// Register creates an inactive account under a generated username and emails
// the activation code.
func (s *AuthService) Register(ctx context.Context, firstName, lastName, email, password string) (*models.User, error) {
	if len(password) < s.cfg.PasswordMinLen {
		return nil, utils.NewAppError(http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed.",
			map[string]string{"password": fmt.Sprintf("must be at least %d characters", s.cfg.PasswordMinLen)})
	}

	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, internalError("could not check existing users")
	}
	if exists {
		return nil, utils.NewAppError(http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed.",
			map[string]string{"email": "This email is already in use."})
	}

	username, err := s.generateUsername(ctx)
	if err != nil {
		return nil, internalError("could not generate username")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internalError("could not secure password")
	}

	user := &models.User{
		Email:        email,
		Username:     username,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		IsActive:     false,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, internalError("could not create user")
	}

	if err := s.issueAndSendCode(ctx, user, models.PurposeActivation); err != nil {
		return nil, err
	}
	return user, nil
}

// Login accepts either the email address or the username.
func (s *AuthService) Login(ctx context.Context, emailOrUsername, password string) (*LoginResult, error) {
	invalid := utils.NewAppError(http.StatusBadRequest, "INVALID_CREDENTIALS", "Invalid email/username or password.", nil)

	user, err := s.users.GetByEmail(ctx, emailOrUsername)
	if err != nil {
		user, err = s.users.GetByUsername(ctx, emailOrUsername)
		if err != nil {
			return nil, invalid
		}
	}

	if !user.IsActive {
		return nil, utils.NewAppError(http.StatusBadRequest, "INACTIVE_ACCOUNT", "Account not activated.", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, invalid
	}

	tokens, err := s.tokens.Issue(user)
	if err != nil {
		return nil, internalError("could not generate tokens")
	}
	return &LoginResult{User: user, Tokens: tokens}, nil
}

// Activate consumes the activation code and returns a token pair so the
// client is logged in right away.
func (s *AuthService) Activate(ctx context.Context, email, code string) (*LoginResult, error) {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	ac, err := s.findValidCode(ctx, user, code, models.PurposeActivation)
	if err != nil {
		return nil, err
	}

	activated, err := s.users.SetActive(ctx, user.ID, true, user.ID)
	if err != nil {
		return nil, internalError("could not activate user")
	}
	if err := s.codes.Delete(ctx, ac.ID); err != nil {
		return nil, internalError("could not consume activation code")
	}

	tokens, err := s.tokens.Issue(activated)
	if err != nil {
		return nil, internalError("could not generate tokens")
	}
	return &LoginResult{User: activated, Tokens: tokens}, nil
}

// ResendActivation re-issues unconditionally, bypassing code validation.
func (s *AuthService) ResendActivation(ctx context.Context, email string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.issueAndSendCode(ctx, user, models.PurposeActivation)
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.issueAndSendCode(ctx, user, models.PurposeReset)
}

func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if len(newPassword) < s.cfg.PasswordMinLen {
		return utils.NewAppError(http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed.",
			map[string]string{"new_password": fmt.Sprintf("must be at least %d characters", s.cfg.PasswordMinLen)})
	}

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}

	ac, err := s.findValidCode(ctx, user, code, models.PurposeReset)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return internalError("could not secure password")
	}
	hashStr := string(hash)
	if _, err := s.users.UpdateProfile(ctx, user.ID, repo.ProfileUpdate{PasswordHash: &hashStr}, user.ID); err != nil {
		return internalError("could not update password")
	}
	if err := s.codes.Delete(ctx, ac.ID); err != nil {
		return internalError("could not consume reset code")
	}
	return nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	invalid := utils.NewAppError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired refresh token.", nil)

	claims, err := s.tokens.Validate(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, invalid
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil || !user.IsActive {
		return nil, invalid
	}

	tokens, err := s.tokens.Issue(user)
	if err != nil {
		return nil, internalError("could not generate tokens")
	}
	return &LoginResult{User: user, Tokens: tokens}, nil
}

// issueAndSendCode replaces any live code for the (user, purpose) pair and
// emails the new one. Delivery failures propagate to the caller.
func (s *AuthService) issueAndSendCode(ctx context.Context, user *models.User, purpose string) error {
	code, err := generateCode(6)
	if err != nil {
		return internalError("could not generate code")
	}

	expiresAt := time.Now().Add(s.cfg.ActivationCodeTTL)
	if err := s.codes.Replace(ctx, user.ID, purpose, code, expiresAt); err != nil {
		return internalError("could not store code")
	}

	subject, body, err := renderCodeEmail(user, purpose, code, s.cfg.ActivationCodeTTL)
	if err != nil {
		return internalError("could not render email")
	}
	if err := s.mailer.Send(ctx, []string{user.Email}, subject, body); err != nil {
		s.log.Error("code email failed", "user_id", user.ID, "purpose", purpose, "error", err)
		return internalError("could not send email")
	}
	return nil
}

// findValidCode reports the same generic failure for a missing and a
// mismatched code, so clients cannot probe which case occurred. Expired codes
// are deleted on detection.
func (s *AuthService) findValidCode(ctx context.Context, user *models.User, code, purpose string) (*models.ActivationCode, error) {
	label := "activation"
	if purpose == models.PurposeReset {
		label = "reset"
	}

	ac, err := s.codes.Find(ctx, user.ID, code, purpose)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.NewAppError(http.StatusBadRequest, "INVALID_CODE",
				fmt.Sprintf("Invalid or expired %s code.", label), nil)
		}
		return nil, internalError("could not look up code")
	}

	if ac.Expired(time.Now()) {
		if err := s.codes.Delete(ctx, ac.ID); err != nil {
			s.log.Error("expired code cleanup failed", "code_id", ac.ID, "error", err)
		}
		return nil, utils.NewAppError(http.StatusBadRequest, "EXPIRED_CODE",
			fmt.Sprintf("%s code expired.", titleCase(label)), nil)
	}
	return ac, nil
}

func (s *AuthService) userByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.NewAppError(http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed.",
				map[string]string{"email": "No user found with this email."})
		}
		return nil, internalError("could not look up user")
	}
	return user, nil
}

func (s *AuthService) generateUsername(ctx context.Context) (string, error) {
	for i := 0; i < 10; i++ {
		candidate := "user_" + uuid.New().String()[:8]
		taken, err := s.users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("username space exhausted")
}

func generateCode(length int) (string, error) {
	max := big.NewInt(10)
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		result[i] = byte('0' + n.Int64())
	}
	return string(result), nil
}

func internalError(message string) *utils.AppError {
	return utils.NewAppError(http.StatusInternalServerError, "INTERNAL_ERROR", message, nil)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
