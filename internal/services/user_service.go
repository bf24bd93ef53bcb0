package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"loanapp-backend/internal/config"
	"loanapp-backend/internal/models"
	"loanapp-backend/internal/repo"
	"loanapp-backend/internal/utils"
)

// DirectoryStore covers profile self-service plus the admin moderation
// operations on accounts.
type DirectoryStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, upd repo.ProfileUpdate, actor string) (*models.User, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filters repo.UserFilters) ([]models.User, int64, error)
	SetActive(ctx context.Context, id string, active bool, actor string) (*models.User, error)
	SetSuperuser(ctx context.Context, id string, super bool, actor string) (*models.User, error)
}

type UserService struct {
	users  DirectoryStore
	mailer Mailer
	cfg    *config.Config
	log    *slog.Logger
}

func NewUserService(users DirectoryStore, mailer Mailer, cfg *config.Config, log *slog.Logger) *UserService {
	return &UserService{users: users, mailer: mailer, cfg: cfg, log: log}
}

func (s *UserService) Profile(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, userNotFound()
		}
		return nil, internalError("could not look up user")
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, firstName, lastName, password *string) (*models.User, error) {
	upd := repo.ProfileUpdate{FirstName: firstName, LastName: lastName}

	if password != nil {
		if len(*password) < s.cfg.PasswordMinLen {
			return nil, utils.NewAppError(http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed.",
				map[string]string{"password": "too short"})
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
		if err != nil {
			return nil, internalError("could not secure password")
		}
		hashStr := string(hash)
		upd.PasswordHash = &hashStr
	}

	user, err := s.users.UpdateProfile(ctx, id, upd, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, userNotFound()
		}
		return nil, internalError("could not update profile")
	}
	return user, nil
}

// DeleteAccount removes the account and returns the deleted user's identity
// for the response body. Owned loans and codes cascade in the store.
func (s *UserService) DeleteAccount(ctx context.Context, id string) (*models.User, error) {
	user, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}

	deleted, err := s.users.Delete(ctx, id)
	if err != nil {
		return nil, internalError("could not delete user")
	}
	if !deleted {
		return nil, userNotFound()
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, filters repo.UserFilters) ([]models.User, int64, error) {
	users, total, err := s.users.List(ctx, filters)
	if err != nil {
		return nil, 0, internalError("could not list users")
	}
	return users, total, nil
}

func (s *UserService) MakeSuperuser(ctx context.Context, id, actor string) (*models.User, error) {
	user, err := s.users.SetSuperuser(ctx, id, true, actor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, userNotFound()
		}
		return nil, internalError("could not promote user")
	}
	return user, nil
}

// SetBlocked toggles is_active and notifies the account holder.
func (s *UserService) SetBlocked(ctx context.Context, id string, blocked bool, actor string) (*models.User, error) {
	user, err := s.users.SetActive(ctx, id, !blocked, actor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, userNotFound()
		}
		return nil, internalError("could not update user")
	}

	subject, body, err := renderBlockedEmail(user, blocked)
	if err != nil {
		return nil, internalError("could not render email")
	}
	if err := s.mailer.Send(ctx, []string{user.Email}, subject, body); err != nil {
		s.log.Error("account status email failed", "user_id", user.ID, "error", err)
		return nil, internalError("could not send email")
	}
	return user, nil
}

func userNotFound() *utils.AppError {
	return utils.NewAppError(http.StatusNotFound, "NOT_FOUND", "User not found.", nil)
}
