package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"loanapp-backend/internal/models"
	"loanapp-backend/internal/utils"
)

// EnsureAdminUser creates an active admin account on first boot so the
// moderation endpoints are reachable. No-op when the email already exists or
// no admin credentials are configured.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	exists, err := adminExists(ctx, pool, timeout, email)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	ctxInsert, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err = pool.Exec(ctxInsert, `
		INSERT INTO users (id, email, username, password_hash, role, is_active, is_superuser)
		VALUES ($1, $2, $3, $4, $5, TRUE, TRUE)
	`, utils.NewID(), email, "admin", string(hash), models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	return nil
}

func adminExists(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration, email string) (bool, error) {
	ctxCheck, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	row := pool.QueryRow(ctxCheck, "SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))", email)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check admin exists: %w", err)
	}
	return exists, nil
}
