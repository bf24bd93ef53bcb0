package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"loanapp-backend/internal/models"
	"loanapp-backend/internal/utils"
)

type CodeRepo struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewCodeRepo(pool *pgxpool.Pool, timeout time.Duration) *CodeRepo {
	return &CodeRepo{pool: pool, timeout: timeout}
}

// Replace deletes any live code for the (user, purpose) pair and inserts the
// new one in a single transaction, keeping at most one code live at a time.
func (r *CodeRepo) Replace(ctx context.Context, userID, purpose, code string, expiresAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin code tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"DELETE FROM activation_codes WHERE user_id = $1 AND purpose = $2",
		userID, purpose,
	); err != nil {
		return fmt.Errorf("delete prior codes: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO activation_codes (id, user_id, code, purpose, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, utils.NewID(), userID, code, purpose, expiresAt); err != nil {
		return fmt.Errorf("insert code: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit code tx: %w", err)
	}
	return nil
}

// Find returns the code row matching the exact code string. Callers cannot
// tell a missing code from a mismatched one; both surface as pgx.ErrNoRows.
func (r *CodeRepo) Find(ctx context.Context, userID, code, purpose string) (*models.ActivationCode, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, code, purpose, expires_at, created_at
		FROM activation_codes
		WHERE user_id = $1 AND code = $2 AND purpose = $3
	`, userID, code, purpose)

	var ac models.ActivationCode
	if err := row.Scan(&ac.ID, &ac.UserID, &ac.Code, &ac.Purpose, &ac.ExpiresAt, &ac.CreatedAt); err != nil {
		return nil, fmt.Errorf("find code: %w", err)
	}
	return &ac, nil
}

func (r *CodeRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.pool.Exec(ctx, "DELETE FROM activation_codes WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete code: %w", err)
	}
	return nil
}
