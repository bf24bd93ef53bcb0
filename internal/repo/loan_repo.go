package repo

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"loanapp-backend/internal/filter"
	"loanapp-backend/internal/models"
	"loanapp-backend/internal/utils"
)

const loanColumns = `id, user_id, amount_requested, purpose, status,
	created_at, updated_at, created_by, updated_by`

var loanFilterConfig = filter.Config{Fields: map[string]filter.Field{
	"status":     {Column: "status", Kind: filter.Text},
	"created_at": {Column: "created_at", Kind: filter.Date},
}}

type LoanRepo struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

type LoanFilters struct {
	// UserID scopes the listing to one owner; nil lists all (admin).
	UserID  *string
	Query   url.Values
	Page    int
	PerPage int
}

func NewLoanRepo(pool *pgxpool.Pool, timeout time.Duration) *LoanRepo {
	return &LoanRepo{pool: pool, timeout: timeout}
}

func (r *LoanRepo) Create(ctx context.Context, loan *models.LoanApplication) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.insertLoan(ctx, r.pool, loan); err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

// CreateFlagged persists the loan and its fraud flag in one transaction. A
// flagged loan must never exist without its flag row, and vice versa.
func (r *LoanRepo) CreateFlagged(ctx context.Context, loan *models.LoanApplication, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin flagged loan tx: %w", err)
	}
	defer tx.Rollback(ctx)

	loan.Status = models.LoanStatusFlagged
	if err := r.insertLoan(ctx, tx, loan); err != nil {
		return fmt.Errorf("insert flagged loan: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO fraud_flags (id, loan_application_id, reason)
		VALUES ($1, $2, $3)
	`, utils.NewID(), loan.ID, reason)
	if err != nil {
		return fmt.Errorf("insert fraud flag: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit flagged loan tx: %w", err)
	}
	return nil
}

type execQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *LoanRepo) insertLoan(ctx context.Context, q execQuerier, loan *models.LoanApplication) error {
	if loan.ID == "" {
		loan.ID = utils.NewID()
	}
	row := q.QueryRow(ctx, `
		INSERT INTO loan_applications (id, user_id, amount_requested, purpose, status, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`,
		loan.ID,
		loan.UserID,
		loan.AmountRequested,
		loan.Purpose,
		loan.Status,
		loan.CreatedBy,
		loan.UpdatedBy,
	)
	return row.Scan(&loan.CreatedAt, &loan.UpdatedAt)
}

// CountForUserSince counts the user's applications created at or after the
// cutoff, regardless of status. Already-flagged loans count too.
func (r *LoanRepo) CountForUserSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM loan_applications WHERE user_id = $1 AND created_at >= $2",
		userID, since,
	)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count recent loans: %w", err)
	}
	return count, nil
}

func (r *LoanRepo) GetByID(ctx context.Context, id string) (*models.LoanApplication, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, "SELECT "+loanColumns+" FROM loan_applications WHERE id = $1", id)
	loan, err := scanLoan(row)
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}
	return loan, nil
}

func (r *LoanRepo) UpdateStatus(ctx context.Context, id, status, actor string) (*models.LoanApplication, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		UPDATE loan_applications
		SET status = $1, updated_by = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING `+loanColumns,
		status, actor, id,
	)
	loan, err := scanLoan(row)
	if err != nil {
		return nil, fmt.Errorf("update loan status: %w", err)
	}
	return loan, nil
}

func (r *LoanRepo) List(ctx context.Context, filters LoanFilters) ([]models.LoanApplication, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	where := "WHERE 1=1"
	args := []interface{}{}
	index := 1
	if filters.UserID != nil {
		where += fmt.Sprintf("\nAND user_id = $%d", index)
		args = append(args, *filters.UserID)
		index++
	}
	if filterSQL, filterArgs := filter.Apply(loanFilterConfig, filters.Query, index); filterSQL != "" {
		where += "\n" + filterSQL
		args = append(args, filterArgs...)
	}

	limit, offset := utils.PageBounds(filters.Page, filters.PerPage)
	query := fmt.Sprintf(
		"SELECT %s FROM loan_applications\n%s\nORDER BY created_at DESC\nLIMIT %d OFFSET %d",
		loanColumns, where, limit, offset,
	)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	var results []models.LoanApplication
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan loan: %w", err)
		}
		results = append(results, *loan)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate loans: %w", err)
	}

	row := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM loan_applications\n"+where, args...)
	var total int64
	if err := row.Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count loans: %w", err)
	}
	return results, total, nil
}

// FlagsForLoan lists a loan's fraud flags, oldest first.
func (r *LoanRepo) FlagsForLoan(ctx context.Context, loanID string) ([]models.FraudFlag, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT id, loan_application_id, reason, created_at
		FROM fraud_flags
		WHERE loan_application_id = $1
		ORDER BY created_at
	`, loanID)
	if err != nil {
		return nil, fmt.Errorf("list fraud flags: %w", err)
	}
	defer rows.Close()

	var flags []models.FraudFlag
	for rows.Next() {
		var flag models.FraudFlag
		if err := rows.Scan(&flag.ID, &flag.LoanApplicationID, &flag.Reason, &flag.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan fraud flag: %w", err)
		}
		flags = append(flags, flag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fraud flags: %w", err)
	}
	return flags, nil
}

func scanLoan(row pgx.Row) (*models.LoanApplication, error) {
	var loan models.LoanApplication
	if err := row.Scan(
		&loan.ID,
		&loan.UserID,
		&loan.AmountRequested,
		&loan.Purpose,
		&loan.Status,
		&loan.CreatedAt,
		&loan.UpdatedAt,
		&loan.CreatedBy,
		&loan.UpdatedBy,
	); err != nil {
		return nil, err
	}
	return &loan, nil
}
