package repo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"loanapp-backend/internal/filter"
	"loanapp-backend/internal/models"
	"loanapp-backend/internal/utils"
)

const userColumns = `id, email, username, first_name, last_name, password_hash, role,
	is_active, is_superuser, created_at, updated_at, created_by, updated_by`

var userFilterConfig = filter.Config{Fields: map[string]filter.Field{
	"email":      {Column: "email", Kind: filter.Text},
	"username":   {Column: "username", Kind: filter.Text},
	"is_active":  {Column: "is_active", Kind: filter.Bool},
	"created_at": {Column: "created_at", Kind: filter.Date},
}}

type UserRepo struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

type UserFilters struct {
	Query   url.Values
	Page    int
	PerPage int
}

// ProfileUpdate carries the mutable profile fields; nil pointers leave the
// stored value untouched.
type ProfileUpdate struct {
	FirstName    *string
	LastName     *string
	PasswordHash *string
}

func NewUserRepo(pool *pgxpool.Pool, timeout time.Duration) *UserRepo {
	return &UserRepo{pool: pool, timeout: timeout}
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if user.ID == "" {
		user.ID = utils.NewID()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, username, first_name, last_name, password_hash,
			role, is_active, is_superuser, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`,
		user.ID,
		user.Email,
		user.Username,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.IsSuperuser,
		user.CreatedBy,
		user.UpdatedBy,
	)
	if err := row.Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getWhere(ctx, "id = $1", id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getWhere(ctx, "LOWER(email) = LOWER($1)", email)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getWhere(ctx, "username = $1", username)
}

func (r *UserRepo) getWhere(ctx context.Context, predicate string, arg interface{}) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE "+predicate, arg)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (r *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "LOWER(email) = LOWER($1)", email)
}

func (r *UserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username = $1", username)
}

func (r *UserRepo) exists(ctx context.Context, predicate string, arg interface{}) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE "+predicate+")", arg)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

// CountByEmailDomain counts users whose email ends with "@<domain>",
// case-insensitively. The submitting user is included in the count.
func (r *UserRepo) CountByEmailDomain(ctx context.Context, domain string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE LOWER(email) LIKE '%@' || LOWER($1) ESCAPE '\'`,
		escapeLike(domain),
	)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count email domain: %w", err)
	}
	return count, nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate, actor string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET first_name = COALESCE($1, first_name),
			last_name = COALESCE($2, last_name),
			password_hash = COALESCE($3, password_hash),
			updated_by = $4,
			updated_at = NOW()
		WHERE id = $5
		RETURNING `+userColumns,
		upd.FirstName, upd.LastName, upd.PasswordHash, actor, id,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

func (r *UserRepo) SetActive(ctx context.Context, id string, active bool, actor string) (*models.User, error) {
	return r.setFlag(ctx, id, "is_active", active, actor)
}

func (r *UserRepo) SetSuperuser(ctx context.Context, id string, super bool, actor string) (*models.User, error) {
	return r.setFlag(ctx, id, "is_superuser", super, actor)
}

func (r *UserRepo) setFlag(ctx context.Context, id, column string, value bool, actor string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		"UPDATE users SET "+column+" = $1, updated_by = $2, updated_at = NOW() WHERE id = $3 RETURNING "+userColumns,
		value, actor, id,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", column, err)
	}
	return user, nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd, err := r.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *UserRepo) List(ctx context.Context, filters UserFilters) ([]models.User, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	whereSQL, args := filter.Apply(userFilterConfig, filters.Query, 1)
	where := "WHERE 1=1"
	if whereSQL != "" {
		where += "\n" + whereSQL
	}

	limit, offset := utils.PageBounds(filters.Page, filters.PerPage)
	query := fmt.Sprintf(
		"SELECT %s FROM users\n%s\nORDER BY id DESC\nLIMIT %d OFFSET %d",
		userColumns, where, limit, offset,
	)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var results []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		results = append(results, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}

	row := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users\n"+where, args...)
	var total int64
	if err := row.Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return results, total, nil
}

// escapeLike neutralizes LIKE metacharacters so a domain like "my_corp.com"
// matches literally instead of treating "_" as a single-char wildcard.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.IsSuperuser,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.CreatedBy,
		&user.UpdatedBy,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
