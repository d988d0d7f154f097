package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gestorlead/studio/internal/model"
)

const userColumns = `id, email, google_id, password_hash, full_name, avatar_url,
	credit_balance, subscription_tier_id, is_active, is_admin, preferences,
	last_login_at, email_verified_at, created_at, updated_at`

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Email, &u.GoogleID, &u.PasswordHash, &u.FullName, &u.AvatarURL,
		&u.CreditBalance, &u.SubscriptionTierID, &u.IsActive, &u.IsAdmin, &u.Preferences,
		&u.LastLoginAt, &u.EmailVerifiedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

// CreateUser inserts a new user and returns it with generated fields set.
func (db *DB) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	err := db.pool.QueryRow(ctx,
		`INSERT INTO users (email, google_id, password_hash, full_name, avatar_url,
		     credit_balance, subscription_tier_id, is_active, is_admin, preferences,
		     created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		u.Email, u.GoogleID, u.PasswordHash, u.FullName, u.AvatarURL,
		u.CreditBalance, u.SubscriptionTierID, u.IsActive, u.IsAdmin, u.Preferences,
		u.CreatedAt, u.UpdatedAt,
	).Scan(&u.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.User{}, fmt.Errorf("storage: user %s: %w", u.Email, ErrAlreadyExists)
		}
		return model.User{}, fmt.Errorf("storage: create user: %w", err)
	}
	return u, nil
}

// GetUserByID retrieves a user by primary key.
func (db *DB) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, fmt.Errorf("storage: user %d: %w", id, ErrNotFound)
		}
		return model.User{}, fmt.Errorf("storage: get user: %w", err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email address.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("storage: get user by email: %w", err)
	}
	return u, nil
}

// GetUserByGoogleID retrieves a user by its Google account identifier.
func (db *DB) GetUserByGoogleID(ctx context.Context, googleID string) (model.User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE google_id = $1`, googleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("storage: get user by google id: %w", err)
	}
	return u, nil
}

// ListUsers returns users with pagination, newest first.
func (db *DB) ListUsers(ctx context.Context, limit, offset int) ([]model.User, int, error) {
	limit, offset = clampPage(limit, offset)

	var total int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count users: %w", err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// UpdateUser persists the mutable profile fields of a user.
func (db *DB) UpdateUser(ctx context.Context, u model.User) (model.User, error) {
	u.UpdatedAt = time.Now().UTC()
	tag, err := db.pool.Exec(ctx,
		`UPDATE users
		 SET full_name = $2, avatar_url = $3, subscription_tier_id = $4,
		     is_active = $5, is_admin = $6, preferences = $7, google_id = $8,
		     last_login_at = $9, email_verified_at = $10, updated_at = $11
		 WHERE id = $1`,
		u.ID, u.FullName, u.AvatarURL, u.SubscriptionTierID,
		u.IsActive, u.IsAdmin, u.Preferences, u.GoogleID,
		u.LastLoginAt, u.EmailVerifiedAt, u.UpdatedAt,
	)
	if err != nil {
		return model.User{}, fmt.Errorf("storage: update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.User{}, fmt.Errorf("storage: user %d: %w", u.ID, ErrNotFound)
	}
	return u, nil
}

// DeleteUser removes a user. Tasks, agents, campaigns, provider keys and
// generated content cascade at the database level.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("storage: delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: user %d: %w", id, ErrNotFound)
	}
	return nil
}

// AdjustCredits applies a signed credit delta to a user's balance inside
// a transaction. Returns ErrInsufficientCredits when the delta would take
// the balance below zero, and the updated user on success.
func (db *DB) AdjustCredits(ctx context.Context, userID int64, delta int) (model.User, error) {
	var u model.User
	err := WithRetry(ctx, txMaxRetries, txRetryBackoff, func() error {
		var err error
		u, err = db.adjustCreditsOnce(ctx, userID, delta)
		return err
	})
	return u, err
}

func (db *DB) adjustCreditsOnce(ctx context.Context, userID int64, delta int) (model.User, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.User{}, fmt.Errorf("storage: begin adjust credits tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	u, err := debitUserTx(ctx, tx, userID, -delta)
	if err != nil {
		return model.User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.User{}, fmt.Errorf("storage: commit adjust credits tx: %w", err)
	}
	return u, nil
}

// debitUserTx subtracts amount from a user's balance with a row lock.
// A negative amount credits the account. Returns the updated user.
func debitUserTx(ctx context.Context, tx pgx.Tx, userID int64, amount int) (model.User, error) {
	var balance int
	err := tx.QueryRow(ctx,
		`SELECT credit_balance FROM users WHERE id = $1 FOR UPDATE`, userID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, fmt.Errorf("storage: user %d: %w", userID, ErrNotFound)
		}
		return model.User{}, fmt.Errorf("storage: lock user for debit: %w", err)
	}
	if balance-amount < 0 {
		return model.User{}, fmt.Errorf("storage: user %d balance %d, required %d: %w",
			userID, balance, amount, ErrInsufficientCredits)
	}

	u, err := scanUser(tx.QueryRow(ctx,
		`UPDATE users SET credit_balance = credit_balance - $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		userID, amount,
	))
	if err != nil {
		return model.User{}, fmt.Errorf("storage: debit user: %w", err)
	}
	return u, nil
}

// VerifyUserEmail stamps email_verified_at if not already set.
func (db *DB) VerifyUserEmail(ctx context.Context, id int64) (model.User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`UPDATE users
		 SET email_verified_at = COALESCE(email_verified_at, now()), updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, fmt.Errorf("storage: user %d: %w", id, ErrNotFound)
		}
		return model.User{}, fmt.Errorf("storage: verify user email: %w", err)
	}
	return u, nil
}

// TouchUserLastLogin records a successful login. Fire-and-forget from
// the auth flow; callers should not block on the result.
func (db *DB) TouchUserLastLogin(ctx context.Context, id int64) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE users SET last_login_at = now(), updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("storage: touch user last_login: %w", err)
	}
	return nil
}

// clampPage normalizes pagination inputs to safe bounds.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
