package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gestorlead/studio/internal/model"
)

const providerKeyColumns = `id, user_id, provider_id, provider, key_name,
	encrypted_key, key_hash, permissions, usage_limits, usage_stats,
	is_active, is_default, expires_at, last_used_at, last_validated_at,
	validation_status, error_count, created_at, updated_at`

func scanProviderKey(row pgx.Row) (model.ProviderKey, error) {
	var k model.ProviderKey
	err := row.Scan(
		&k.ID, &k.UserID, &k.ProviderID, &k.Provider, &k.KeyName,
		&k.EncryptedKey, &k.KeyHash, &k.Permissions, &k.UsageLimits, &k.UsageStats,
		&k.IsActive, &k.IsDefault, &k.ExpiresAt, &k.LastUsedAt, &k.LastValidatedAt,
		&k.ValidationStatus, &k.ErrorCount, &k.CreatedAt, &k.UpdatedAt,
	)
	return k, err
}

// CreateProviderKey inserts an encrypted provider credential. When the
// key is flagged default, any previous default for the same provider is
// cleared in the same transaction.
func (db *DB) CreateProviderKey(ctx context.Context, k model.ProviderKey) (model.ProviderKey, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.ProviderKey{}, fmt.Errorf("storage: begin create provider key tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	now := time.Now().UTC()
	k.CreatedAt = now
	k.UpdatedAt = now

	if k.IsDefault {
		if err := clearDefaultKeyTx(ctx, tx, k.UserID, k.ProviderID, k.Provider); err != nil {
			return model.ProviderKey{}, err
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO provider_keys (id, user_id, provider_id, provider, key_name,
		     encrypted_key, key_hash, permissions, usage_limits, usage_stats,
		     is_active, is_default, expires_at, error_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		k.ID, k.UserID, k.ProviderID, k.Provider, k.KeyName,
		k.EncryptedKey, k.KeyHash, k.Permissions, k.UsageLimits, k.UsageStats,
		k.IsActive, k.IsDefault, k.ExpiresAt, k.ErrorCount, k.CreatedAt, k.UpdatedAt,
	)
	if err != nil {
		return model.ProviderKey{}, fmt.Errorf("storage: create provider key: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.ProviderKey{}, fmt.Errorf("storage: commit create provider key tx: %w", err)
	}
	return k, nil
}

func clearDefaultKeyTx(ctx context.Context, tx pgx.Tx, userID int64, providerID *int, provider *string) error {
	_, err := tx.Exec(ctx,
		`UPDATE provider_keys SET is_default = FALSE, updated_at = now()
		 WHERE user_id = $1 AND is_default
		   AND (provider_id IS NOT DISTINCT FROM $2)
		   AND (provider IS NOT DISTINCT FROM $3)`,
		userID, providerID, provider,
	)
	if err != nil {
		return fmt.Errorf("storage: clear default provider key: %w", err)
	}
	return nil
}

// GetProviderKey retrieves a key by ID scoped to its owner.
func (db *DB) GetProviderKey(ctx context.Context, userID int64, id uuid.UUID) (model.ProviderKey, error) {
	k, err := scanProviderKey(db.pool.QueryRow(ctx,
		`SELECT `+providerKeyColumns+` FROM provider_keys WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ProviderKey{}, fmt.Errorf("storage: provider key %s: %w", id, ErrNotFound)
		}
		return model.ProviderKey{}, fmt.Errorf("storage: get provider key: %w", err)
	}
	return k, nil
}

// ListProviderKeys returns a user's keys with pagination, newest first.
func (db *DB) ListProviderKeys(ctx context.Context, userID int64, limit, offset int) ([]model.ProviderKey, int, error) {
	limit, offset = clampPage(limit, offset)

	var total int
	if err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM provider_keys WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count provider keys: %w", err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+providerKeyColumns+` FROM provider_keys
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list provider keys: %w", err)
	}
	defer rows.Close()

	var keys []model.ProviderKey
	for rows.Next() {
		k, err := scanProviderKey(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan provider key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, total, rows.Err()
}

// UpdateProviderKey persists a key's mutable fields, including a rotated
// credential when the encrypted key and hash changed.
func (db *DB) UpdateProviderKey(ctx context.Context, k model.ProviderKey) (model.ProviderKey, error) {
	k.UpdatedAt = time.Now().UTC()
	tag, err := db.pool.Exec(ctx,
		`UPDATE provider_keys
		 SET key_name = $3, encrypted_key = $4, key_hash = $5, permissions = $6,
		     usage_limits = $7, usage_stats = $8, is_active = $9, expires_at = $10,
		     last_used_at = $11, last_validated_at = $12, validation_status = $13,
		     error_count = $14, updated_at = $15
		 WHERE id = $1 AND user_id = $2`,
		k.ID, k.UserID, k.KeyName, k.EncryptedKey, k.KeyHash, k.Permissions,
		k.UsageLimits, k.UsageStats, k.IsActive, k.ExpiresAt,
		k.LastUsedAt, k.LastValidatedAt, k.ValidationStatus,
		k.ErrorCount, k.UpdatedAt,
	)
	if err != nil {
		return model.ProviderKey{}, fmt.Errorf("storage: update provider key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ProviderKey{}, fmt.Errorf("storage: provider key %s: %w", k.ID, ErrNotFound)
	}
	return k, nil
}

// SetDefaultProviderKey marks a key as the default for its provider,
// clearing the flag on the user's other keys for that provider in the
// same transaction.
func (db *DB) SetDefaultProviderKey(ctx context.Context, userID int64, id uuid.UUID) (model.ProviderKey, error) {
	var k model.ProviderKey
	err := WithRetry(ctx, txMaxRetries, txRetryBackoff, func() error {
		var err error
		k, err = db.setDefaultProviderKeyOnce(ctx, userID, id)
		return err
	})
	return k, err
}

func (db *DB) setDefaultProviderKeyOnce(ctx context.Context, userID int64, id uuid.UUID) (model.ProviderKey, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.ProviderKey{}, fmt.Errorf("storage: begin set default key tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	k, err := scanProviderKey(tx.QueryRow(ctx,
		`SELECT `+providerKeyColumns+` FROM provider_keys
		 WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		id, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ProviderKey{}, fmt.Errorf("storage: provider key %s: %w", id, ErrNotFound)
		}
		return model.ProviderKey{}, fmt.Errorf("storage: lock provider key: %w", err)
	}

	if err := clearDefaultKeyTx(ctx, tx, userID, k.ProviderID, k.Provider); err != nil {
		return model.ProviderKey{}, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE provider_keys SET is_default = TRUE, updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return model.ProviderKey{}, fmt.Errorf("storage: set default provider key: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.ProviderKey{}, fmt.Errorf("storage: commit set default key tx: %w", err)
	}
	k.IsDefault = true
	return k, nil
}

// TouchProviderKeyUsed records a use of the credential. Fire-and-forget
// from task execution; callers should not block on the result.
func (db *DB) TouchProviderKeyUsed(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE provider_keys
		 SET last_used_at = now(),
		     usage_stats = jsonb_set(COALESCE(usage_stats, '{}'::jsonb), '{usage_count}',
		         (COALESCE(usage_stats->>'usage_count', '0')::int + 1)::text::jsonb),
		     updated_at = now()
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("storage: touch provider key: %w", err)
	}
	return nil
}

// DeleteProviderKey removes a key owned by the user.
func (db *DB) DeleteProviderKey(ctx context.Context, userID int64, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM provider_keys WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("storage: delete provider key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: provider key %s: %w", id, ErrNotFound)
	}
	return nil
}
