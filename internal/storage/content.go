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

const contentColumns = `id, task_id, user_id, content_type, mime_type,
	file_size_bytes, file_url, thumbnail_url, original_filename,
	storage_path, storage_provider, text_content, content_metadata,
	width_px, height_px, duration_seconds, quality_score, tags,
	is_public, is_favorite, download_count, expires_at, created_at, updated_at`

func scanContent(row pgx.Row) (model.GeneratedContent, error) {
	var g model.GeneratedContent
	err := row.Scan(
		&g.ID, &g.TaskID, &g.UserID, &g.ContentType, &g.MimeType,
		&g.FileSizeBytes, &g.FileURL, &g.ThumbnailURL, &g.OriginalFilename,
		&g.StoragePath, &g.StorageProvider, &g.TextContent, &g.ContentMetadata,
		&g.WidthPx, &g.HeightPx, &g.DurationSeconds, &g.QualityScore, &g.Tags,
		&g.IsPublic, &g.IsFavorite, &g.DownloadCount, &g.ExpiresAt, &g.CreatedAt, &g.UpdatedAt,
	)
	return g, err
}

// CreateContent inserts a generated artifact for a task. The task_id
// unique index enforces the one-artifact-per-task rule.
func (db *DB) CreateContent(ctx context.Context, g model.GeneratedContent) (model.GeneratedContent, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.GeneratedContent{}, fmt.Errorf("storage: begin create content tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	g, err = insertContentTx(ctx, tx, g)
	if err != nil {
		return model.GeneratedContent{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.GeneratedContent{}, fmt.Errorf("storage: commit create content tx: %w", err)
	}
	return g, nil
}

func insertContentTx(ctx context.Context, tx pgx.Tx, g model.GeneratedContent) (model.GeneratedContent, error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	_, err := tx.Exec(ctx,
		`INSERT INTO generated_content (id, task_id, user_id, content_type, mime_type,
		     file_size_bytes, file_url, thumbnail_url, original_filename,
		     storage_path, storage_provider, text_content, content_metadata,
		     width_px, height_px, duration_seconds, quality_score, tags,
		     is_public, is_favorite, download_count, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		     $16, $17, $18, $19, $20, $21, $22, $23, $24)`,
		g.ID, g.TaskID, g.UserID, g.ContentType, g.MimeType,
		g.FileSizeBytes, g.FileURL, g.ThumbnailURL, g.OriginalFilename,
		g.StoragePath, g.StorageProvider, g.TextContent, g.ContentMetadata,
		g.WidthPx, g.HeightPx, g.DurationSeconds, g.QualityScore, g.Tags,
		g.IsPublic, g.IsFavorite, g.DownloadCount, g.ExpiresAt, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return model.GeneratedContent{}, fmt.Errorf("storage: create content: %w", err)
	}
	return g, nil
}

// GetContent retrieves an artifact visible to the user: their own, or a
// public one.
func (db *DB) GetContent(ctx context.Context, userID int64, id uuid.UUID) (model.GeneratedContent, error) {
	g, err := scanContent(db.pool.QueryRow(ctx,
		`SELECT `+contentColumns+` FROM generated_content
		 WHERE id = $1 AND (user_id = $2 OR is_public)`,
		id, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.GeneratedContent{}, fmt.Errorf("storage: content %s: %w", id, ErrNotFound)
		}
		return model.GeneratedContent{}, fmt.Errorf("storage: get content: %w", err)
	}
	return g, nil
}

// GetContentByTask retrieves the artifact produced by a task.
func (db *DB) GetContentByTask(ctx context.Context, userID int64, taskID uuid.UUID) (model.GeneratedContent, error) {
	g, err := scanContent(db.pool.QueryRow(ctx,
		`SELECT `+contentColumns+` FROM generated_content
		 WHERE task_id = $1 AND user_id = $2`,
		taskID, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.GeneratedContent{}, fmt.Errorf("storage: content for task %s: %w", taskID, ErrNotFound)
		}
		return model.GeneratedContent{}, fmt.Errorf("storage: get content by task: %w", err)
	}
	return g, nil
}

// ContentFilter narrows ListContent results.
type ContentFilter struct {
	ContentType  *model.ContentType
	FavoriteOnly bool
}

// ListContent returns a user's artifacts with pagination, newest first.
func (db *DB) ListContent(ctx context.Context, userID int64, filter ContentFilter, limit, offset int) ([]model.GeneratedContent, int, error) {
	limit, offset = clampPage(limit, offset)

	where := `WHERE user_id = $1`
	args := []any{userID}
	if filter.ContentType != nil {
		args = append(args, *filter.ContentType)
		where += fmt.Sprintf(` AND content_type = $%d`, len(args))
	}
	if filter.FavoriteOnly {
		where += ` AND is_favorite`
	}

	var total int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM generated_content `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count content: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := db.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM generated_content %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			contentColumns, where, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list content: %w", err)
	}
	defer rows.Close()

	var items []model.GeneratedContent
	for rows.Next() {
		g, err := scanContent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan content: %w", err)
		}
		items = append(items, g)
	}
	return items, total, rows.Err()
}

// UpdateContentFlags persists the user-facing flags of an artifact
// (favorite, public, tags, expiry, download counter).
func (db *DB) UpdateContentFlags(ctx context.Context, g model.GeneratedContent) (model.GeneratedContent, error) {
	g.UpdatedAt = time.Now().UTC()
	tag, err := db.pool.Exec(ctx,
		`UPDATE generated_content
		 SET is_public = $3, is_favorite = $4, tags = $5, download_count = $6,
		     expires_at = $7, updated_at = $8
		 WHERE id = $1 AND user_id = $2`,
		g.ID, g.UserID, g.IsPublic, g.IsFavorite, g.Tags, g.DownloadCount,
		g.ExpiresAt, g.UpdatedAt,
	)
	if err != nil {
		return model.GeneratedContent{}, fmt.Errorf("storage: update content flags: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.GeneratedContent{}, fmt.Errorf("storage: content %s: %w", g.ID, ErrNotFound)
	}
	return g, nil
}

// DeleteContent removes an artifact owned by the user.
func (db *DB) DeleteContent(ctx context.Context, userID int64, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM generated_content WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("storage: delete content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: content %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteExpiredContent removes artifacts past their retention date.
// Returns the number of rows deleted. Intended for a periodic job.
func (db *DB) DeleteExpiredContent(ctx context.Context) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM generated_content WHERE expires_at IS NOT NULL AND expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("storage: delete expired content: %w", err)
	}
	return tag.RowsAffected(), nil
}
