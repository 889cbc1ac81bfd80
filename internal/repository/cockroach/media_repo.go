package cockroach

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"boingbox-backend/internal/domain"
)

// MediaRepository handles media tracking records
type MediaRepository struct {
	pool *pgxpool.Pool
}

// NewMediaRepository creates a new media repository
func NewMediaRepository(pool *pgxpool.Pool) *MediaRepository {
	return &MediaRepository{pool: pool}
}

const mediaColumns = `file_id, original_name, mime_type, size, type, uploader, status,
	urls, metadata, processing, permissions, upload_token, created_at, updated_at, expires_at`

// Create inserts a new media record
func (r *MediaRepository) Create(ctx context.Context, m *domain.Media) error {
	query := `
		INSERT INTO media (` + mediaColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.pool.Exec(ctx, query,
		m.FileID,
		m.OriginalName,
		m.MimeType,
		m.Size,
		string(m.Type),
		m.Uploader,
		string(m.Status),
		m.URLs,
		m.Metadata,
		m.Processing,
		m.Permissions,
		m.UploadToken,
		m.CreatedAt,
		m.UpdatedAt,
		m.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create media: %w", err)
	}
	return nil
}

// GetByID retrieves a media record
func (r *MediaRepository) GetByID(ctx context.Context, fileID uuid.UUID) (*domain.Media, error) {
	return scanMedia(r.pool.QueryRow(ctx,
		`SELECT `+mediaColumns+` FROM media WHERE file_id = $1`, fileID))
}

// Advance writes the mutable fields of m only if the stored status is still
// from. It returns domain.ErrStatusConflict when another writer got there first.
func (r *MediaRepository) Advance(ctx context.Context, m *domain.Media, from domain.MediaStatus) error {
	query := `
		UPDATE media
		SET status = $3, urls = $4, metadata = $5, processing = $6,
		    upload_token = $7, updated_at = $8
		WHERE file_id = $1 AND status = $2
	`

	tag, err := r.pool.Exec(ctx, query,
		m.FileID,
		string(from),
		string(m.Status),
		m.URLs,
		m.Metadata,
		m.Processing,
		m.UploadToken,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update media: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStatusConflict
	}
	return nil
}

// Delete removes a media record
func (r *MediaRepository) Delete(ctx context.Context, fileID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM media WHERE file_id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByUploader returns a page of uploader's media, newest first. An empty
// mediaType matches every type.
func (r *MediaRepository) ListByUploader(ctx context.Context, uploader uuid.UUID, mediaType domain.MediaType, limit, offset int) ([]*domain.Media, error) {
	query := `
		SELECT ` + mediaColumns + `
		FROM media
		WHERE uploader = $1 AND ($2 = '' OR type = $2) AND expires_at > now()
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query, uploader, string(mediaType), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	defer rows.Close()

	return collectMedia(rows)
}

// ListByStatus returns every record in status
func (r *MediaRepository) ListByStatus(ctx context.Context, status domain.MediaStatus) ([]*domain.Media, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+mediaColumns+` FROM media WHERE status = $1 ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list media by status: %w", err)
	}
	defer rows.Close()

	return collectMedia(rows)
}

func collectMedia(rows pgx.Rows) ([]*domain.Media, error) {
	var out []*domain.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate media: %w", err)
	}
	return out, nil
}

func scanMedia(row pgx.Row) (*domain.Media, error) {
	m := &domain.Media{}
	err := row.Scan(
		&m.FileID,
		&m.OriginalName,
		&m.MimeType,
		&m.Size,
		&m.Type,
		&m.Uploader,
		&m.Status,
		&m.URLs,
		&m.Metadata,
		&m.Processing,
		&m.Permissions,
		&m.UploadToken,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan media: %w", err)
	}
	return m, nil
}
