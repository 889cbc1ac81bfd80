package cockroach

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"boingbox-backend/pkg/logger"
)

// users and group_members belong to the account and group systems; they are
// created here only so a fresh database can serve directory lookups.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id UUID PRIMARY KEY,
		username STRING NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS group_members (
		group_id UUID NOT NULL,
		user_id UUID NOT NULL,
		role STRING NOT NULL DEFAULT 'member',
		joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (group_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS calls (
		call_id UUID PRIMARY KEY,
		type STRING NOT NULL,
		initiator UUID NOT NULL,
		group_id UUID,
		status STRING NOT NULL,
		start_time TIMESTAMPTZ,
		end_time TIMESTAMPTZ,
		duration INT NOT NULL DEFAULT 0,
		settings JSONB NOT NULL,
		recording JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		INDEX calls_status_created_idx (status, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS call_participants (
		call_id UUID NOT NULL REFERENCES calls (call_id),
		user_id UUID NOT NULL,
		position INT NOT NULL,
		joined_at TIMESTAMPTZ,
		left_at TIMESTAMPTZ,
		is_active BOOL NOT NULL DEFAULT false,
		is_muted BOOL NOT NULL DEFAULT false,
		is_video_off BOOL NOT NULL DEFAULT false,
		is_screen_sharing BOOL NOT NULL DEFAULT false,
		PRIMARY KEY (call_id, user_id),
		INDEX call_participants_user_idx (user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS media (
		file_id UUID PRIMARY KEY,
		original_name STRING NOT NULL,
		mime_type STRING NOT NULL,
		size INT8 NOT NULL,
		type STRING NOT NULL,
		uploader UUID NOT NULL,
		status STRING NOT NULL,
		urls JSONB NOT NULL,
		metadata JSONB NOT NULL,
		processing JSONB NOT NULL,
		permissions JSONB NOT NULL,
		upload_token STRING NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		INDEX media_uploader_created_idx (uploader, created_at DESC),
		INDEX media_status_idx (status)
	) WITH (ttl_expiration_expression = 'expires_at', ttl_job_cron = '@hourly')`,
}

// EnsureSchema creates the tables this service reads and writes
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	logger.Info("CockroachDB schema ready")
	return nil
}
