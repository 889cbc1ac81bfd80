package cockroach

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"boingbox-backend/internal/domain"
)

// querier is satisfied by both the pool and a transaction
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// CallRepository handles call data operations
type CallRepository struct {
	pool *pgxpool.Pool
}

// NewCallRepository creates a new call repository
func NewCallRepository(pool *pgxpool.Pool) *CallRepository {
	return &CallRepository{pool: pool}
}

const callColumns = `call_id, type, initiator, group_id, status, start_time, end_time,
	duration, settings, recording, created_at, updated_at`

// Create inserts a call and its participant list
func (r *CallRepository) Create(ctx context.Context, call *domain.Call) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO calls (` + callColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = tx.Exec(ctx, query,
		call.CallID,
		string(call.Type),
		call.Initiator,
		call.GroupID,
		string(call.Status),
		call.StartTime,
		call.EndTime,
		call.Duration,
		call.Settings,
		call.Recording,
		call.CreatedAt,
		call.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create call: %w", err)
	}

	if err := upsertParticipants(ctx, tx, call); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit call: %w", err)
	}
	return nil
}

// GetByID retrieves a call with its participants
func (r *CallRepository) GetByID(ctx context.Context, callID uuid.UUID) (*domain.Call, error) {
	call, err := scanCall(r.pool.QueryRow(ctx,
		`SELECT `+callColumns+` FROM calls WHERE call_id = $1`, callID))
	if err != nil {
		return nil, err
	}

	byCall, err := loadParticipants(ctx, r.pool, []uuid.UUID{callID})
	if err != nil {
		return nil, err
	}
	call.Participants = byCall[callID]
	return call, nil
}

// Update locks the call row, applies fn and writes the result back. Concurrent
// transitions on the same call are serialized by the row lock.
func (r *CallRepository) Update(ctx context.Context, callID uuid.UUID, fn func(*domain.Call) error) (*domain.Call, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	call, err := scanCall(tx.QueryRow(ctx,
		`SELECT `+callColumns+` FROM calls WHERE call_id = $1 FOR UPDATE`, callID))
	if err != nil {
		return nil, err
	}
	byCall, err := loadParticipants(ctx, tx, []uuid.UUID{callID})
	if err != nil {
		return nil, err
	}
	call.Participants = byCall[callID]

	if err := fn(call); err != nil {
		return nil, err
	}

	query := `
		UPDATE calls
		SET status = $2, start_time = $3, end_time = $4, duration = $5,
		    settings = $6, recording = $7, updated_at = $8
		WHERE call_id = $1
	`
	_, err = tx.Exec(ctx, query,
		call.CallID,
		string(call.Status),
		call.StartTime,
		call.EndTime,
		call.Duration,
		call.Settings,
		call.Recording,
		call.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update call: %w", err)
	}

	if err := upsertParticipants(ctx, tx, call); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit call update: %w", err)
	}
	return call, nil
}

// ListHistory returns calls userID took part in whose status is one of statuses, newest first
func (r *CallRepository) ListHistory(ctx context.Context, userID uuid.UUID, statuses []domain.CallStatus, limit, offset int) ([]*domain.Call, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	query := `
		SELECT ` + prefixed("c", callColumns) + `
		FROM calls c
		JOIN call_participants cp ON c.call_id = cp.call_id
		WHERE cp.user_id = $1 AND c.status = ANY($2)
		ORDER BY c.created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query, userID, names, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get call history: %w", err)
	}
	defer rows.Close()

	var calls []*domain.Call
	var ids []uuid.UUID
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
		ids = append(ids, call.CallID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate calls: %w", err)
	}
	if len(ids) == 0 {
		return calls, nil
	}

	byCall, err := loadParticipants(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for _, call := range calls {
		call.Participants = byCall[call.CallID]
	}
	return calls, nil
}

// ListRingingBefore returns ids of calls still ringing that were created before cutoff
func (r *CallRepository) ListRingingBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT call_id FROM calls WHERE status = $1 AND created_at < $2`,
		string(domain.CallStatusRinging), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list ringing calls: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan call id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanCall(row pgx.Row) (*domain.Call, error) {
	call := &domain.Call{}
	err := row.Scan(
		&call.CallID,
		&call.Type,
		&call.Initiator,
		&call.GroupID,
		&call.Status,
		&call.StartTime,
		&call.EndTime,
		&call.Duration,
		&call.Settings,
		&call.Recording,
		&call.CreatedAt,
		&call.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan call: %w", err)
	}
	return call, nil
}

func loadParticipants(ctx context.Context, q querier, callIDs []uuid.UUID) (map[uuid.UUID][]domain.CallParticipant, error) {
	query := `
		SELECT call_id, user_id, joined_at, left_at, is_active, is_muted, is_video_off, is_screen_sharing
		FROM call_participants
		WHERE call_id = ANY($1)
		ORDER BY call_id, position ASC
	`
	rows, err := q.Query(ctx, query, callIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	byCall := make(map[uuid.UUID][]domain.CallParticipant, len(callIDs))
	for rows.Next() {
		var callID uuid.UUID
		var p domain.CallParticipant
		err := rows.Scan(
			&callID,
			&p.UserID,
			&p.JoinedAt,
			&p.LeftAt,
			&p.IsActive,
			&p.IsMuted,
			&p.IsVideoOff,
			&p.IsScreenSharing,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		byCall[callID] = append(byCall[callID], p)
	}
	return byCall, rows.Err()
}

func upsertParticipants(ctx context.Context, tx pgx.Tx, call *domain.Call) error {
	query := `
		UPSERT INTO call_participants (
			call_id, user_id, position, joined_at, left_at,
			is_active, is_muted, is_video_off, is_screen_sharing
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	batch := &pgx.Batch{}
	for i, p := range call.Participants {
		batch.Queue(query,
			call.CallID,
			p.UserID,
			i,
			p.JoinedAt,
			p.LeftAt,
			p.IsActive,
			p.IsMuted,
			p.IsVideoOff,
			p.IsScreenSharing,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save participants: %w", err)
	}
	return nil
}

// prefixed qualifies every column of a comma separated list with alias
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, col := range parts {
		parts[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(parts, ", ")
}
