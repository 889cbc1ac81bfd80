package cassandra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"boingbox-backend/internal/domain"
)

// MessageRepository handles message storage in Cassandra.
// Messages are partitioned by conversation key and monthly bucket; the
// buckets a conversation has used are tracked so reads can walk back in time
// without probing empty months.
type MessageRepository struct {
	session *gocql.Session
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(session *gocql.Session) *MessageRepository {
	return &MessageRepository{session: session}
}

const messageColumns = `conversation_key, bucket, message_id, sender_id, recipient_id, group_id,
	chat_type, type, text, media, reply_to, is_edited, edited_at, original_text,
	reactions, is_deleted, deleted_at, created_at`

// Save inserts a new message together with its id lookup row
func (r *MessageRepository) Save(ctx context.Context, m *domain.Message) error {
	if m.Bucket == 0 {
		m.Bucket = domain.CalculateBucket(m.CreatedAt)
	}

	media, err := encodeMedia(m.Media)
	if err != nil {
		return err
	}

	batch := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ConversationKey,
		m.Bucket,
		cql(m.MessageID),
		cql(m.SenderID),
		cqlPtr(m.RecipientID),
		cqlPtr(m.GroupID),
		string(m.ChatType),
		string(m.Type),
		m.Text,
		media,
		cqlPtr(m.ReplyTo),
		m.Edited.IsEdited,
		m.Edited.EditedAt,
		m.Edited.OriginalText,
		cqlReactions(m.Reactions),
		m.IsDeleted,
		m.DeletedAt,
		m.CreatedAt,
	)
	batch.Query(`INSERT INTO messages_by_id (message_id, conversation_key, bucket) VALUES (?, ?, ?)`,
		cql(m.MessageID), m.ConversationKey, m.Bucket)
	batch.Query(`INSERT INTO conversation_buckets (conversation_key, bucket) VALUES (?, ?)`,
		m.ConversationKey, m.Bucket)

	if err := r.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// GetByID resolves the message partition through messages_by_id
func (r *MessageRepository) GetByID(ctx context.Context, messageID uuid.UUID) (*domain.Message, error) {
	var key string
	var bucket int
	err := r.session.Query(`SELECT conversation_key, bucket FROM messages_by_id WHERE message_id = ?`,
		cql(messageID)).WithContext(ctx).Scan(&key, &bucket)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up message: %w", err)
	}

	iter := r.session.Query(`SELECT `+messageColumns+` FROM messages
		WHERE conversation_key = ? AND bucket = ? AND message_id = ?`,
		key, bucket, cql(messageID)).WithContext(ctx).Iter()

	row := newMessageRow()
	found := iter.Scan(row.dest()...)
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if !found {
		return nil, domain.ErrNotFound
	}
	return row.message()
}

// Update writes the edit and delete state of m
func (r *MessageRepository) Update(ctx context.Context, m *domain.Message) error {
	err := r.session.Query(`UPDATE messages
		SET text = ?, is_edited = ?, edited_at = ?, original_text = ?, is_deleted = ?, deleted_at = ?
		WHERE conversation_key = ? AND bucket = ? AND message_id = ?`,
		m.Text,
		m.Edited.IsEdited,
		m.Edited.EditedAt,
		m.Edited.OriginalText,
		m.IsDeleted,
		m.DeletedAt,
		m.ConversationKey,
		m.Bucket,
		cql(m.MessageID),
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return nil
}

// SetReaction replaces userID's reaction on m
func (r *MessageRepository) SetReaction(ctx context.Context, m *domain.Message, userID uuid.UUID, emoji string) error {
	err := r.session.Query(`UPDATE messages SET reactions[?] = ?
		WHERE conversation_key = ? AND bucket = ? AND message_id = ?`,
		cql(userID), emoji, m.ConversationKey, m.Bucket, cql(m.MessageID),
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to save reaction: %w", err)
	}
	return nil
}

// ListRecent returns up to limit non-deleted messages of a conversation,
// newest first, walking its buckets from the most recent one backwards.
func (r *MessageRepository) ListRecent(ctx context.Context, conversationKey string, limit int) ([]*domain.Message, error) {
	buckets, err := r.buckets(ctx, conversationKey)
	if err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, 0, limit)
	for _, bucket := range buckets {
		iter := r.session.Query(`SELECT `+messageColumns+` FROM messages
			WHERE conversation_key = ? AND bucket = ?`,
			conversationKey, bucket).WithContext(ctx).PageSize(limit).Iter()

		row := newMessageRow()
		for len(messages) < limit && iter.Scan(row.dest()...) {
			m, err := row.message()
			if err != nil {
				iter.Close()
				return nil, err
			}
			if !m.IsDeleted {
				messages = append(messages, m)
			}
			row = newMessageRow()
		}
		if err := iter.Close(); err != nil {
			return nil, fmt.Errorf("failed to fetch messages: %w", err)
		}

		if len(messages) >= limit {
			break
		}
	}
	return messages, nil
}

func (r *MessageRepository) buckets(ctx context.Context, conversationKey string) ([]int, error) {
	iter := r.session.Query(`SELECT bucket FROM conversation_buckets WHERE conversation_key = ?`,
		conversationKey).WithContext(ctx).Iter()

	var buckets []int
	var bucket int
	for iter.Scan(&bucket) {
		buckets = append(buckets, bucket)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list message buckets: %w", err)
	}
	return buckets, nil
}

// messageRow holds scan targets in gocql types
type messageRow struct {
	m           domain.Message
	messageID   gocql.UUID
	senderID    gocql.UUID
	recipientID gocql.UUID
	groupID     gocql.UUID
	replyTo     gocql.UUID
	chatType    string
	msgType     string
	media       string
	editedAt    time.Time
	deletedAt   time.Time
	reactions   map[gocql.UUID]string
}

func newMessageRow() *messageRow {
	return &messageRow{}
}

func (row *messageRow) dest() []any {
	return []any{
		&row.m.ConversationKey,
		&row.m.Bucket,
		&row.messageID,
		&row.senderID,
		&row.recipientID,
		&row.groupID,
		&row.chatType,
		&row.msgType,
		&row.m.Text,
		&row.media,
		&row.replyTo,
		&row.m.Edited.IsEdited,
		&row.editedAt,
		&row.m.Edited.OriginalText,
		&row.reactions,
		&row.m.IsDeleted,
		&row.deletedAt,
		&row.m.CreatedAt,
	}
}

func (row *messageRow) message() (*domain.Message, error) {
	m := row.m
	m.MessageID = uuid.UUID(row.messageID)
	m.SenderID = uuid.UUID(row.senderID)
	m.RecipientID = optional(row.recipientID)
	m.GroupID = optional(row.groupID)
	m.ReplyTo = optional(row.replyTo)
	m.ChatType = domain.ChatType(row.chatType)
	m.Type = domain.MessageType(row.msgType)
	if !row.editedAt.IsZero() {
		t := row.editedAt
		m.Edited.EditedAt = &t
	}
	if !row.deletedAt.IsZero() {
		t := row.deletedAt
		m.DeletedAt = &t
	}
	if len(row.reactions) > 0 {
		m.Reactions = make(map[uuid.UUID]string, len(row.reactions))
		for user, emoji := range row.reactions {
			m.Reactions[uuid.UUID(user)] = emoji
		}
	}
	if row.media != "" {
		m.Media = &domain.MessageMedia{}
		if err := json.Unmarshal([]byte(row.media), m.Media); err != nil {
			return nil, fmt.Errorf("failed to decode message media: %w", err)
		}
	}
	return &m, nil
}

func cql(id uuid.UUID) gocql.UUID {
	return gocql.UUID(id)
}

// cqlPtr maps a missing id to a null column
func cqlPtr(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return gocql.UUID(*id)
}

func optional(id gocql.UUID) *uuid.UUID {
	if id == (gocql.UUID{}) {
		return nil
	}
	u := uuid.UUID(id)
	return &u
}

func cqlReactions(reactions map[uuid.UUID]string) map[gocql.UUID]string {
	out := make(map[gocql.UUID]string, len(reactions))
	for user, emoji := range reactions {
		out[gocql.UUID(user)] = emoji
	}
	return out
}

func encodeMedia(media *domain.MessageMedia) (string, error) {
	if media == nil {
		return "", nil
	}
	data, err := json.Marshal(media)
	if err != nil {
		return "", fmt.Errorf("failed to encode message media: %w", err)
	}
	return string(data), nil
}
