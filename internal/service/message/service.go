package message

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"boingbox-backend/internal/domain"
	"boingbox-backend/pkg/constants"
	apperrors "boingbox-backend/pkg/errors"
	"boingbox-backend/pkg/logger"
	"boingbox-backend/pkg/metrics"
	"boingbox-backend/pkg/pagination"
	"boingbox-backend/pkg/sanitize"
)

// MessageRepository persists chat messages
type MessageRepository interface {
	Save(ctx context.Context, m *domain.Message) error
	GetByID(ctx context.Context, messageID uuid.UUID) (*domain.Message, error)
	Update(ctx context.Context, m *domain.Message) error
	SetReaction(ctx context.Context, m *domain.Message, userID uuid.UUID, emoji string) error
	// ListRecent returns up to limit non-deleted messages, newest first
	ListRecent(ctx context.Context, conversationKey string, limit int) ([]*domain.Message, error)
}

// Service handles message persistence for the HTTP API
type Service struct {
	repo  MessageRepository
	now   func() time.Time
	newID func() (uuid.UUID, error)
}

// NewService creates a new message service
func NewService(repo MessageRepository) *Service {
	return &Service{
		repo:  repo,
		now:   time.Now,
		newID: uuid.NewUUID,
	}
}

// Send stores a message for a private pair or a group
func (s *Service) Send(ctx context.Context, req *domain.SendMessageRequest) (*domain.Message, error) {
	if req.From == uuid.Nil {
		return nil, apperrors.MissingFieldError("from")
	}
	if req.To == nil && req.GroupID == nil {
		return nil, apperrors.ValidationError("Either 'to' or 'groupId' is required")
	}

	msgType := req.Type
	if msgType == "" {
		msgType = domain.MessageTypeText
	}

	text := sanitize.Text(req.Message)
	var media *domain.MessageMedia
	if msgType == domain.MessageTypeText {
		if text == "" {
			return nil, apperrors.MissingFieldError("message")
		}
		if len(text) > constants.MaxMessageLength {
			return nil, apperrors.ValidationError("Message is too long")
		}
	} else {
		if req.Media == nil || req.Media.URL == "" {
			return nil, apperrors.ValidationError("Media content is required for non-text messages")
		}
		media = req.Media
		text = ""
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	now := s.now()
	m := &domain.Message{
		MessageID:       id,
		ConversationKey: domain.ConversationKey(req.From, req.To, req.GroupID),
		Bucket:          domain.CalculateBucket(now),
		SenderID:        req.From,
		Type:            msgType,
		Text:            text,
		Media:           media,
		ReplyTo:         req.ReplyTo,
		CreatedAt:       now,
		FromSelf:        true,
	}
	if req.GroupID != nil {
		m.ChatType = domain.ChatTypeGroup
		m.GroupID = req.GroupID
	} else {
		m.ChatType = domain.ChatTypePrivate
		m.RecipientID = req.To
	}

	if err := s.repo.Save(ctx, m); err != nil {
		metrics.MessagePersistedTotal.WithLabelValues(string(m.ChatType), "error").Inc()
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	metrics.MessagePersistedTotal.WithLabelValues(string(m.ChatType), "ok").Inc()

	logger.FromContext(ctx).Debug("Message stored",
		zap.String("message_id", m.MessageID.String()),
		zap.String("conversation", m.ConversationKey))

	return m, nil
}

// List returns one page of a conversation in chronological order. Page 1
// holds the newest messages.
func (s *Service) List(ctx context.Context, req *domain.ListMessagesRequest) ([]*domain.Message, error) {
	if req.From == uuid.Nil {
		return nil, apperrors.MissingFieldError("from")
	}
	if req.To == nil && req.GroupID == nil {
		return nil, apperrors.ValidationError("Either 'to' or 'groupId' is required")
	}

	page := pagination.New(req.Page, req.Limit, constants.DefaultMessagePageSize)
	key := domain.ConversationKey(req.From, req.To, req.GroupID)

	recent, err := s.repo.ListRecent(ctx, key, page.Offset+page.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	if page.Offset >= len(recent) {
		return []*domain.Message{}, nil
	}
	window := recent[page.Offset:]
	if len(window) > page.Limit {
		window = window[:page.Limit]
	}

	out := make([]*domain.Message, len(window))
	for i, m := range window {
		m.FromSelf = m.SenderID == req.From
		out[len(window)-1-i] = m
	}
	return out, nil
}

// Edit replaces the text of a message. Sender only; the first original text is kept.
func (s *Service) Edit(ctx context.Context, messageID, editor uuid.UUID, newText string) (*domain.Message, error) {
	newText = sanitize.Text(newText)
	switch {
	case messageID == uuid.Nil:
		return nil, apperrors.MissingFieldError("messageId")
	case editor == uuid.Nil:
		return nil, apperrors.MissingFieldError("editedBy")
	case newText == "":
		return nil, apperrors.MissingFieldError("newText")
	case len(newText) > constants.MaxMessageLength:
		return nil, apperrors.ValidationError("Message is too long")
	}

	m, err := s.get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.SenderID != editor {
		return nil, apperrors.ForbiddenError("You can only edit your own messages")
	}

	if !m.Edited.IsEdited {
		m.Edited.OriginalText = m.Text
	}
	now := s.now()
	m.Text = newText
	m.Edited.IsEdited = true
	m.Edited.EditedAt = &now

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to edit message: %w", err)
	}
	return m, nil
}

// Delete hides a message. Sender only.
func (s *Service) Delete(ctx context.Context, messageID, actor uuid.UUID) error {
	if messageID == uuid.Nil {
		return apperrors.MissingFieldError("messageId")
	}
	if actor == uuid.Nil {
		return apperrors.MissingFieldError("deletedBy")
	}

	m, err := s.get(ctx, messageID)
	if err != nil {
		return err
	}
	if m.SenderID != actor {
		return apperrors.ForbiddenError("You can only delete your own messages")
	}

	now := s.now()
	m.IsDeleted = true
	m.DeletedAt = &now
	if err := s.repo.Update(ctx, m); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// React sets userID's reaction, replacing any earlier one
func (s *Service) React(ctx context.Context, messageID, userID uuid.UUID, emoji string) (*domain.Message, error) {
	switch {
	case messageID == uuid.Nil:
		return nil, apperrors.MissingFieldError("messageId")
	case userID == uuid.Nil:
		return nil, apperrors.MissingFieldError("userId")
	case emoji == "":
		return nil, apperrors.MissingFieldError("emoji")
	}

	m, err := s.get(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetReaction(ctx, m, userID, emoji); err != nil {
		return nil, fmt.Errorf("failed to add reaction: %w", err)
	}
	if m.Reactions == nil {
		m.Reactions = make(map[uuid.UUID]string, 1)
	}
	m.Reactions[userID] = emoji
	return m, nil
}

// deleted messages read as not found
func (s *Service) get(ctx context.Context, messageID uuid.UUID) (*domain.Message, error) {
	m, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperrors.NotFoundError("Message")
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if m.IsDeleted {
		return nil, apperrors.NotFoundError("Message")
	}
	return m, nil
}
