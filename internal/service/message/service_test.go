package message

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"boingbox-backend/internal/domain"
	apperrors "boingbox-backend/pkg/errors"
)

// MockMessageRepository is a mock implementation of MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Save(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) Update(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) SetReaction(ctx context.Context, msg *domain.Message, userID uuid.UUID, emoji string) error {
	args := m.Called(ctx, msg, userID, emoji)
	return args.Error(0)
}

func (m *MockMessageRepository) ListRecent(ctx context.Context, key string, limit int) ([]*domain.Message, error) {
	args := m.Called(ctx, key, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

var fixedNow = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

func newTestService(repo MessageRepository) *Service {
	svc := NewService(repo)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func ptr(id uuid.UUID) *uuid.UUID { return &id }

func TestSend_Private(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := newTestService(repo)
	from, to := uuid.New(), uuid.New()

	repo.On("Save", mock.Anything, mock.MatchedBy(func(m *domain.Message) bool {
		return m.ConversationKey == domain.ConversationKey(to, &from, nil) &&
			m.Bucket == 202601 &&
			m.ChatType == domain.ChatTypePrivate &&
			m.Text == "hello"
	})).Return(nil)

	m, err := svc.Send(context.Background(), &domain.SendMessageRequest{From: from, To: &to, Message: "  hello "})
	require.NoError(t, err)

	assert.Equal(t, domain.MessageTypeText, m.Type)
	assert.Equal(t, &to, m.RecipientID)
	assert.Nil(t, m.GroupID)
	assert.Equal(t, 1, int(m.MessageID.Version()))
	assert.True(t, m.FromSelf)
	repo.AssertExpectations(t)
}

func TestSend_GroupMedia(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := newTestService(repo)
	from, group := uuid.New(), uuid.New()
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	m, err := svc.Send(context.Background(), &domain.SendMessageRequest{
		From:    from,
		GroupID: &group,
		Type:    domain.MessageTypeImage,
		Message: "ignored caption",
		Media:   &domain.MessageMedia{URL: "media/x/y/z.png"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ChatTypeGroup, m.ChatType)
	assert.Equal(t, "group:"+group.String(), m.ConversationKey)
	assert.Empty(t, m.Text)
	assert.Equal(t, "media/x/y/z.png", m.Media.URL)
}

func TestSend_Validation(t *testing.T) {
	svc := newTestService(new(MockMessageRepository))
	from, to := uuid.New(), uuid.New()

	tests := []struct {
		name string
		req  *domain.SendMessageRequest
	}{
		{"missing sender", &domain.SendMessageRequest{To: &to, Message: "x"}},
		{"missing recipient", &domain.SendMessageRequest{From: from, Message: "x"}},
		{"empty text", &domain.SendMessageRequest{From: from, To: &to}},
		{"media without media", &domain.SendMessageRequest{From: from, To: &to, Type: domain.MessageTypeVideo}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Send(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsAppError(err))
		})
	}
}

func TestSend_StoreFailure(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := newTestService(repo)
	repo.On("Save", mock.Anything, mock.Anything).Return(errors.New("no hosts available"))

	to := uuid.New()
	_, err := svc.Send(context.Background(), &domain.SendMessageRequest{From: uuid.New(), To: &to, Message: "hi"})
	require.Error(t, err)
	assert.False(t, apperrors.IsAppError(err))
}

func TestList_ChronologicalPage(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := newTestService(repo)
	me, peer := uuid.New(), uuid.New()
	key := domain.ConversationKey(me, &peer, nil)

	// newest first, as the store returns them
	var recent []*domain.Message
	for i := 5; i >= 1; i-- {
		sender := peer
		if i%2 == 0 {
			sender = me
		}
		recent = append(recent, &domain.Message{
			MessageID: uuid.New(),
			SenderID:  sender,
			Text:      string(rune('a' + i)),
			CreatedAt: fixedNow.Add(time.Duration(i) * time.Minute),
		})
	}

	repo.On("ListRecent", mock.Anything, key, 2).Return(recent[:2], nil).Once()
	page1, err := svc.List(context.Background(), &domain.ListMessagesRequest{From: me, To: &peer, Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.True(t, page1[0].CreatedAt.Before(page1[1].CreatedAt))
	assert.Equal(t, recent[0].MessageID, page1[1].MessageID)
	assert.True(t, page1[0].FromSelf)
	assert.False(t, page1[1].FromSelf)

	repo.On("ListRecent", mock.Anything, key, 4).Return(recent[:4], nil).Once()
	page2, err := svc.List(context.Background(), &domain.ListMessagesRequest{From: me, To: &peer, Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, recent[3].MessageID, page2[0].MessageID)
	assert.Equal(t, recent[2].MessageID, page2[1].MessageID)

	repo.On("ListRecent", mock.Anything, key, 15).Return(recent, nil).Once()
	page3, err := svc.List(context.Background(), &domain.ListMessagesRequest{From: me, To: &peer, Page: 3, Limit: 5})
	require.NoError(t, err)
	assert.NotNil(t, page3)
	assert.Empty(t, page3)
}

func TestList_DefaultLimit(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := newTestService(repo)
	group := uuid.New()
	repo.On("ListRecent", mock.Anything, "group:"+group.String(), 50).Return([]*domain.Message{}, nil)

	msgs, err := svc.List(context.Background(), &domain.ListMessagesRequest{From: uuid.New(), GroupID: &group})
	require.NoError(t, err)
	assert.Empty(t, msgs)
	repo.AssertExpectations(t)
}

func TestEdit(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := newTestService(repo)
	sender := uuid.New()
	msg := &domain.Message{MessageID: uuid.New(), SenderID: sender, Text: "first"}

	repo.On("GetByID", mock.Anything, msg.MessageID).Return(msg, nil)
	repo.On("Update", mock.Anything, msg).Return(nil)

	edited, err := svc.Edit(context.Background(), msg.MessageID, sender, "second")
	require.NoError(t, err)
	assert.Equal(t, "second", edited.Text)
	assert.True(t, edited.Edited.IsEdited)
	assert.Equal(t, "first", edited.Edited.OriginalText)
	require.NotNil(t, edited.Edited.EditedAt)

	edited, err = svc.Edit(context.Background(), msg.MessageID, sender, "third")
	require.NoError(t, err)
	assert.Equal(t, "third", edited.Text)
	assert.Equal(t, "first", edited.Edited.OriginalText)

	_, err = svc.Edit(context.Background(), msg.MessageID, uuid.New(), "hijack")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))

	_, err = svc.Edit(context.Background(), msg.MessageID, sender, "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingField))
}

func TestEdit_NotFound(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := newTestService(repo)
	id := uuid.New()
	repo.On("GetByID", mock.Anything, id).Return(nil, domain.ErrNotFound)

	_, err := svc.Edit(context.Background(), id, uuid.New(), "text")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestDelete(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := newTestService(repo)
	sender := uuid.New()
	msg := &domain.Message{MessageID: uuid.New(), SenderID: sender, Text: "oops"}

	repo.On("GetByID", mock.Anything, msg.MessageID).Return(msg, nil)
	repo.On("Update", mock.Anything, msg).Return(nil).Once()

	err := svc.Delete(context.Background(), msg.MessageID, uuid.New())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))

	require.NoError(t, svc.Delete(context.Background(), msg.MessageID, sender))
	assert.True(t, msg.IsDeleted)
	assert.NotNil(t, msg.DeletedAt)

	err = svc.Delete(context.Background(), msg.MessageID, sender)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	repo.AssertNumberOfCalls(t, "Update", 1)
}

func TestReact_ReplacesEarlierReaction(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := newTestService(repo)
	user := uuid.New()
	msg := &domain.Message{MessageID: uuid.New(), SenderID: uuid.New()}

	repo.On("GetByID", mock.Anything, msg.MessageID).Return(msg, nil)
	repo.On("SetReaction", mock.Anything, msg, user, mock.Anything).Return(nil)

	_, err := svc.React(context.Background(), msg.MessageID, user, "👍")
	require.NoError(t, err)
	reacted, err := svc.React(context.Background(), msg.MessageID, user, "😂")
	require.NoError(t, err)

	assert.Len(t, reacted.Reactions, 1)
	assert.Equal(t, "😂", reacted.Reactions[user])

	_, err = svc.React(context.Background(), msg.MessageID, user, "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingField))
}
