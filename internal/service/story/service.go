package story

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
	"boingbox-backend/pkg/sanitize"
)

// StoryRepository persists stories. Update applies fn atomically and stores
// the result only when fn returns nil.
type StoryRepository interface {
	Create(ctx context.Context, story *domain.Story) error
	GetByID(ctx context.Context, storyID uuid.UUID) (*domain.Story, error)
	Update(ctx context.Context, storyID uuid.UUID, fn func(*domain.Story) error) (*domain.Story, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Story, error)
	ListAll(ctx context.Context) ([]*domain.Story, error)
}

// Service handles story business logic
type Service struct {
	repo StoryRepository
	now  func() time.Time
}

// NewService creates a new story service
func NewService(repo StoryRepository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// Create publishes a story for 24 hours
func (s *Service) Create(ctx context.Context, req *domain.CreateStoryRequest) (*domain.Story, error) {
	if req.UserID == uuid.Nil {
		return nil, apperrors.MissingFieldError("userId")
	}

	content := req.Content
	switch req.Type {
	case domain.StoryTypeText:
		content.Text = sanitize.Text(content.Text)
		if content.Text == "" {
			return nil, apperrors.ValidationError("Text stories need content.text")
		}
	case domain.StoryTypeImage, domain.StoryTypeVideo:
		if content.Media == nil || content.Media.URL == "" {
			return nil, apperrors.ValidationError("Media stories need content.media.url")
		}
	case "":
		return nil, apperrors.MissingFieldError("type")
	default:
		return nil, apperrors.ValidationError("Invalid story type")
	}

	now := s.now()
	story := &domain.Story{
		StoryID:   uuid.New(),
		UserID:    req.UserID,
		Type:      req.Type,
		Content:   content,
		Style:     mergeStyle(req.Style),
		Views:     []domain.StoryView{},
		Replies:   []domain.StoryReply{},
		IsActive:  true,
		CreatedAt: now,
		ExpiresAt: now.Add(constants.StoryLifetime),
	}

	if err := s.repo.Create(ctx, story); err != nil {
		return nil, fmt.Errorf("failed to create story: %w", err)
	}

	metrics.StoryEventsTotal.WithLabelValues("create").Inc()
	logger.FromContext(ctx).Info("Story created",
		zap.String("story_id", story.StoryID.String()),
		zap.String("user_id", story.UserID.String()),
		zap.String("type", string(story.Type)))

	return story, nil
}

// ListByUser returns the visible stories of userID, newest first
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Story, error) {
	if userID == uuid.Nil {
		return nil, apperrors.MissingFieldError("userId")
	}
	stories, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	return s.visible(stories), nil
}

// ListAll returns every visible story, newest first
func (s *Service) ListAll(ctx context.Context) ([]*domain.Story, error) {
	stories, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	return s.visible(stories), nil
}

// View records that viewer saw the story. Repeat views are not recorded twice.
func (s *Service) View(ctx context.Context, storyID, viewer uuid.UUID) (*domain.Story, error) {
	if storyID == uuid.Nil {
		return nil, apperrors.MissingFieldError("storyId")
	}
	if viewer == uuid.Nil {
		return nil, apperrors.MissingFieldError("userId")
	}

	return s.update(ctx, "view", storyID, func(story *domain.Story) error {
		if err := s.requireVisible(story); err != nil {
			return err
		}
		if !story.HasViewed(viewer) {
			story.Views = append(story.Views, domain.StoryView{UserID: viewer, ViewedAt: s.now()})
		}
		return nil
	})
}

// Reply attaches a private reply from userID
func (s *Service) Reply(ctx context.Context, storyID, userID uuid.UUID, message string) (*domain.Story, error) {
	message = sanitize.Text(message)
	switch {
	case storyID == uuid.Nil:
		return nil, apperrors.MissingFieldError("storyId")
	case userID == uuid.Nil:
		return nil, apperrors.MissingFieldError("userId")
	case message == "":
		return nil, apperrors.MissingFieldError("message")
	case len(message) > constants.MaxMessageLength:
		return nil, apperrors.ValidationError("Reply is too long")
	}

	return s.update(ctx, "reply", storyID, func(story *domain.Story) error {
		if err := s.requireVisible(story); err != nil {
			return err
		}
		story.Replies = append(story.Replies, domain.StoryReply{
			UserID:    userID,
			Message:   message,
			CreatedAt: s.now(),
		})
		return nil
	})
}

// Delete hides the story. Owner only.
func (s *Service) Delete(ctx context.Context, storyID, actor uuid.UUID) error {
	if storyID == uuid.Nil {
		return apperrors.MissingFieldError("storyId")
	}

	_, err := s.update(ctx, "delete", storyID, func(story *domain.Story) error {
		if story.UserID != actor {
			return apperrors.ForbiddenError("Only the owner can delete this story")
		}
		story.IsActive = false
		return nil
	})
	return err
}

func (s *Service) update(ctx context.Context, event string, storyID uuid.UUID, fn func(*domain.Story) error) (*domain.Story, error) {
	story, err := s.repo.Update(ctx, storyID, fn)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperrors.StoryNotFoundError()
		}
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to %s story: %w", event, err)
	}
	metrics.StoryEventsTotal.WithLabelValues(event).Inc()
	return story, nil
}

func (s *Service) requireVisible(story *domain.Story) error {
	if !story.IsActive {
		return apperrors.StateConflictError("Story is no longer available")
	}
	if story.IsExpired(s.now()) {
		return apperrors.StateConflictError("Story has expired")
	}
	return nil
}

func (s *Service) visible(stories []*domain.Story) []*domain.Story {
	now := s.now()
	out := make([]*domain.Story, 0, len(stories))
	for _, story := range stories {
		if story.Visible(now) {
			out = append(out, story)
		}
	}
	return out
}

// mergeStyle fills every unset field of style with the default
func mergeStyle(style *domain.StoryStyle) domain.StoryStyle {
	merged := domain.DefaultStoryStyle()
	if style == nil {
		return merged
	}
	if style.BackgroundColor != "" {
		merged.BackgroundColor = style.BackgroundColor
	}
	if style.TextColor != "" {
		merged.TextColor = style.TextColor
	}
	if style.FontSize > 0 {
		merged.FontSize = style.FontSize
	}
	if style.FontFamily != "" {
		merged.FontFamily = style.FontFamily
	}
	if style.TextPosition != (domain.TextPosition{}) {
		merged.TextPosition = style.TextPosition
	}
	return merged
}
