package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"boingbox-backend/internal/domain"
)

const (
	allStoriesKey = "stories:all"
	// optimistic transaction attempts before giving up on a contended story
	maxWatchRetries = 5
)

// ErrTooMuchContention is returned when a story keeps changing under a WATCH
var ErrTooMuchContention = errors.New("story updated concurrently, retries exhausted")

func storyKey(id uuid.UUID) string {
	return "story:" + id.String()
}

func userStoriesKey(userID uuid.UUID) string {
	return "stories:user:" + userID.String()
}

// StoryRepository stores stories in Redis. Each story lives at story:<id>
// and expires with the story; two sorted sets scored by creation time index
// it per user and globally.
type StoryRepository struct {
	client *redis.Client
}

// NewStoryRepository creates a new StoryRepository
func NewStoryRepository(client *redis.Client) *StoryRepository {
	return &StoryRepository{client: client}
}

// Create writes a new story and indexes it
func (r *StoryRepository) Create(ctx context.Context, story *domain.Story) error {
	data, err := json.Marshal(story)
	if err != nil {
		return fmt.Errorf("failed to encode story: %w", err)
	}

	key := storyKey(story.StoryID)
	member := redis.Z{Score: float64(story.CreatedAt.UnixMilli()), Member: story.StoryID.String()}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, 0)
		pipe.ExpireAt(ctx, key, story.ExpiresAt)
		pipe.ZAdd(ctx, userStoriesKey(story.UserID), member)
		pipe.ZAdd(ctx, allStoriesKey, member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save story: %w", err)
	}
	return nil
}

// GetByID returns a story or domain.ErrNotFound once it has been purged
func (r *StoryRepository) GetByID(ctx context.Context, storyID uuid.UUID) (*domain.Story, error) {
	data, err := r.client.Get(ctx, storyKey(storyID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return decodeStory(data)
}

// Update applies fn to the current story inside a WATCH transaction and
// retries when another writer got there first. fn errors abort the update
// and are returned as is.
func (r *StoryRepository) Update(ctx context.Context, storyID uuid.UUID, fn func(*domain.Story) error) (*domain.Story, error) {
	key := storyKey(storyID)
	var updated *domain.Story

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to get story: %w", err)
		}
		story, err := decodeStory(data)
		if err != nil {
			return err
		}
		if err := fn(story); err != nil {
			return err
		}
		encoded, err := json.Marshal(story)
		if err != nil {
			return fmt.Errorf("failed to encode story: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			pipe.ExpireAt(ctx, key, story.ExpiresAt)
			return nil
		})
		if err != nil {
			return err
		}
		updated = story
		return nil
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, ErrTooMuchContention
}

// ListByUser returns the stored stories of userID, newest first
func (r *StoryRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Story, error) {
	return r.listIndex(ctx, userStoriesKey(userID))
}

// ListAll returns every stored story, newest first
func (r *StoryRepository) ListAll(ctx context.Context) ([]*domain.Story, error) {
	return r.listIndex(ctx, allStoriesKey)
}

// listIndex resolves the members of a sorted set index. Members whose story
// key has expired are removed from the index.
func (r *StoryRepository) listIndex(ctx context.Context, index string) ([]*domain.Story, error) {
	ids, err := r.client.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read story index: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.Story{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "story:" + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load stories: %w", err)
	}

	stories := make([]*domain.Story, 0, len(ids))
	var gone []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			gone = append(gone, ids[i])
			continue
		}
		story, err := decodeStory([]byte(raw))
		if err != nil {
			return nil, err
		}
		stories = append(stories, story)
	}

	if len(gone) > 0 {
		if err := r.prune(ctx, index, gone); err != nil {
			return nil, err
		}
	}
	return stories, nil
}

func (r *StoryRepository) prune(ctx context.Context, index string, members []any) error {
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, index, members...)
		if index != allStoriesKey {
			pipe.ZRem(ctx, allStoriesKey, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to prune story index: %w", err)
	}
	return nil
}

func decodeStory(data []byte) (*domain.Story, error) {
	var story domain.Story
	if err := json.Unmarshal(data, &story); err != nil {
		return nil, fmt.Errorf("failed to decode story: %w", err)
	}
	return &story, nil
}
