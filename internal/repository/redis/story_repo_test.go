package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boingbox-backend/internal/domain"
)

func newStoryRepo(t *testing.T) (*StoryRepository, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStoryRepository(rdb), mr
}

func newStory(userID uuid.UUID, created time.Time) *domain.Story {
	return &domain.Story{
		StoryID:   uuid.New(),
		UserID:    userID,
		Type:      domain.StoryTypeText,
		Content:   domain.StoryContent{Text: "hello"},
		Style:     domain.DefaultStoryStyle(),
		IsActive:  true,
		CreatedAt: created,
		ExpiresAt: created.Add(24 * time.Hour),
	}
}

func TestStoryRepository_CreateAndGet(t *testing.T) {
	repo, mr := newStoryRepo(t)
	ctx := context.Background()
	story := newStory(uuid.New(), time.Now())

	require.NoError(t, repo.Create(ctx, story))

	got, err := repo.GetByID(ctx, story.StoryID)
	require.NoError(t, err)
	assert.Equal(t, story.StoryID, got.StoryID)
	assert.Equal(t, "hello", got.Content.Text)
	assert.True(t, mr.Exists("story:"+story.StoryID.String()))
	assert.Greater(t, mr.TTL("story:"+story.StoryID.String()), 23*time.Hour)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoryRepository_ListNewestFirst(t *testing.T) {
	repo, _ := newStoryRepo(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	base := time.Now()

	first := newStory(alice, base)
	second := newStory(bob, base.Add(time.Minute))
	third := newStory(alice, base.Add(2*time.Minute))
	for _, s := range []*domain.Story{first, second, third} {
		require.NoError(t, repo.Create(ctx, s))
	}

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, third.StoryID, all[0].StoryID)
	assert.Equal(t, second.StoryID, all[1].StoryID)
	assert.Equal(t, first.StoryID, all[2].StoryID)

	mine, err := repo.ListByUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, third.StoryID, mine[0].StoryID)

	empty, err := repo.ListByUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestStoryRepository_ExpiredKeysArePruned(t *testing.T) {
	repo, mr := newStoryRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now()

	old := newStory(userID, now)
	old.ExpiresAt = now.Add(time.Hour)
	fresh := newStory(userID, now.Add(time.Second))
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, fresh))

	mr.FastForward(2 * time.Hour)

	stories, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, fresh.StoryID, stories[0].StoryID)

	members, err := mr.ZMembers("stories:user:" + userID.String())
	require.NoError(t, err)
	assert.Equal(t, []string{fresh.StoryID.String()}, members)
	members, err = mr.ZMembers(allStoriesKey)
	require.NoError(t, err)
	assert.Equal(t, []string{fresh.StoryID.String()}, members)
}

func TestStoryRepository_Update(t *testing.T) {
	repo, mr := newStoryRepo(t)
	ctx := context.Background()
	story := newStory(uuid.New(), time.Now())
	require.NoError(t, repo.Create(ctx, story))

	updated, err := repo.Update(ctx, story.StoryID, func(s *domain.Story) error {
		s.IsActive = false
		return nil
	})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	got, err := repo.GetByID(ctx, story.StoryID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Greater(t, mr.TTL("story:"+story.StoryID.String()), 23*time.Hour)

	boom := errors.New("boom")
	_, err = repo.Update(ctx, story.StoryID, func(s *domain.Story) error { return boom })
	assert.ErrorIs(t, err, boom)

	_, err = repo.Update(ctx, uuid.New(), func(s *domain.Story) error { return nil })
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoryRepository_ConcurrentUpdatesAreNotLost(t *testing.T) {
	repo, _ := newStoryRepo(t)
	ctx := context.Background()
	story := newStory(uuid.New(), time.Now())
	require.NoError(t, repo.Create(ctx, story))

	const writers = 4
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, story.StoryID, func(s *domain.Story) error {
				s.Views = append(s.Views, domain.StoryView{UserID: uuid.New(), ViewedAt: time.Now()})
				return nil
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := repo.GetByID(ctx, story.StoryID)
	require.NoError(t, err)
	assert.Len(t, got.Views, succeeded)
	assert.Positive(t, succeeded)
}
