package media

import (
	"context"
	"io"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"boingbox-backend/internal/domain"
)

// memoryMediaRepository enforces the same status precondition as the SQL update
type memoryMediaRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]domain.Media
}

func newMemoryMediaRepository() *memoryMediaRepository {
	return &memoryMediaRepository{items: make(map[uuid.UUID]domain.Media)}
}

func (r *memoryMediaRepository) Create(ctx context.Context, m *domain.Media) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[m.FileID] = *m
	return nil
}

func (r *memoryMediaRepository) GetByID(ctx context.Context, fileID uuid.UUID) (*domain.Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[fileID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &m, nil
}

func (r *memoryMediaRepository) Advance(ctx context.Context, m *domain.Media, from domain.MediaStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[m.FileID]
	if !ok || current.Status != from {
		return domain.ErrStatusConflict
	}
	r.items[m.FileID] = *m
	return nil
}

func (r *memoryMediaRepository) Delete(ctx context.Context, fileID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[fileID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.items, fileID)
	return nil
}

func (r *memoryMediaRepository) ListByUploader(ctx context.Context, uploader uuid.UUID, mediaType domain.MediaType, limit, offset int) ([]*domain.Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Media
	for _, m := range r.items {
		m := m
		if m.Uploader == uploader && (mediaType == "" || m.Type == mediaType) {
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (r *memoryMediaRepository) ListByStatus(ctx context.Context, status domain.MediaStatus) ([]*domain.Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Media
	for _, m := range r.items {
		m := m
		if m.Status == status {
			out = append(out, &m)
		}
	}
	return out, nil
}

func (r *memoryMediaRepository) status(id uuid.UUID) domain.MediaStatus {
	m, err := r.GetByID(context.Background(), id)
	if err != nil {
		return ""
	}
	return m.Status
}

// MockObjectStorage is a mock implementation of ObjectStorage
type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	args := m.Called(ctx, key, reader, size, contentType)
	return args.Error(0)
}

func (m *MockObjectStorage) PresignedGet(ctx context.Context, key string, expiry time.Duration) (*url.URL, error) {
	args := m.Called(ctx, key, expiry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*url.URL), args.Error(1)
}

func (m *MockObjectStorage) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockObjectStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}
