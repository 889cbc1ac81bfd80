package media

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"boingbox-backend/internal/domain"
	apperrors "boingbox-backend/pkg/errors"
	"boingbox-backend/pkg/jwt"
	"boingbox-backend/pkg/pagination"
)

type mediaFixture struct {
	repo      *memoryMediaRepository
	store     *MockObjectStorage
	processor *Processor
	svc       *Service
}

func newMediaFixture(t *testing.T, cfg ProcessorConfig) *mediaFixture {
	t.Helper()
	repo := newMemoryMediaRepository()
	store := new(MockObjectStorage)
	processor := NewProcessor(repo, cfg)
	tokens := jwt.NewUploadTokenManager("test-upload-secret", time.Hour)
	return &mediaFixture{
		repo:      repo,
		store:     store,
		processor: processor,
		svc:       NewService(repo, store, processor, tokens, 50*time.Millisecond),
	}
}

func imageRequest(userID uuid.UUID, size int64) domain.UploadRequest {
	return domain.UploadRequest{
		UserID:   userID,
		FileName: "holiday photo.jpg",
		FileSize: size,
		MimeType: "image/jpeg",
		FileType: domain.MediaTypeImage,
	}
}

func (f *mediaFixture) upload(t *testing.T, userID uuid.UUID) (*domain.UploadTicket, *domain.UploadReceipt, error) {
	t.Helper()
	ticket, err := f.svc.RequestUpload(context.Background(), imageRequest(userID, 1024))
	require.NoError(t, err)
	receipt, err := f.svc.SubmitUpload(context.Background(), ticket.FileID, ticket.UploadToken, "holiday photo.jpg", strings.NewReader("bytes"), 1024)
	return ticket, receipt, err
}

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name      string
		mediaType domain.MediaType
		size      int64
		wantErr   bool
	}{
		{"image under limit", domain.MediaTypeImage, 9_000_000, false},
		{"image over limit", domain.MediaTypeImage, 11_000_000, true},
		{"video at limit", domain.MediaTypeVideo, 100 * 1024 * 1024, false},
		{"audio over limit", domain.MediaTypeAudio, 50*1024*1024 + 1, true},
		{"document", domain.MediaTypeDocument, 1, false},
		{"unknown type", "executable", 10, true},
		{"zero size", domain.MediaTypeImage, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.mediaType, tt.size)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequestUpload(t *testing.T) {
	f := newMediaFixture(t, ProcessorConfig{})
	userID := uuid.New()

	ticket, err := f.svc.RequestUpload(context.Background(), imageRequest(userID, 2048))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, ticket.FileID)
	assert.Equal(t, "/v1/media/upload/"+ticket.FileID.String(), ticket.UploadURL)
	assert.NotEmpty(t, ticket.UploadToken)
	assert.True(t, ticket.ExpiresAt.After(time.Now()))

	m, err := f.repo.GetByID(context.Background(), ticket.FileID)
	require.NoError(t, err)
	assert.Equal(t, domain.MediaStatusUploading, m.Status)
	assert.Equal(t, userID, m.Uploader)
	assert.Equal(t, ticket.UploadToken, m.UploadToken)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), m.ExpiresAt, time.Minute)
}

func TestRequestUpload_Rejected(t *testing.T) {
	f := newMediaFixture(t, ProcessorConfig{})

	_, err := f.svc.RequestUpload(context.Background(), imageRequest(uuid.New(), 11_000_000))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))

	req := imageRequest(uuid.Nil, 10)
	_, err = f.svc.RequestUpload(context.Background(), req)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingField))

	assert.Empty(t, f.repo.items)
}

func TestSubmitUpload_QueuesProcessing(t *testing.T) {
	f := newMediaFixture(t, ProcessorConfig{Workers: 1, QueueSize: 4})
	userID := uuid.New()
	f.store.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "media/"+userID.String()+"/")
	}), mock.Anything, int64(1024), "image/jpeg").Return(nil)

	ticket, receipt, err := f.upload(t, userID)
	require.NoError(t, err)

	assert.Equal(t, ticket.FileID, receipt.MediaID)
	assert.Equal(t, domain.MediaStatusProcessing, receipt.Status)
	assert.Equal(t, 5, receipt.EstimatedTime)
	assert.Equal(t, 1, f.processor.Len())

	m, err := f.repo.GetByID(context.Background(), ticket.FileID)
	require.NoError(t, err)
	assert.Equal(t, domain.MediaStatusProcessing, m.Status)
	assert.Empty(t, m.UploadToken)
	assert.Equal(t, "media/"+userID.String()+"/"+ticket.FileID.String()+"/holiday photo.jpg", m.URLs.Original)
	f.store.AssertExpectations(t)
}

func TestSubmitUpload_ProcessedToCompletion(t *testing.T) {
	f := newMediaFixture(t, ProcessorConfig{Workers: 2, QueueSize: 4})
	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.processor.Start(ctx)
	defer f.processor.Stop()

	ticket, _, err := f.upload(t, uuid.New())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.repo.status(ticket.FileID) == domain.MediaStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	m, err := f.svc.Status(ctx, ticket.FileID)
	require.NoError(t, err)
	assert.NotEmpty(t, m.URLs.Thumbnail)
	assert.True(t, m.Metadata.ThumbnailGenerated)
}

func TestSubmitUpload_QueueFull(t *testing.T) {
	f := newMediaFixture(t, ProcessorConfig{Workers: 1, QueueSize: 1})
	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, _, err := f.upload(t, uuid.New())
	require.NoError(t, err)

	ticket, _, err := f.upload(t, uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeServiceUnavail))

	m, err := f.repo.GetByID(context.Background(), ticket.FileID)
	require.NoError(t, err)
	assert.Equal(t, domain.MediaStatusFailed, m.Status)
	assert.Equal(t, "processing queue full", m.Processing.Error)
}

func TestSubmitUpload_TokenChecks(t *testing.T) {
	f := newMediaFixture(t, ProcessorConfig{QueueSize: 4})
	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	ticket, err := f.svc.RequestUpload(ctx, imageRequest(uuid.New(), 1024))
	require.NoError(t, err)

	_, err = f.svc.SubmitUpload(ctx, ticket.FileID, "not-the-token", "a.jpg", strings.NewReader("x"), 1024)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))

	other, err := f.svc.RequestUpload(ctx, imageRequest(uuid.New(), 1024))
	require.NoError(t, err)
	_, err = f.svc.SubmitUpload(ctx, ticket.FileID, other.UploadToken, "a.jpg", strings.NewReader("x"), 1024)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))

	_, err = f.svc.SubmitUpload(ctx, ticket.FileID, ticket.UploadToken, "a.jpg", strings.NewReader("x"), 1024)
	require.NoError(t, err)

	_, err = f.svc.SubmitUpload(ctx, ticket.FileID, ticket.UploadToken, "a.jpg", strings.NewReader("x"), 1024)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStateConflict))

	_, err = f.svc.SubmitUpload(ctx, uuid.New(), ticket.UploadToken, "a.jpg", strings.NewReader("x"), 1024)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMediaNotFound))
}

func TestSubmitUpload_StorageFailure(t *testing.T) {
	f := newMediaFixture(t, ProcessorConfig{QueueSize: 4})
	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("bucket unreachable"))

	ticket, _, err := f.upload(t, uuid.New())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStorage))
	assert.Equal(t, domain.MediaStatusUploading, f.repo.status(ticket.FileID))
	assert.Zero(t, f.processor.Len())
}

func TestSignedURL(t *testing.T) {
	f := newMediaFixture(t, ProcessorConfig{QueueSize: 4})
	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()
	owner := uuid.New()

	ticket, _, err := f.upload(t, owner)
	require.NoError(t, err)

	_, err = f.svc.SignedURL(ctx, ticket.FileID, owner)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStateConflict))

	f.processor.process(ctx, <-f.processor.queue)
	require.Equal(t, domain.MediaStatusCompleted, f.repo.status(ticket.FileID))

	signed, _ := url.Parse("https://minio.local/bucket/object?X-Amz-Signature=abc")
	f.store.On("PresignedGet", mock.Anything, mock.Anything, 24*time.Hour).Return(signed, nil)

	result, err := f.svc.SignedURL(ctx, ticket.FileID, owner)
	require.NoError(t, err)
	assert.Equal(t, signed.String(), result.URL)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), result.ExpiresAt, time.Minute)

	_, err = f.svc.SignedURL(ctx, ticket.FileID, uuid.New())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))
}

func TestDelete(t *testing.T) {
	f := newMediaFixture(t, ProcessorConfig{QueueSize: 4})
	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.store.On("Remove", mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()
	owner := uuid.New()

	ticket, _, err := f.upload(t, owner)
	require.NoError(t, err)
	f.processor.process(ctx, <-f.processor.queue)

	err = f.svc.Delete(ctx, ticket.FileID, uuid.New())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))

	require.NoError(t, f.svc.Delete(ctx, ticket.FileID, owner))
	// original and thumbnail
	f.store.AssertNumberOfCalls(t, "Remove", 2)

	_, err = f.svc.Status(ctx, ticket.FileID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMediaNotFound))
}

func TestListByUser(t *testing.T) {
	f := newMediaFixture(t, ProcessorConfig{})
	ctx := context.Background()
	owner := uuid.New()
	base := time.Now()

	for i := 0; i < 3; i++ {
		f.svc.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		_, err := f.svc.RequestUpload(ctx, imageRequest(owner, 100))
		require.NoError(t, err)
	}
	doc := imageRequest(owner, 100)
	doc.FileType = domain.MediaTypeDocument
	doc.MimeType = "application/pdf"
	_, err := f.svc.RequestUpload(ctx, doc)
	require.NoError(t, err)

	images, err := f.svc.ListByUser(ctx, owner, domain.MediaTypeImage, pagination.New(1, 2, 20))
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.True(t, images[0].CreatedAt.After(images[1].CreatedAt))

	all, err := f.svc.ListByUser(ctx, owner, "", pagination.New(1, 20, 20))
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := f.svc.ListByUser(ctx, uuid.New(), "", pagination.New(1, 20, 20))
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = f.svc.ListByUser(ctx, owner, "hologram", pagination.New(1, 20, 20))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
}

func TestRecover(t *testing.T) {
	f := newMediaFixture(t, ProcessorConfig{QueueSize: 4})
	ctx := context.Background()

	present := seedProcessing(t, f.repo, domain.MediaTypeImage, "media/u/a/present.jpg")
	missing := seedProcessing(t, f.repo, domain.MediaTypeImage, "media/u/b/missing.jpg")
	noPath := seedProcessing(t, f.repo, domain.MediaTypeAudio, "")

	f.store.On("Exists", mock.Anything, "media/u/a/present.jpg").Return(true, nil)
	f.store.On("Exists", mock.Anything, "media/u/b/missing.jpg").Return(false, nil)

	n, err := f.svc.Recover(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, 1, f.processor.Len())
	assert.Equal(t, domain.MediaStatusProcessing, f.repo.status(present))
	assert.Equal(t, domain.MediaStatusFailed, f.repo.status(missing))
	assert.Equal(t, domain.MediaStatusFailed, f.repo.status(noPath))
	f.store.AssertNotCalled(t, "Exists", mock.Anything, "")
}
