package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"boingbox-backend/internal/domain"
	"boingbox-backend/pkg/constants"
	apperrors "boingbox-backend/pkg/errors"
	"boingbox-backend/pkg/jwt"
	"boingbox-backend/pkg/logger"
	"boingbox-backend/pkg/metrics"
	"boingbox-backend/pkg/pagination"
	"boingbox-backend/pkg/sanitize"
)

// MediaRepository persists media tracking records
type MediaRepository interface {
	Create(ctx context.Context, m *domain.Media) error
	GetByID(ctx context.Context, fileID uuid.UUID) (*domain.Media, error)
	Advance(ctx context.Context, m *domain.Media, from domain.MediaStatus) error
	Delete(ctx context.Context, fileID uuid.UUID) error
	ListByUploader(ctx context.Context, uploader uuid.UUID, mediaType domain.MediaType, limit, offset int) ([]*domain.Media, error)
	ListByStatus(ctx context.Context, status domain.MediaStatus) ([]*domain.Media, error)
}

var maxSizes = map[domain.MediaType]int64{
	domain.MediaTypeImage:    constants.MaxImageSize,
	domain.MediaTypeVideo:    constants.MaxVideoSize,
	domain.MediaTypeAudio:    constants.MaxAudioSize,
	domain.MediaTypeDocument: constants.MaxDocumentSize,
}

// estimated processing time in seconds, reported to the uploader
var estimatedSeconds = map[domain.MediaType]int{
	domain.MediaTypeImage:    5,
	domain.MediaTypeVideo:    30,
	domain.MediaTypeAudio:    15,
	domain.MediaTypeDocument: 10,
}

// Service handles the media intake pipeline
type Service struct {
	repo           MediaRepository
	store          ObjectStorage
	processor      *Processor
	tokens         *jwt.UploadTokenManager
	enqueueTimeout time.Duration
	now            func() time.Time
}

// NewService creates a new media service
func NewService(repo MediaRepository, store ObjectStorage, processor *Processor, tokens *jwt.UploadTokenManager, enqueueTimeout time.Duration) *Service {
	return &Service{
		repo:           repo,
		store:          store,
		processor:      processor,
		tokens:         tokens,
		enqueueTimeout: enqueueTimeout,
		now:            time.Now,
	}
}

// ValidateUpload checks the declared type and size of an upload
func ValidateUpload(mediaType domain.MediaType, size int64) error {
	limit, ok := maxSizes[mediaType]
	if !ok {
		metrics.MediaUploadRejectedTotal.WithLabelValues("type").Inc()
		return apperrors.ValidationError("File type not allowed")
	}
	if size <= 0 {
		metrics.MediaUploadRejectedTotal.WithLabelValues("size").Inc()
		return apperrors.MissingFieldError("fileSize")
	}
	if size > limit {
		metrics.MediaUploadRejectedTotal.WithLabelValues("size").Inc()
		return apperrors.ValidationError(
			fmt.Sprintf("File size exceeds the %d MB limit for %s files", limit/(1024*1024), mediaType))
	}
	return nil
}

// RequestUpload registers an upload and returns where and with which token to send the bytes
func (s *Service) RequestUpload(ctx context.Context, req domain.UploadRequest) (*domain.UploadTicket, error) {
	switch {
	case req.UserID == uuid.Nil:
		return nil, apperrors.MissingFieldError("userId")
	case req.FileName == "":
		return nil, apperrors.MissingFieldError("fileName")
	case req.MimeType == "":
		return nil, apperrors.MissingFieldError("mimeType")
	case req.FileType == "":
		return nil, apperrors.MissingFieldError("fileType")
	}
	if err := ValidateUpload(req.FileType, req.FileSize); err != nil {
		return nil, err
	}

	fileID := uuid.New()
	token, expiresAt, err := s.tokens.Issue(fileID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue upload token: %w", err)
	}

	now := s.now()
	m := &domain.Media{
		FileID:       fileID,
		OriginalName: sanitize.Filename(req.FileName),
		MimeType:     req.MimeType,
		Size:         req.FileSize,
		Type:         req.FileType,
		Uploader:     req.UserID,
		Status:       domain.MediaStatusUploading,
		UploadToken:  token,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(constants.MediaRetention),
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save media metadata: %w", err)
	}

	metrics.MediaUploadSizeBytes.WithLabelValues(string(m.Type)).Observe(float64(m.Size))

	return &domain.UploadTicket{
		FileID:      fileID,
		UploadURL:   "/v1/media/upload/" + fileID.String(),
		UploadToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

// SubmitUpload stores the bytes of a registered upload and queues processing
func (s *Service) SubmitUpload(ctx context.Context, fileID uuid.UUID, token, filename string, reader io.Reader, size int64) (*domain.UploadReceipt, error) {
	m, err := s.get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if m.Status != domain.MediaStatusUploading {
		return nil, apperrors.StateConflictError("Media is not awaiting upload")
	}
	if token == "" || token != m.UploadToken {
		return nil, apperrors.ForbiddenError("Invalid upload token")
	}
	if _, err := s.tokens.Validate(token, fileID); err != nil {
		return nil, apperrors.ForbiddenError("Invalid or expired upload token")
	}
	if err := ValidateUpload(m.Type, size); err != nil {
		return nil, err
	}

	if filename == "" {
		filename = m.OriginalName
	}
	key := fmt.Sprintf("media/%s/%s/%s", m.Uploader, m.FileID, sanitize.Filename(filename))
	if err := s.store.Put(ctx, key, reader, size, m.MimeType); err != nil {
		return nil, apperrors.StorageError(err)
	}

	m.URLs.Original = key
	m.Size = size
	m.Status = domain.MediaStatusProcessing
	m.UploadToken = ""
	m.UpdatedAt = s.now()
	if err := s.repo.Advance(ctx, m, domain.MediaStatusUploading); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			return nil, apperrors.StateConflictError("Media is not awaiting upload")
		}
		return nil, fmt.Errorf("failed to update media status: %w", err)
	}

	enqueueCtx, cancel := context.WithTimeout(ctx, s.enqueueTimeout)
	defer cancel()
	item := domain.MediaWorkItem{MediaID: m.FileID, Path: key, Type: m.Type}
	if err := s.processor.Enqueue(enqueueCtx, item); err != nil {
		logger.FromContext(ctx).Warn("Processing queue full, upload rejected",
			zap.String("media_id", m.FileID.String()),
			zap.Error(err))
		s.fail(ctx, m, "processing queue full")
		return nil, apperrors.ServiceUnavailableError("Media processing is busy, please retry later")
	}

	return &domain.UploadReceipt{
		MediaID:       m.FileID,
		Status:        m.Status,
		EstimatedTime: estimatedSeconds[m.Type],
	}, nil
}

// Status returns the current record of a media item
func (s *Service) Status(ctx context.Context, fileID uuid.UUID) (*domain.Media, error) {
	return s.get(ctx, fileID)
}

// SignedURL issues a temporary download URL for completed media
func (s *Service) SignedURL(ctx context.Context, fileID, userID uuid.UUID) (*domain.SignedURL, error) {
	m, err := s.get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if m.Status != domain.MediaStatusCompleted {
		return nil, apperrors.StateConflictError("Media is not ready")
	}
	if !m.Permissions.Allows(m.Uploader, userID) {
		return nil, apperrors.ForbiddenError("You do not have access to this media")
	}

	u, err := s.store.PresignedGet(ctx, m.URLs.Original, constants.SignedURLExpiry)
	if err != nil {
		return nil, apperrors.StorageError(err)
	}

	return &domain.SignedURL{
		URL:       u.String(),
		ExpiresAt: s.now().Add(constants.SignedURLExpiry),
	}, nil
}

// Delete removes media and its stored objects. Uploader only.
func (s *Service) Delete(ctx context.Context, fileID, userID uuid.UUID) error {
	m, err := s.get(ctx, fileID)
	if err != nil {
		return err
	}
	if m.Uploader != userID {
		return apperrors.ForbiddenError("Only the uploader can delete this media")
	}

	for _, key := range []string{m.URLs.Original, m.URLs.Thumbnail, m.URLs.Preview, m.URLs.Waveform, m.URLs.Optimized} {
		if key == "" {
			continue
		}
		if err := s.store.Remove(ctx, key); err != nil {
			return apperrors.StorageError(err)
		}
	}

	if err := s.repo.Delete(ctx, fileID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to delete media record: %w", err)
	}
	return nil
}

// ListByUser returns a page of the user's media, newest first
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, mediaType domain.MediaType, page pagination.Params) ([]*domain.Media, error) {
	if mediaType != "" {
		if _, ok := maxSizes[mediaType]; !ok {
			return nil, apperrors.ValidationError("Invalid media type")
		}
	}

	items, err := s.repo.ListByUploader(ctx, userID, mediaType, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	if items == nil {
		items = []*domain.Media{}
	}
	return items, nil
}

// Recover re-queues media left in processing by a previous run. Records
// whose bytes are gone are marked failed.
func (s *Service) Recover(ctx context.Context) (int, error) {
	pending, err := s.repo.ListByStatus(ctx, domain.MediaStatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending media: %w", err)
	}

	requeued := 0
	for _, m := range pending {
		ok := false
		if m.URLs.Original != "" {
			ok, err = s.store.Exists(ctx, m.URLs.Original)
			if err != nil {
				logger.Warn("Could not check stored media, leaving it for the next start",
					zap.String("media_id", m.FileID.String()),
					zap.Error(err))
				continue
			}
		}
		if !ok {
			s.fail(ctx, m, "uploaded file missing")
			continue
		}

		item := domain.MediaWorkItem{MediaID: m.FileID, Path: m.URLs.Original, Type: m.Type}
		if err := s.processor.Enqueue(ctx, item); err != nil {
			return requeued, fmt.Errorf("failed to requeue media: %w", err)
		}
		requeued++
	}

	if requeued > 0 {
		logger.Info("Requeued unfinished media", zap.Int("count", requeued))
	}
	return requeued, nil
}

func (s *Service) get(ctx context.Context, fileID uuid.UUID) (*domain.Media, error) {
	m, err := s.repo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperrors.MediaNotFoundError()
		}
		return nil, fmt.Errorf("failed to get media: %w", err)
	}
	return m, nil
}

// fail moves m from processing to failed, logging instead of returning errors
func (s *Service) fail(ctx context.Context, m *domain.Media, reason string) {
	m.Status = domain.MediaStatusFailed
	m.Processing.Error = reason
	m.UpdatedAt = s.now()
	if err := s.repo.Advance(ctx, m, domain.MediaStatusProcessing); err != nil {
		logger.Warn("Failed to mark media failed",
			zap.String("media_id", m.FileID.String()),
			zap.Error(err))
		return
	}
	metrics.MediaProcessedTotal.WithLabelValues(string(m.Type), string(m.Status)).Inc()
}
