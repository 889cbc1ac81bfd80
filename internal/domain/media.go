package domain

import (
	"time"

	"github.com/google/uuid"
)

// MediaType is the coarse kind of an uploaded file
type MediaType string

const (
	MediaTypeImage    MediaType = "image"
	MediaTypeVideo    MediaType = "video"
	MediaTypeAudio    MediaType = "audio"
	MediaTypeDocument MediaType = "document"
)

// MediaStatus only ever moves forward: uploading, processing, then completed or failed
type MediaStatus string

const (
	MediaStatusUploading  MediaStatus = "uploading"
	MediaStatusProcessing MediaStatus = "processing"
	MediaStatusCompleted  MediaStatus = "completed"
	MediaStatusFailed     MediaStatus = "failed"
)

// CanAdvanceTo reports whether next is a legal successor of s
func (s MediaStatus) CanAdvanceTo(next MediaStatus) bool {
	switch s {
	case MediaStatusUploading:
		return next == MediaStatusProcessing || next == MediaStatusFailed
	case MediaStatusProcessing:
		return next == MediaStatusCompleted || next == MediaStatusFailed
	}
	return false
}

// MediaURLs are object keys of the original upload and its derived renditions
type MediaURLs struct {
	Original  string `json:"original,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Preview   string `json:"preview,omitempty"`
	Waveform  string `json:"waveform,omitempty"`
	Optimized string `json:"optimized,omitempty"`
}

// MediaMetadata is filled in by the processor
type MediaMetadata struct {
	Width              int    `json:"width,omitempty"`
	Height             int    `json:"height,omitempty"`
	Duration           int    `json:"duration,omitempty"` // seconds
	FPS                int    `json:"fps,omitempty"`
	Channels           int    `json:"channels,omitempty"`
	SampleRate         int    `json:"sampleRate,omitempty"`
	Format             string `json:"format,omitempty"`
	ThumbnailGenerated bool   `json:"thumbnailGenerated,omitempty"`
	WaveformGenerated  bool   `json:"waveformGenerated,omitempty"`
}

// MediaProcessing records the outcome of the background step
type MediaProcessing struct {
	Error            string     `json:"error,omitempty"`
	ProcessingTimeMs int64      `json:"processingTime,omitempty"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// MediaPermissions decides who may fetch a signed download URL
type MediaPermissions struct {
	IsPublic     bool        `json:"isPublic"`
	AllowedUsers []uuid.UUID `json:"allowedUsers,omitempty"`
}

// Allows reports whether userID may download media owned by uploader
func (p MediaPermissions) Allows(uploader, userID uuid.UUID) bool {
	if p.IsPublic || uploader == userID {
		return true
	}
	for _, id := range p.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// Media is the pipeline's tracking record for one uploaded file.
// The bytes live in object storage; the record expires with ExpiresAt.
type Media struct {
	FileID       uuid.UUID        `json:"fileId"`
	OriginalName string           `json:"originalName"`
	MimeType     string           `json:"mimeType"`
	Size         int64            `json:"size"`
	Type         MediaType        `json:"type"`
	Uploader     uuid.UUID        `json:"uploader"`
	Status       MediaStatus      `json:"status"`
	URLs         MediaURLs        `json:"urls"`
	Metadata     MediaMetadata    `json:"metadata"`
	Processing   MediaProcessing  `json:"processing"`
	Permissions  MediaPermissions `json:"permissions"`
	UploadToken  string           `json:"-"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
	ExpiresAt    time.Time        `json:"expiresAt"`
}

// UploadRequest describes a file the client intends to upload
type UploadRequest struct {
	UserID   uuid.UUID `json:"userId" binding:"required"`
	FileName string    `json:"fileName" binding:"required"`
	FileSize int64     `json:"fileSize" binding:"required,min=1"`
	MimeType string    `json:"mimeType" binding:"required"`
	FileType MediaType `json:"fileType" binding:"required"`
}

// UploadTicket is returned by a successful upload request
type UploadTicket struct {
	FileID      uuid.UUID `json:"fileId"`
	UploadURL   string    `json:"uploadUrl"`
	UploadToken string    `json:"uploadToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// UploadReceipt is returned once the bytes are stored and processing is queued
type UploadReceipt struct {
	MediaID       uuid.UUID   `json:"mediaId"`
	Status        MediaStatus `json:"status"`
	EstimatedTime int         `json:"estimatedTime"` // seconds
}

// SignedURL is a temporary download link
type SignedURL struct {
	URL       string    `json:"signedUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// MediaWorkItem is one unit of background processing
type MediaWorkItem struct {
	MediaID uuid.UUID
	Path    string
	Type    MediaType
}
