// Package constants defines application-wide constants for timeouts, limits, and durations.
package constants

import "time"

// Time-related constants
const (
	// DefaultTimeout is the default timeout for most operations
	DefaultTimeout = 30 * time.Second

	// WebSocketPingInterval is how often the server pings a websocket peer
	WebSocketPingInterval = 54 * time.Second

	// WebSocketPongWait is how long a peer may stay silent before it is dropped
	WebSocketPongWait = 60 * time.Second

	// WebSocketWriteWait bounds a single frame write
	WebSocketWriteWait = 10 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful server shutdown
	GracefulShutdownTimeout = 30 * time.Second
)

// Database connection constants
const (
	// MaxConnLifetime is the maximum lifetime of a database connection
	MaxConnLifetime = 1 * time.Hour

	// MaxConnIdleTime is the maximum idle time for a database connection
	MaxConnIdleTime = 30 * time.Minute

	// HealthCheckPeriod is the interval between database health checks
	HealthCheckPeriod = 1 * time.Minute
)

// Media constants
const (
	// UploadURLExpiry is how long an upload URL and its token stay valid
	UploadURLExpiry = time.Hour

	// MediaRetention is how long a media record lives before the store purges it
	MediaRetention = 30 * 24 * time.Hour

	// SignedURLExpiry is the validity of a presigned download URL
	SignedURLExpiry = 24 * time.Hour

	MaxImageSize    = 10 * 1024 * 1024
	MaxVideoSize    = 100 * 1024 * 1024
	MaxAudioSize    = 50 * 1024 * 1024
	MaxDocumentSize = 25 * 1024 * 1024
)

// Story constants
const (
	// StoryLifetime is the default time a story stays visible
	StoryLifetime = 24 * time.Hour
)

// Call constants
const (
	// DefaultMaxCallParticipants is the default settings.maxParticipants of a new call
	DefaultMaxCallParticipants = 10
)

// Pagination constants
const (
	// DefaultPageSize is the default number of items per page
	DefaultPageSize = 20

	// DefaultMessagePageSize is the default page size of a conversation fetch
	DefaultMessagePageSize = 50

	// MaxPageSize is the maximum number of items per page
	MaxPageSize = 100
)

// Message constants
const (
	// MaxMessageLength is the maximum allowed message length
	MaxMessageLength = 10000
)
