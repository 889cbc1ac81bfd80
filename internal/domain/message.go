package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChatType distinguishes one-to-one from group conversations
type ChatType string

const (
	ChatTypePrivate ChatType = "private"
	ChatTypeGroup   ChatType = "group"
)

// MessageType is the content kind of a message
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeVideo    MessageType = "video"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeDocument MessageType = "document"
	MessageTypeEmoji    MessageType = "emoji"
)

// MessageMedia points at an uploaded attachment
type MessageMedia struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Size      int64  `json:"size,omitempty"`
	MimeType  string `json:"mimeType,omitempty"`
	Duration  int    `json:"duration,omitempty"`
	Waveform  string `json:"waveform,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// MessageEdit tracks edits; OriginalText is captured on the first edit only
type MessageEdit struct {
	IsEdited     bool       `json:"isEdited"`
	EditedAt     *time.Time `json:"editedAt,omitempty"`
	OriginalText string     `json:"originalText,omitempty"`
}

// Message is a persisted chat message. Messages are partitioned by
// conversation key and a monthly bucket.
type Message struct {
	MessageID       uuid.UUID            `json:"_id"`
	ConversationKey string               `json:"-"`
	Bucket          int                  `json:"-"`
	SenderID        uuid.UUID            `json:"sender"`
	RecipientID     *uuid.UUID           `json:"to,omitempty"`
	GroupID         *uuid.UUID           `json:"groupId,omitempty"`
	ChatType        ChatType             `json:"chatType"`
	Type            MessageType          `json:"type"`
	Text            string               `json:"text,omitempty"`
	Media           *MessageMedia        `json:"media,omitempty"`
	ReplyTo         *uuid.UUID           `json:"replyTo,omitempty"`
	Edited          MessageEdit          `json:"edited"`
	Reactions       map[uuid.UUID]string `json:"reactions,omitempty"`
	IsDeleted       bool                 `json:"-"`
	DeletedAt       *time.Time           `json:"-"`
	CreatedAt       time.Time            `json:"timestamp"`
	FromSelf        bool                 `json:"fromSelf"`
}

// ConversationKey names the partition holding a private pair or a group.
// A private key is independent of who sent the message.
func ConversationKey(from uuid.UUID, to, groupID *uuid.UUID) string {
	if groupID != nil {
		return "group:" + groupID.String()
	}
	a, b := from.String(), to.String()
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("private:%s:%s", a, b)
}

// CalculateBucket returns the monthly bucket (yyyymm) of t
func CalculateBucket(t time.Time) int {
	t = t.UTC()
	return t.Year()*100 + int(t.Month())
}

// PreviousBucket returns the bucket of the month before bucket
func PreviousBucket(bucket int) int {
	year, month := bucket/100, bucket%100
	if month == 1 {
		return (year-1)*100 + 12
	}
	return year*100 + month - 1
}

// SendMessageRequest is the addmsg payload. Message is the text; Media is required for non text types.
type SendMessageRequest struct {
	From    uuid.UUID     `json:"from" binding:"required"`
	To      *uuid.UUID    `json:"to"`
	GroupID *uuid.UUID    `json:"groupId"`
	Message string        `json:"message"`
	Type    MessageType   `json:"type" binding:"omitempty,oneof=text image video audio document emoji"`
	ReplyTo *uuid.UUID    `json:"replyTo"`
	Media   *MessageMedia `json:"media"`
}

// ListMessagesRequest is the getmsg payload
type ListMessagesRequest struct {
	From    uuid.UUID  `json:"from" binding:"required"`
	To      *uuid.UUID `json:"to"`
	GroupID *uuid.UUID `json:"groupId"`
	Page    int        `json:"page"`
	Limit   int        `json:"limit"`
}
