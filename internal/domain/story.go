package domain

import (
	"time"

	"github.com/google/uuid"
)

// StoryType is the kind of content a story carries
type StoryType string

const (
	StoryTypeText  StoryType = "text"
	StoryTypeImage StoryType = "image"
	StoryTypeVideo StoryType = "video"
)

// StoryMedia references an uploaded file shown by an image or video story
type StoryMedia struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Size      int64  `json:"size,omitempty"`
	MimeType  string `json:"mimeType,omitempty"`
	Duration  int    `json:"duration,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// StoryContent holds text or media, depending on the story type
type StoryContent struct {
	Text  string      `json:"text,omitempty"`
	Media *StoryMedia `json:"media,omitempty"`
}

// TextPosition places the text overlay, in percent of the canvas
type TextPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// StoryStyle is the presentation of a story
type StoryStyle struct {
	BackgroundColor string       `json:"backgroundColor"`
	TextColor       string       `json:"textColor"`
	FontSize        int          `json:"fontSize"`
	FontFamily      string       `json:"fontFamily"`
	TextPosition    TextPosition `json:"textPosition"`
}

// DefaultStoryStyle is used for any style field the client leaves empty
func DefaultStoryStyle() StoryStyle {
	return StoryStyle{
		BackgroundColor: "#000000",
		TextColor:       "#ffffff",
		FontSize:        16,
		FontFamily:      "Arial",
		TextPosition:    TextPosition{X: 50, Y: 50},
	}
}

// StoryView records one viewer
type StoryView struct {
	UserID   uuid.UUID `json:"user"`
	ViewedAt time.Time `json:"viewedAt"`
}

// StoryReply is a private reply to a story
type StoryReply struct {
	UserID    uuid.UUID `json:"user"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Story is a time boxed post. Deleting only clears IsActive; the store drops
// the record once ExpiresAt passes.
type Story struct {
	StoryID   uuid.UUID    `json:"storyId"`
	UserID    uuid.UUID    `json:"user"`
	Type      StoryType    `json:"type"`
	Content   StoryContent `json:"content"`
	Style     StoryStyle   `json:"style"`
	Views     []StoryView  `json:"views"`
	Replies   []StoryReply `json:"replies"`
	IsActive  bool         `json:"isActive"`
	CreatedAt time.Time    `json:"createdAt"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// IsExpired is true once now is past ExpiresAt
func (s *Story) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Visible reports whether readers should see the story at now
func (s *Story) Visible(now time.Time) bool {
	return s.IsActive && !s.IsExpired(now)
}

// HasViewed reports whether userID is already among the viewers
func (s *Story) HasViewed(userID uuid.UUID) bool {
	for _, v := range s.Views {
		if v.UserID == userID {
			return true
		}
	}
	return false
}

// CreateStoryRequest is the payload of a new story
type CreateStoryRequest struct {
	UserID  uuid.UUID    `json:"userId" binding:"required"`
	Type    StoryType    `json:"type" binding:"required,oneof=text image video"`
	Content StoryContent `json:"content"`
	Style   *StoryStyle  `json:"style"`
}
