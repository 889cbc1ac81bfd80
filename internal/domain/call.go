package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "boingbox-backend/pkg/errors"
)

// CallType is the media kind of a call
type CallType string

const (
	CallTypeVoice       CallType = "voice"
	CallTypeVideo       CallType = "video"
	CallTypeScreenShare CallType = "screen-share"
)

// CallStatus is the lifecycle state of a call
type CallStatus string

const (
	CallStatusRinging  CallStatus = "ringing"
	CallStatusOngoing  CallStatus = "ongoing"
	CallStatusEnded    CallStatus = "ended"
	CallStatusMissed   CallStatus = "missed"
	CallStatusDeclined CallStatus = "declined"
)

// IsTerminal reports whether no further transition is possible
func (s CallStatus) IsTerminal() bool {
	return s == CallStatusEnded || s == CallStatusMissed || s == CallStatusDeclined
}

// HistoryStatuses are the outcomes listed by the call history query
var HistoryStatuses = []CallStatus{CallStatusEnded, CallStatusMissed, CallStatusDeclined}

// CallSettings are the initiator controlled options of a call
type CallSettings struct {
	MaxParticipants  int    `json:"maxParticipants"`
	AllowScreenShare bool   `json:"allowScreenShare"`
	AllowRecording   bool   `json:"allowRecording"`
	Quality          string `json:"quality"` // low, medium, high
}

// DefaultCallSettings returns the settings of a new call
func DefaultCallSettings() CallSettings {
	return CallSettings{
		MaxParticipants:  10,
		AllowScreenShare: true,
		AllowRecording:   false,
		Quality:          "medium",
	}
}

// CallSettingsPatch is a partial settings update; nil fields are left untouched
type CallSettingsPatch struct {
	MaxParticipants  *int    `json:"maxParticipants" binding:"omitempty,min=2,max=100"`
	AllowScreenShare *bool   `json:"allowScreenShare"`
	AllowRecording   *bool   `json:"allowRecording"`
	Quality          *string `json:"quality" binding:"omitempty,oneof=low medium high"`
}

// RecordingState tracks an optional recording of the call
type RecordingState struct {
	IsRecording  bool       `json:"isRecording"`
	RecordingURL string     `json:"recordingUrl,omitempty"`
	StartTime    *time.Time `json:"startTime,omitempty"`
	EndTime      *time.Time `json:"endTime,omitempty"`
}

// CallParticipant is one user's membership and live media state in a call
type CallParticipant struct {
	UserID          uuid.UUID  `json:"user"`
	JoinedAt        *time.Time `json:"joinedAt,omitempty"`
	LeftAt          *time.Time `json:"leftAt,omitempty"`
	IsActive        bool       `json:"isActive"`
	IsMuted         bool       `json:"isMuted"`
	IsVideoOff      bool       `json:"isVideoOff"`
	IsScreenSharing bool       `json:"isScreenSharing"`
}

// ParticipantStatusPatch holds the media flags a participant may change on their own record
type ParticipantStatusPatch struct {
	IsMuted         *bool `json:"isMuted"`
	IsVideoOff      *bool `json:"isVideoOff"`
	IsScreenSharing *bool `json:"isScreenSharing"`
}

// Call is the durable record of one call. It is never deleted; ended calls form the history.
type Call struct {
	CallID       uuid.UUID         `json:"callId"`
	Type         CallType          `json:"type"`
	Initiator    uuid.UUID         `json:"initiator"`
	GroupID      *uuid.UUID        `json:"groupId,omitempty"`
	Participants []CallParticipant `json:"participants"`
	Status       CallStatus        `json:"status"`
	StartTime    *time.Time        `json:"startTime,omitempty"`
	EndTime      *time.Time        `json:"endTime,omitempty"`
	Duration     int               `json:"duration"` // seconds
	Settings     CallSettings      `json:"settings"`
	Recording    RecordingState    `json:"recording"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// Participant returns the caller's participant record, or nil when they are not listed
func (c *Call) Participant(userID uuid.UUID) *CallParticipant {
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			return &c.Participants[i]
		}
	}
	return nil
}

// ActiveCount counts participants currently in the call
func (c *Call) ActiveCount() int {
	n := 0
	for _, p := range c.Participants {
		if p.IsActive {
			n++
		}
	}
	return n
}

// Join marks userID active. The first participant to become active while the
// call is ringing moves it to ongoing and stamps the start time.
func (c *Call) Join(userID uuid.UUID, now time.Time) error {
	if c.Status == CallStatusEnded {
		return apperrors.StateConflictError("Call has already ended")
	}
	p := c.Participant(userID)
	if p == nil {
		return apperrors.ForbiddenError("You are not a participant in this call")
	}
	if c.Status.IsTerminal() {
		return apperrors.StateConflictError("Call is no longer available")
	}
	if !p.IsActive && c.ActiveCount() >= c.Settings.MaxParticipants {
		return apperrors.StateConflictError("Call is full")
	}

	firstActive := c.ActiveCount() == 0
	p.IsActive = true
	p.JoinedAt = &now
	p.LeftAt = nil

	if c.Status == CallStatusRinging && firstActive {
		c.Status = CallStatusOngoing
		c.StartTime = &now
	}
	c.UpdatedAt = now
	return nil
}

// Leave marks userID inactive. When nobody is left the call ends. Leaving a
// call that already reached a terminal state changes nothing.
func (c *Call) Leave(userID uuid.UUID, now time.Time) error {
	p := c.Participant(userID)
	if p == nil {
		return apperrors.ForbiddenError("You are not a participant in this call")
	}
	if c.Status.IsTerminal() {
		return nil
	}

	p.IsActive = false
	p.LeftAt = &now
	if c.ActiveCount() == 0 {
		c.finish(CallStatusEnded, now)
	}
	c.UpdatedAt = now
	return nil
}

// End forces the call to ended and disconnects everybody. Authorization is the caller's job.
func (c *Call) End(now time.Time) error {
	if c.Status.IsTerminal() {
		return apperrors.StateConflictError("Call has already ended")
	}
	c.disconnectAll(now)
	c.finish(CallStatusEnded, now)
	c.UpdatedAt = now
	return nil
}

// Decline lets a listed callee refuse a ringing direct call.
func (c *Call) Decline(userID uuid.UUID, now time.Time) error {
	p := c.Participant(userID)
	if p == nil {
		return apperrors.ForbiddenError("You are not a participant in this call")
	}
	if userID == c.Initiator {
		return apperrors.ValidationError("The initiator cannot decline their own call")
	}
	if c.GroupID != nil {
		return apperrors.ValidationError("Group calls cannot be declined")
	}
	if c.Status != CallStatusRinging {
		return apperrors.StateConflictError("Only a ringing call can be declined")
	}
	c.disconnectAll(now)
	c.finish(CallStatusDeclined, now)
	c.UpdatedAt = now
	return nil
}

// MarkMissed closes a call nobody answered. It returns false when the call is no longer ringing.
func (c *Call) MarkMissed(now time.Time) bool {
	if c.Status != CallStatusRinging {
		return false
	}
	c.disconnectAll(now)
	c.finish(CallStatusMissed, now)
	c.UpdatedAt = now
	return true
}

// ApplySettings shallow-merges patch into the settings
func (c *Call) ApplySettings(patch CallSettingsPatch, now time.Time) {
	if patch.MaxParticipants != nil {
		c.Settings.MaxParticipants = *patch.MaxParticipants
	}
	if patch.AllowScreenShare != nil {
		c.Settings.AllowScreenShare = *patch.AllowScreenShare
	}
	if patch.AllowRecording != nil {
		c.Settings.AllowRecording = *patch.AllowRecording
	}
	if patch.Quality != nil {
		c.Settings.Quality = *patch.Quality
	}
	c.UpdatedAt = now
}

// ApplyParticipantStatus updates the media flags of userID's own record
func (c *Call) ApplyParticipantStatus(userID uuid.UUID, patch ParticipantStatusPatch, now time.Time) error {
	p := c.Participant(userID)
	if p == nil {
		return apperrors.ForbiddenError("You are not a participant in this call")
	}
	if c.Status.IsTerminal() {
		return apperrors.StateConflictError("Call has already ended")
	}
	if patch.IsScreenSharing != nil && *patch.IsScreenSharing && !c.Settings.AllowScreenShare {
		return apperrors.ForbiddenError("Screen sharing is disabled for this call")
	}
	if patch.IsMuted != nil {
		p.IsMuted = *patch.IsMuted
	}
	if patch.IsVideoOff != nil {
		p.IsVideoOff = *patch.IsVideoOff
	}
	if patch.IsScreenSharing != nil {
		p.IsScreenSharing = *patch.IsScreenSharing
	}
	c.UpdatedAt = now
	return nil
}

func (c *Call) disconnectAll(now time.Time) {
	for i := range c.Participants {
		p := &c.Participants[i]
		p.IsActive = false
		if p.LeftAt == nil {
			p.LeftAt = &now
		}
	}
}

// finish stamps the end of the call. A call that never connected keeps an
// empty start time and a zero duration.
func (c *Call) finish(status CallStatus, now time.Time) {
	c.Status = status
	c.EndTime = &now
	c.Duration = 0
	if c.StartTime != nil && now.After(*c.StartTime) {
		c.Duration = int(now.Sub(*c.StartTime) / time.Second)
	}
}
