package call

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"boingbox-backend/internal/domain"
	appctx "boingbox-backend/pkg/context"
	apperrors "boingbox-backend/pkg/errors"
	"boingbox-backend/pkg/logger"
	"boingbox-backend/pkg/metrics"
	"boingbox-backend/pkg/pagination"
)

// Group roles allowed to end a group call they did not start
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

// CallRepository persists calls. Update runs fn against the locked current
// state and stores the result only when fn returns nil.
type CallRepository interface {
	Create(ctx context.Context, call *domain.Call) error
	GetByID(ctx context.Context, callID uuid.UUID) (*domain.Call, error)
	Update(ctx context.Context, callID uuid.UUID, fn func(*domain.Call) error) (*domain.Call, error)
	ListHistory(ctx context.Context, userID uuid.UUID, statuses []domain.CallStatus, limit, offset int) ([]*domain.Call, error)
	ListRingingBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// UserDirectory answers whether users exist
type UserDirectory interface {
	CountExisting(ctx context.Context, userIDs []uuid.UUID) (int, error)
}

// GroupDirectory returns a member's role in a group, or "" when not a member
type GroupDirectory interface {
	MemberRole(ctx context.Context, groupID, userID uuid.UUID) (string, error)
}

// Service handles call lifecycle business logic
type Service struct {
	callRepo CallRepository
	users    UserDirectory
	groups   GroupDirectory
	now      func() time.Time
}

// NewService creates a new call service
func NewService(callRepo CallRepository, users UserDirectory, groups GroupDirectory) *Service {
	return &Service{
		callRepo: callRepo,
		users:    users,
		groups:   groups,
		now:      time.Now,
	}
}

// InitiateInput contains call initiation data
type InitiateInput struct {
	Initiator    uuid.UUID
	Participants []uuid.UUID
	Type         domain.CallType
	GroupID      *uuid.UUID
	Settings     *domain.CallSettingsPatch
}

// Initiate creates a ringing call. For a direct call the initiator is listed
// first, followed by the given participants.
func (s *Service) Initiate(ctx context.Context, input *InitiateInput) (*domain.Call, error) {
	if input.Initiator == uuid.Nil {
		return nil, apperrors.MissingFieldError("initiator")
	}
	if len(input.Participants) == 0 {
		return nil, apperrors.MissingFieldError("participants")
	}

	callType := input.Type
	switch callType {
	case "":
		callType = domain.CallTypeVoice
	case domain.CallTypeVoice, domain.CallTypeVideo, domain.CallTypeScreenShare:
	default:
		return nil, apperrors.ValidationError("Invalid call type")
	}

	ids := input.Participants
	if input.GroupID == nil {
		ids = append([]uuid.UUID{input.Initiator}, input.Participants...)
	}
	ids = dedupe(ids)

	settings := domain.DefaultCallSettings()
	now := s.now()
	call := &domain.Call{
		CallID:    uuid.New(),
		Type:      callType,
		Initiator: input.Initiator,
		GroupID:   input.GroupID,
		Status:    domain.CallStatusRinging,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.Settings != nil {
		call.ApplySettings(*input.Settings, now)
	}

	if len(ids) > call.Settings.MaxParticipants {
		return nil, apperrors.ValidationError(
			fmt.Sprintf("A call can have at most %d participants", call.Settings.MaxParticipants))
	}

	found, err := s.users.CountExisting(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to verify participants: %w", err)
	}
	if found != len(ids) {
		return nil, apperrors.ValidationError("One or more participants do not exist")
	}

	call.Participants = make([]domain.CallParticipant, len(ids))
	for i, id := range ids {
		call.Participants[i] = domain.CallParticipant{UserID: id}
	}

	if err := s.callRepo.Create(ctx, call); err != nil {
		return nil, fmt.Errorf("failed to create call record: %w", err)
	}

	metrics.CallTransitionsTotal.WithLabelValues("initiate", string(call.Status)).Inc()
	logger.FromContext(ctx).Info("Call initiated",
		zap.String("call_id", call.CallID.String()),
		zap.String("initiator", call.Initiator.String()),
		zap.String("type", string(call.Type)),
		zap.Int("participants", len(ids)))

	return call, nil
}

// Join makes userID an active participant
func (s *Service) Join(ctx context.Context, callID, userID uuid.UUID) (*domain.Call, error) {
	return s.transition(ctx, "join", callID, func(c *domain.Call) error {
		return c.Join(userID, s.now())
	})
}

// Leave makes userID inactive and ends the call when nobody is left
func (s *Service) Leave(ctx context.Context, callID, userID uuid.UUID) (*domain.Call, error) {
	return s.transition(ctx, "leave", callID, func(c *domain.Call) error {
		return c.Leave(userID, s.now())
	})
}

// End terminates the call for everybody. Only the initiator, or a group admin
// or moderator for group calls, may do it.
func (s *Service) End(ctx context.Context, callID, actorID uuid.UUID) (*domain.Call, error) {
	current, err := s.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeEnd(ctx, current, actorID); err != nil {
		return nil, err
	}

	return s.transition(ctx, "end", callID, func(c *domain.Call) error {
		return c.End(s.now())
	})
}

func (s *Service) authorizeEnd(ctx context.Context, c *domain.Call, actorID uuid.UUID) error {
	if c.Initiator == actorID {
		return nil
	}
	if c.GroupID != nil {
		role, err := s.groups.MemberRole(ctx, *c.GroupID, actorID)
		if err != nil {
			return fmt.Errorf("failed to look up group role: %w", err)
		}
		if role == RoleAdmin || role == RoleModerator {
			return nil
		}
	}
	return apperrors.ForbiddenError("Only the call initiator or a group admin can end this call")
}

// Decline refuses a ringing direct call
func (s *Service) Decline(ctx context.Context, callID, userID uuid.UUID) (*domain.Call, error) {
	return s.transition(ctx, "decline", callID, func(c *domain.Call) error {
		return c.Decline(userID, s.now())
	})
}

// UpdateSettings merges patch into the call settings. Initiator only.
func (s *Service) UpdateSettings(ctx context.Context, callID, actorID uuid.UUID, patch domain.CallSettingsPatch) (*domain.Call, error) {
	return s.transition(ctx, "settings", callID, func(c *domain.Call) error {
		if c.Initiator != actorID {
			return apperrors.ForbiddenError("Only the call initiator can change settings")
		}
		if c.Status.IsTerminal() {
			return apperrors.StateConflictError("Call has already ended")
		}
		c.ApplySettings(patch, s.now())
		return nil
	})
}

// UpdateParticipantStatus changes the actor's own media flags
func (s *Service) UpdateParticipantStatus(ctx context.Context, callID, actorID uuid.UUID, patch domain.ParticipantStatusPatch) (*domain.Call, error) {
	return s.transition(ctx, "participant_status", callID, func(c *domain.Call) error {
		return c.ApplyParticipantStatus(actorID, patch, s.now())
	})
}

// Get returns a call by id
func (s *Service) Get(ctx context.Context, callID uuid.UUID) (*domain.Call, error) {
	c, err := s.callRepo.GetByID(ctx, callID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperrors.CallNotFoundError()
		}
		return nil, fmt.Errorf("failed to get call: %w", err)
	}
	return c, nil
}

// History lists finished calls of userID, newest first
func (s *Service) History(ctx context.Context, userID uuid.UUID, page pagination.Params) ([]*domain.Call, error) {
	if userID == uuid.Nil {
		return nil, apperrors.MissingFieldError("userId")
	}
	calls, err := s.callRepo.ListHistory(ctx, userID, domain.HistoryStatuses, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get call history: %w", err)
	}
	if calls == nil {
		calls = []*domain.Call{}
	}
	return calls, nil
}

// SweepMissed marks calls that rang longer than ringTimeout as missed and
// returns how many were closed.
func (s *Service) SweepMissed(ctx context.Context, ringTimeout time.Duration) (int, error) {
	ids, err := s.callRepo.ListRingingBefore(ctx, s.now().Add(-ringTimeout))
	if err != nil {
		return 0, fmt.Errorf("failed to list ringing calls: %w", err)
	}

	missed := 0
	for _, id := range ids {
		changed := false
		_, err := s.callRepo.Update(ctx, id, func(c *domain.Call) error {
			changed = c.MarkMissed(s.now())
			return nil
		})
		if err != nil {
			logger.Warn("Failed to mark call missed",
				zap.String("call_id", id.String()),
				zap.Error(err))
			continue
		}
		if changed {
			missed++
			metrics.CallTransitionsTotal.WithLabelValues("sweep", string(domain.CallStatusMissed)).Inc()
		}
	}
	return missed, nil
}

// RunSweeper calls SweepMissed every interval until ctx is done
func (s *Service) RunSweeper(ctx context.Context, interval, ringTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := appctx.WithSweepTimeout(ctx, interval)
			n, err := s.SweepMissed(sweepCtx, ringTimeout)
			cancel()
			if err != nil {
				logger.Error("Missed call sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("Marked unanswered calls as missed", zap.Int("count", n))
			}
		}
	}
}

// transition runs a state change under the repository lock and records it
func (s *Service) transition(ctx context.Context, action string, callID uuid.UUID, fn func(*domain.Call) error) (*domain.Call, error) {
	var before domain.CallStatus
	updated, err := s.callRepo.Update(ctx, callID, func(c *domain.Call) error {
		before = c.Status
		return fn(c)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperrors.CallNotFoundError()
		}
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to %s call: %w", action, err)
	}

	metrics.CallTransitionsTotal.WithLabelValues(action, string(updated.Status)).Inc()
	if before != updated.Status {
		logger.FromContext(ctx).Info("Call status changed",
			zap.String("call_id", callID.String()),
			zap.String("from", string(before)),
			zap.String("to", string(updated.Status)),
			zap.String("action", action))
		if updated.Status == domain.CallStatusEnded {
			metrics.CallDurationSeconds.WithLabelValues(string(updated.Type)).Observe(float64(updated.Duration))
		}
	}
	return updated, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
