package call

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"boingbox-backend/internal/domain"
	callsvc "boingbox-backend/internal/service/call"
	"boingbox-backend/pkg/constants"
	"boingbox-backend/pkg/pagination"
	"boingbox-backend/pkg/response"
)

// Handler handles call HTTP requests
type Handler struct {
	callService *callsvc.Service
}

// NewHandler creates a new call handler
func NewHandler(callService *callsvc.Service) *Handler {
	return &Handler{
		callService: callService,
	}
}

// RegisterRoutes mounts the call endpoints on rg
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	calls := rg.Group("/calls")
	calls.POST("/initiate", h.Initiate)
	calls.POST("/join", h.Join)
	calls.POST("/leave", h.Leave)
	calls.POST("/end", h.End)
	calls.POST("/decline", h.Decline)
	calls.POST("/settings", h.UpdateSettings)
	calls.POST("/participant-status", h.UpdateParticipantStatus)
	calls.GET("/history/:userId", h.History)
	calls.GET("/:callId", h.Get)
}

// InitiateRequest represents call initiation request
type InitiateRequest struct {
	Initiator    uuid.UUID                 `json:"initiator" binding:"required"`
	Participants []uuid.UUID               `json:"participants" binding:"required,min=1"`
	Type         string                    `json:"type" binding:"omitempty,oneof=voice video screen-share"`
	GroupID      *uuid.UUID                `json:"groupId"`
	Settings     *domain.CallSettingsPatch `json:"settings"`
}

// CallActionRequest identifies the call and the acting user
type CallActionRequest struct {
	CallID uuid.UUID `json:"callId" binding:"required"`
	UserID uuid.UUID `json:"userId" binding:"required"`
}

// SettingsRequest carries a partial settings update
type SettingsRequest struct {
	CallActionRequest
	Settings domain.CallSettingsPatch `json:"settings"`
}

// ParticipantStatusRequest carries the caller's own media flags
type ParticipantStatusRequest struct {
	CallActionRequest
	domain.ParticipantStatusPatch
}

// Initiate starts a new call
// POST /v1/calls/initiate
func (h *Handler) Initiate(c *gin.Context) {
	var req InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	call, err := h.callService.Initiate(c.Request.Context(), &callsvc.InitiateInput{
		Initiator:    req.Initiator,
		Participants: req.Participants,
		Type:         domain.CallType(req.Type),
		GroupID:      req.GroupID,
		Settings:     req.Settings,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, call)
}

// Join joins a call
// POST /v1/calls/join
func (h *Handler) Join(c *gin.Context) {
	var req CallActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	call, err := h.callService.Join(c.Request.Context(), req.CallID, req.UserID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, call)
}

// Leave leaves a call
// POST /v1/calls/leave
func (h *Handler) Leave(c *gin.Context) {
	var req CallActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	call, err := h.callService.Leave(c.Request.Context(), req.CallID, req.UserID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, call)
}

// End terminates a call for everybody
// POST /v1/calls/end
func (h *Handler) End(c *gin.Context) {
	var req CallActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	call, err := h.callService.End(c.Request.Context(), req.CallID, req.UserID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, call)
}

// Decline refuses a ringing call
// POST /v1/calls/decline
func (h *Handler) Decline(c *gin.Context) {
	var req CallActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	call, err := h.callService.Decline(c.Request.Context(), req.CallID, req.UserID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, call)
}

// UpdateSettings changes call settings
// POST /v1/calls/settings
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	call, err := h.callService.UpdateSettings(c.Request.Context(), req.CallID, req.UserID, req.Settings)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, call)
}

// UpdateParticipantStatus changes the caller's media flags
// POST /v1/calls/participant-status
func (h *Handler) UpdateParticipantStatus(c *gin.Context) {
	var req ParticipantStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	call, err := h.callService.UpdateParticipantStatus(c.Request.Context(), req.CallID, req.UserID, req.ParticipantStatusPatch)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, call)
}

// Get retrieves call information
// GET /v1/calls/:callId
func (h *Handler) Get(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("callId"))
	if err != nil {
		response.ValidationError(c, "Invalid call ID")
		return
	}

	call, err := h.callService.Get(c.Request.Context(), callID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, call)
}

// History lists a user's finished calls
// GET /v1/calls/history/:userId?page=&limit=
func (h *Handler) History(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.ValidationError(c, "Invalid user ID")
		return
	}

	page, err := pagination.Parse(c.Query("page"), c.Query("limit"), constants.DefaultPageSize)
	if err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	calls, err := h.callService.History(c.Request.Context(), userID, page)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"calls": calls,
		"page":  page.Page,
		"limit": page.Limit,
	})
}
