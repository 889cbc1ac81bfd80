package message

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"boingbox-backend/internal/domain"
	messagesvc "boingbox-backend/internal/service/message"
	"boingbox-backend/pkg/response"
)

// Handler handles message HTTP requests
type Handler struct {
	messageService *messagesvc.Service
}

// NewHandler creates a new message handler
func NewHandler(messageService *messagesvc.Service) *Handler {
	return &Handler{
		messageService: messageService,
	}
}

// RegisterRoutes mounts the message endpoints on rg
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	messages := rg.Group("/messages")
	messages.POST("/addmsg", h.Send)
	messages.POST("/getmsg", h.List)
	messages.PUT("/editmsg", h.Edit)
	messages.DELETE("/deletemsg", h.Delete)
	messages.POST("/reaction", h.React)
}

// EditRequest represents a message edit
type EditRequest struct {
	MessageID uuid.UUID `json:"messageId" binding:"required"`
	NewText   string    `json:"newText" binding:"required"`
	EditedBy  uuid.UUID `json:"editedBy" binding:"required"`
}

// DeleteRequest represents a message deletion
type DeleteRequest struct {
	MessageID uuid.UUID `json:"messageId" binding:"required"`
	DeletedBy uuid.UUID `json:"deletedBy" binding:"required"`
}

// ReactionRequest represents a reaction
type ReactionRequest struct {
	MessageID uuid.UUID `json:"messageId" binding:"required"`
	UserID    uuid.UUID `json:"userId" binding:"required"`
	Emoji     string    `json:"emoji" binding:"required"`
}

// Send stores a message
// POST /v1/messages/addmsg
func (h *Handler) Send(c *gin.Context) {
	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	msg, err := h.messageService.Send(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, msg)
}

// List returns a page of a conversation
// POST /v1/messages/getmsg
func (h *Handler) List(c *gin.Context) {
	var req domain.ListMessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	msgs, err := h.messageService.List(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, msgs)
}

// Edit changes a message text
// PUT /v1/messages/editmsg
func (h *Handler) Edit(c *gin.Context) {
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	if _, err := h.messageService.Edit(c.Request.Context(), req.MessageID, req.EditedBy, req.NewText); err != nil {
		response.FromError(c, err)
		return
	}

	response.Message(c, "Message edited successfully.")
}

// Delete hides a message
// DELETE /v1/messages/deletemsg
func (h *Handler) Delete(c *gin.Context) {
	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	if err := h.messageService.Delete(c.Request.Context(), req.MessageID, req.DeletedBy); err != nil {
		response.FromError(c, err)
		return
	}

	response.Message(c, "Message deleted successfully.")
}

// React adds or replaces a reaction
// POST /v1/messages/reaction
func (h *Handler) React(c *gin.Context) {
	var req ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	if _, err := h.messageService.React(c.Request.Context(), req.MessageID, req.UserID, req.Emoji); err != nil {
		response.FromError(c, err)
		return
	}

	response.Message(c, "Reaction added successfully.")
}
