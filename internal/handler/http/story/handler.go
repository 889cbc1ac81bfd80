package story

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"boingbox-backend/internal/domain"
	storysvc "boingbox-backend/internal/service/story"
	"boingbox-backend/pkg/response"
)

// Handler handles story HTTP requests
type Handler struct {
	storyService *storysvc.Service
}

// NewHandler creates a new story handler
func NewHandler(storyService *storysvc.Service) *Handler {
	return &Handler{
		storyService: storyService,
	}
}

// RegisterRoutes mounts the story endpoints on rg
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	stories := rg.Group("/stories")
	stories.POST("/create", h.Create)
	stories.GET("/user/:userId", h.ListByUser)
	stories.GET("/all", h.ListAll)
	stories.POST("/view", h.View)
	stories.POST("/reply", h.Reply)
	stories.DELETE("/delete", h.Delete)
}

// StoryActionRequest identifies a story and the acting user
type StoryActionRequest struct {
	StoryID uuid.UUID `json:"storyId" binding:"required"`
	UserID  uuid.UUID `json:"userId" binding:"required"`
}

// ReplyRequest carries a reply message
type ReplyRequest struct {
	StoryActionRequest
	Message string `json:"message" binding:"required"`
}

// Create publishes a story
// POST /v1/stories/create
func (h *Handler) Create(c *gin.Context) {
	var req domain.CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	story, err := h.storyService.Create(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, story)
}

// ListByUser returns one user's stories
// GET /v1/stories/user/:userId
func (h *Handler) ListByUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.ValidationError(c, "Invalid user ID")
		return
	}

	stories, err := h.storyService.ListByUser(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, stories)
}

// ListAll returns every visible story
// GET /v1/stories/all
func (h *Handler) ListAll(c *gin.Context) {
	stories, err := h.storyService.ListAll(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, stories)
}

// View records a story view
// POST /v1/stories/view
func (h *Handler) View(c *gin.Context) {
	var req StoryActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	if _, err := h.storyService.View(c.Request.Context(), req.StoryID, req.UserID); err != nil {
		response.FromError(c, err)
		return
	}

	response.Message(c, "Story viewed successfully.")
}

// Reply adds a reply
// POST /v1/stories/reply
func (h *Handler) Reply(c *gin.Context) {
	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	if _, err := h.storyService.Reply(c.Request.Context(), req.StoryID, req.UserID, req.Message); err != nil {
		response.FromError(c, err)
		return
	}

	response.Message(c, "Story reply added successfully.")
}

// Delete hides a story
// DELETE /v1/stories/delete
func (h *Handler) Delete(c *gin.Context) {
	var req StoryActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	if err := h.storyService.Delete(c.Request.Context(), req.StoryID, req.UserID); err != nil {
		response.FromError(c, err)
		return
	}

	response.Message(c, "Story deleted successfully.")
}
