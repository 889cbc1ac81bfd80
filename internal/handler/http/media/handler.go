package media

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"boingbox-backend/internal/domain"
	mediasvc "boingbox-backend/internal/service/media"
	"boingbox-backend/pkg/constants"
	"boingbox-backend/pkg/pagination"
	"boingbox-backend/pkg/response"
)

// UploadTokenHeader carries the token returned by upload-url
const UploadTokenHeader = "X-Upload-Token"

// multipart overhead allowed on top of the largest accepted file
const maxMultipartOverhead = 1 << 20

// Handler handles media HTTP requests
type Handler struct {
	mediaService *mediasvc.Service
}

// NewHandler creates a new media handler
func NewHandler(mediaService *mediasvc.Service) *Handler {
	return &Handler{
		mediaService: mediaService,
	}
}

// RegisterRoutes mounts the media endpoints on rg
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	media := rg.Group("/media")
	media.POST("/upload-url", h.RequestUpload)
	media.POST("/upload/:fileId", h.Upload)
	media.GET("/status/:fileId", h.Status)
	media.GET("/signed-url/:fileId", h.SignedURL)
	media.GET("/user/:userId", h.ListByUser)
	media.DELETE("/:fileId", h.Delete)
}

// RequestUpload registers an upload and returns its token
// POST /v1/media/upload-url
func (h *Handler) RequestUpload(c *gin.Context) {
	var req domain.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	ticket, err := h.mediaService.RequestUpload(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, ticket)
}

// Upload receives the file bytes
// POST /v1/media/upload/:fileId
func (h *Handler) Upload(c *gin.Context) {
	fileID, ok := parseID(c, "fileId", "Invalid file ID")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, constants.MaxVideoSize+maxMultipartOverhead)
	header, err := c.FormFile("file")
	if err != nil {
		response.ValidationError(c, "Missing file")
		return
	}

	file, err := header.Open()
	if err != nil {
		response.ValidationError(c, "Unreadable file")
		return
	}
	defer file.Close()

	receipt, err := h.mediaService.SubmitUpload(c.Request.Context(), fileID,
		c.GetHeader(UploadTokenHeader), header.Filename, file, header.Size)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, receipt)
}

// Status returns the media record
// GET /v1/media/status/:fileId
func (h *Handler) Status(c *gin.Context) {
	fileID, ok := parseID(c, "fileId", "Invalid file ID")
	if !ok {
		return
	}

	m, err := h.mediaService.Status(c.Request.Context(), fileID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, m)
}

// SignedURL issues a temporary download link
// GET /v1/media/signed-url/:fileId?userId=
func (h *Handler) SignedURL(c *gin.Context) {
	fileID, ok := parseID(c, "fileId", "Invalid file ID")
	if !ok {
		return
	}
	userID, err := uuid.Parse(c.Query("userId"))
	if err != nil {
		response.ValidationError(c, "Invalid user ID")
		return
	}

	signed, err := h.mediaService.SignedURL(c.Request.Context(), fileID, userID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, signed)
}

// Delete removes media
// DELETE /v1/media/:fileId?userId=
func (h *Handler) Delete(c *gin.Context) {
	fileID, ok := parseID(c, "fileId", "Invalid file ID")
	if !ok {
		return
	}
	userID, err := uuid.Parse(c.Query("userId"))
	if err != nil {
		response.ValidationError(c, "Invalid user ID")
		return
	}

	if err := h.mediaService.Delete(c.Request.Context(), fileID, userID); err != nil {
		response.FromError(c, err)
		return
	}

	response.Message(c, "Media deleted successfully")
}

// ListByUser lists a user's uploads
// GET /v1/media/user/:userId?type=&page=&limit=
func (h *Handler) ListByUser(c *gin.Context) {
	userID, ok := parseID(c, "userId", "Invalid user ID")
	if !ok {
		return
	}

	page, err := pagination.Parse(c.Query("page"), c.Query("limit"), constants.DefaultPageSize)
	if err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	items, err := h.mediaService.ListByUser(c.Request.Context(), userID, domain.MediaType(c.Query("type")), page)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"media": items,
		"page":  page.Page,
		"limit": page.Limit,
	})
}

func parseID(c *gin.Context, param, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.ValidationError(c, message)
		return uuid.Nil, false
	}
	return id, true
}
