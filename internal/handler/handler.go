package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jeremiahbratton/image-uploader/internal/domain"
	"github.com/jeremiahbratton/image-uploader/internal/service"
)

type Handler struct {
	service service.ImageService
	log     *zap.Logger
}

func NewHandler(service service.ImageService, log *zap.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log,
	}
}

func (h *Handler) UploadImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		h.uploadError(c, domain.ErrNoFileProvided)
		return
	}

	body, err := file.Open()
	if err != nil {
		h.log.Error("Failed to open uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to read upload",
			"message": err.Error(),
		})
		return
	}
	defer body.Close()

	mimeType := file.Header.Get("Content-Type")

	record, err := h.service.UploadImage(c.Request.Context(), body, file.Filename, mimeType, file.Size)
	if err != nil {
		h.uploadError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Image uploaded successfully",
		"data":    record,
	})
}

func (h *Handler) uploadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNoFileProvided):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
	case errors.Is(err, domain.ErrFileTooLarge), errors.Is(err, domain.ErrUnsupportedMediaType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error("Upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to upload image",
			"message": err.Error(),
		})
	}
}

func (h *Handler) ListImages(c *gin.Context) {
	records, err := h.service.ListImages(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to list images", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list images",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, records)
}

// ServeImage streams stored file bytes regardless of which storage backend
// holds them, so /uploads URLs work the same for disk and S3.
func (h *Handler) ServeImage(c *gin.Context) {
	filename := c.Param("filename")

	body, err := h.service.OpenImage(c.Request.Context(), filename)
	if err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		h.log.Error("Failed to open stored file",
			zap.String("filename", filename),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to read file",
			"message": err.Error(),
		})
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, body); err != nil {
		h.log.Warn("Failed to stream file to client",
			zap.String("filename", filename),
			zap.Error(err))
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) GetUI(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{})
}
