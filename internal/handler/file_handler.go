package handler

import (
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edusuite/enrollment-gateway/internal/dto"
	"github.com/edusuite/enrollment-gateway/pkg/config"
	appErrors "github.com/edusuite/enrollment-gateway/pkg/errors"
	"github.com/edusuite/enrollment-gateway/pkg/response"
	"github.com/edusuite/enrollment-gateway/pkg/storage"
)

// FileHandler stages wizard uploads. Files live in the staging store
// until a commit consumes them or maintenance sweeps them away.
type FileHandler struct {
	store *storage.StagingStore
	cfg   config.StagingConfig
}

// NewFileHandler creates a new file handler.
func NewFileHandler(store *storage.StagingStore, cfg config.StagingConfig) *FileHandler {
	return &FileHandler{store: store, cfg: cfg}
}

// StagePhoto godoc
// @Summary Stage a student photo
// @Description Store a photo for later use by a draft commit
// @Tags Files
// @Accept mpfd
// @Produce json
// @Param file formData file true "Photo file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enrollment-drafts/files/photo [post]
func (h *FileHandler) StagePhoto(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	if h.cfg.PhotoMaxBytes > 0 && fileHeader.Size > h.cfg.PhotoMaxBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "photo exceeds the maximum allowed size"))
		return
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileHeader.Filename)), ".")
	if !containsFold(h.cfg.PhotoExtensions, ext) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unsupported photo format"))
		return
	}
	h.stage(c, fileHeader)
}

// StageDocument godoc
// @Summary Stage an enrollment document
// @Description Store a document for later attachment to a draft
// @Tags Files
// @Accept mpfd
// @Produce json
// @Param file formData file true "Document file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enrollment-drafts/files/document [post]
func (h *FileHandler) StageDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	if h.cfg.DocumentMaxBytes > 0 && fileHeader.Size > h.cfg.DocumentMaxBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "document exceeds the maximum allowed size"))
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !containsFold(h.cfg.DocumentMIMETypes, contentType) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unsupported document type"))
		return
	}
	h.stage(c, fileHeader)
}

func (h *FileHandler) stage(c *gin.Context, fileHeader *multipart.FileHeader) {
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open upload"))
		return
	}
	defer src.Close()

	meta, err := h.store.Store(src, fileHeader.Filename, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stage file"))
		return
	}

	response.JSON(c, http.StatusCreated, dto.StagedFileResponse{
		FileID:       meta.FileID,
		OriginalName: meta.OriginalName,
		Size:         meta.Size,
		ContentType:  meta.ContentType,
	}, nil)
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
