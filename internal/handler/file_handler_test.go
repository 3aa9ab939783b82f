package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusuite/enrollment-gateway/internal/dto"
	"github.com/edusuite/enrollment-gateway/pkg/config"
	"github.com/edusuite/enrollment-gateway/pkg/storage"
)

func newFileHandler(t *testing.T) *FileHandler {
	t.Helper()
	store, err := storage.NewStagingStore(t.TempDir())
	require.NoError(t, err)
	return NewFileHandler(store, config.StagingConfig{
		PhotoMaxBytes:     1 << 20,
		PhotoExtensions:   []string{"jpg", "jpeg", "png", "gif"},
		DocumentMaxBytes:  1 << 20,
		DocumentMIMETypes: []string{"application/pdf", "image/jpeg"},
	})
}

func multipartRequest(t *testing.T, path, filename, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	header["Content-Type"] = []string{contentType}
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestFileHandlerStagePhoto(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newFileHandler(t)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = multipartRequest(t, "/enrollment-drafts/files/photo", "portrait.jpg", "image/jpeg", []byte("jpeg-bytes"))

	handler.StagePhoto(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data dto.StagedFileResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.FileID)
	assert.Equal(t, "portrait.jpg", envelope.Data.OriginalName)
}

func TestFileHandlerRejectsUnsupportedPhotoExtension(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newFileHandler(t)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = multipartRequest(t, "/enrollment-drafts/files/photo", "portrait.bmp", "image/bmp", []byte("bmp-bytes"))

	handler.StagePhoto(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFileHandlerRejectsUnsupportedDocumentType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newFileHandler(t)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = multipartRequest(t, "/enrollment-drafts/files/document", "virus.exe", "application/octet-stream", []byte("mz"))

	handler.StageDocument(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFileHandlerStageDocument(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newFileHandler(t)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = multipartRequest(t, "/enrollment-drafts/files/document", "acte.pdf", "application/pdf", []byte("%PDF-"))

	handler.StageDocument(c)
	require.Equal(t, http.StatusCreated, w.Code)
}
