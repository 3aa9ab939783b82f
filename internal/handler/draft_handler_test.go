package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edusuite/enrollment-gateway/internal/dto"
	"github.com/edusuite/enrollment-gateway/internal/middleware"
	"github.com/edusuite/enrollment-gateway/internal/models"
	"github.com/edusuite/enrollment-gateway/internal/service"
	"github.com/edusuite/enrollment-gateway/pkg/storage"
)

type draftRepoStub struct {
	drafts map[string]*models.Draft
}

func (s *draftRepoStub) Create(ctx context.Context, draft *models.Draft) error {
	if draft.ID == "" {
		draft.ID = "draft-1"
	}
	copy := *draft
	s.drafts[draft.ID] = &copy
	return nil
}

func (s *draftRepoStub) FindByID(ctx context.Context, id string) (*models.Draft, error) {
	draft, ok := s.drafts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *draft
	return &copy, nil
}

func (s *draftRepoStub) FindOpenByStudent(ctx context.Context, studentID string) (*models.Draft, error) {
	for _, d := range s.drafts {
		if d.StudentID == studentID && d.Status == models.DraftStatusOpen {
			copy := *d
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *draftRepoStub) Update(ctx context.Context, draft *models.Draft) error {
	copy := *draft
	s.drafts[draft.ID] = &copy
	return nil
}

type auditStub struct{}

func (auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error { return nil }

type studentStub struct{}

func (studentStub) GetStudent(ctx context.Context, id string) (*models.StudentRecord, error) {
	return &models.StudentRecord{ID: id, Name: "Keita", FirstName: "Mamadou", BirthDate: "2012-03-04", Sex: "M", Status: "ACTIVE"}, nil
}

type fileStub struct{}

func (fileStub) Stat(fileID string) (*storage.BlobMeta, error) {
	return &storage.BlobMeta{FileID: fileID, OriginalName: fileID + ".jpg", Size: 5, ContentType: "image/jpeg", StoredAt: time.Now()}, nil
}

func (fileStub) Delete(fileID string) error { return nil }

func newDraftHandler(repo *draftRepoStub) *DraftHandler {
	drafts := service.NewDraftService(repo, auditStub{}, studentStub{}, fileStub{}, validator.New(), zap.NewNop())
	receipts := service.NewReceiptService(repo, nil, nil, zap.NewNop())
	return NewDraftHandler(drafts, nil, receipts)
}

func testContext(t *testing.T, method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "operator-1", Role: models.RoleRegistrar})
	return c, w
}

func TestDraftHandlerOpenCreatesDraft(t *testing.T) {
	repo := &draftRepoStub{drafts: make(map[string]*models.Draft)}
	handler := newDraftHandler(repo)

	c, w := testContext(t, http.MethodPost, "/enrollment-drafts", dto.OpenDraftRequest{StudentID: "student-1"})
	handler.Open(c)

	require.Equal(t, http.StatusCreated, w.Code)
	var envelope struct {
		Data dto.DraftResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data.Draft)
	assert.Equal(t, "Keita", envelope.Data.Draft.OriginalStudent.Name)
}

func TestDraftHandlerOpenInvalidBody(t *testing.T) {
	repo := &draftRepoStub{drafts: make(map[string]*models.Draft)}
	handler := newDraftHandler(repo)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/enrollment-drafts", bytes.NewReader([]byte(`not-json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "operator-1", Role: models.RoleRegistrar})

	handler.Open(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDraftHandlerGetNotFound(t *testing.T) {
	repo := &draftRepoStub{drafts: make(map[string]*models.Draft)}
	handler := newDraftHandler(repo)

	c, w := testContext(t, http.MethodGet, "/enrollment-drafts/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDraftHandlerTutorStepNormalisesLegalFlag(t *testing.T) {
	repo := &draftRepoStub{drafts: map[string]*models.Draft{"draft-1": {
		ID:        "draft-1",
		StudentID: "student-1",
		Kind:      models.KindReRegistration,
		Status:    models.DraftStatusOpen,
		OriginalStudent: models.StudentRecord{
			ID: "student-1", Name: "Keita", FirstName: "Mamadou", BirthDate: "2012-03-04", Sex: "M", Status: "ACTIVE",
		},
	}}}
	handler := newDraftHandler(repo)

	body := dto.TutorSetRequest{
		Existing: []dto.ExistingTutorRequest{{TutorID: "tutor-1", IsLegal: true}},
		New:      []dto.NewTutorRequest{{Name: "Diallo", FirstName: "Awa", Phone: "0600", TutorType: "MOTHER", IsLegal: true}},
	}
	c, w := testContext(t, http.MethodPut, "/enrollment-drafts/draft-1/tutors", body)
	c.Params = gin.Params{{Key: "id", Value: "draft-1"}}
	handler.SetTutors(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data dto.DraftResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	draft := envelope.Data.Draft
	require.NotNil(t, draft)
	assert.False(t, draft.ExistingTutors[0].IsLegal)
	assert.True(t, draft.NewTutors[0].IsLegal)
}

func TestDraftHandlerReceiptRequiresCommit(t *testing.T) {
	repo := &draftRepoStub{drafts: map[string]*models.Draft{"draft-1": {
		ID:     "draft-1",
		Status: models.DraftStatusOpen,
	}}}
	handler := newDraftHandler(repo)

	c, w := testContext(t, http.MethodGet, "/enrollment-drafts/draft-1/receipt", nil)
	c.Params = gin.Params{{Key: "id", Value: "draft-1"}}
	handler.Receipt(c)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}
