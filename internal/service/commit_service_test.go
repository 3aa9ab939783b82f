package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edusuite/enrollment-gateway/internal/models"
	"github.com/edusuite/enrollment-gateway/internal/upstream"
	appErrors "github.com/edusuite/enrollment-gateway/pkg/errors"
	"github.com/edusuite/enrollment-gateway/pkg/jobs"
	"github.com/edusuite/enrollment-gateway/pkg/storage"
)

// mockCoreGateway records every call in order and fails on demand.
// Create calls hand out deterministic ids so tests can assert the
// ledger and the compensating deletions precisely.
type mockCoreGateway struct {
	mu       sync.Mutex
	calls    []string
	failures map[string]error

	tutorSeq       int
	transactionSeq int
	paymentSeq     int
	documentSeq    int
}

func newMockCoreGateway() *mockCoreGateway {
	return &mockCoreGateway{failures: make(map[string]error)}
}

// failAt makes the nth invocation of a method fail (1-based).
func (m *mockCoreGateway) failAt(method string, n int, err error) {
	m.failures[fmt.Sprintf("%s#%d", method, n)] = err
}

func (m *mockCoreGateway) record(method, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if strings.HasPrefix(c, method) {
			count++
		}
	}
	entry := method
	if detail != "" {
		entry = method + ":" + detail
	}
	m.calls = append(m.calls, entry)
	if err, ok := m.failures[fmt.Sprintf("%s#%d", method, count+1)]; ok {
		return err
	}
	return nil
}

func (m *mockCoreGateway) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockCoreGateway) callsMatching(prefix string) []string {
	var matched []string
	for _, c := range m.callLog() {
		if strings.HasPrefix(c, prefix) {
			matched = append(matched, c)
		}
	}
	return matched
}

func (m *mockCoreGateway) CreateStudent(ctx context.Context, fields map[string]string, photo *upstream.FilePart) (string, error) {
	if err := m.record("CreateStudent", ""); err != nil {
		return "", err
	}
	return "student-new", nil
}

func (m *mockCoreGateway) UpdateStudent(ctx context.Context, id string, fields map[string]string, photo *upstream.FilePart) error {
	return m.record("UpdateStudent", id)
}

func (m *mockCoreGateway) DeleteStudent(ctx context.Context, id string) error {
	return m.record("DeleteStudent", id)
}

func (m *mockCoreGateway) CreateTutor(ctx context.Context, payload models.TutorPayload) (string, error) {
	if err := m.record("CreateTutor", payload.Name); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tutorSeq++
	return fmt.Sprintf("tutor-new-%d", m.tutorSeq), nil
}

func (m *mockCoreGateway) UpdateTutor(ctx context.Context, id string, payload models.TutorPayload) error {
	return m.record("UpdateTutor", id)
}

func (m *mockCoreGateway) DeleteTutor(ctx context.Context, id string) error {
	return m.record("DeleteTutor", id)
}

func (m *mockCoreGateway) AssignTutors(ctx context.Context, studentID string, assignments []models.TutorAssignment) error {
	return m.record("AssignTutors", fmt.Sprintf("%s/%d", studentID, len(assignments)))
}

func (m *mockCoreGateway) CreateRegistration(ctx context.Context, studentID string, reg models.RegistrationDraft) (string, error) {
	if err := m.record("CreateRegistration", studentID); err != nil {
		return "", err
	}
	return "reg-1", nil
}

func (m *mockCoreGateway) DeleteRegistration(ctx context.Context, id string) error {
	return m.record("DeleteRegistration", id)
}

func (m *mockCoreGateway) CreateTransaction(ctx context.Context, tx upstream.TransactionCreate) (string, error) {
	if err := m.record("CreateTransaction", tx.InstallmentID); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactionSeq++
	return fmt.Sprintf("tx-%d", m.transactionSeq), nil
}

func (m *mockCoreGateway) DeleteTransaction(ctx context.Context, id string) error {
	return m.record("DeleteTransaction", id)
}

func (m *mockCoreGateway) CreatePayment(ctx context.Context, payment upstream.PaymentCreate) (string, error) {
	if err := m.record("CreatePayment", payment.TransactionID); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paymentSeq++
	return fmt.Sprintf("pay-%d", m.paymentSeq), nil
}

func (m *mockCoreGateway) DeletePayment(ctx context.Context, id string) error {
	return m.record("DeletePayment", id)
}

func (m *mockCoreGateway) UploadDocument(ctx context.Context, doc upstream.DocumentCreate, file upstream.FilePart) (string, error) {
	if err := m.record("UploadDocument", doc.Label); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documentSeq++
	return fmt.Sprintf("doc-%d", m.documentSeq), nil
}

func (m *mockCoreGateway) DeleteDocument(ctx context.Context, id string) error {
	return m.record("DeleteDocument", id)
}

func (m *mockCoreGateway) EnsureCorrespondenceBook(ctx context.Context, registrationID string) error {
	return m.record("EnsureCorrespondenceBook", registrationID)
}

type mockBlobStore struct {
	mu      sync.Mutex
	blobs   map[string]string
	deleted []string
}

func newMockBlobStore(ids ...string) *mockBlobStore {
	blobs := make(map[string]string)
	for _, id := range ids {
		blobs[id] = "content-" + id
	}
	return &mockBlobStore{blobs: blobs}
}

func (m *mockBlobStore) Open(fileID string) (io.ReadCloser, *storage.BlobMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.blobs[fileID]
	if !ok {
		return nil, nil, storage.ErrBlobNotFound
	}
	meta := &storage.BlobMeta{FileID: fileID, OriginalName: fileID + ".pdf", Size: int64(len(content)), ContentType: "application/pdf", StoredAt: time.Now()}
	return io.NopCloser(strings.NewReader(content)), meta, nil
}

func (m *mockBlobStore) Delete(fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, fileID)
	delete(m.blobs, fileID)
	return nil
}

type mockQueue struct {
	jobs []jobs.Job
}

func (m *mockQueue) Enqueue(job jobs.Job) error {
	m.jobs = append(m.jobs, job)
	return nil
}

func committableDraft() *models.Draft {
	return &models.Draft{
		ID:        "draft-1",
		StudentID: "student-1",
		Kind:      models.KindReRegistration,
		Status:    models.DraftStatusOpen,
		CreatedBy: "operator-1",
		OriginalStudent: models.StudentRecord{
			ID: "student-1", Name: "Keita", FirstName: "Mamadou", BirthDate: "2012-03-04", Sex: "M", Status: "ACTIVE",
		},
		StudentPatch: map[string]string{"status": "REENROLLED"},
		ExistingTutors: []models.ExistingTutorRef{
			{TutorID: "tutor-1", Modified: true, Payload: &models.TutorPayload{Name: "Traore", FirstName: "Issa", Phone: "0611", TutorType: "FATHER"}},
		},
		NewTutors: []models.NewTutor{
			{TutorPayload: models.TutorPayload{Name: "Diallo", FirstName: "Awa", Phone: "0600", TutorType: "MOTHER", IsLegal: true}},
		},
		Registration: &models.RegistrationDraft{ClassID: "class-1", AcademicYearID: "year-1", RegistrationDate: "2026-09-01"},
		PaymentPlan: []models.PaymentPlanEntry{
			{InstallmentID: "inst-1", Amount: 10000, Splits: []models.PaymentSplit{{MethodID: "cash", Amount: 10000}}},
			{InstallmentID: "inst-2", Amount: 5000, Splits: []models.PaymentSplit{{MethodID: "card", Amount: 5000}}},
		},
		Documents: []models.PendingDocument{
			{DocumentTypeID: "dt-1", Label: "Birth certificate", File: models.FileRef{FileID: "file-1"}},
		},
	}
}

func newCommitFixture(draft *models.Draft) (*CommitService, *mockDraftRepo, *mockCoreGateway, *mockBlobStore, *mockQueue) {
	repo := newMockDraftRepo()
	repo.drafts[draft.ID] = draft
	core := newMockCoreGateway()
	blobs := newMockBlobStore("file-1")
	queue := &mockQueue{}
	audit := &mockAuditSink{}
	svc := NewCommitService(repo, audit, core, blobs, queue, nil, zap.NewNop())
	return svc, repo, core, blobs, queue
}

func TestCommitRunsStepsInOrder(t *testing.T) {
	svc, repo, core, blobs, queue := newCommitFixture(committableDraft())

	res, err := svc.Commit(context.Background(), "draft-1", "operator-1", models.RequestMeta{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"UpdateStudent:student-1",
		"CreateTutor:Diallo",
		"UpdateTutor:tutor-1",
		"AssignTutors:student-1/2",
		"CreateRegistration:student-1",
		"CreateTransaction:inst-1",
		"CreatePayment:tx-1",
		"CreateTransaction:inst-2",
		"CreatePayment:tx-2",
		"UploadDocument:Birth certificate",
	}, core.callLog())

	// Everything created landed in the ledger.
	require.NotNil(t, res.Ledger)
	assert.Equal(t, "student-1", res.Ledger.StudentID)
	assert.False(t, res.Ledger.StudentCreated)
	assert.Equal(t, []string{"tutor-new-1"}, res.Ledger.TutorIDs)
	assert.Equal(t, "reg-1", res.Ledger.RegistrationID)
	assert.Equal(t, []string{"tx-1", "tx-2"}, res.Ledger.TransactionIDs)
	assert.Equal(t, []string{"pay-1", "pay-2"}, res.Ledger.PaymentIDs)
	assert.Equal(t, []string{"doc-1"}, res.Ledger.DocumentIDs)
	assert.Empty(t, res.SkippedDocuments)

	stored, err := repo.FindByID(context.Background(), "draft-1")
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusCommitted, stored.Status)
	assert.Contains(t, blobs.deleted, "file-1")
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeCorrespondenceBook, queue.jobs[0].Type)
	assert.Equal(t, "reg-1", queue.jobs[0].Payload)
}

func TestCommitPaymentFailureRollsBack(t *testing.T) {
	svc, repo, core, _, queue := newCommitFixture(committableDraft())
	core.failAt("CreatePayment", 2, errors.New("payment rejected"))

	_, err := svc.Commit(context.Background(), "draft-1", "operator-1", models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErrors.FromError(err).Code)

	// Everything created before the failure is compensated: the first
	// payment, both transactions, the registration and the created
	// tutor. The existing student and tutor-1 are left alone.
	assert.ElementsMatch(t, []string{"DeletePayment:pay-1"}, core.callsMatching("DeletePayment"))
	assert.ElementsMatch(t, []string{"DeleteTransaction:tx-1", "DeleteTransaction:tx-2"}, core.callsMatching("DeleteTransaction"))
	assert.ElementsMatch(t, []string{"DeleteRegistration:reg-1"}, core.callsMatching("DeleteRegistration"))
	assert.ElementsMatch(t, []string{"DeleteTutor:tutor-new-1"}, core.callsMatching("DeleteTutor"))
	assert.Empty(t, core.callsMatching("DeleteStudent"))
	assert.Empty(t, core.callsMatching("DeleteDocument"))

	// The draft survives for another attempt and nothing was enqueued.
	stored, err := repo.FindByID(context.Background(), "draft-1")
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusOpen, stored.Status)
	assert.Nil(t, stored.Ledger)
	assert.Empty(t, queue.jobs)
}

func TestCommitFirstRegistrationRollbackDeletesStudent(t *testing.T) {
	draft := committableDraft()
	draft.Kind = models.KindFirstRegistration
	draft.StudentID = ""
	draft.OriginalStudent = models.StudentRecord{}
	draft.StudentPatch = map[string]string{
		"name": "Keita", "first_name": "Mamadou", "birth_date": "2012-03-04", "sex": "M",
	}
	svc, repo, core, _, _ := newCommitFixture(draft)
	core.failAt("CreateRegistration", 1, errors.New("class is full"))

	_, err := svc.Commit(context.Background(), "draft-1", "operator-1", models.RequestMeta{})
	require.Error(t, err)

	assert.ElementsMatch(t, []string{"DeleteStudent:student-new"}, core.callsMatching("DeleteStudent"))
	assert.ElementsMatch(t, []string{"DeleteTutor:tutor-new-1"}, core.callsMatching("DeleteTutor"))
	assert.Empty(t, core.callsMatching("DeleteRegistration"))

	stored, err := repo.FindByID(context.Background(), "draft-1")
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusOpen, stored.Status)
}

func TestCommitRollbackDeletionsAreIndependent(t *testing.T) {
	svc, _, core, _, _ := newCommitFixture(committableDraft())
	core.failAt("CreatePayment", 2, errors.New("payment rejected"))
	core.failAt("DeleteTransaction", 1, errors.New("transaction locked"))
	core.failAt("DeleteTransaction", 2, errors.New("transaction locked"))

	_, err := svc.Commit(context.Background(), "draft-1", "operator-1", models.RequestMeta{})
	require.Error(t, err)

	// A failed deletion does not prevent the rest of the compensation.
	assert.Len(t, core.callsMatching("DeleteTransaction"), 2)
	assert.Len(t, core.callsMatching("DeletePayment"), 1)
	assert.Len(t, core.callsMatching("DeleteRegistration"), 1)
	assert.Len(t, core.callsMatching("DeleteTutor"), 1)
}

func TestCommitDocumentFailureIsSkippedNotFatal(t *testing.T) {
	svc, repo, core, _, _ := newCommitFixture(committableDraft())
	core.failAt("UploadDocument", 1, errors.New("document type retired"))

	res, err := svc.Commit(context.Background(), "draft-1", "operator-1", models.RequestMeta{})
	require.NoError(t, err)
	require.Len(t, res.SkippedDocuments, 1)
	assert.Equal(t, "Birth certificate", res.SkippedDocuments[0].Label)
	assert.Empty(t, res.Ledger.DocumentIDs)
	assert.Empty(t, core.callsMatching("Delete"))

	stored, err := repo.FindByID(context.Background(), "draft-1")
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusCommitted, stored.Status)
}

func TestCommitAllowsDraftWithoutLegalTutor(t *testing.T) {
	draft := committableDraft()
	draft.NewTutors[0].IsLegal = false
	svc, repo, _, _, _ := newCommitFixture(draft)

	res, err := svc.Commit(context.Background(), "draft-1", "operator-1", models.RequestMeta{})
	require.NoError(t, err)
	require.NotNil(t, res.Ledger)

	stored, err := repo.FindByID(context.Background(), "draft-1")
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusCommitted, stored.Status)
}

func TestCommitRejectsMultipleLegalTutors(t *testing.T) {
	draft := committableDraft()
	draft.ExistingTutors[0].IsLegal = true
	svc, _, core, _, _ := newCommitFixture(draft)

	_, err := svc.Commit(context.Background(), "draft-1", "operator-1", models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, core.callLog())
}

func TestCommitMissingPhotoAbortsBeforeRemoteCalls(t *testing.T) {
	draft := committableDraft()
	draft.Photo = &models.FileRef{FileID: "photo-gone"}
	svc, repo, core, _, queue := newCommitFixture(draft)

	_, err := svc.Commit(context.Background(), "draft-1", "operator-1", models.RequestMeta{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrFileMissing.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "re-import")

	// Nothing reached the core API, so nothing was compensated either.
	assert.Empty(t, core.callLog())
	assert.Empty(t, queue.jobs)

	stored, err := repo.FindByID(context.Background(), "draft-1")
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusOpen, stored.Status)
	assert.Nil(t, stored.Ledger)
}

func TestCommitRejectsClosedDraft(t *testing.T) {
	draft := committableDraft()
	draft.Status = models.DraftStatusCommitted
	svc, _, core, _, _ := newCommitFixture(draft)

	_, err := svc.Commit(context.Background(), "draft-1", "operator-1", models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDraftClosed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, core.callLog())
}

func TestCorrespondenceBookHandler(t *testing.T) {
	svc, _, core, _, _ := newCommitFixture(committableDraft())
	handler := svc.CorrespondenceBookHandler()

	require.NoError(t, handler(context.Background(), jobs.Job{ID: "job-1", Type: JobTypeCorrespondenceBook, Payload: "reg-1"}))
	assert.Equal(t, []string{"EnsureCorrespondenceBook:reg-1"}, core.callLog())
}
