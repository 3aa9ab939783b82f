package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edusuite/enrollment-gateway/internal/dto"
	"github.com/edusuite/enrollment-gateway/internal/models"
	"github.com/edusuite/enrollment-gateway/internal/upstream"
	appErrors "github.com/edusuite/enrollment-gateway/pkg/errors"
	"github.com/edusuite/enrollment-gateway/pkg/jobs"
	"github.com/edusuite/enrollment-gateway/pkg/storage"
)

// coreGateway is the slice of the core API the commit sequence needs.
type coreGateway interface {
	CreateStudent(ctx context.Context, fields map[string]string, photo *upstream.FilePart) (string, error)
	UpdateStudent(ctx context.Context, id string, fields map[string]string, photo *upstream.FilePart) error
	DeleteStudent(ctx context.Context, id string) error
	CreateTutor(ctx context.Context, payload models.TutorPayload) (string, error)
	UpdateTutor(ctx context.Context, id string, payload models.TutorPayload) error
	DeleteTutor(ctx context.Context, id string) error
	AssignTutors(ctx context.Context, studentID string, assignments []models.TutorAssignment) error
	CreateRegistration(ctx context.Context, studentID string, reg models.RegistrationDraft) (string, error)
	DeleteRegistration(ctx context.Context, id string) error
	CreateTransaction(ctx context.Context, tx upstream.TransactionCreate) (string, error)
	DeleteTransaction(ctx context.Context, id string) error
	CreatePayment(ctx context.Context, payment upstream.PaymentCreate) (string, error)
	DeletePayment(ctx context.Context, id string) error
	UploadDocument(ctx context.Context, doc upstream.DocumentCreate, file upstream.FilePart) (string, error)
	DeleteDocument(ctx context.Context, id string) error
	EnsureCorrespondenceBook(ctx context.Context, registrationID string) error
}

type stagedBlobStore interface {
	Open(fileID string) (io.ReadCloser, *storage.BlobMeta, error)
	Delete(fileID string) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type commitObserver interface {
	ObserveCommit(success bool, duration time.Duration)
	ObserveRollbackDeletion(status string)
}

// JobTypeCorrespondenceBook asks the background queue to create the
// correspondence book for a freshly committed registration.
const JobTypeCorrespondenceBook = "correspondence_book"

// CommitService turns a completed draft into real core-API entities with
// a fixed creation order. Every created id lands in the ledger the
// moment the create call returns; if a later step fails, the ledger
// drives a best-effort concurrent rollback and the draft stays open.
type CommitService struct {
	repo    draftRepository
	audit   auditRecorder
	core    coreGateway
	files   stagedBlobStore
	queue   jobEnqueuer
	metrics commitObserver
	logger  *zap.Logger
}

// NewCommitService constructs a CommitService instance.
func NewCommitService(repo draftRepository, audit auditRecorder, core coreGateway, files stagedBlobStore, queue jobEnqueuer, metrics commitObserver, logger *zap.Logger) *CommitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommitService{repo: repo, audit: audit, core: core, files: files, queue: queue, metrics: metrics, logger: logger}
}

// SetQueue attaches the background queue after construction; the queue
// itself is built around this service's job handler.
func (s *CommitService) SetQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Commit executes the enrollment sequence for an open draft.
func (s *CommitService) Commit(ctx context.Context, draftID, actorID string, meta models.RequestMeta) (*dto.CommitResponse, error) {
	draft, err := s.repo.FindByID(ctx, draftID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "draft not found")
	}
	if draft.Status != models.DraftStatusOpen {
		return nil, appErrors.Clone(appErrors.ErrDraftClosed, "draft is "+string(draft.Status))
	}
	if err := s.validateReady(draft); err != nil {
		return nil, err
	}

	// A started commit runs to completion or rollback even if the
	// operator's request is cancelled mid-sequence.
	ctx = context.WithoutCancel(ctx)

	started := time.Now()
	ledger := &models.CreatedEntities{StudentID: draft.StudentID}
	skipped, commitErr := s.run(ctx, draft, ledger)
	if commitErr != nil {
		if s.metrics != nil {
			s.metrics.ObserveCommit(false, time.Since(started))
		}

		// Nothing was created remotely, so there is nothing to
		// compensate; surface the failure as-is.
		if ledger.Empty() {
			var appErr *appErrors.Error
			if errors.As(commitErr, &appErr) {
				return nil, appErr
			}
			return nil, appErrors.Wrap(commitErr, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "enrollment commit failed")
		}

		report := s.rollback(ctx, draft, ledger)
		s.recordCommitAudit(ctx, actorID, draft.ID, models.AuditActionRollback, map[string]interface{}{
			"error":  commitErr.Error(),
			"failed": report.Failed(),
		}, meta)
		return nil, appErrors.Wrap(commitErr, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "enrollment commit failed, changes were rolled back")
	}

	draft.Status = models.DraftStatusCommitted
	draft.StudentID = ledger.StudentID
	draft.Ledger = ledger
	if err := s.repo.Update(ctx, draft); err != nil {
		// The remote entities exist; losing the status update must not
		// re-trigger the wizard, so surface the error loudly.
		s.logger.Error("committed draft could not be persisted", zap.String("draft_id", draft.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "enrollment committed but the draft state could not be saved")
	}

	for _, fileID := range draft.StagedFileIDs() {
		if err := s.files.Delete(fileID); err != nil {
			s.logger.Warn("failed to release staged file after commit", zap.String("file_id", fileID), zap.Error(err))
		}
	}

	if s.queue != nil && ledger.RegistrationID != "" {
		if err := s.queue.Enqueue(jobs.Job{
			ID:      uuid.NewString(),
			Type:    JobTypeCorrespondenceBook,
			Payload: ledger.RegistrationID,
		}); err != nil {
			s.logger.Warn("failed to enqueue correspondence book job", zap.String("registration_id", ledger.RegistrationID), zap.Error(err))
		}
	}

	s.recordCommitAudit(ctx, actorID, draft.ID, models.AuditActionCommit, map[string]interface{}{"ledger": ledger}, meta)
	if s.metrics != nil {
		s.metrics.ObserveCommit(true, time.Since(started))
	}

	return &dto.CommitResponse{DraftID: draft.ID, Ledger: ledger, SkippedDocuments: skipped}, nil
}

// CorrespondenceBookHandler returns the queue handler for step-eight
// jobs. The book creation is retried by the queue and never blocks or
// fails a commit.
func (s *CommitService) CorrespondenceBookHandler() jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		registrationID, ok := job.Payload.(string)
		if !ok || registrationID == "" {
			s.logger.Error("correspondence book job without registration id", zap.String("job_id", job.ID))
			return nil
		}
		return s.core.EnsureCorrespondenceBook(ctx, registrationID)
	}
}

func (s *CommitService) validateReady(draft *models.Draft) error {
	fields := s.effectiveStudentFields(draft)
	for _, key := range models.RequiredStudentFields {
		if fields[key] == "" {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "missing required student field: "+key)
		}
	}
	if draft.TutorCount() == 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "at least one tutor is required")
	}
	if draft.LegalTutorCount() > 1 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "at most one tutor can be the legal guardian")
	}
	if draft.Registration == nil {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "class and academic year must be selected")
	}
	return nil
}

// run walks the creation sequence, appending to the ledger as it goes.
// The returned error aborts the sequence; document upload failures do
// not and come back as skipped entries instead.
func (s *CommitService) run(ctx context.Context, draft *models.Draft, ledger *models.CreatedEntities) ([]dto.SkippedDocument, error) {
	// Step 1: student. A first registration creates the record; a
	// re-registration updates it only when the form actually changed.
	if draft.Kind == models.KindFirstRegistration {
		studentID, err := s.withPhoto(draft, func(photo *upstream.FilePart) (string, error) {
			return s.core.CreateStudent(ctx, s.effectiveStudentFields(draft), photo)
		})
		if err != nil {
			return nil, err
		}
		ledger.StudentID = studentID
		ledger.StudentCreated = true
	} else if len(draft.StudentPatch) > 0 || draft.Photo != nil {
		if _, err := s.withPhoto(draft, func(photo *upstream.FilePart) (string, error) {
			return "", s.core.UpdateStudent(ctx, draft.StudentID, draft.StudentPatch, photo)
		}); err != nil {
			return nil, err
		}
	}

	// Step 2: draft-local tutors become real ones.
	for _, t := range draft.NewTutors {
		tutorID, err := s.core.CreateTutor(ctx, t.TutorPayload)
		if err != nil {
			return nil, err
		}
		ledger.TutorIDs = append(ledger.TutorIDs, tutorID)
	}

	// Step 3: updates to tutors that already exist. Not compensated.
	for _, t := range draft.ExistingTutors {
		if !t.Modified || t.Payload == nil {
			continue
		}
		if err := s.core.UpdateTutor(ctx, t.TutorID, *t.Payload); err != nil {
			return nil, err
		}
	}

	// Step 4: one assignment call covering both lists.
	assignments := make([]models.TutorAssignment, 0, draft.TutorCount())
	for _, t := range draft.ExistingTutors {
		assignments = append(assignments, models.TutorAssignment{TutorID: t.TutorID, IsLegal: t.IsLegal})
	}
	for i, t := range draft.NewTutors {
		assignments = append(assignments, models.TutorAssignment{TutorID: ledger.TutorIDs[i], IsLegal: t.IsLegal})
	}
	if err := s.core.AssignTutors(ctx, ledger.StudentID, assignments); err != nil {
		return nil, err
	}

	// Step 5: registration.
	registrationID, err := s.core.CreateRegistration(ctx, ledger.StudentID, *draft.Registration)
	if err != nil {
		return nil, err
	}
	ledger.RegistrationID = registrationID

	// Step 6: payments, transaction before payment per entry.
	for _, entry := range draft.PaymentPlan {
		txID, err := s.core.CreateTransaction(ctx, upstream.TransactionCreate{
			StudentID:     ledger.StudentID,
			InstallmentID: entry.InstallmentID,
			Amount:        entry.Amount,
		})
		if err != nil {
			return nil, err
		}
		ledger.TransactionIDs = append(ledger.TransactionIDs, txID)

		paymentID, err := s.core.CreatePayment(ctx, upstream.PaymentCreate{
			TransactionID: txID,
			StudentID:     ledger.StudentID,
			InstallmentID: entry.InstallmentID,
			Amount:        entry.Amount,
			Splits:        entry.Splits,
		})
		if err != nil {
			return nil, err
		}
		ledger.PaymentIDs = append(ledger.PaymentIDs, paymentID)
	}

	// Step 7: documents, individually skippable.
	var skipped []dto.SkippedDocument
	for _, doc := range draft.Documents {
		docID, err := s.uploadDocument(ctx, draft, ledger, doc)
		if err != nil {
			s.logger.Warn("document upload skipped",
				zap.String("draft_id", draft.ID),
				zap.String("label", doc.Label),
				zap.Error(err))
			skipped = append(skipped, dto.SkippedDocument{Label: doc.Label, Reason: err.Error()})
			continue
		}
		ledger.DocumentIDs = append(ledger.DocumentIDs, docID)
	}

	// Step 8, the correspondence book, is enqueued by the caller after
	// the draft is marked committed.
	return skipped, nil
}

func (s *CommitService) uploadDocument(ctx context.Context, draft *models.Draft, ledger *models.CreatedEntities, doc models.PendingDocument) (string, error) {
	rc, blob, err := s.files.Open(doc.File.FileID)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	return s.core.UploadDocument(ctx, upstream.DocumentCreate{
		StudentID:      ledger.StudentID,
		RegistrationID: ledger.RegistrationID,
		DocumentTypeID: doc.DocumentTypeID,
		Label:          doc.Label,
	}, upstream.FilePart{
		Field:       "file",
		Filename:    blob.OriginalName,
		ContentType: blob.ContentType,
		Reader:      rc,
	})
}

// withPhoto runs fn with the draft's staged photo opened as a file part,
// or with nil when no photo is staged.
func (s *CommitService) withPhoto(draft *models.Draft, fn func(photo *upstream.FilePart) (string, error)) (string, error) {
	if draft.Photo == nil {
		return fn(nil)
	}
	rc, blob, err := s.files.Open(draft.Photo.FileID)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return "", appErrors.Clone(appErrors.ErrFileMissing, "the staged photo could not be read, re-import the photo")
		}
		return "", err
	}
	defer rc.Close()
	return fn(&upstream.FilePart{
		Field:       "photo",
		Filename:    blob.OriginalName,
		ContentType: blob.ContentType,
		Reader:      rc,
	})
}

// rollback issues compensating deletions for everything in the ledger.
// Deletions run concurrently and independently: one failure never stops
// the others, and every outcome lands in the report.
func (s *CommitService) rollback(ctx context.Context, draft *models.Draft, ledger *models.CreatedEntities) models.RollbackReport {
	type deletion struct {
		category string
		id       string
		fn       func(context.Context, string) error
	}

	var deletions []deletion
	for _, id := range ledger.DocumentIDs {
		deletions = append(deletions, deletion{"document", id, s.core.DeleteDocument})
	}
	for _, id := range ledger.PaymentIDs {
		deletions = append(deletions, deletion{"payment", id, s.core.DeletePayment})
	}
	for _, id := range ledger.TransactionIDs {
		deletions = append(deletions, deletion{"transaction", id, s.core.DeleteTransaction})
	}
	if ledger.RegistrationID != "" {
		deletions = append(deletions, deletion{"registration", ledger.RegistrationID, s.core.DeleteRegistration})
	}
	for _, id := range ledger.TutorIDs {
		deletions = append(deletions, deletion{"tutor", id, s.core.DeleteTutor})
	}
	// The student record is only removed when this commit created it.
	if ledger.StudentCreated && ledger.StudentID != "" {
		deletions = append(deletions, deletion{"student", ledger.StudentID, s.core.DeleteStudent})
	}

	results := make([]models.RollbackResult, len(deletions))
	var wg sync.WaitGroup
	for i, d := range deletions {
		wg.Add(1)
		go func(i int, d deletion) {
			defer wg.Done()
			result := models.RollbackResult{Category: d.category, ID: d.id, Status: models.RollbackStatusOK}
			if err := d.fn(ctx, d.id); err != nil {
				result.Status = models.RollbackStatusFailed
				result.Reason = err.Error()
			}
			results[i] = result
		}(i, d)
	}
	wg.Wait()

	report := models.RollbackReport{Results: results}
	for _, r := range results {
		if s.metrics != nil {
			s.metrics.ObserveRollbackDeletion(r.Status)
		}
	}
	if failed := report.Failed(); len(failed) > 0 {
		s.logger.Error("rollback left orphaned entities",
			zap.String("draft_id", draft.ID),
			zap.Any("failed", failed))
	} else {
		s.logger.Info("rollback completed",
			zap.String("draft_id", draft.ID),
			zap.Int("deletions", len(results)))
	}
	return report
}

// effectiveStudentFields merges the opening snapshot with the patch.
func (s *CommitService) effectiveStudentFields(draft *models.Draft) map[string]string {
	fields := draft.OriginalStudent.Fields()
	for key, value := range draft.StudentPatch {
		fields[key] = value
	}
	return fields
}

func (s *CommitService) recordCommitAudit(ctx context.Context, actorID, draftID, action string, values map[string]interface{}, meta models.RequestMeta) {
	payload, _ := json.Marshal(values)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "enrollment_drafts",
		ResourceID: &draftID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
