package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edusuite/enrollment-gateway/internal/dto"
	"github.com/edusuite/enrollment-gateway/internal/models"
	appErrors "github.com/edusuite/enrollment-gateway/pkg/errors"
	"github.com/edusuite/enrollment-gateway/pkg/storage"
)

type draftRepository interface {
	Create(ctx context.Context, draft *models.Draft) error
	FindByID(ctx context.Context, id string) (*models.Draft, error)
	FindOpenByStudent(ctx context.Context, studentID string) (*models.Draft, error)
	Update(ctx context.Context, draft *models.Draft) error
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type studentDirectory interface {
	GetStudent(ctx context.Context, id string) (*models.StudentRecord, error)
}

type stagedFileResolver interface {
	Stat(fileID string) (*storage.BlobMeta, error)
	Delete(fileID string) error
}

// DraftService owns the wizard state between navigation events: every
// step mutation validates, normalises and persists the draft aggregate.
type DraftService struct {
	repo      draftRepository
	audit     auditRecorder
	students  studentDirectory
	files     stagedFileResolver
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDraftService constructs a DraftService instance.
func NewDraftService(repo draftRepository, audit auditRecorder, students studentDirectory, files stagedFileResolver, validate *validator.Validate, logger *zap.Logger) *DraftService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DraftService{repo: repo, audit: audit, students: students, files: files, validator: validate, logger: logger}
}

// Open starts a wizard draft. For a re-registration the current student
// record is snapshotted so later edits can be diffed against it; a first
// registration starts from an empty snapshot.
func (s *DraftService) Open(ctx context.Context, req dto.OpenDraftRequest, actorID string, meta models.RequestMeta) (*models.Draft, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid open draft payload")
	}

	kind := models.EnrollmentKind(req.Kind)
	if kind == "" {
		kind = models.KindReRegistration
	}

	draft := &models.Draft{
		Kind:      kind,
		Status:    models.DraftStatusOpen,
		CreatedBy: actorID,
	}

	if kind == models.KindReRegistration {
		if req.StudentID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "studentId is required for a re-registration")
		}
		if existing, err := s.repo.FindOpenByStudent(ctx, req.StudentID); err == nil && existing != nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an open draft already exists for this student")
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing drafts")
		}

		student, err := s.students.GetStudent(ctx, req.StudentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load student record")
		}
		draft.StudentID = req.StudentID
		draft.OriginalStudent = *student
	}

	if err := s.repo.Create(ctx, draft); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create draft")
	}

	s.recordAudit(ctx, actorID, models.AuditActionDraftOpen, draft.ID, map[string]interface{}{"kind": draft.Kind, "student_id": draft.StudentID}, meta)
	return draft, nil
}

// Get returns a draft by identifier.
func (s *DraftService) Get(ctx context.Context, id string) (*models.Draft, error) {
	draft, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "draft not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft")
	}
	return draft, nil
}

// Cancel abandons an open draft and releases its staged files.
func (s *DraftService) Cancel(ctx context.Context, id, actorID string, meta models.RequestMeta) error {
	draft, err := s.openDraft(ctx, id)
	if err != nil {
		return err
	}

	draft.Status = models.DraftStatusCancelled
	if err := s.repo.Update(ctx, draft); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel draft")
	}

	for _, fileID := range draft.StagedFileIDs() {
		if err := s.files.Delete(fileID); err != nil {
			s.logger.Warn("failed to release staged file", zap.String("file_id", fileID), zap.Error(err))
		}
	}

	s.recordAudit(ctx, actorID, models.AuditActionDraftCancel, draft.ID, nil, meta)
	return nil
}

// PatchStudent stores the step-one edits. Only fields that differ from
// the opening snapshot are retained, so an untouched form leaves the
// patch empty and the commit skips the student update entirely.
func (s *DraftService) PatchStudent(ctx context.Context, id string, req dto.StudentPatchRequest) (*models.Draft, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student patch payload")
	}

	draft, err := s.openDraft(ctx, id)
	if err != nil {
		return nil, err
	}

	original := draft.OriginalStudent.Fields()
	patch := make(map[string]string)
	for key, value := range req.Fields {
		if _, known := original[key]; !known {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown student field: "+key)
		}
		if value != original[key] {
			patch[key] = value
		}
	}
	if len(patch) == 0 {
		draft.StudentPatch = nil
	} else {
		draft.StudentPatch = patch
	}

	if req.PhotoFileID != "" {
		if draft.Photo != nil && draft.Photo.FileID != req.PhotoFileID {
			s.releaseFile(draft.Photo.FileID)
		}
		meta, err := s.files.Stat(req.PhotoFileID)
		if err != nil {
			if errors.Is(err, storage.ErrBlobNotFound) {
				return nil, appErrors.Clone(appErrors.ErrFileMissing, "photo is no longer staged, upload it again")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve staged photo")
		}
		draft.Photo = &models.FileRef{
			FileID:       meta.FileID,
			OriginalName: meta.OriginalName,
			Size:         meta.Size,
			ContentType:  meta.ContentType,
			StoredAt:     meta.StoredAt,
		}
	} else if draft.Photo != nil {
		s.releaseFile(draft.Photo.FileID)
		draft.Photo = nil
	}

	if err := s.repo.Update(ctx, draft); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save draft")
	}
	return draft, nil
}

// SetTutors replaces both tutor lists with the submitted step state.
// At most one tutor may carry the legal-guardian flag; when several
// arrive flagged, the most recently flagged one wins and the rest are
// cleared, mirroring how selecting a new legal tutor in the form
// deselects the previous one.
func (s *DraftService) SetTutors(ctx context.Context, id string, req dto.TutorSetRequest) (*models.Draft, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tutor payload")
	}

	draft, err := s.openDraft(ctx, id)
	if err != nil {
		return nil, err
	}

	existing := make([]models.ExistingTutorRef, 0, len(req.Existing))
	seen := make(map[string]bool, len(req.Existing))
	for _, t := range req.Existing {
		if seen[t.TutorID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "tutor listed twice: "+t.TutorID)
		}
		seen[t.TutorID] = true
		ref := models.ExistingTutorRef{TutorID: t.TutorID, IsLegal: t.IsLegal, Modified: t.Modified}
		if t.Modified {
			ref.Payload = &models.TutorPayload{
				Name:       t.Name,
				FirstName:  t.FirstName,
				Phone:      t.Phone,
				Email:      t.Email,
				Profession: t.Profession,
				TutorType:  t.TutorType,
				IsLegal:    t.IsLegal,
			}
		}
		existing = append(existing, ref)
	}

	added := make([]models.NewTutor, 0, len(req.New))
	for _, t := range req.New {
		added = append(added, models.NewTutor{TutorPayload: models.TutorPayload{
			Name:       t.Name,
			FirstName:  t.FirstName,
			Phone:      t.Phone,
			Email:      t.Email,
			Profession: t.Profession,
			TutorType:  t.TutorType,
			IsLegal:    t.IsLegal,
		}})
	}

	draft.ExistingTutors = existing
	draft.NewTutors = added
	enforceSingleLegalTutor(draft)

	if err := s.repo.Update(ctx, draft); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save draft")
	}
	return draft, nil
}

// SetRegistration records the target class and academic year selection.
func (s *DraftService) SetRegistration(ctx context.Context, id string, req dto.RegistrationRequest) (*models.Draft, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	draft, err := s.openDraft(ctx, id)
	if err != nil {
		return nil, err
	}

	draft.Registration = &models.RegistrationDraft{
		ClassID:          req.ClassID,
		AcademicYearID:   req.AcademicYearID,
		RegistrationDate: req.RegistrationDate,
	}

	if err := s.repo.Update(ctx, draft); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save draft")
	}
	return draft, nil
}

// SetPaymentPlan replaces the payment plan. Every entry's splits must
// sum exactly to the entry amount.
func (s *DraftService) SetPaymentPlan(ctx context.Context, id string, req dto.PaymentPlanRequest) (*models.Draft, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment plan payload")
	}

	draft, err := s.openDraft(ctx, id)
	if err != nil {
		return nil, err
	}

	plan := make([]models.PaymentPlanEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		splits := make([]models.PaymentSplit, 0, len(e.Splits))
		for _, sp := range e.Splits {
			splits = append(splits, models.PaymentSplit{MethodID: sp.MethodID, Amount: sp.Amount})
		}
		entry := models.PaymentPlanEntry{InstallmentID: e.InstallmentID, Amount: e.Amount, Splits: splits}
		if entry.SplitsTotal() != entry.Amount {
			return nil, appErrors.Clone(appErrors.ErrValidation, "splits do not sum to the entry amount for installment "+e.InstallmentID)
		}
		plan = append(plan, entry)
	}

	draft.PaymentPlan = plan
	if err := s.repo.Update(ctx, draft); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save draft")
	}
	return draft, nil
}

// AttachDocument links a staged file to the draft as a pending document.
func (s *DraftService) AttachDocument(ctx context.Context, id string, req dto.AttachDocumentRequest) (*models.Draft, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}

	draft, err := s.openDraft(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, doc := range draft.Documents {
		if doc.File.FileID == req.FileID {
			return nil, appErrors.Clone(appErrors.ErrConflict, "file is already attached to the draft")
		}
	}

	meta, err := s.files.Stat(req.FileID)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, appErrors.Clone(appErrors.ErrFileMissing, "document is no longer staged, upload it again")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve staged document")
	}

	draft.Documents = append(draft.Documents, models.PendingDocument{
		DocumentTypeID: req.DocumentTypeID,
		Label:          req.Label,
		File: models.FileRef{
			FileID:       meta.FileID,
			OriginalName: meta.OriginalName,
			Size:         meta.Size,
			ContentType:  meta.ContentType,
			StoredAt:     meta.StoredAt,
		},
	})

	if err := s.repo.Update(ctx, draft); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save draft")
	}
	return draft, nil
}

// DetachDocument removes a pending document and releases its staged file.
func (s *DraftService) DetachDocument(ctx context.Context, id, fileID string) (*models.Draft, error) {
	draft, err := s.openDraft(ctx, id)
	if err != nil {
		return nil, err
	}

	kept := draft.Documents[:0]
	found := false
	for _, doc := range draft.Documents {
		if doc.File.FileID == fileID {
			found = true
			continue
		}
		kept = append(kept, doc)
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not attached to the draft")
	}
	draft.Documents = kept

	if err := s.repo.Update(ctx, draft); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save draft")
	}
	s.releaseFile(fileID)
	return draft, nil
}

func (s *DraftService) openDraft(ctx context.Context, id string) (*models.Draft, error) {
	draft, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if draft.Status != models.DraftStatusOpen {
		return nil, appErrors.Clone(appErrors.ErrDraftClosed, "draft is "+string(draft.Status))
	}
	return draft, nil
}

func (s *DraftService) releaseFile(fileID string) {
	if err := s.files.Delete(fileID); err != nil {
		s.logger.Warn("failed to release staged file", zap.String("file_id", fileID), zap.Error(err))
	}
}

func (s *DraftService) recordAudit(ctx context.Context, actorID, action, resourceID string, values map[string]interface{}, meta models.RequestMeta) {
	var payload []byte
	if values != nil {
		payload, _ = json.Marshal(values)
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "enrollment_drafts",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

// enforceSingleLegalTutor clears the legal flag on all but the last
// flagged tutor, scanning existing tutors first and new tutors second.
func enforceSingleLegalTutor(draft *models.Draft) {
	lastExisting, lastNew := -1, -1
	for i := range draft.ExistingTutors {
		if draft.ExistingTutors[i].IsLegal {
			lastExisting = i
		}
	}
	for i := range draft.NewTutors {
		if draft.NewTutors[i].IsLegal {
			lastNew = i
		}
	}
	if lastExisting < 0 && lastNew < 0 {
		return
	}

	for i := range draft.ExistingTutors {
		keep := lastNew < 0 && i == lastExisting
		draft.ExistingTutors[i].IsLegal = keep
		if draft.ExistingTutors[i].Payload != nil {
			draft.ExistingTutors[i].Payload.IsLegal = keep
		}
	}
	for i := range draft.NewTutors {
		keep := lastNew >= 0 && i == lastNew
		draft.NewTutors[i].IsLegal = keep
	}
}
