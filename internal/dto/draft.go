package dto

import "github.com/edusuite/enrollment-gateway/internal/models"

// OpenDraftRequest opens a wizard draft for a student.
type OpenDraftRequest struct {
	// StudentID is required unless the draft is a first registration,
	// where the student only exists once the commit creates it.
	StudentID string `json:"studentId"`
	Kind      string `json:"kind" validate:"omitempty,oneof=REREGISTRATION FIRST_REGISTRATION"`
}

// StudentPatchRequest carries step-one edits. Only fields that differ from
// the original snapshot are retained server-side.
type StudentPatchRequest struct {
	Fields      map[string]string `json:"fields"`
	PhotoFileID string            `json:"photoFileId,omitempty"`
}

// NewTutorRequest adds a draft-local tutor.
type NewTutorRequest struct {
	Name       string `json:"name" validate:"required"`
	FirstName  string `json:"firstName" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Profession string `json:"profession"`
	TutorType  string `json:"tutorType" validate:"required"`
	IsLegal    bool   `json:"isTutorLegal"`
}

// ExistingTutorRequest attaches or updates an existing tutor reference.
// The payload fields are only consulted when Modified is set.
type ExistingTutorRequest struct {
	TutorID    string `json:"tutorId" validate:"required"`
	IsLegal    bool   `json:"isTutorLegal"`
	Name       string `json:"name"`
	FirstName  string `json:"firstName"`
	Phone      string `json:"phone"`
	Email      string `json:"email" validate:"omitempty,email"`
	Profession string `json:"profession"`
	TutorType  string `json:"tutorType"`
	Modified   bool   `json:"modified"`
}

// TutorSetRequest replaces the draft's tutor lists; the wizard submits
// the full step state on navigation.
type TutorSetRequest struct {
	Existing []ExistingTutorRequest `json:"existing" validate:"dive"`
	New      []NewTutorRequest      `json:"new" validate:"dive"`
}

// RegistrationRequest selects the target class and academic year.
type RegistrationRequest struct {
	ClassID          string `json:"classId" validate:"required"`
	AcademicYearID   string `json:"academicYearId" validate:"required"`
	RegistrationDate string `json:"registrationDate" validate:"required"`
}

// PaymentSplitRequest divides an installment amount across methods.
type PaymentSplitRequest struct {
	MethodID string `json:"paymentMethodId" validate:"required"`
	Amount   int64  `json:"amount" validate:"required,gt=0"`
}

// PaymentPlanEntryRequest is one installment payment to collect at commit.
type PaymentPlanEntryRequest struct {
	InstallmentID string                `json:"installmentId" validate:"required"`
	Amount        int64                 `json:"amount" validate:"required,gt=0"`
	Splits        []PaymentSplitRequest `json:"splits" validate:"required,min=1,dive"`
}

// PaymentPlanRequest replaces the draft's payment plan.
type PaymentPlanRequest struct {
	Entries []PaymentPlanEntryRequest `json:"entries" validate:"dive"`
}

// AttachDocumentRequest attaches a staged file as a pending document.
type AttachDocumentRequest struct {
	DocumentTypeID string `json:"documentTypeId" validate:"required"`
	Label          string `json:"label" validate:"required"`
	FileID         string `json:"fileId" validate:"required"`
}

// StagedFileResponse echoes the staging metadata for an uploaded file.
type StagedFileResponse struct {
	FileID       string `json:"fileId"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	ContentType  string `json:"contentType"`
}

// DraftResponse is the full wizard state returned to the client.
type DraftResponse struct {
	Draft *models.Draft `json:"draft"`
}
