package models

import "time"

// DraftStatus tracks the lifecycle of an enrollment draft.
type DraftStatus string

const (
	DraftStatusOpen      DraftStatus = "OPEN"
	DraftStatusCommitted DraftStatus = "COMMITTED"
	DraftStatusCancelled DraftStatus = "CANCELLED"
)

// EnrollmentKind distinguishes re-registration of an existing student from
// a first registration where the commit itself creates the student. The
// kind decides whether a rollback may delete the student record.
type EnrollmentKind string

const (
	KindReRegistration    EnrollmentKind = "REREGISTRATION"
	KindFirstRegistration EnrollmentKind = "FIRST_REGISTRATION"
)

// RegistrationDraft is the target class/year selection, created once per
// draft and submitted after tutor assignment succeeds.
type RegistrationDraft struct {
	ClassID          string `json:"class_id"`
	AcademicYearID   string `json:"academic_year_id"`
	RegistrationDate string `json:"registration_date"`
}

// Draft is the wizard's single source of truth between navigation events:
// the student patch, tutor lists, registration selection, payment plan and
// pending documents accumulated across steps.
type Draft struct {
	ID        string         `json:"id"`
	StudentID string         `json:"student_id"`
	Kind      EnrollmentKind `json:"kind"`
	Status    DraftStatus    `json:"status"`
	CreatedBy string         `json:"created_by"`

	OriginalStudent StudentRecord     `json:"original_student"`
	StudentPatch    map[string]string `json:"student_patch,omitempty"`
	Photo           *FileRef          `json:"photo,omitempty"`

	ExistingTutors []ExistingTutorRef `json:"existing_tutors,omitempty"`
	NewTutors      []NewTutor         `json:"new_tutors,omitempty"`

	Registration *RegistrationDraft `json:"registration,omitempty"`
	PaymentPlan  []PaymentPlanEntry `json:"payment_plan,omitempty"`
	Documents    []PendingDocument  `json:"documents,omitempty"`

	Ledger *CreatedEntities `json:"ledger,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TutorCount returns the number of tutors across both lists.
func (d *Draft) TutorCount() int {
	return len(d.ExistingTutors) + len(d.NewTutors)
}

// LegalTutorCount counts entries flagged as legal guardian across both
// lists. The draft service keeps this at most one.
func (d *Draft) LegalTutorCount() int {
	count := 0
	for _, t := range d.ExistingTutors {
		if t.IsLegal {
			count++
		}
	}
	for _, t := range d.NewTutors {
		if t.IsLegal {
			count++
		}
	}
	return count
}

// StagedFileIDs lists every staging-store id referenced by the draft.
func (d *Draft) StagedFileIDs() []string {
	var ids []string
	if d.Photo != nil {
		ids = append(ids, d.Photo.FileID)
	}
	for _, doc := range d.Documents {
		ids = append(ids, doc.File.FileID)
	}
	return ids
}
