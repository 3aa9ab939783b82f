package models

// TutorPayload carries the editable fields of a tutor.
type TutorPayload struct {
	Name       string `json:"name"`
	FirstName  string `json:"first_name"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
	Profession string `json:"profession,omitempty"`
	TutorType  string `json:"tutor_type"`
	IsLegal    bool   `json:"is_tutor_legal"`
}

// ExistingTutorRef references a tutor already known to the core API.
// Modified marks tutors whose payload diverged from the remote record and
// must be updated during commit; such updates are never rolled back.
type ExistingTutorRef struct {
	TutorID  string        `json:"tutor_id"`
	IsLegal  bool          `json:"is_tutor_legal"`
	Modified bool          `json:"modified"`
	Payload  *TutorPayload `json:"payload,omitempty"`
}

// NewTutor is a tutor that exists only in the draft until commit.
type NewTutor struct {
	TutorPayload
}

// TutorAssignment links one tutor to the student with its legal flag,
// used for the single assign-set call during commit.
type TutorAssignment struct {
	TutorID string `json:"tutor_id"`
	IsLegal bool   `json:"is_tutor_legal"`
}
