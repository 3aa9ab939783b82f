package models

// StudentRecord is the snapshot of a student as it exists in the core API
// when a draft is opened. Step-one edits are diffed against this snapshot.
type StudentRecord struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	FirstName          string `json:"first_name"`
	BirthDate          string `json:"birth_date"`
	Sex                string `json:"sex"`
	Status             string `json:"status"`
	AssignmentTypeID   string `json:"assignment_type_id"`
	RegistrationNumber string `json:"registration_number"`
	PhotoURL           string `json:"photo_url,omitempty"`
}

// Fields returns the patchable fields keyed by their wire names.
func (s StudentRecord) Fields() map[string]string {
	return map[string]string{
		"name":                s.Name,
		"first_name":          s.FirstName,
		"birth_date":          s.BirthDate,
		"sex":                 s.Sex,
		"status":              s.Status,
		"assignment_type_id":  s.AssignmentTypeID,
		"registration_number": s.RegistrationNumber,
	}
}

// RequiredStudentFields are the fields that must be non-empty before a
// draft can be committed.
var RequiredStudentFields = []string{"name", "first_name", "birth_date", "sex"}
