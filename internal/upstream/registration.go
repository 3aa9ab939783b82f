package upstream

import (
	"context"
	"net/http"

	"github.com/edusuite/enrollment-gateway/internal/models"
)

// CreateRegistration creates the registration for the student and returns
// its id.
func (c *Client) CreateRegistration(ctx context.Context, studentID string, reg models.RegistrationDraft) (string, error) {
	body := map[string]interface{}{
		"student_id":        studentID,
		"class_id":          reg.ClassID,
		"academic_year_id":  reg.AcademicYearID,
		"registration_date": reg.RegistrationDate,
	}
	var created createdEntity
	if err := c.doJSON(ctx, http.MethodPost, "/registration", body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// DeleteRegistration removes a registration (rollback only).
func (c *Client) DeleteRegistration(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/registration/"+id, nil, nil)
}

// EnsureCorrespondenceBook fetches or creates the correspondence-book
// record tied to a registration. Informational; callers may ignore errors.
func (c *Client) EnsureCorrespondenceBook(ctx context.Context, registrationID string) error {
	body := map[string]string{"registration_id": registrationID}
	return c.doJSON(ctx, http.MethodPost, "/correspondence-book", body, nil)
}
