package upstream

import (
	"context"
	"net/http"
	"net/url"

	"github.com/edusuite/enrollment-gateway/internal/models"
)

// TutorSummary is a tutor as returned by the core API search endpoint.
type TutorSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email,omitempty"`
	TutorType string `json:"tutor_type,omitempty"`
}

// CreateTutor creates a tutor and returns its id.
func (c *Client) CreateTutor(ctx context.Context, payload models.TutorPayload) (string, error) {
	var created createdEntity
	if err := c.doJSON(ctx, http.MethodPost, "/tutor", payload, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// UpdateTutor updates an existing tutor in place.
func (c *Client) UpdateTutor(ctx context.Context, id string, payload models.TutorPayload) error {
	return c.doJSON(ctx, http.MethodPut, "/tutor/"+id, payload, nil)
}

// DeleteTutor removes a tutor.
func (c *Client) DeleteTutor(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/tutor/"+id, nil, nil)
}

// AssignTutors sets the student's full tutor list, legal flags included,
// in a single call.
func (c *Client) AssignTutors(ctx context.Context, studentID string, assignments []models.TutorAssignment) error {
	body := map[string]interface{}{
		"student_id": studentID,
		"tutors":     assignments,
	}
	return c.doJSON(ctx, http.MethodPost, "/student/assign-tutor", body, nil)
}

// SearchTutors looks up existing tutors by name.
func (c *Client) SearchTutors(ctx context.Context, query string) ([]TutorSummary, error) {
	var tutors []TutorSummary
	path := "/tutor?search=" + url.QueryEscape(query)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &tutors); err != nil {
		return nil, err
	}
	return tutors, nil
}
