package upstream

import (
	"context"
	"net/http"

	"github.com/edusuite/enrollment-gateway/internal/models"
)

// GetStudent fetches the canonical student record used as the draft's
// original snapshot.
func (c *Client) GetStudent(ctx context.Context, id string) (*models.StudentRecord, error) {
	var student models.StudentRecord
	if err := c.doJSON(ctx, http.MethodGet, "/student/"+id, nil, &student); err != nil {
		return nil, err
	}
	return &student, nil
}

// CreateStudent creates a student, optionally with a photo (multipart).
func (c *Client) CreateStudent(ctx context.Context, fields map[string]string, photo *FilePart) (string, error) {
	var created createdEntity
	if photo != nil {
		if err := c.doMultipart(ctx, http.MethodPost, "/student", fields, []FilePart{*photo}, &created); err != nil {
			return "", err
		}
		return created.ID, nil
	}
	if err := c.doJSON(ctx, http.MethodPost, "/student", fields, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// UpdateStudent applies a minimal field patch, multipart when a photo is
// part of the update.
func (c *Client) UpdateStudent(ctx context.Context, id string, fields map[string]string, photo *FilePart) error {
	if photo != nil {
		return c.doMultipart(ctx, http.MethodPut, "/student/"+id, fields, []FilePart{*photo}, nil)
	}
	return c.doJSON(ctx, http.MethodPut, "/student/"+id, fields, nil)
}

// DeleteStudent removes a student. Only invoked by rollback for students
// created during the same commit.
func (c *Client) DeleteStudent(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/student/"+id, nil, nil)
}
