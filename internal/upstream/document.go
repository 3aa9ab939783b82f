package upstream

import (
	"context"
	"net/http"
)

// DocumentCreate describes a document upload tied to a student and its
// registration for audit linkage.
type DocumentCreate struct {
	StudentID      string
	RegistrationID string
	DocumentTypeID string
	Label          string
}

// UploadDocument sends the document multipart and returns the created id.
func (c *Client) UploadDocument(ctx context.Context, doc DocumentCreate, file FilePart) (string, error) {
	fields := map[string]string{
		"student_id":       doc.StudentID,
		"registration_id":  doc.RegistrationID,
		"document_type_id": doc.DocumentTypeID,
		"label":            doc.Label,
	}
	var created createdEntity
	if err := c.doMultipart(ctx, http.MethodPost, "/document", fields, []FilePart{file}, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// DeleteDocument removes a document (rollback only).
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/document/"+id, nil, nil)
}
