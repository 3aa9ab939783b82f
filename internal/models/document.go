package models

import "time"

// FileRef points into the staging store. Live upload handles do not
// survive navigation between wizard steps; the indirection does.
type FileRef struct {
	FileID       string    `json:"file_id"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	StoredAt     time.Time `json:"stored_at"`
}

// PendingDocument is a document attached to the draft, uploaded to the
// core API only after the registration exists. Upload failures are
// non-fatal: the document is skipped and the commit continues.
type PendingDocument struct {
	DocumentTypeID string  `json:"document_type_id"`
	Label          string  `json:"label"`
	File           FileRef `json:"file"`
}
