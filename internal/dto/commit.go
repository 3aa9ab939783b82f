package dto

import (
	"time"

	"github.com/edusuite/enrollment-gateway/internal/models"
)

// CommitResponse reports a successful enrollment commit. SkippedDocuments
// lists documents that failed to upload; their absence does not fail the
// commit.
type CommitResponse struct {
	DraftID          string                  `json:"draftId"`
	Ledger           *models.CreatedEntities `json:"ledger"`
	SkippedDocuments []SkippedDocument       `json:"skippedDocuments,omitempty"`
}

// SkippedDocument names a document that could not be attached.
type SkippedDocument struct {
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

// TutorLookupItem is a core-API tutor search result.
type TutorLookupItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FirstName string `json:"firstName"`
	Phone     string `json:"phone"`
	Email     string `json:"email,omitempty"`
	TutorType string `json:"tutorType,omitempty"`
}

// ReceiptLinkResponse carries a signed receipt download token.
type ReceiptLinkResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
