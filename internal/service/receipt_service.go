package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edusuite/enrollment-gateway/internal/dto"
	"github.com/edusuite/enrollment-gateway/internal/models"
	appErrors "github.com/edusuite/enrollment-gateway/pkg/errors"
	"github.com/edusuite/enrollment-gateway/pkg/export"
	"github.com/edusuite/enrollment-gateway/pkg/storage"
)

type receiptDraftReader interface {
	FindByID(ctx context.Context, id string) (*models.Draft, error)
}

// ReceiptService renders enrollment receipts for committed drafts.
type ReceiptService struct {
	repo   receiptDraftReader
	pdf    *export.PDFExporter
	csv    *export.CSVExporter
	signer *storage.SignedURLSigner
	logger *zap.Logger
}

// NewReceiptService constructs a ReceiptService instance.
func NewReceiptService(repo receiptDraftReader, pdf *export.PDFExporter, signer *storage.SignedURLSigner, logger *zap.Logger) *ReceiptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ReceiptService{repo: repo, pdf: pdf, csv: export.NewCSVExporter(), signer: signer, logger: logger}
}

func (s *ReceiptService) committedDraft(ctx context.Context, draftID string) (*models.Draft, error) {
	draft, err := s.repo.FindByID(ctx, draftID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "draft not found")
	}
	if draft.Status != models.DraftStatusCommitted || draft.Ledger == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "receipt is only available after the enrollment is committed")
	}
	return draft, nil
}

func paymentTable(draft *models.Draft) export.Dataset {
	dataset := export.Dataset{Headers: []string{"installment", "amount", "methods"}}
	var total int64
	for _, entry := range draft.PaymentPlan {
		methods := ""
		for i, split := range entry.Splits {
			if i > 0 {
				methods += ", "
			}
			methods += fmt.Sprintf("%s %s", split.MethodID, formatAmount(split.Amount))
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"installment": entry.InstallmentID,
			"amount":      formatAmount(entry.Amount),
			"methods":     methods,
		})
		total += entry.Amount
	}
	dataset.Rows = append(dataset.Rows, map[string]string{
		"installment": "TOTAL",
		"amount":      formatAmount(total),
		"methods":     "",
	})
	return dataset
}

// Render produces the PDF receipt for a committed draft.
func (s *ReceiptService) Render(ctx context.Context, draftID string) ([]byte, string, error) {
	draft, err := s.committedDraft(ctx, draftID)
	if err != nil {
		return nil, "", err
	}

	fields := draft.OriginalStudent.Fields()
	for key, value := range draft.StudentPatch {
		fields[key] = value
	}

	doc := export.Document{
		Title: "Enrollment receipt",
		Summary: []export.SummaryLine{
			{Label: "Student", Value: fields["name"] + " " + fields["first_name"]},
			{Label: "Registration number", Value: fields["registration_number"]},
			{Label: "Registration", Value: draft.Ledger.RegistrationID},
			{Label: "Committed at", Value: draft.UpdatedAt.Format(time.RFC3339)},
		},
		Footer: "Generated by the enrollment gateway",
	}
	if len(draft.PaymentPlan) > 0 {
		doc.Table = paymentTable(draft)
	}

	payload, err := s.pdf.Render(doc)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}

	filename := fmt.Sprintf("enrollment-receipt-%s.pdf", draft.ID)
	return payload, filename, nil
}

// RenderCSV exports the committed payment schedule as CSV.
func (s *ReceiptService) RenderCSV(ctx context.Context, draftID string) ([]byte, string, error) {
	draft, err := s.committedDraft(ctx, draftID)
	if err != nil {
		return nil, "", err
	}

	payload, err := s.csv.Render(paymentTable(draft))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}

	filename := fmt.Sprintf("enrollment-receipt-%s.csv", draft.ID)
	return payload, filename, nil
}

// Link issues a signed download token so the receipt can be fetched
// without an Authorization header, e.g. from a browser link.
func (s *ReceiptService) Link(ctx context.Context, draftID string) (*dto.ReceiptLinkResponse, error) {
	draft, err := s.committedDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "receipt links are not configured")
	}

	filename := fmt.Sprintf("enrollment-receipt-%s.pdf", draft.ID)
	token, expiresAt, err := s.signer.Generate(draft.ID, filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign receipt link")
	}
	return &dto.ReceiptLinkResponse{Token: token, ExpiresAt: expiresAt}, nil
}

// RenderByToken validates a signed token and renders the referenced receipt.
func (s *ReceiptService) RenderByToken(ctx context.Context, token string) ([]byte, string, error) {
	if s.signer == nil {
		return nil, "", appErrors.Clone(appErrors.ErrInternal, "receipt links are not configured")
	}
	draftID, _, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired receipt link")
	}
	return s.Render(ctx, draftID)
}

// formatAmount renders minor currency units with two decimals.
func formatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
