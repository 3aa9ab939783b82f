package upstream

import (
	"context"
	"net/http"

	"github.com/edusuite/enrollment-gateway/internal/models"
)

// TransactionCreate is the financial transaction recorded before its
// payment.
type TransactionCreate struct {
	StudentID     string `json:"student_id"`
	InstallmentID string `json:"installment_id"`
	Amount        int64  `json:"amount"`
}

// PaymentCreate references the transaction created just before it.
type PaymentCreate struct {
	TransactionID string                `json:"transaction_id"`
	StudentID     string                `json:"student_id"`
	InstallmentID string                `json:"installment_id"`
	Amount        int64                 `json:"amount"`
	Splits        []models.PaymentSplit `json:"splits"`
}

// CreateTransaction records a transaction and returns its id.
func (c *Client) CreateTransaction(ctx context.Context, tx TransactionCreate) (string, error) {
	var created createdEntity
	if err := c.doJSON(ctx, http.MethodPost, "/transaction", tx, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// DeleteTransaction removes a transaction (rollback only).
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/transaction/"+id, nil, nil)
}

// CreatePayment records a payment referencing its transaction.
func (c *Client) CreatePayment(ctx context.Context, payment PaymentCreate) (string, error) {
	var created createdEntity
	if err := c.doJSON(ctx, http.MethodPost, "/payment", payment, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// DeletePayment removes a payment (rollback only).
func (c *Client) DeletePayment(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/payment/"+id, nil, nil)
}
