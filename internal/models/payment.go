package models

// PaymentSplit divides a payment entry across payment methods.
// Amounts are expressed in minor currency units.
type PaymentSplit struct {
	MethodID string `json:"payment_method_id"`
	Amount   int64  `json:"amount"`
}

// PaymentPlanEntry records one installment payment collected at enrollment.
// The splits must sum to Amount; a core-API transaction is created per
// entry before the payment record referencing it.
type PaymentPlanEntry struct {
	InstallmentID string         `json:"installment_id"`
	Amount        int64          `json:"amount"`
	Splits        []PaymentSplit `json:"splits"`
}

// SplitsTotal returns the sum of the entry's method splits.
func (e PaymentPlanEntry) SplitsTotal() int64 {
	var total int64
	for _, split := range e.Splits {
		total += split.Amount
	}
	return total
}
