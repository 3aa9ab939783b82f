package models

// CreatedEntities is the commit ledger: ids of every entity created
// remotely during a commit attempt, in the order they were created.
// On failure it drives the rollback compensator; on success it is
// persisted with the draft.
type CreatedEntities struct {
	StudentID      string   `json:"student_id,omitempty"`
	StudentCreated bool     `json:"student_created,omitempty"`
	TutorIDs       []string `json:"tutor_ids,omitempty"`
	RegistrationID string   `json:"registration_id,omitempty"`
	TransactionIDs []string `json:"transaction_ids,omitempty"`
	PaymentIDs     []string `json:"payment_ids,omitempty"`
	DocumentIDs    []string `json:"document_ids,omitempty"`
}

// Empty reports whether nothing was created.
func (l CreatedEntities) Empty() bool {
	return !l.StudentCreated &&
		len(l.TutorIDs) == 0 &&
		l.RegistrationID == "" &&
		len(l.TransactionIDs) == 0 &&
		len(l.PaymentIDs) == 0 &&
		len(l.DocumentIDs) == 0
}

// Rollback result statuses.
const (
	RollbackStatusOK     = "ok"
	RollbackStatusFailed = "failed"
)

// RollbackResult records the outcome of one compensating deletion.
type RollbackResult struct {
	Category string `json:"category"`
	ID       string `json:"id"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

// RollbackReport aggregates the per-entity outcomes of a compensation run.
// It is logged, never surfaced over the original commit error.
type RollbackReport struct {
	Results []RollbackResult `json:"results"`
}

// Failed returns the results whose deletion did not succeed.
func (r RollbackReport) Failed() []RollbackResult {
	var failed []RollbackResult
	for _, res := range r.Results {
		if res.Status != RollbackStatusOK {
			failed = append(failed, res)
		}
	}
	return failed
}
