package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edusuite/enrollment-gateway/internal/models"
)

// draftRow is the persisted shape of a draft: lifecycle columns for
// querying plus the full aggregate as a JSONB payload.
type draftRow struct {
	ID        string    `db:"id"`
	StudentID string    `db:"student_id"`
	Kind      string    `db:"kind"`
	Status    string    `db:"status"`
	CreatedBy string    `db:"created_by"`
	Payload   []byte    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// DraftRepository provides database access for enrollment drafts.
type DraftRepository struct {
	db *sqlx.DB
}

// NewDraftRepository creates a new instance of DraftRepository.
func NewDraftRepository(db *sqlx.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// Create inserts a new draft.
func (r *DraftRepository) Create(ctx context.Context, draft *models.Draft) error {
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now

	row, err := toDraftRow(draft)
	if err != nil {
		return err
	}

	const query = `INSERT INTO enrollment_drafts (id, student_id, kind, status, created_by, payload, created_at, updated_at) VALUES (:id, :student_id, :kind, :status, :created_by, :payload, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("create draft: %w", err)
	}
	return nil
}

// FindByID returns a draft by identifier.
func (r *DraftRepository) FindByID(ctx context.Context, id string) (*models.Draft, error) {
	const query = `SELECT id, student_id, kind, status, created_by, payload, created_at, updated_at FROM enrollment_drafts WHERE id = $1 LIMIT 1`
	var row draftRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find draft by id: %w", err)
	}
	return fromDraftRow(&row)
}

// FindOpenByStudent returns the open draft for a student, if any.
func (r *DraftRepository) FindOpenByStudent(ctx context.Context, studentID string) (*models.Draft, error) {
	const query = `SELECT id, student_id, kind, status, created_by, payload, created_at, updated_at FROM enrollment_drafts WHERE student_id = $1 AND status = $2 LIMIT 1`
	var row draftRow
	if err := r.db.GetContext(ctx, &row, query, studentID, string(models.DraftStatusOpen)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find open draft by student: %w", err)
	}
	return fromDraftRow(&row)
}

// Update rewrites the stored payload and lifecycle columns.
func (r *DraftRepository) Update(ctx context.Context, draft *models.Draft) error {
	draft.UpdatedAt = time.Now().UTC()

	row, err := toDraftRow(draft)
	if err != nil {
		return err
	}

	// student_id is rewritten too: a first-registration commit assigns
	// the id the core API minted for the new student.
	const query = `UPDATE enrollment_drafts SET student_id = :student_id, status = :status, payload = :payload, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	return nil
}

// Delete removes a draft row.
func (r *DraftRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM enrollment_drafts WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// ListStale returns open drafts untouched since the cutoff, for the
// maintenance job that cancels abandoned wizard sessions.
func (r *DraftRepository) ListStale(ctx context.Context, cutoff time.Time) ([]models.Draft, error) {
	const query = `SELECT id, student_id, kind, status, created_by, payload, created_at, updated_at FROM enrollment_drafts WHERE status = $1 AND updated_at < $2 ORDER BY updated_at ASC`
	var rows []draftRow
	if err := r.db.SelectContext(ctx, &rows, query, string(models.DraftStatusOpen), cutoff); err != nil {
		return nil, fmt.Errorf("list stale drafts: %w", err)
	}

	drafts := make([]models.Draft, 0, len(rows))
	for i := range rows {
		draft, err := fromDraftRow(&rows[i])
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, *draft)
	}
	return drafts, nil
}

func toDraftRow(draft *models.Draft) (*draftRow, error) {
	payload, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("marshal draft payload: %w", err)
	}
	return &draftRow{
		ID:        draft.ID,
		StudentID: draft.StudentID,
		Kind:      string(draft.Kind),
		Status:    string(draft.Status),
		CreatedBy: draft.CreatedBy,
		Payload:   payload,
		CreatedAt: draft.CreatedAt,
		UpdatedAt: draft.UpdatedAt,
	}, nil
}

func fromDraftRow(row *draftRow) (*models.Draft, error) {
	var draft models.Draft
	if err := json.Unmarshal(row.Payload, &draft); err != nil {
		return nil, fmt.Errorf("unmarshal draft payload: %w", err)
	}
	// Lifecycle columns win over whatever the payload carried.
	draft.ID = row.ID
	draft.StudentID = row.StudentID
	draft.Kind = models.EnrollmentKind(row.Kind)
	draft.Status = models.DraftStatus(row.Status)
	draft.CreatedBy = row.CreatedBy
	draft.CreatedAt = row.CreatedAt
	draft.UpdatedAt = row.UpdatedAt
	return &draft, nil
}
