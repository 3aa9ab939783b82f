package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/edusuite/enrollment-gateway/internal/models"
)

type mockStaleRepo struct {
	mu      sync.Mutex
	stale   []models.Draft
	updated []models.Draft
}

func (m *mockStaleRepo) ListStale(ctx context.Context, cutoff time.Time) ([]models.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Draft(nil), m.stale...), nil
}

func (m *mockStaleRepo) Update(ctx context.Context, draft *models.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, *draft)
	return nil
}

type mockJanitor struct {
	mu      sync.Mutex
	deleted []string
	swept   []string
}

func (m *mockJanitor) Delete(fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, fileID)
	return nil
}

func (m *mockJanitor) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.swept, nil
}

func TestMaintenanceCancelsStaleDrafts(t *testing.T) {
	repo := &mockStaleRepo{stale: []models.Draft{{
		ID:     "draft-old",
		Status: models.DraftStatusOpen,
		Photo:  &models.FileRef{FileID: "photo-1"},
	}}}
	janitor := &mockJanitor{swept: []string{"orphan-1"}}

	svc := NewMaintenanceService(repo, janitor, 48*time.Hour, 24*time.Hour, time.Hour, zap.NewNop())
	svc.RunOnce(context.Background())

	assert.Len(t, repo.updated, 1)
	assert.Equal(t, models.DraftStatusCancelled, repo.updated[0].Status)
	assert.Contains(t, janitor.deleted, "photo-1")
}

func TestMaintenanceDisabledWithoutTTL(t *testing.T) {
	repo := &mockStaleRepo{stale: []models.Draft{{ID: "draft-old", Status: models.DraftStatusOpen}}}
	janitor := &mockJanitor{}

	svc := NewMaintenanceService(repo, janitor, 0, 0, time.Hour, zap.NewNop())
	svc.RunOnce(context.Background())

	assert.Empty(t, repo.updated)
}
