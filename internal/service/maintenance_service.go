package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/edusuite/enrollment-gateway/internal/models"
)

type staleDraftRepository interface {
	ListStale(ctx context.Context, cutoff time.Time) ([]models.Draft, error)
	Update(ctx context.Context, draft *models.Draft) error
}

type blobJanitor interface {
	Delete(fileID string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// MaintenanceService cancels wizard drafts abandoned past their TTL and
// sweeps staged blobs no draft references anymore.
type MaintenanceService struct {
	repo     staleDraftRepository
	files    blobJanitor
	draftTTL time.Duration
	blobTTL  time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// NewMaintenanceService constructs a MaintenanceService instance.
func NewMaintenanceService(repo staleDraftRepository, files blobJanitor, draftTTL, blobTTL, interval time.Duration, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &MaintenanceService{repo: repo, files: files, draftTTL: draftTTL, blobTTL: blobTTL, interval: interval, logger: logger}
}

// Start runs the sweep loop until the context is cancelled.
func (s *MaintenanceService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce performs a single maintenance sweep.
func (s *MaintenanceService) RunOnce(ctx context.Context) {
	cancelled := s.cancelStaleDrafts(ctx)
	removed := s.sweepOrphanBlobs()
	if cancelled > 0 || removed > 0 {
		s.logger.Info("maintenance sweep finished",
			zap.Int("drafts_cancelled", cancelled),
			zap.Int("blobs_removed", removed))
	}
}

func (s *MaintenanceService) cancelStaleDrafts(ctx context.Context) int {
	if s.draftTTL <= 0 {
		return 0
	}
	cutoff := time.Now().UTC().Add(-s.draftTTL)
	drafts, err := s.repo.ListStale(ctx, cutoff)
	if err != nil {
		s.logger.Warn("failed to list stale drafts", zap.Error(err))
		return 0
	}

	cancelled := 0
	for i := range drafts {
		draft := drafts[i]
		draft.Status = models.DraftStatusCancelled
		if err := s.repo.Update(ctx, &draft); err != nil {
			s.logger.Warn("failed to cancel stale draft", zap.String("draft_id", draft.ID), zap.Error(err))
			continue
		}
		for _, fileID := range draft.StagedFileIDs() {
			if err := s.files.Delete(fileID); err != nil {
				s.logger.Warn("failed to release staged file", zap.String("file_id", fileID), zap.Error(err))
			}
		}
		cancelled++
	}
	return cancelled
}

func (s *MaintenanceService) sweepOrphanBlobs() int {
	if s.blobTTL <= 0 {
		return 0
	}
	removed, err := s.files.CleanupOlderThan(s.blobTTL)
	if err != nil {
		s.logger.Warn("staged blob cleanup failed", zap.Error(err))
	}
	return len(removed)
}
