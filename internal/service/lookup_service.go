package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edusuite/enrollment-gateway/internal/dto"
	"github.com/edusuite/enrollment-gateway/internal/upstream"
	appErrors "github.com/edusuite/enrollment-gateway/pkg/errors"
)

type tutorSearcher interface {
	SearchTutors(ctx context.Context, query string) ([]upstream.TutorSummary, error)
}

// LookupService serves the wizard's reference searches. Results are
// cached briefly so repeated keystrokes do not hammer the core API.
type LookupService struct {
	core   tutorSearcher
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewLookupService constructs a LookupService instance.
func NewLookupService(core tutorSearcher, cache *CacheService, ttl time.Duration, logger *zap.Logger) *LookupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &LookupService{core: core, cache: cache, ttl: ttl, logger: logger}
}

// SearchTutors finds existing tutors matching the query. The second
// return value reports whether the result came from cache.
func (s *LookupService) SearchTutors(ctx context.Context, query string) ([]dto.TutorLookupItem, bool, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "query must be at least 2 characters")
	}

	cacheKey := fmt.Sprintf("lookup:tutors:%s", strings.ToLower(query))
	var cached []dto.TutorLookupItem
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return cached, true, nil
	}

	summaries, err := s.core.SearchTutors(ctx, query)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "tutor search failed")
	}

	items := make([]dto.TutorLookupItem, 0, len(summaries))
	for _, t := range summaries {
		items = append(items, dto.TutorLookupItem{
			ID:        t.ID,
			Name:      t.Name,
			FirstName: t.FirstName,
			Phone:     t.Phone,
			Email:     t.Email,
			TutorType: t.TutorType,
		})
	}

	if err := s.cache.Set(ctx, cacheKey, items, s.ttl); err != nil {
		s.logger.Debug("tutor lookup cache write failed", zap.Error(err))
	}
	return items, false, nil
}
