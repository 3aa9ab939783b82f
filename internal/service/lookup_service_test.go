package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edusuite/enrollment-gateway/internal/upstream"
	appErrors "github.com/edusuite/enrollment-gateway/pkg/errors"
)

type mockTutorSearcher struct {
	summaries []upstream.TutorSummary
	err       error
	calls     int
}

func (m *mockTutorSearcher) SearchTutors(ctx context.Context, query string) ([]upstream.TutorSummary, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.summaries, nil
}

type memoryCacheRepo struct {
	entries map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: make(map[string][]byte)}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.entries = make(map[string][]byte)
	return nil
}

func newLookupService(core tutorSearcher) *LookupService {
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, zap.NewNop(), true)
	return NewLookupService(core, cache, time.Minute, zap.NewNop())
}

func TestSearchTutorsRejectsShortQuery(t *testing.T) {
	svc := newLookupService(&mockTutorSearcher{})

	_, _, err := svc.SearchTutors(context.Background(), " d ")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSearchTutorsCachesResults(t *testing.T) {
	core := &mockTutorSearcher{summaries: []upstream.TutorSummary{
		{ID: "tutor-1", Name: "Diallo", FirstName: "Awa", Phone: "0700000001"},
	}}
	svc := newLookupService(core)

	items, hit, err := svc.SearchTutors(context.Background(), "Diallo")
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, items, 1)
	assert.Equal(t, "tutor-1", items[0].ID)

	again, hit, err := svc.SearchTutors(context.Background(), "diallo")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, items, again)
	assert.Equal(t, 1, core.calls)
}

func TestSearchTutorsUpstreamFailure(t *testing.T) {
	core := &mockTutorSearcher{err: errors.New("core unavailable")}
	svc := newLookupService(core)

	_, _, err := svc.SearchTutors(context.Background(), "Diallo")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErrors.FromError(err).Code)
}
