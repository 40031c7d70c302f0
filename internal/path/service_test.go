package path

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wowl-learning/wowl/internal/competency"
	"github.com/wowl-learning/wowl/internal/mastery"
	"github.com/wowl-learning/wowl/internal/placement"
	"github.com/wowl-learning/wowl/internal/platform/cache"
	"github.com/wowl-learning/wowl/internal/store"
)

// mockCache implements Cache in memory.
type mockCache struct {
	data    map[string][]byte
	deletes int
	failGet bool
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) GetJSON(_ context.Context, key string, dest any) error {
	if m.failGet {
		return errors.New("connection refused")
	}
	b, ok := m.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(b, dest)
}

func (m *mockCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = b
	return nil
}

func (m *mockCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	m.deletes++
	return nil
}

// mockLevels implements LevelSource.
type mockLevels struct {
	levels map[string]mastery.Level
	calls  int
}

func (m *mockLevels) Levels(_ context.Context, _ string) (map[string]mastery.Level, error) {
	m.calls++
	return m.levels, nil
}

func newTestService(t *testing.T) (*Service, *store.MemoryStore, *mockCache, *mockLevels) {
	t.Helper()
	cat := testCatalog(t,
		comp("A", 3, "operations"),
		comp("B", 3, "operations", "A"),
		comp("C", 4, "operations", "B"),
	)
	repo := store.NewMemoryStore()
	c := newMockCache()
	levels := &mockLevels{levels: map[string]mastery.Level{}}
	return NewService(NewGenerator(cat), repo, levels, c, nil), repo, c, levels
}

func TestService_CurrentPathGeneratesOnce(t *testing.T) {
	svc, repo, c, levels := newTestService(t)
	ctx := context.Background()

	p, err := svc.CurrentPath(ctx, "stu-1", competency.SubjectMath, placement.TierExplorers)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, p.Competencies)
	assert.Equal(t, 1, levels.calls)
	assert.Contains(t, c.data, "wowl:path:stu-1:math")

	stored, err := repo.GetPath(ctx, "stu-1", "math")
	require.NoError(t, err)
	assert.Equal(t, "explorers", stored.Tier)

	again, err := svc.CurrentPath(ctx, "stu-1", competency.SubjectMath, placement.TierExplorers)
	require.NoError(t, err)
	assert.Equal(t, p.Competencies, again.Competencies)
	assert.Equal(t, 1, levels.calls)
}

func TestService_InvalidateRegenerates(t *testing.T) {
	svc, repo, c, levels := newTestService(t)
	ctx := context.Background()

	_, err := svc.CurrentPath(ctx, "stu-1", competency.SubjectMath, placement.TierExplorers)
	require.NoError(t, err)

	levels.levels["A"] = mastery.LevelProficient
	require.NoError(t, svc.InvalidatePath(ctx, "stu-1", competency.SubjectMath))
	assert.Empty(t, c.data)
	_, err = repo.GetPath(ctx, "stu-1", "math")
	assert.ErrorIs(t, err, store.ErrNotFound)

	p, err := svc.CurrentPath(ctx, "stu-1", competency.SubjectMath, placement.TierExplorers)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, p.Competencies)
	assert.Equal(t, 2, levels.calls)
}

func TestService_TierChangeRegenerates(t *testing.T) {
	svc, _, _, levels := newTestService(t)
	ctx := context.Background()

	_, err := svc.CurrentPath(ctx, "stu-1", competency.SubjectMath, placement.TierExplorers)
	require.NoError(t, err)

	p, err := svc.CurrentPath(ctx, "stu-1", competency.SubjectMath, placement.TierWarriors)
	require.NoError(t, err)
	assert.Equal(t, placement.TierWarriors, p.Tier)
	assert.True(t, p.TierComplete())
	assert.Equal(t, 2, levels.calls)
}

func TestService_CacheFailureFallsBackToStore(t *testing.T) {
	svc, _, c, levels := newTestService(t)
	ctx := context.Background()

	_, err := svc.CurrentPath(ctx, "stu-1", competency.SubjectMath, placement.TierExplorers)
	require.NoError(t, err)

	c.failGet = true
	p, err := svc.CurrentPath(ctx, "stu-1", competency.SubjectMath, placement.TierExplorers)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, p.Competencies)
	assert.Equal(t, 1, levels.calls)
}

func TestService_Advance(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.CurrentPath(ctx, "stu-1", competency.SubjectMath, placement.TierExplorers)
	require.NoError(t, err)

	require.NoError(t, svc.Advance(ctx, p, 2))
	assert.Equal(t, []string{"C"}, p.Remaining())

	stored, err := repo.GetPath(ctx, "stu-1", "math")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Cursor)

	assert.Error(t, svc.Advance(ctx, p, 4))
}

func TestService_WithoutCache(t *testing.T) {
	cat := testCatalog(t, comp("A", 3, "operations"))
	svc := NewService(NewGenerator(cat), store.NewMemoryStore(), &mockLevels{}, nil, nil)

	p, err := svc.CurrentPath(context.Background(), "stu-1", competency.SubjectMath, placement.TierExplorers)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, p.Competencies)
	assert.NoError(t, svc.InvalidatePath(context.Background(), "stu-1", competency.SubjectMath))
}
