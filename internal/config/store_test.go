package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plateforme/homegarden/internal/model"
)

// countingPersistence counts loads/stores around an in-memory config.
type countingPersistence struct {
	cfg     model.SystemConfig
	loads   int
	stores  int
	loadErr error
}

func (c *countingPersistence) Load() (model.SystemConfig, error) {
	c.loads++
	if c.loadErr != nil {
		return model.SystemConfig{}, c.loadErr
	}
	return c.cfg, nil
}

func (c *countingPersistence) Store(cfg model.SystemConfig) error {
	c.stores++
	c.cfg = cfg
	return nil
}

func testConfig() model.SystemConfig {
	return model.SystemConfig{
		CurrentProfile:             "Monstera deliciosa",
		MinWateringIntervalMinutes: 30,
		Profiles: map[string]model.PlantProfile{
			"Monstera deliciosa": {{Soil: model.ParseCondition("< 35"), Action: model.ActionWater, DurationMinutes: 1.5}},
		},
	}
}

// withClock installs a fake clock on the store.
func withClock(s *Store, now *time.Time) {
	s.now = func() time.Time { return *now }
}

func TestGetCachesWithinTTL(t *testing.T) {
	p := &countingPersistence{cfg: testConfig()}
	s := NewStore(p, 5*time.Second)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	withClock(s, &now)

	first, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, p.loads)

	now = now.Add(4 * time.Second)
	second, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, p.loads, "within TTL, Get must not reload")
	assert.Equal(t, first, second)
}

func TestGetReloadsAfterTTL(t *testing.T) {
	p := &countingPersistence{cfg: testConfig()}
	s := NewStore(p, 5*time.Second)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	withClock(s, &now)

	_, err := s.Get()
	require.NoError(t, err)

	p.cfg.VacationMode = true
	now = now.Add(6 * time.Second)

	cfg, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, 2, p.loads)
	assert.True(t, cfg.VacationMode)
}

func TestInvalidateForcesReload(t *testing.T) {
	p := &countingPersistence{cfg: testConfig()}
	s := NewStore(p, time.Hour)
	_, err := s.Get()
	require.NoError(t, err)

	s.Invalidate()
	_, err = s.Get()
	require.NoError(t, err)
	assert.Equal(t, 2, p.loads)
}

func TestSetMergesPersistsAndRefreshes(t *testing.T) {
	p := &countingPersistence{cfg: testConfig()}
	s := NewStore(p, time.Hour)
	_, err := s.Get()
	require.NoError(t, err)

	vac := true
	interval := 45.0
	got, err := s.Set(Patch{VacationMode: &vac, MinWateringIntervalMinutes: &interval})
	require.NoError(t, err)
	assert.True(t, got.VacationMode)
	assert.Equal(t, 45.0, got.MinWateringIntervalMinutes)
	assert.Equal(t, "Monstera deliciosa", got.CurrentProfile, "untouched fields survive the merge")
	assert.Equal(t, 1, p.stores)

	// The cache was refreshed, not merely invalidated: no extra load.
	loadsBefore := p.loads
	cached, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, loadsBefore, p.loads)
	assert.True(t, cached.VacationMode)
}

func TestGetPropagatesLoadError(t *testing.T) {
	p := &countingPersistence{loadErr: errors.New("disk gone")}
	s := NewStore(p, time.Second)
	_, err := s.Get()
	assert.Error(t, err)
}

func TestFilePersistenceSeedsAndRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	fp, err := NewFilePersistence(path)
	require.NoError(t, err)

	cfg, err := fp.Load()
	require.NoError(t, err)
	assert.Equal(t, "Monstera deliciosa", cfg.CurrentProfile)
	assert.Len(t, cfg.Profiles, 9)
	assert.Equal(t, float64(model.DefaultMinWateringIntervalMinutes), cfg.MinWateringIntervalMinutes)

	// Parsed rule tables must be live predicates after the round-trip.
	rules := cfg.CurrentRules()
	require.Len(t, rules, 3)
	assert.True(t, rules[0].Soil.Eval(model.Float(60)))
	assert.False(t, rules[0].Soil.Eval(model.Float(50)))

	cfg.VacationMode = true
	require.NoError(t, fp.Store(cfg))
	again, err := fp.Load()
	require.NoError(t, err)
	assert.True(t, again.VacationMode)
}
