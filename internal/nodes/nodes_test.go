package nodes

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plateforme/homegarden/internal/config"
	"github.com/plateforme/homegarden/internal/model"
)

type memPersistence struct {
	mu  sync.Mutex
	cfg model.SystemConfig
}

func (m *memPersistence) Load() (model.SystemConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg, nil
}

func (m *memPersistence) Store(c model.SystemConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = c
	return nil
}

func testConfig() model.SystemConfig {
	return model.SystemConfig{
		Profiles: map[string]model.PlantProfile{
			"default": {
				{Soil: model.ParseCondition("> 60"), Action: model.ActionNoWater},
				{Soil: model.ParseCondition("< 30"), Action: model.ActionWater, DurationMinutes: 2},
			},
			"succulent": {
				{Soil: model.ParseCondition("< 10"), Action: model.ActionLightWater, DurationMinutes: 0.5},
				{Soil: model.ParseCondition("> 10"), Action: model.ActionNoWater},
			},
		},
		CurrentProfile:             "default",
		MinWateringIntervalMinutes: 30,
	}
}

func newTestRegistry(t *testing.T, cfg model.SystemConfig) (*Registry, *time.Time) {
	t.Helper()
	dir := t.TempDir()
	store := config.NewStore(&memPersistence{cfg: cfg}, config.DefaultTTL)
	r, err := NewRegistry(filepath.Join(dir, "nodes.json"), filepath.Join(dir, "nodes_data"), store)
	require.NoError(t, err)

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	return r, &now
}

func pushPayload(t *testing.T, p Push) []byte {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return raw
}

func TestRegisterAndReload(t *testing.T) {
	r, _ := newTestRegistry(t, testConfig())

	n, err := r.Register("balcony", "south wall", "")
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, "balcony", list[0].Name)
	assert.True(t, list[0].Online)

	// A fresh registry over the same file sees the node.
	store := config.NewStore(&memPersistence{cfg: testConfig()}, config.DefaultTTL)
	r2, err := NewRegistry(r.path, r.dataDir, store)
	require.NoError(t, err)
	got, ok := r2.Get(n.ID)
	require.True(t, ok)
	assert.Equal(t, "balcony", got.Name)
}

func TestNodeGoesOfflineAfterSilence(t *testing.T) {
	r, now := newTestRegistry(t, testConfig())

	n, err := r.Register("shelf", "", "")
	require.NoError(t, err)

	*now = now.Add(4 * time.Minute)
	got, ok := r.Get(n.ID)
	require.True(t, ok)
	assert.True(t, got.Online)

	*now = now.Add(2 * time.Minute)
	got, _ = r.Get(n.ID)
	assert.False(t, got.Online)
}

func TestUpdatePatchesFields(t *testing.T) {
	r, _ := newTestRegistry(t, testConfig())
	n, err := r.Register("shelf", "hall", "")
	require.NoError(t, err)

	profile := "succulent"
	got, err := r.Update(n.ID, Patch{Profile: &profile})
	require.NoError(t, err)
	assert.Equal(t, "succulent", got.Profile)
	assert.Equal(t, "hall", got.Location)

	_, err = r.Update("nope", Patch{})
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestHandlePushDecides(t *testing.T) {
	r, _ := newTestRegistry(t, testConfig())
	n, err := r.Register("balcony", "", "")
	require.NoError(t, err)

	reply, err := r.HandlePush(pushPayload(t, Push{NodeID: n.ID, SoilMoisture: model.Float(20)}))
	require.NoError(t, err)
	assert.Equal(t, model.ActionWater, reply.Action)
	assert.Equal(t, 2.0, reply.DurationMinutes)

	reply, err = r.HandlePush(pushPayload(t, Push{NodeID: n.ID, SoilMoisture: model.Float(70)}))
	require.NoError(t, err)
	assert.Equal(t, model.ActionNoWater, reply.Action)
	assert.Zero(t, reply.DurationMinutes)
}

func TestHandlePushUnknownNode(t *testing.T) {
	r, _ := newTestRegistry(t, testConfig())

	_, err := r.HandlePush(pushPayload(t, Push{NodeID: "ghost", SoilMoisture: model.Float(20)}))
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestHandlePushDeduplicates(t *testing.T) {
	r, _ := newTestRegistry(t, testConfig())
	n, err := r.Register("balcony", "", "")
	require.NoError(t, err)

	raw := pushPayload(t, Push{NodeID: n.ID, SoilMoisture: model.Float(20)})

	first, err := r.HandlePush(raw)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := r.HandlePush(raw)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, model.ActionNoWater, second.Action)

	// Only the first copy was recorded.
	data, err := os.ReadFile(filepath.Join(r.dataDir, n.ID+".csv"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
}

func TestHandlePushMaintenanceBlocks(t *testing.T) {
	cfg := testConfig()
	cfg.MaintenanceMode = true
	r, _ := newTestRegistry(t, cfg)
	n, err := r.Register("balcony", "", "")
	require.NoError(t, err)

	reply, err := r.HandlePush(pushPayload(t, Push{NodeID: n.ID, SoilMoisture: model.Float(20)}))
	require.NoError(t, err)
	assert.Equal(t, model.ActionNoWater, reply.Action)
}

func TestHandlePushVacationHalves(t *testing.T) {
	cfg := testConfig()
	cfg.VacationMode = true
	r, _ := newTestRegistry(t, cfg)
	n, err := r.Register("balcony", "", "")
	require.NoError(t, err)

	reply, err := r.HandlePush(pushPayload(t, Push{NodeID: n.ID, SoilMoisture: model.Float(20)}))
	require.NoError(t, err)
	assert.Equal(t, model.ActionWater, reply.Action)
	assert.Equal(t, 1.0, reply.DurationMinutes)
}

func TestHandlePushUsesNodeProfile(t *testing.T) {
	r, _ := newTestRegistry(t, testConfig())
	n, err := r.Register("cactus-shelf", "", "succulent")
	require.NoError(t, err)

	// 20% is dry for the default profile but wet for a succulent.
	reply, err := r.HandlePush(pushPayload(t, Push{NodeID: n.ID, SoilMoisture: model.Float(20)}))
	require.NoError(t, err)
	assert.Equal(t, model.ActionNoWater, reply.Action)
}

func TestSampleCSVKeepsColumnsOnFault(t *testing.T) {
	r, _ := newTestRegistry(t, testConfig())
	n, err := r.Register("balcony", "", "")
	require.NoError(t, err)

	_, err = r.HandlePush(pushPayload(t, Push{NodeID: n.ID, AirTemperature: model.Float(21.5)}))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(r.dataDir, n.ID+".csv"))
	require.NoError(t, err)
	line := strings.TrimRight(string(data), "\n")
	fields := strings.Split(line, ", ")
	require.Len(t, fields, 4)
	assert.Empty(t, fields[1])
	assert.Equal(t, "21.5", fields[2])
	assert.Empty(t, fields[3])
}
