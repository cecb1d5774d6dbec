package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plateforme/homegarden/internal/config"
	"github.com/plateforme/homegarden/internal/logstore"
	"github.com/plateforme/homegarden/internal/model"
	"github.com/plateforme/homegarden/internal/pump"
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

type fakeController struct {
	reading  model.Reading
	state    pump.State
	startErr error
	starts   []float64
	stops    int
	stopOK   bool
}

func (f *fakeController) ManualStart(durationMinutes float64) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.starts = append(f.starts, durationMinutes)
	return nil
}

func (f *fakeController) ManualStop() (model.WateringEvent, bool) {
	f.stops++
	return model.WateringEvent{Reason: "manual"}, f.stopOK
}

func (f *fakeController) ReadNow() model.Reading { return f.reading }
func (f *fakeController) PumpState() pump.State  { return f.state }

func testConfig() model.SystemConfig {
	return model.SystemConfig{
		Profiles: map[string]model.PlantProfile{
			"Monstera deliciosa": {
				{Soil: model.ParseCondition("< 30"), Action: model.ActionWater, DurationMinutes: 1.5},
			},
			"Aloe vera": {
				{Soil: model.ParseCondition("< 15"), Action: model.ActionWater, DurationMinutes: 0.5},
			},
		},
		CurrentProfile:             "Monstera deliciosa",
		MinWateringIntervalMinutes: 30,
	}
}

type fixture struct {
	srv    *Server
	router *gin.Engine
	ctrl   *fakeController
	logs   *logstore.Store
	per    *memPersistence
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logs, err := logstore.New(t.TempDir())
	require.NoError(t, err)

	ctrl := &fakeController{
		reading: model.Reading{
			SoilMoisture:   model.Float(42),
			AirTemperature: model.Float(22),
			AirHumidity:    model.Float(55),
		},
		stopOK: true,
	}
	per := &memPersistence{cfg: testConfig()}
	srv := New(ctrl, config.NewStore(per, config.DefaultTTL), logs, nil, nil)
	srv.now = func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) }

	return &fixture{srv: srv, router: srv.Router(), ctrl: ctrl, logs: logs, per: per}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestGetData(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/data", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, 42.0, body["soil_moisture"])
	assert.Equal(t, 22.0, body["temperature"])
	assert.Equal(t, "Monstera deliciosa", body["current_scenario"])
	assert.Equal(t, false, body["pump_running"])
	assert.NotContains(t, body, "last_watering")
}

func TestSetScenario(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/set_scenario", gin.H{"scenario": "Aloe vera"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Aloe vera", f.per.cfg.CurrentProfile)

	w = f.do(t, http.MethodPost, "/set_scenario", gin.H{"scenario": "Triffid"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/set_scenario", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetScenarioDetails(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/get_scenario_details?name=Aloe+vera", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Aloe vera", decode(t, w)["name"])

	w = f.do(t, http.MethodGet, "/get_scenario_details?name=Triffid", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateSettings(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/update_settings", gin.H{"vacation_mode": true, "min_watering_interval": 45})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.per.cfg.VacationMode)
	assert.Equal(t, 45.0, f.per.cfg.MinWateringIntervalMinutes)
	assert.False(t, f.per.cfg.MaintenanceMode, "untouched fields keep their value")

	w = f.do(t, http.MethodPost, "/update_settings", gin.H{"min_watering_interval": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestManualPumpControl(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/manual_pump_control", gin.H{"action": "on", "duration_minutes": 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []float64{2}, f.ctrl.starts)

	// Missing duration falls back to one minute.
	w = f.do(t, http.MethodPost, "/manual_pump_control", gin.H{"action": "on"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []float64{2, 1}, f.ctrl.starts)

	w = f.do(t, http.MethodPost, "/manual_pump_control", gin.H{"action": "off"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.ctrl.stops)

	w = f.do(t, http.MethodPost, "/manual_pump_control", gin.H{"action": "reverse"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestManualPumpControlRefusal(t *testing.T) {
	f := newFixture(t)
	f.ctrl.startErr = &pump.Refusal{Reason: pump.RefusedTooSoon, Detail: "last watering 3.0 min ago, minimum 30 min"}

	w := f.do(t, http.MethodPost, "/manual_pump_control", gin.H{"action": "on"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestWateringHistoryNewestFirst(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, f.logs.AppendWatering(model.WateringEvent{StartTime: base, DurationSeconds: 90}))
	require.NoError(t, f.logs.AppendWatering(model.WateringEvent{StartTime: base.Add(time.Hour), DurationSeconds: 30}))

	w := f.do(t, http.MethodGet, "/arrosage_history", nil)
	require.Equal(t, http.StatusOK, w.Code)

	history := decode(t, w)["history"].([]any)
	require.Len(t, history, 2)
	first := history[0].(map[string]any)
	assert.Equal(t, "2026-03-01 09:00:00", first["date"])
	assert.Equal(t, "30 s", first["duration"])
	second := history[1].(map[string]any)
	assert.Equal(t, "1 min 30 s", second["duration"])
}

func TestAlertsDrySoil(t *testing.T) {
	f := newFixture(t)
	f.ctrl.reading.SoilMoisture = model.Float(5)

	w := f.do(t, http.MethodGet, "/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)

	alerts := decode(t, w)["alerts"].([]any)
	require.Len(t, alerts, 1)
	assert.Equal(t, "soil", alerts[0].(map[string]any)["type"])
}

func TestAlertsSensorFaultAndStaleWatering(t *testing.T) {
	f := newFixture(t)
	f.ctrl.reading = model.Reading{} // every sensor faulted
	old := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	require.NoError(t, f.logs.AppendWatering(model.WateringEvent{StartTime: old, DurationSeconds: 60}))

	w := f.do(t, http.MethodGet, "/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)

	alerts := decode(t, w)["alerts"].([]any)
	kinds := make([]string, 0, len(alerts))
	for _, a := range alerts {
		kinds = append(kinds, a.(map[string]any)["type"].(string))
	}
	assert.ElementsMatch(t, []string{"sensor", "sensor", "watering"}, kinds)
}

func TestStatistics(t *testing.T) {
	f := newFixture(t)
	today := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, f.logs.AppendWatering(model.WateringEvent{StartTime: today.AddDate(0, 0, -10), DurationSeconds: 120}))
	require.NoError(t, f.logs.AppendWatering(model.WateringEvent{StartTime: today, DurationSeconds: 60}))

	w := f.do(t, http.MethodGet, "/statistics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	stats := decode(t, w)
	assert.Equal(t, 2.0, stats["total_waterings"])
	assert.Equal(t, 1.0, stats["waterings_today"])
	assert.Equal(t, 1.0, stats["waterings_this_week"])
	// 180 s at 0.3 L/min.
	assert.Equal(t, 0.9, stats["total_water_liters"])
	assert.Equal(t, 90.0, stats["avg_duration_seconds"])
}

func TestTrends(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	require.NoError(t, f.logs.AppendSensorSample(now, 20, 50))
	require.NoError(t, f.logs.AppendSensorSample(now.Add(time.Minute), 24, 60))
	// Outside the 24h window.
	require.NoError(t, f.logs.AppendSoilSample(now.Add(-48*time.Hour), 80))

	w := f.do(t, http.MethodGet, "/trends", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	temp := body["temperature"].(map[string]any)
	assert.Equal(t, 20.0, temp["min"])
	assert.Equal(t, 24.0, temp["max"])
	assert.Equal(t, 22.0, temp["avg"])
	assert.Nil(t, body["soil_moisture"])
}

func TestExportData(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.logs.AppendWatering(model.WateringEvent{
		StartTime:       time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		DurationSeconds: 90,
	}))

	w := f.do(t, http.MethodGet, "/export_data?type=watering&format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "watering_export.csv")
	assert.Contains(t, w.Body.String(), "2026-03-01 08:00:00, 90")

	w = f.do(t, http.MethodGet, "/export_data?type=watering&format=json", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/export_data?type=nonsense&format=csv", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/export_data?type=watering&format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45 s", formatDuration(45))
	assert.Equal(t, "2 min", formatDuration(120))
	assert.Equal(t, "1 min 30 s", formatDuration(90.4))
}
