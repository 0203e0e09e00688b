package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetlens/maprt/internal/cache"
	"github.com/fleetlens/maprt/internal/engine/memory"
	"github.com/fleetlens/maprt/internal/layer"
	"github.com/fleetlens/maprt/internal/model/core"
	"github.com/fleetlens/maprt/internal/runtime"
	"github.com/fleetlens/maprt/internal/sim"
)

func newTestService(t *testing.T) (*Service, *runtime.Runtime, *memory.Engine) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := memory.New()
	reg := layer.NewRegistry(100, cache.New(cache.DefaultTrailLength), logger)
	rt, err := runtime.New(eng, reg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	svc := NewService(Dependencies{
		Runtime: rt,
		Logger:  logger,
		Version: "test",
	})
	return svc, rt, eng
}

func attachAndWait(t *testing.T, svc *Service, rt *runtime.Runtime) {
	t.Helper()
	_, err := svc.HandleAttach([]string{"map-root", "800x600"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return rt.State() == runtime.StateReady
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHandleAttach(t *testing.T) {
	svc, rt, eng := newTestService(t)

	_, err := svc.HandleAttach(nil)
	assert.Error(t, err)
	_, err = svc.HandleAttach([]string{`""`})
	assert.Error(t, err)

	attachAndWait(t, svc, rt)
	assert.Equal(t, "map-root", eng.Surface().ID)
	assert.Equal(t, 800, eng.Surface().Width)
}

func TestHandleDetach(t *testing.T) {
	svc, rt, _ := newTestService(t)
	attachAndWait(t, svc, rt)

	state, err := svc.HandleDetach(nil)
	require.NoError(t, err)
	assert.Equal(t, "DETACHED", state)
}

func TestHandleResize(t *testing.T) {
	svc, rt, eng := newTestService(t)

	require.Error(t, svc.HandleResize(nil))
	require.Error(t, svc.HandleResize([]string{"huge"}))

	attachAndWait(t, svc, rt)
	require.NoError(t, svc.HandleResize([]string{"1024x768"}))
	assert.Equal(t, 1024, eng.Surface().Width)
	assert.Equal(t, 768, eng.Surface().Height)
}

func TestHandleUpdate(t *testing.T) {
	svc, rt, eng := newTestService(t)
	attachAndWait(t, svc, rt)

	require.Error(t, svc.HandleUpdate(nil))
	require.Error(t, svc.HandleUpdate([]byte(`{not json`)))
	require.NoError(t, svc.HandleUpdate([]byte(`{}`)))

	payload := `{
		"vehicles": [
			{"id": "veh-1", "kind": "vehicle", "status": "en_route",
			 "location": {"lat": 52.52, "lng": 13.405},
			 "capacity": {"total": 40, "used": 10}}
		]
	}`
	require.NoError(t, svc.HandleUpdate([]byte(payload)))
	require.Len(t, eng.Data(layer.IDVehicles), 1)

	// Flat-number capacity shape must survive the wire decode.
	flat := `{"vehicles": [
		{"id": "veh-2", "kind": "vehicle", "status": "idle",
		 "location": {"lat": 52.50, "lng": 13.40},
		 "capacity": 30, "used": 12}
	]}`
	require.NoError(t, svc.HandleUpdate([]byte(flat)))
	data := eng.Data(layer.IDVehicles)
	require.Len(t, data, 1)
	assert.Equal(t, "veh-2", data[0].ID)
	assert.InDelta(t, 0.4, data[0].Props["utilization"], 1e-9)
}

func TestHandleLayer(t *testing.T) {
	svc, rt, eng := newTestService(t)
	attachAndWait(t, svc, rt)

	require.Error(t, svc.HandleLayer(nil))
	require.Error(t, svc.HandleLayer([]string{"vehicles"}))
	require.Error(t, svc.HandleLayer([]string{"vehicles", "maybe"}))

	require.NoError(t, svc.HandleLayer([]string{"vehicles", "off"}))
	assert.False(t, eng.Visible(layer.IDVehicles))
	require.NoError(t, svc.HandleLayer([]string{"vehicles", "on"}))
	assert.True(t, eng.Visible(layer.IDVehicles))
}

func TestHandleMode(t *testing.T) {
	svc, rt, _ := newTestService(t)
	attachAndWait(t, svc, rt)

	require.Error(t, svc.HandleMode(nil))
	require.Error(t, svc.HandleMode([]string{"night"}))

	require.NoError(t, svc.HandleMode([]string{"PLANNING"}))
	assert.Equal(t, core.ModePlanning, rt.Mode())
}

func TestHandleDemoLifecycle(t *testing.T) {
	svc, rt, _ := newTestService(t)

	// Demo start needs a ready map.
	require.Error(t, svc.HandleDemoStart(nil))

	attachAndWait(t, svc, rt)

	// No demo defaults configured: falls back to the built-in fleet.
	require.NoError(t, svc.HandleDemoStart([]byte(`{"seed": 7, "vehicles": 3, "tickMs": 3600000}`)))
	assert.True(t, rt.DemoActive())

	se, ok := rt.Sim()
	require.True(t, ok)
	assert.Len(t, se.Entities(), 3)

	require.Error(t, svc.HandleDemoStart([]byte(`broken`)))

	svc.HandleDemoStop()
	assert.False(t, rt.DemoActive())
}

func TestHandleDemoStartUsesConfiguredDefaults(t *testing.T) {
	svc, rt, _ := newTestService(t)
	svc.deps.DemoDefaults = sim.DemoFleet()
	svc.deps.DemoDefaults.Vehicles = 2
	svc.deps.DemoDefaults.TickInterval = time.Hour

	attachAndWait(t, svc, rt)
	require.NoError(t, svc.HandleDemoStart(nil))

	se, ok := rt.Sim()
	require.True(t, ok)
	assert.Len(t, se.Entities(), 2)
}

func TestDemoHooksBracketSession(t *testing.T) {
	svc, rt, _ := newTestService(t)

	var started []sim.Config
	var stopped int
	svc.deps.OnDemoStart = func(cfg sim.Config) { started = append(started, cfg) }
	svc.deps.OnDemoStop = func() { stopped++ }

	// A failed start must not open a session.
	require.Error(t, svc.HandleDemoStart(nil))
	assert.Empty(t, started)

	attachAndWait(t, svc, rt)

	require.NoError(t, svc.HandleDemoStart([]byte(`{"seed": 7, "vehicles": 2, "tickMs": 3600000}`)))
	require.Len(t, started, 1)
	assert.Equal(t, int64(7), started[0].Seed)
	assert.Equal(t, 2, started[0].Vehicles)

	svc.HandleDemoStop()
	assert.Equal(t, 1, stopped)
}

func TestHandleStatus(t *testing.T) {
	svc, rt, _ := newTestService(t)

	out, err := svc.HandleStatus()
	require.NoError(t, err)

	var st Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "UNINITIALIZED", st.State)
	assert.Equal(t, "test", st.Version)
	assert.False(t, st.DemoActive)

	attachAndWait(t, svc, rt)

	out, err = svc.HandleStatus()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "READY", st.State)
}
