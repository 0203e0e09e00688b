package runtime

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetlens/maprt/internal/cache"
	"github.com/fleetlens/maprt/internal/engine"
	"github.com/fleetlens/maprt/internal/engine/memory"
	"github.com/fleetlens/maprt/internal/layer"
	"github.com/fleetlens/maprt/internal/model/core"
	"github.com/fleetlens/maprt/internal/sim"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRuntime(t *testing.T) (*Runtime, *memory.Engine) {
	t.Helper()
	eng := memory.New()
	logger := testLogger()
	reg := layer.NewRegistry(100, cache.New(cache.DefaultTrailLength), logger)
	r, err := New(eng, reg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, eng
}

func waitForState(t *testing.T, r *Runtime, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.State() == want
	}, 2*time.Second, 5*time.Millisecond, "waiting for state %s, at %s", want, r.State())
}

func someVehicles(ids ...string) []core.Entity {
	out := make([]core.Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.Entity{
			ID:     id,
			Kind:   core.KindVehicle,
			Status: core.StatusEnRoute,
			Location: core.Location{
				LatLng: core.LatLng{Lat: 52.52, Lng: 13.405},
			},
			Capacity: core.Capacity{Total: 40, Used: 10},
		})
	}
	return out
}

func TestAttachReachesReady(t *testing.T) {
	r, eng := newTestRuntime(t)

	assert.Equal(t, StateUninitialized, r.State())
	assert.False(t, r.CanAcceptUpdates())

	r.Attach(engine.Surface{ID: "map-root", Width: 800, Height: 600})
	waitForState(t, r, StateReady)

	assert.True(t, r.CanAcceptUpdates())
	assert.Equal(t, 1, eng.AttachCount())
	for _, id := range []string{layer.IDVehicles, layer.IDRoutes, layer.IDAlerts} {
		assert.True(t, eng.HasLayer(id), "layer %s should be mounted", id)
	}
}

func TestAttachSameSurfaceIdempotent(t *testing.T) {
	r, eng := newTestRuntime(t)

	s := engine.Surface{ID: "map-root", Width: 800, Height: 600}
	r.Attach(s)
	waitForState(t, r, StateReady)

	r.Attach(s)
	assert.Equal(t, StateReady, r.State())
	assert.Equal(t, 1, eng.AttachCount())
}

func TestUpdateBeforeReadyIsBufferedAndFlushedOnce(t *testing.T) {
	r, eng := newTestRuntime(t)

	// An update pushed before any attach must not be lost.
	r.Update(core.UpdatePayload{Vehicles: someVehicles("veh-1")})
	assert.Contains(t, r.PendingKeys(), layer.IDVehicles)
	assert.Empty(t, eng.Data(layer.IDVehicles))

	r.Attach(engine.Surface{ID: "map-root"})
	waitForState(t, r, StateReady)

	require.Len(t, eng.Data(layer.IDVehicles), 1)
	assert.Equal(t, "veh-1", eng.Data(layer.IDVehicles)[0].ID)
	assert.Empty(t, r.PendingKeys())
}

func TestBufferLastWriteWins(t *testing.T) {
	r, eng := newTestRuntime(t)

	r.Update(core.UpdatePayload{Vehicles: someVehicles("veh-1")})
	r.Update(core.UpdatePayload{Vehicles: someVehicles("veh-2", "veh-3")})

	r.Attach(engine.Surface{ID: "map-root"})
	waitForState(t, r, StateReady)

	data := eng.Data(layer.IDVehicles)
	require.Len(t, data, 2)
	ids := []string{data[0].ID, data[1].ID}
	assert.NotContains(t, ids, "veh-1")
}

func TestUpdateWhenReadyAppliesImmediately(t *testing.T) {
	r, eng := newTestRuntime(t)

	r.Attach(engine.Surface{ID: "map-root"})
	waitForState(t, r, StateReady)

	r.Update(core.UpdatePayload{Vehicles: someVehicles("veh-1")})
	require.Len(t, eng.Data(layer.IDVehicles), 1)
	assert.Empty(t, r.PendingKeys())
}

func TestPartialPayloadLeavesOtherLayersUntouched(t *testing.T) {
	r, eng := newTestRuntime(t)

	r.Attach(engine.Surface{ID: "map-root"})
	waitForState(t, r, StateReady)

	r.Update(core.UpdatePayload{
		Vehicles: someVehicles("veh-1"),
		Warehouses: []core.Place{
			{ID: "wh-1", Name: "North Hub", Coord: core.LatLng{Lat: 52.5, Lng: 13.4}},
		},
	})
	require.Len(t, eng.Data(layer.IDWarehouses), 1)

	// Vehicles-only update must not clear the warehouses layer.
	r.Update(core.UpdatePayload{Vehicles: someVehicles("veh-1", "veh-2")})
	assert.Len(t, eng.Data(layer.IDWarehouses), 1)
	assert.Len(t, eng.Data(layer.IDVehicles), 2)
}

func TestDetachPreservesLayerData(t *testing.T) {
	r, eng := newTestRuntime(t)

	r.Attach(engine.Surface{ID: "map-root"})
	waitForState(t, r, StateReady)
	r.Update(core.UpdatePayload{Vehicles: someVehicles("veh-1")})

	r.Detach()
	assert.Equal(t, StateDetached, r.State())
	assert.False(t, r.CanAcceptUpdates())

	// Data survives the detach and the reattach.
	assert.Len(t, eng.Data(layer.IDVehicles), 1)

	r.Attach(engine.Surface{ID: "other-panel"})
	waitForState(t, r, StateReady)
	assert.Len(t, eng.Data(layer.IDVehicles), 1)
	assert.Equal(t, 2, eng.AttachCount())
}

func TestUpdatesWhileDetachedAreBuffered(t *testing.T) {
	r, eng := newTestRuntime(t)

	r.Attach(engine.Surface{ID: "map-root"})
	waitForState(t, r, StateReady)

	r.Detach()
	r.Update(core.UpdatePayload{Vehicles: someVehicles("veh-9")})
	assert.Contains(t, r.PendingKeys(), layer.IDVehicles)

	r.Attach(engine.Surface{ID: "map-root"})
	waitForState(t, r, StateReady)

	data := eng.Data(layer.IDVehicles)
	require.Len(t, data, 1)
	assert.Equal(t, "veh-9", data[0].ID)
}

func TestDetachBeforeAttachIsNoOp(t *testing.T) {
	r, _ := newTestRuntime(t)

	r.Detach()
	assert.Equal(t, StateUninitialized, r.State())
}

func TestAttachFailureLeavesMapUnbound(t *testing.T) {
	r, eng := newTestRuntime(t)
	require.NoError(t, eng.Close())

	r.Attach(engine.Surface{ID: "map-root", Width: 800, Height: 600})
	waitForState(t, r, StateDetached)
	assert.False(t, r.CanAcceptUpdates())

	// The bind never happened, so resizes must not reach the engine.
	r.Resize(1024, 768)
	assert.Equal(t, 0, eng.ResizeCount())
}

func TestEngineFaultDegradesReadyMap(t *testing.T) {
	r, eng := newTestRuntime(t)

	r.Attach(engine.Surface{ID: "map-root"})
	waitForState(t, r, StateReady)

	eng.Fault(errors.New("tile source gone"))
	waitForState(t, r, StateDegraded)

	// Degraded maps buffer updates instead of applying them.
	r.Update(core.UpdatePayload{Vehicles: someVehicles("veh-1")})
	assert.Contains(t, r.PendingKeys(), layer.IDVehicles)

	// Re-attach recovers through the full load sequence.
	r.Attach(engine.Surface{ID: "map-root", Width: 1024, Height: 768})
	waitForState(t, r, StateReady)
	assert.Len(t, eng.Data(layer.IDVehicles), 1)
}

func TestToggleLayerVisibility(t *testing.T) {
	r, eng := newTestRuntime(t)

	// Before mounting the toggle is a silent no-op.
	r.ToggleLayerVisibility(layer.IDAlerts, false)

	r.Attach(engine.Surface{ID: "map-root"})
	waitForState(t, r, StateReady)

	r.Update(core.UpdatePayload{Vehicles: someVehicles("veh-1")})
	r.ToggleLayerVisibility(layer.IDVehicles, false)
	assert.False(t, eng.Visible(layer.IDVehicles))

	// Hiding does not clear data; showing again needs no re-send.
	assert.Len(t, eng.Data(layer.IDVehicles), 1)
	r.ToggleLayerVisibility(layer.IDVehicles, true)
	assert.True(t, eng.Visible(layer.IDVehicles))

	r.ToggleLayerVisibility("no-such-layer", true)
}

func TestApplyModeConfig(t *testing.T) {
	r, _ := newTestRuntime(t)

	r.Attach(engine.Surface{ID: "map-root"})
	waitForState(t, r, StateReady)

	r.ApplyModeConfig(core.ModePlanning)
	assert.Equal(t, core.ModePlanning, r.Mode())

	r.ApplyModeConfig(core.Mode("bogus"))
	assert.Equal(t, core.ModePlanning, r.Mode())
}

func TestPlaybackValidation(t *testing.T) {
	r, _ := newTestRuntime(t)

	start := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	r.Update(core.UpdatePayload{Playback: &core.Playback{
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
	}})
	assert.True(t, r.HasPlaybackData())

	// An inverted window keeps the previous one.
	r.Update(core.UpdatePayload{Playback: &core.Playback{
		StartTime: start,
		EndTime:   start.Add(-time.Hour),
	}})
	pb, ok := r.Playback()
	require.True(t, ok)
	assert.Equal(t, start.Add(2*time.Hour), pb.EndTime)
}

func demoConfig() sim.Config {
	return sim.Config{
		Seed:         42,
		TickInterval: time.Hour, // never fires during the test
		Vehicles:     3,
		Routes: []core.Route{
			{ID: "rt-1", Polyline: []core.LatLng{
				{Lat: 52.50, Lng: 13.40},
				{Lat: 52.52, Lng: 13.42},
			}},
		},
		BaseSpeedKph: 40,
		MinSpeedKph:  5,
	}
}

func TestDemoModeLifecycle(t *testing.T) {
	r, _ := newTestRuntime(t)

	// Demo mode needs a ready map.
	require.Error(t, r.EnableDemoMode(demoConfig()))
	assert.False(t, r.DemoActive())

	r.Attach(engine.Surface{ID: "map-root"})
	waitForState(t, r, StateReady)

	require.NoError(t, r.EnableDemoMode(demoConfig()))
	assert.True(t, r.DemoActive())

	// Enabling twice keeps the running simulation.
	require.NoError(t, r.EnableDemoMode(demoConfig()))

	se, ok := r.Sim()
	require.True(t, ok)
	r.Update(se.Step())

	r.DisableDemoMode()
	assert.False(t, r.DemoActive())
	r.DisableDemoMode()
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "UNINITIALIZED", StateUninitialized.String())
	assert.Equal(t, "READY", StateReady.String())
	assert.Equal(t, "DEGRADED", StateDegraded.String())
	assert.Equal(t, "UNKNOWN", State(99).String())
}
