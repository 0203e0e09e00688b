package layer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetlens/maprt/internal/cache"
	"github.com/fleetlens/maprt/internal/engine/memory"
	"github.com/fleetlens/maprt/internal/model/core"
)

func mountedRegistry(t *testing.T) (*Registry, *memory.Engine) {
	t.Helper()
	eng := memory.New()
	reg := NewRegistry(100, cache.New(0), nil)
	require.NoError(t, reg.MountAll(eng))
	require.True(t, reg.AllMounted())
	return reg, eng
}

func TestMountAll_RegistersEveryLayer(t *testing.T) {
	reg, eng := mountedRegistry(t)

	for _, id := range reg.IDs() {
		assert.True(t, eng.HasLayer(id), "layer %s not in engine", id)
	}
}

func TestMount_Idempotent(t *testing.T) {
	reg, eng := mountedRegistry(t)

	l, ok := reg.Get(IDVehicles)
	require.True(t, ok)
	require.NoError(t, l.Update([]core.Entity{{ID: "v1"}}))

	// Mounting again must not disturb rendered state.
	require.NoError(t, l.Mount(eng))

	data := eng.Data(IDVehicles)
	require.Len(t, data, 1)
	assert.Equal(t, "v1", data[0].ID)
}

func TestEntityLayer_NormalizesCapacity(t *testing.T) {
	reg, eng := mountedRegistry(t)

	l, _ := reg.Get(IDVehicles)
	require.NoError(t, l.Update([]core.Entity{
		{ID: "v1", Capacity: core.Capacity{Total: 100, Used: 30}},
	}))

	data := eng.Data(IDVehicles)
	require.Len(t, data, 1)
	assert.Equal(t, 0.3, data[0].Props["utilization"])
	assert.Equal(t, 70.0, data[0].Props["available"])
}

func TestEntityLayer_RawJSONWithFlatCapacity(t *testing.T) {
	reg, eng := mountedRegistry(t)

	l, _ := reg.Get(IDVehicles)
	payload := []byte(`[{"id":"v9","lat":-1.3,"lng":36.8,"capacity":100,"current_load":30}]`)
	require.NoError(t, l.Update(payload))

	data := eng.Data(IDVehicles)
	require.Len(t, data, 1)
	assert.Equal(t, 0.3, data[0].Props["utilization"])
}

func TestEntityLayer_EmptyBatchSafe(t *testing.T) {
	reg, eng := mountedRegistry(t)

	l, _ := reg.Get(IDVehicles)
	require.NoError(t, l.Update([]core.Entity{{ID: "v1"}}))
	require.NoError(t, l.Update([]core.Entity{}))

	assert.Empty(t, eng.Data(IDVehicles))
}

func TestEntityLayer_WrongTypeReturnsError(t *testing.T) {
	reg, _ := mountedRegistry(t)

	l, _ := reg.Get(IDVehicles)
	assert.Error(t, l.Update(42))
}

func TestEntityLayer_SkipsIDLessEntities(t *testing.T) {
	reg, eng := mountedRegistry(t)

	l, _ := reg.Get(IDVehicles)
	require.NoError(t, l.Update([]core.Entity{{ID: ""}, {ID: "v1"}}))

	assert.Len(t, eng.Data(IDVehicles), 1)
}

func TestRouteLayer_SkipsInvalidRoutes(t *testing.T) {
	reg, eng := mountedRegistry(t)

	l, _ := reg.Get(IDRoutes)
	require.NoError(t, l.Update([]core.Route{
		{ID: "short", Polyline: []core.LatLng{{Lat: 1, Lng: 1}}},
		{ID: "ok", Polyline: []core.LatLng{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}},
	}))

	data := eng.Data(IDRoutes)
	require.Len(t, data, 1)
	assert.Equal(t, "ok", data[0].ID)
	assert.Len(t, data[0].Line, 2)
}

func TestPlaceLayer_RendersPlaces(t *testing.T) {
	reg, eng := mountedRegistry(t)

	l, _ := reg.Get(IDFacilities)
	require.NoError(t, l.Update([]core.Place{
		{ID: "f1", Name: "Depot A", Category: "depot", Slots: 12},
	}))

	data := eng.Data(IDFacilities)
	require.Len(t, data, 1)
	assert.Equal(t, "Depot A", data[0].Props["name"])
	assert.Equal(t, 12, data[0].Props["slots"])
}

func TestVisibilityToggle_PreservesData(t *testing.T) {
	reg, eng := mountedRegistry(t)

	l, _ := reg.Get(IDFacilities)
	require.NoError(t, l.Update([]core.Place{{ID: "f1"}}))

	require.NoError(t, l.SetVisible(false))
	assert.False(t, eng.Visible(IDFacilities))
	assert.Len(t, eng.Data(IDFacilities), 1)

	require.NoError(t, l.SetVisible(true))
	assert.True(t, eng.Visible(IDFacilities))
	assert.Len(t, eng.Data(IDFacilities), 1)
}

func TestApplyMode_PaintOnly(t *testing.T) {
	reg, eng := mountedRegistry(t)

	l, _ := reg.Get(IDVehicles)
	require.NoError(t, l.Update([]core.Entity{{ID: "v1"}}))

	reg.ApplyMode(core.ModeMinimal)

	opacity, ok := eng.Paint(IDVehicles, "icon-opacity")
	require.True(t, ok)
	assert.Equal(t, 0.4, opacity)
	// No structural change: data survives the mode switch.
	assert.Len(t, eng.Data(IDVehicles), 1)
	assert.Equal(t, core.ModeMinimal, reg.Mode())
}

func TestApplyMode_BeforeMountIsNoOp(t *testing.T) {
	reg := NewRegistry(100, cache.New(0), nil)

	// Must not panic or mutate anything.
	reg.ApplyMode(core.ModePlanning)
	assert.Equal(t, core.ModePlanning, reg.Mode())
}

func TestMountAll_ReappliesCurrentMode(t *testing.T) {
	eng := memory.New()
	reg := NewRegistry(100, cache.New(0), nil)
	reg.ApplyMode(core.ModePlanning)

	require.NoError(t, reg.MountAll(eng))

	opacity, ok := eng.Paint(IDVehicles, "icon-opacity")
	require.True(t, ok)
	assert.Equal(t, 0.6, opacity)
}

func TestTrailLayer_RendersFromCache(t *testing.T) {
	ec := cache.New(0)
	eng := memory.New()
	reg := NewRegistry(100, ec, nil)
	require.NoError(t, reg.MountAll(eng))

	vehicles, _ := reg.Get(IDVehicles)
	require.NoError(t, vehicles.Update([]core.Entity{
		{ID: "v1", Location: core.Location{LatLng: core.LatLng{Lat: 1, Lng: 1}}},
	}))
	require.NoError(t, vehicles.Update([]core.Entity{
		{ID: "v1", Location: core.Location{LatLng: core.LatLng{Lat: 2, Lng: 2}}},
	}))

	trails, _ := reg.Get(IDTrails)
	require.NoError(t, trails.Update(nil))

	data := eng.Data(IDTrails)
	require.Len(t, data, 1)
	assert.Equal(t, "trail-v1", data[0].ID)
	assert.Len(t, data[0].Line, 2)
}

func TestFeatureCounts(t *testing.T) {
	reg, _ := mountedRegistry(t)

	l, _ := reg.Get(IDVehicles)
	require.NoError(t, l.Update([]core.Entity{{ID: "a"}, {ID: "b"}}))

	counts := reg.FeatureCounts()
	assert.Equal(t, 2, counts[IDVehicles])
	assert.Equal(t, 0, counts[IDRoutes])
}

func TestUpdateBeforeMountFails(t *testing.T) {
	reg := NewRegistry(100, cache.New(0), nil)

	l, _ := reg.Get(IDVehicles)
	assert.Error(t, l.Update([]core.Entity{{ID: "v1"}}))
}
