// internal/sim/demo.go
package sim

import (
	"time"

	"github.com/fleetlens/maprt/internal/model/core"
)

// DemoFleet returns the built-in simulation dataset: a small delivery fleet
// circling central Berlin with one congestion zone over the ring center and a
// slow zone around the main station. Hosts that start demo mode without a
// dataset of their own get this one.
func DemoFleet() Config {
	return Config{
		Seed:                 1,
		TickInterval:         2 * time.Second,
		PlaybackSpeed:        1,
		Vehicles:             12,
		BaseSpeedKph:         42,
		MinSpeedKph:          5,
		JitterRatio:          0.10,
		DelayProbability:     0.01,
		BreakdownProbability: 0.002,
		LoopRoutes:           true,
		Routes: []core.Route{
			{
				ID: "demo-north-loop",
				Polyline: []core.LatLng{
					{Lat: 52.5321, Lng: 13.3849},
					{Lat: 52.5402, Lng: 13.4011},
					{Lat: 52.5433, Lng: 13.4281},
					{Lat: 52.5370, Lng: 13.4483},
					{Lat: 52.5289, Lng: 13.4403},
					{Lat: 52.5251, Lng: 13.4105},
					{Lat: 52.5321, Lng: 13.3849},
				},
			},
			{
				ID: "demo-east-spur",
				Polyline: []core.LatLng{
					{Lat: 52.5065, Lng: 13.4421},
					{Lat: 52.5110, Lng: 13.4690},
					{Lat: 52.5156, Lng: 13.4903},
					{Lat: 52.5220, Lng: 13.5129},
				},
				Waypoints: []core.Waypoint{
					{Name: "Ostkreuz depot", Coord: core.LatLng{Lat: 52.5031, Lng: 13.4691}},
				},
			},
			{
				ID: "demo-south-run",
				Polyline: []core.LatLng{
					{Lat: 52.4989, Lng: 13.3893},
					{Lat: 52.4912, Lng: 13.4051},
					{Lat: 52.4820, Lng: 13.4270},
					{Lat: 52.4751, Lng: 13.4492},
				},
			},
		},
		Zones: []core.TrafficZone{
			{
				ID:         "demo-mitte-congestion",
				Name:       "Mitte rush congestion",
				Center:     core.LatLng{Lat: 52.5200, Lng: 13.4050},
				RadiusM:    2500,
				Multiplier: 0.55,
				Window: core.TimeWindow{
					Days: []time.Weekday{
						time.Monday, time.Tuesday, time.Wednesday,
						time.Thursday, time.Friday,
					},
					StartHour: 7,
					EndHour:   10,
				},
			},
			{
				ID:         "demo-hbf-slow",
				Name:       "Hauptbahnhof forecourt",
				Center:     core.LatLng{Lat: 52.5251, Lng: 13.3694},
				RadiusM:    600,
				Multiplier: 0.4,
			},
		},
	}
}
