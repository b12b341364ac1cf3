package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tramsync.dev/tramsync/efa"
	"tramsync.dev/tramsync/model"
)

func newTestTracker(lineGeometries map[string][][][2]float64) *VehiclePositionTracker {
	return NewVehiclePositionTracker(lineGeometries, nil)
}

func stationsFixture() map[string]efa.Station {
	return map[string]efa.Station{
		"S": {StationID: "S", StationName: "Start", Coord: []float64{48.0, 11.0}},
		"T": {StationID: "T", StationName: "Terminus", Coord: []float64{48.001, 11.001}},
	}
}

func TestTick_AtStationVehicle(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	planned := now.Add(6 * time.Minute)

	vehicles := map[string]model.VehicleInfo{
		"v1": {
			VehicleID:            "v1",
			LineNumber:           "3",
			Destination:          "Terminus",
			LastDeparturePlanned: planned.Format(time.RFC3339),
			CurrentStopID:        "S",
			CurrentStopName:      "Start",
			NextStopID:           "T",
			NextStopName:         "Terminus",
		},
	}

	tr := newTestTracker(nil)
	resp := tr.Tick(vehicles, stationsFixture(), now)

	pos, ok := resp.Vehicles["v1"]
	require.True(t, ok)
	require.Equal(t, AtStation, tr.trams["v1"].Status)
	require.Equal(t, 0.0, pos.Progress)
	require.Empty(t, pos.GeometrySegment) // no line geometry configured

	arrival, err := time.Parse(time.RFC3339, pos.ArrivalTime)
	require.NoError(t, err)
	// distance S->T is ~134m, travel_time = (0.134/20)*60 ≈ 0.40 min,
	// truncates to 0 whole minutes, matching the source's i64 cast.
	require.Equal(t, planned, arrival)
}

func TestTick_EnRouteInterpolation(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := t0.Add(30 * time.Second)

	tr := newTestTracker(nil)
	tram := newTramState(model.VehicleInfo{VehicleID: "v1", LineNumber: "3"}, t0)
	dep := t0
	tram.Status = EnRoute
	tram.LastConfirmedStop = &ConfirmedStop{StopID: "S", ArrivalTime: t0, DepartureTime: &dep}
	tram.NextConfirmedStop = &ConfirmedStop{StopID: "T", ArrivalTime: t0.Add(120 * time.Second)}
	tr.trams["v1"] = tram

	position, ok := tr.calculateTramPosition(tram, now, stationsFixture())
	require.True(t, ok)
	require.InDelta(t, 0.25, position.Progress, 1e-9)
}

func TestTick_DepotRemoval(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	planned := t0.Add(1 * time.Minute)

	vehicles := map[string]model.VehicleInfo{
		"v1": {VehicleID: "v1", LineNumber: "3", LastDeparturePlanned: planned.Format(time.RFC3339), CurrentStopID: "S"},
	}

	tr := newTestTracker(nil)
	tr.Tick(vehicles, stationsFixture(), t0)
	require.Contains(t, tr.trams, "v1")

	later := t0.Add(61 * time.Minute)
	resp := tr.Tick(map[string]model.VehicleInfo{}, stationsFixture(), later)

	require.NotContains(t, tr.trams, "v1")
	require.NotContains(t, resp.Vehicles, "v1")
}

func TestRefreshTram_BoundaryExactlyMinus5Minutes(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	planned := now.Add(5 * time.Minute) // delta = -5min exactly: boundary excluded from AtStation

	vehicles := map[string]model.VehicleInfo{
		"v1": {VehicleID: "v1", LastDeparturePlanned: planned.Format(time.RFC3339), CurrentStopID: "S"},
	}
	tr := newTestTracker(nil)
	tr.Tick(vehicles, stationsFixture(), now)
	require.Equal(t, EnRoute, tr.trams["v1"].Status)
}

func TestRefreshTram_BoundaryMinus5MinutesPast(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	planned := now.Add(-5 * time.Minute) // departed 5 min ago: EnRoute

	vehicles := map[string]model.VehicleInfo{
		"v1": {VehicleID: "v1", LastDeparturePlanned: planned.Format(time.RFC3339), CurrentStopID: "S"},
	}
	tr := newTestTracker(nil)
	tr.Tick(vehicles, stationsFixture(), now)
	require.Equal(t, EnRoute, tr.trams["v1"].Status)
}

func TestRefreshTram_JustOverBoundaryIsAtStation(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	planned := now.Add(5*time.Minute + time.Second) // delta = -5m1s, strictly past the boundary

	vehicles := map[string]model.VehicleInfo{
		"v1": {VehicleID: "v1", LastDeparturePlanned: planned.Format(time.RFC3339), CurrentStopID: "S"},
	}
	tr := newTestTracker(nil)
	tr.Tick(vehicles, stationsFixture(), now)
	require.Equal(t, AtStation, tr.trams["v1"].Status)
}

func TestExtractGeometrySegment_EmptyWhenNoGeometry(t *testing.T) {
	segment := extractGeometrySegment(nil, "S", "T", "3", stationsFixture(), nil)
	require.Empty(t, segment)
}

func TestExtractGeometrySegment_ReversedWhenFromAfterTo(t *testing.T) {
	lineGeometries := map[string][][][2]float64{
		"3": {{{11.0, 48.0}, {11.0005, 48.0}, {11.001, 48.0}}},
	}
	stations := map[string]efa.Station{
		"A": {Coord: []float64{48.0, 11.001}},
		"B": {Coord: []float64{48.0, 11.0}},
	}

	segment := extractGeometrySegment(lineGeometries, "A", "B", "3", stations, nil)
	require.Equal(t, [][2]float64{{11.001, 48.0}, {11.0005, 48.0}, {11.0, 48.0}}, segment)
}

func TestExtractGeometrySegment_NoMatchWithinThreshold(t *testing.T) {
	lineGeometries := map[string][][][2]float64{
		"3": {{{11.0, 48.0}}},
	}
	stations := map[string]efa.Station{
		"A": {Coord: []float64{48.0, 11.0}},
		"B": {Coord: []float64{49.0, 12.0}}, // far away, no geometry point within 500m
	}

	segment := extractGeometrySegment(lineGeometries, "A", "B", "3", stations, nil)
	require.Empty(t, segment)
}

func TestGetStats_CountsByStatus(t *testing.T) {
	tr := newTestTracker(nil)
	tr.trams["a"] = &TramState{Status: AtStation}
	tr.trams["b"] = &TramState{Status: EnRoute}
	tr.trams["c"] = &TramState{Status: EnRoute}
	tr.trams["d"] = &TramState{Status: Stale}

	atStation, enRoute, stale, inDepot := tr.GetStats()
	require.Equal(t, 1, atStation)
	require.Equal(t, 2, enRoute)
	require.Equal(t, 1, stale)
	require.Equal(t, 0, inDepot)
}
