// Package tracker maintains an in-memory, stateful estimate of every
// tram's current position, derived from the feed's last/next stop
// fields rather than GPS. It never touches disk and every tick runs
// CPU-only over data already in memory.
package tracker

import (
	"time"

	"tramsync.dev/tramsync/model"
)

// TramStatus is the tagged status a TramState can be in. Exhaustive
// match everywhere it's consumed; no inheritance.
type TramStatus string

const (
	AtStation TramStatus = "at_station"
	EnRoute   TramStatus = "en_route"
	Stale     TramStatus = "stale"
	InDepot   TramStatus = "in_depot"
)

// StopInfo names one stop on a tram's route.
type StopInfo struct {
	StopID      string
	StopName    string
	Coordinates [2]float64 // [lon, lat]
}

// ConfirmedStop is a ground-truth anchor: a stop the tram is known to
// have been at or is heading to, with the times that anchor it.
type ConfirmedStop struct {
	StopID        string
	StopName      string
	Coordinates   [2]float64 // [lon, lat]
	ArrivalTime   time.Time
	DepartureTime *time.Time
}

// SegmentInfo is the polyline between two stops, used to animate a
// tram's position on a map.
type SegmentInfo struct {
	FromStopID   string
	ToStopID     string
	Geometry     [][2]float64 // [lon, lat] pairs
	LengthMeters float64
}

// TramState is the full in-memory record for one tracked vehicle.
type TramState struct {
	// Identity
	VehicleID         string
	TripCode          int64
	PhysicalVehicleID string
	LineNumber        string
	Destination       string
	Origin            string

	// Current position (best estimate)
	CurrentPosition  [2]float64 // [lon, lat]
	CurrentSegment   *SegmentInfo
	ProgressOnSegment float64

	// Route context. CurrentStopIndex is never advanced anywhere in
	// this package — preserved from the source system as a known
	// limitation, so the overtaking check in applyConstraints always
	// compares zeros.
	RouteStops       []StopInfo
	CurrentStopIndex int

	// Ground truth anchors
	LastConfirmedStop *ConfirmedStop
	NextConfirmedStop *ConfirmedStop

	// Timing
	LastUpdate     time.Time
	LastSeenInFeed time.Time

	Status       TramStatus
	DelayMinutes *int
}

// newTramState builds a fresh, just-seen TramState from one feed
// entry. CurrentPosition starts at [0, 0] and CurrentSegment is nil;
// refreshTram fills the confirmed-stop anchors but sets neither field.
func newTramState(vehicle model.VehicleInfo, now time.Time) *TramState {
	return &TramState{
		VehicleID:         vehicle.VehicleID,
		TripCode:          vehicle.TripCode,
		PhysicalVehicleID: vehicle.PhysicalVehicleID,
		LineNumber:        vehicle.LineNumber,
		Destination:       vehicle.Destination,
		Origin:            vehicle.Origin,

		CurrentPosition: [2]float64{0, 0},

		LastUpdate:     now,
		LastSeenInFeed: now,

		Status:       EnRoute,
		DelayMinutes: vehicle.DelayMinutes,
	}
}
