package tracker

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"tramsync.dev/tramsync/efa"
	"tramsync.dev/tramsync/geo"
	"tramsync.dev/tramsync/model"
)

const (
	assumedSpeedKmh   = 20.0
	atStationBoundary = -5 * time.Minute
	staleAfter        = 20 * time.Minute
	depotAfter        = 60 * time.Minute
)

// VehiclePositionTracker owns the in-memory tram state and the last
// calculated positions snapshot. It is not safe for concurrent use;
// the API layer that reads Positions() is expected to hold its own
// guard the way sync.DepartureStore does.
type VehiclePositionTracker struct {
	trams     map[string]*TramState
	positions map[string]model.VehiclePosition

	lastUpdate time.Time

	// lineGeometries maps a line number to its ordered list of way
	// segments, each a polyline of [lon, lat] points.
	lineGeometries map[string][][][2]float64

	log *zap.SugaredLogger
}

// NewVehiclePositionTracker builds a tracker over a fixed set of line
// geometries (assembled once from the topology store's route_ways).
func NewVehiclePositionTracker(lineGeometries map[string][][][2]float64, log *zap.SugaredLogger) *VehiclePositionTracker {
	return &VehiclePositionTracker{
		trams:          make(map[string]*TramState),
		positions:      make(map[string]model.VehiclePosition),
		lineGeometries: lineGeometries,
		log:            log,
	}
}

// Tick ingests a full snapshot of currently-seen vehicles and returns
// the freshly calculated positions response. stations is the compact
// IFOPT-keyed coordinate lookup table produced by the EFA layer.
func (t *VehiclePositionTracker) Tick(vehicles map[string]model.VehicleInfo, stations map[string]efa.Station, now time.Time) model.VehiclePositionsResponse {
	if t.log != nil {
		t.log.Infow("updating vehicle positions", "vehicle_count", len(vehicles), "tracked_count", len(t.trams))
	}

	// Step 1: update existing trams, insert new ones.
	for vehicleID, vehicle := range vehicles {
		if tram, ok := t.trams[vehicleID]; ok {
			t.refreshTram(tram, vehicle, now, stations)
			continue
		}
		if t.log != nil {
			t.log.Debugw("new tram detected, creating state", "vehicle_id", vehicleID, "line", vehicle.LineNumber)
		}
		tram := newTramState(vehicle, now)
		t.refreshTram(tram, vehicle, now, stations)
		t.trams[vehicleID] = tram
	}

	// Step 2: handle vehicles missing from this snapshot.
	t.handleMissingTrams(vehicles, now)

	// Step 3: physical constraints (detection only).
	t.applyConstraints()

	// Step 4: calculate positions for all non-depot trams.
	positions := t.calculateAllPositions(now, stations)

	t.positions = positions
	t.lastUpdate = now

	return model.VehiclePositionsResponse{
		Vehicles:  positions,
		Timestamp: now.Format(time.RFC3339),
	}
}

// refreshTram updates last_seen/delay and re-derives status and the
// ground-truth anchors from the feed entry's departure times.
func (t *VehiclePositionTracker) refreshTram(tram *TramState, vehicle model.VehicleInfo, now time.Time, stations map[string]efa.Station) {
	tram.LastSeenInFeed = now
	tram.DelayMinutes = vehicle.DelayMinutes

	planned, err := time.Parse(time.RFC3339, vehicle.LastDeparturePlanned)
	if err != nil {
		tram.LastUpdate = now
		return
	}
	planned = planned.UTC()

	fromCoord := lookupStationCoordinates(vehicle.CurrentStopID, stations, t.log)
	delta := now.Sub(planned)

	if delta < atStationBoundary {
		tram.Status = AtStation
	} else {
		tram.Status = EnRoute
	}

	tram.LastConfirmedStop = &ConfirmedStop{
		StopID:        vehicle.CurrentStopID,
		StopName:      vehicle.CurrentStopName,
		Coordinates:   fromCoord,
		ArrivalTime:   planned,
		DepartureTime: &planned,
	}

	if vehicle.NextStopID != "" && vehicle.NextStopName != "" {
		nextCoord := lookupStationCoordinates(vehicle.NextStopID, stations, t.log)
		distanceMeters := geo.HaversineMeters(fromCoord[1], fromCoord[0], nextCoord[1], nextCoord[0])
		travelMinutes := (distanceMeters / 1000.0) / assumedSpeedKmh * 60.0
		estimatedArrival := planned.Add(time.Duration(int64(travelMinutes)) * time.Minute)

		tram.NextConfirmedStop = &ConfirmedStop{
			StopID:      vehicle.NextStopID,
			StopName:    vehicle.NextStopName,
			Coordinates: nextCoord,
			ArrivalTime: estimatedArrival,
		}
	}

	tram.LastUpdate = now
}

// handleMissingTrams applies the stale/depot rule to every tracked
// vehicle absent from the current snapshot, removing those in depot.
func (t *VehiclePositionTracker) handleMissingTrams(vehicles map[string]model.VehicleInfo, now time.Time) {
	var toRemove []string

	for vehicleID, tram := range t.trams {
		if _, ok := vehicles[vehicleID]; ok {
			continue
		}

		absence := now.Sub(tram.LastSeenInFeed)
		switch {
		case absence <= staleAfter:
			if tram.Status != Stale {
				if t.log != nil {
					t.log.Debugw("tram not in feed, marking as stale", "vehicle_id", vehicleID, "minutes", absence.Minutes())
				}
				tram.Status = Stale
			}
		case absence <= depotAfter:
			tram.Status = Stale
		default:
			if t.log != nil {
				t.log.Debugw("tram in depot or trip ended, removing", "vehicle_id", vehicleID, "minutes", absence.Minutes())
			}
			toRemove = append(toRemove, vehicleID)
		}
	}

	for _, vehicleID := range toRemove {
		delete(t.trams, vehicleID)
	}
}

// applyConstraints groups trams by line and logs (but does not
// correct) any adjacent pair whose current_stop_index decreases —
// detection only, matching the system this was derived from.
func (t *VehiclePositionTracker) applyConstraints() {
	byLine := make(map[string][]string)
	for vehicleID, tram := range t.trams {
		byLine[tram.LineNumber] = append(byLine[tram.LineNumber], vehicleID)
	}

	for line, vehicleIDs := range byLine {
		if len(vehicleIDs) < 2 {
			continue
		}

		sort.Slice(vehicleIDs, func(i, j int) bool {
			return t.trams[vehicleIDs[i]].CurrentStopIndex < t.trams[vehicleIDs[j]].CurrentStopIndex
		})

		for i := 0; i < len(vehicleIDs)-1; i++ {
			id1, id2 := vehicleIDs[i], vehicleIDs[i+1]
			idx1, idx2 := t.trams[id1].CurrentStopIndex, t.trams[id2].CurrentStopIndex
			if idx2 < idx1 && t.log != nil {
				t.log.Warnw("potential overtaking detected (ordering violation)", "line", line, "tram1", id1, "tram2", id2)
			}
		}
	}
}

// calculateAllPositions produces a VehiclePosition for every tram not
// in depot, skipping (with a debug log) any that lacks the anchors it
// needs.
func (t *VehiclePositionTracker) calculateAllPositions(now time.Time, stations map[string]efa.Station) map[string]model.VehiclePosition {
	positions := make(map[string]model.VehiclePosition)
	skipped := 0

	for vehicleID, tram := range t.trams {
		if tram.Status == InDepot {
			continue
		}
		position, ok := t.calculateTramPosition(tram, now, stations)
		if !ok {
			skipped++
			continue
		}
		positions[vehicleID] = position
	}

	if t.log != nil {
		t.log.Infow("calculated positions for active trams", "total_trams", len(t.trams), "positioned", len(positions), "skipped", skipped)
	}
	return positions
}

// calculateTramPosition derives progress and the animated segment for
// one tram, per its status.
func (t *VehiclePositionTracker) calculateTramPosition(tram *TramState, now time.Time, stations map[string]efa.Station) (model.VehiclePosition, bool) {
	switch tram.Status {
	case AtStation:
		confirmed := tram.LastConfirmedStop
		next := tram.NextConfirmedStop
		if confirmed == nil || next == nil {
			return model.VehiclePosition{}, false
		}

		segment := extractGeometrySegment(t.lineGeometries, confirmed.StopID, next.StopID, tram.LineNumber, stations, t.log)
		return model.VehiclePosition{
			VehicleID:       tram.VehicleID,
			LineNumber:      tram.LineNumber,
			LineName:        "Straßenbahn " + tram.LineNumber,
			Destination:     tram.Destination,
			Progress:        0,
			FromStationID:   confirmed.StopID,
			ToStationID:     next.StopID,
			GeometrySegment: segment,
			DepartureTime:   confirmed.ArrivalTime.Format(time.RFC3339),
			ArrivalTime:     next.ArrivalTime.Format(time.RFC3339),
			Delay:           tram.DelayMinutes,
			CalculatedAt:    now.Format(time.RFC3339),
		}, true

	case EnRoute:
		from := tram.LastConfirmedStop
		to := tram.NextConfirmedStop
		if from == nil || to == nil || from.DepartureTime == nil {
			return model.VehiclePosition{}, false
		}

		elapsed := now.Sub(*from.DepartureTime).Seconds()
		total := to.ArrivalTime.Sub(*from.DepartureTime).Seconds()
		progress := 0.0
		if total > 0 {
			progress = clamp01(elapsed / total)
		}

		segment := extractGeometrySegment(t.lineGeometries, from.StopID, to.StopID, tram.LineNumber, stations, t.log)
		return model.VehiclePosition{
			VehicleID:       tram.VehicleID,
			LineNumber:      tram.LineNumber,
			LineName:        "Straßenbahn " + tram.LineNumber,
			Destination:     tram.Destination,
			Progress:        progress,
			FromStationID:   from.StopID,
			ToStationID:     to.StopID,
			GeometrySegment: segment,
			DepartureTime:   from.DepartureTime.Format(time.RFC3339),
			ArrivalTime:     to.ArrivalTime.Format(time.RFC3339),
			Delay:           tram.DelayMinutes,
			CalculatedAt:    now.Format(time.RFC3339),
		}, true

	default: // Stale, InDepot
		return model.VehiclePosition{}, false
	}
}

// GetStats returns the four tracked-status counts, in the order
// (at_station, en_route, stale, in_depot).
func (t *VehiclePositionTracker) GetStats() (atStation, enRoute, stale, inDepot int) {
	for _, tram := range t.trams {
		switch tram.Status {
		case AtStation:
			atStation++
		case EnRoute:
			enRoute++
		case Stale:
			stale++
		case InDepot:
			inDepot++
		}
	}
	return
}

// Positions returns the last calculated positions snapshot.
func (t *VehiclePositionTracker) Positions() model.VehiclePositionsResponse {
	return model.VehiclePositionsResponse{
		Vehicles:  t.positions,
		Timestamp: t.lastUpdate.Format(time.RFC3339),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
