package tracker

import (
	"go.uber.org/zap"

	"tramsync.dev/tramsync/efa"
	"tramsync.dev/tramsync/geo"
)

const geometryMatchMeters = 500.0

// lookupStationCoordinates resolves an IFOPT to [lon, lat]. EFA hands
// coordinates back as [lat, lon], so every hit here flips them before
// returning — callers always get GeoJSON-ordered pairs.
func lookupStationCoordinates(stopID string, stations map[string]efa.Station, log *zap.SugaredLogger) [2]float64 {
	if station, ok := stations[stopID]; ok {
		if c := station.Coord; len(c) >= 2 {
			return [2]float64{c[1], c[0]}
		}
	}

	for _, station := range stations {
		for _, platform := range station.Platforms {
			if platform.ID == stopID {
				if c := platform.Coord; len(c) >= 2 {
					return [2]float64{c[1], c[0]}
				}
			}
		}
	}

	if log != nil {
		log.Warnw("could not find coordinates for stop", "stop_id", stopID)
	}
	return [2]float64{0, 0}
}

// extractGeometrySegment returns the polyline between two stops along
// a line's known geometry, oriented from the "from" stop to the "to"
// stop. Returns an empty slice whenever geometry, coordinates, or a
// polyline match is unavailable — callers still emit a position with
// an empty segment in that case.
func extractGeometrySegment(
	lineGeometries map[string][][][2]float64,
	fromStopID, toStopID, lineNumber string,
	stations map[string]efa.Station,
	log *zap.SugaredLogger,
) [][2]float64 {
	segments, ok := lineGeometries[lineNumber]
	if !ok {
		if log != nil {
			log.Warnw("no geometry found for line", "line_number", lineNumber)
		}
		return nil
	}

	fromCoord := lookupStationCoordinates(fromStopID, stations, log)
	toCoord := lookupStationCoordinates(toStopID, stations, log)
	if fromCoord == ([2]float64{0, 0}) || toCoord == ([2]float64{0, 0}) {
		if log != nil {
			log.Warnw("could not find station coordinates", "from", fromStopID, "to", toStopID)
		}
		return nil
	}

	var allPoints [][2]float64
	for _, segment := range segments {
		allPoints = append(allPoints, segment...)
	}

	fromIdx, fromOk := findClosestPointIndex(allPoints, fromCoord, geometryMatchMeters)
	toIdx, toOk := findClosestPointIndex(allPoints, toCoord, geometryMatchMeters)
	if !fromOk || !toOk {
		if log != nil {
			log.Debugw("could not match stations to geometry points", "from", fromStopID, "to", toStopID, "line", lineNumber)
		}
		return nil
	}

	switch {
	case fromIdx < toIdx:
		out := make([][2]float64, toIdx-fromIdx+1)
		copy(out, allPoints[fromIdx:toIdx+1])
		return out
	case fromIdx > toIdx:
		src := allPoints[toIdx : fromIdx+1]
		out := make([][2]float64, len(src))
		for i, p := range src {
			out[len(src)-1-i] = p
		}
		return out
	default:
		return [][2]float64{fromCoord, toCoord}
	}
}

// findClosestPointIndex returns the index of the nearest point to
// target within maxDistance meters, or false if nothing qualifies.
func findClosestPointIndex(points [][2]float64, target [2]float64, maxDistance float64) (int, bool) {
	minDistance := maxDistance
	index := -1

	for i, p := range points {
		d := geo.HaversineMeters(p[1], p[0], target[1], target[0])
		if d < minDistance {
			minDistance = d
			index = i
		}
	}

	return index, index >= 0
}
