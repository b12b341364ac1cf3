package efa

import "strings"

// ExtractStationID truncates a full IFOPT reference down to its
// parent station's first three colon-separated parts. References with
// fewer than three parts pass through unchanged.
func ExtractStationID(ifopt string) string {
	parts := strings.Split(ifopt, ":")
	if len(parts) >= 3 {
		return strings.Join(parts[:3], ":")
	}
	return ifopt
}

// ExtractCompactStationData derives a compact (station_id, name,
// coord, platforms[]) view from a departure-monitor response.
// Platforms are deduplicated by id as they are discovered; a
// platform's name falls back from disassembledName to
// properties.platformName to "Unknown".
func ExtractCompactStationData(resp *EfaDepartureMonitorResponse) *Station {
	if resp == nil || len(resp.Locations) == 0 {
		return nil
	}

	loc := resp.Locations[0]
	stationID := ExtractStationID(loc.ID)

	var coord []float64
	if len(loc.Coord) >= 2 {
		coord = []float64{loc.Coord[0], loc.Coord[1]}
	}

	var platforms []Platform
	seen := make(map[string]bool)

	for _, event := range resp.StopEvents {
		pid := event.Location.ID
		if pid == "" || seen[pid] {
			continue
		}
		seen[pid] = true

		name := event.Location.DisassembledName
		if name == "" && event.Location.Properties != nil {
			name = event.Location.Properties.PlatformName
		}
		if name == "" {
			name = "Unknown"
		}

		var platformCoord []float64
		if len(event.Location.Coord) >= 2 {
			platformCoord = []float64{event.Location.Coord[0], event.Location.Coord[1]}
		}

		platforms = append(platforms, Platform{
			ID:    pid,
			Name:  name,
			Coord: platformCoord,
		})
	}

	return &Station{
		StationID:   stationID,
		StationName: loc.Name,
		Coord:       coord,
		Platforms:   platforms,
	}
}
