package osm

import (
	"fmt"
	"strings"

	"tramsync.dev/tramsync/model"
)

// BuildStationsQuery emits the stop_area relation + explicit station
// node/way query for the given transport types. Tram and bus areas
// share the same station shape in OSM (a stop_area groups platforms
// regardless of mode), so both map to the same filters.
func BuildStationsQuery(bbox model.BoundingBox, transportTypes []model.TransportType) string {
	bounds := bbox.OverpassString()

	var parts []string
	for _, t := range transportTypes {
		switch t {
		case model.TransportTram, model.TransportBus:
			parts = append(parts,
				fmt.Sprintf(`relation["public_transport"="stop_area"](%s);`, bounds),
				fmt.Sprintf(`node["public_transport"="station"](%s);`, bounds),
				fmt.Sprintf(`way["public_transport"="station"](%s);`, bounds),
			)
		}
	}
	if len(parts) == 0 {
		return ""
	}

	return fmt.Sprintf("[out:json][timeout:90];\n(\n%s\n);\nout body center;", strings.Join(parts, "\n"))
}

// BuildPlatformsQuery emits the platform node/way query per transport
// type's OSM tagging convention.
func BuildPlatformsQuery(bbox model.BoundingBox, transportTypes []model.TransportType) string {
	bounds := bbox.OverpassString()

	var parts []string
	for _, t := range transportTypes {
		switch t {
		case model.TransportTram:
			parts = append(parts,
				fmt.Sprintf(`node["public_transport"="platform"]["tram"="yes"](%s);`, bounds),
				fmt.Sprintf(`way["public_transport"="platform"]["tram"="yes"](%s);`, bounds),
				fmt.Sprintf(`node["railway"="platform"]["tram"="yes"](%s);`, bounds),
				fmt.Sprintf(`way["railway"="platform"]["tram"="yes"](%s);`, bounds),
			)
		case model.TransportBus:
			parts = append(parts,
				fmt.Sprintf(`node["public_transport"="platform"]["bus"="yes"](%s);`, bounds),
				fmt.Sprintf(`way["public_transport"="platform"]["bus"="yes"](%s);`, bounds),
				fmt.Sprintf(`node["highway"="platform"](%s);`, bounds),
			)
		}
	}
	if len(parts) == 0 {
		return ""
	}

	return fmt.Sprintf("[out:json][timeout:90];\n(\n%s\n);\nout center;", strings.Join(parts, "\n"))
}

// BuildStopPositionsQuery emits the precise stop_position node query.
func BuildStopPositionsQuery(bbox model.BoundingBox, transportTypes []model.TransportType) string {
	bounds := bbox.OverpassString()

	var parts []string
	for _, t := range transportTypes {
		switch t {
		case model.TransportTram:
			parts = append(parts, fmt.Sprintf(`node["public_transport"="stop_position"]["tram"="yes"](%s);`, bounds))
		case model.TransportBus:
			parts = append(parts, fmt.Sprintf(`node["public_transport"="stop_position"]["bus"="yes"](%s);`, bounds))
		}
	}
	if len(parts) == 0 {
		return ""
	}

	return fmt.Sprintf("[out:json][timeout:90];\n(\n%s\n);\nout;", strings.Join(parts, "\n"))
}

// BuildRoutesQuery emits the type=route relation query with a
// recursive body+skel expansion so every referenced way and node
// comes back in the same response.
func BuildRoutesQuery(bbox model.BoundingBox, transportTypes []model.TransportType) string {
	bounds := bbox.OverpassString()

	var parts []string
	for _, t := range transportTypes {
		parts = append(parts, fmt.Sprintf(`relation["type"="route"]["route"="%s"](%s);`, string(t), bounds))
	}
	if len(parts) == 0 {
		return ""
	}

	return fmt.Sprintf("[out:json][timeout:180];\n(\n%s\n);\nout body;\n>;\nout skel qt;", strings.Join(parts, "\n"))
}
