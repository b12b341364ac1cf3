package osm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractStationPlatformMappings_OnlyPlatformAndStopRoles(t *testing.T) {
	stations := []element{
		{
			Type: "relation",
			ID:   1,
			Members: []relationMember{
				{Type: "node", Ref: 10, Role: "platform"},
				{Type: "node", Ref: 11, Role: "stop"},
				{Type: "node", Ref: 12, Role: "entrance"}, // not mapped
			},
		},
	}

	mappings := extractStationPlatformMappings(stations)
	assert.Equal(t, int64(1), mappings[10])
	assert.Equal(t, int64(1), mappings[11])
	_, ok := mappings[12]
	assert.False(t, ok, "entrance-role member should not be mapped")
}

func TestElementsToStations_SkipsUnresolvableCoordinates(t *testing.T) {
	lat, lon := 48.366, 10.885
	elements := []element{
		{Type: "relation", ID: 1, Lat: &lat, Lon: &lon, Tags: map[string]string{"name": "Koenigsplatz"}},
		{Type: "relation", ID: 2}, // no lat/lon/center, must be dropped
	}

	stations := elementsToStations(elements, 99)
	require.Len(t, stations, 1)
	assert.Equal(t, int64(1), stations[0].OsmID)
	assert.Equal(t, "Koenigsplatz", stations[0].Name)
	assert.Equal(t, int64(99), stations[0].AreaID)
}

func TestElementsToStations_FallsBackToCenter(t *testing.T) {
	elements := []element{
		{Type: "way", ID: 5, Center: &center{Lat: 48.1, Lon: 10.1}},
	}
	stations := elementsToStations(elements, 1)
	require.Len(t, stations, 1)
	assert.Equal(t, 48.1, stations[0].Lat)
	assert.Equal(t, 10.1, stations[0].Lon)
}

func TestParseRoutesResponse_PreservesSequenceAndSkipsPlatformWays(t *testing.T) {
	lat1, lon1 := 48.0, 11.0
	lat2, lon2 := 48.001, 11.001

	resp := overpassResponse{
		Elements: []element{
			{Type: "node", ID: 100, Lat: &lat1, Lon: &lon1},
			{Type: "node", ID: 101, Lat: &lat2, Lon: &lon2},
			{Type: "way", ID: 200, Nodes: []int64{100, 101}},
			{
				Type: "relation",
				ID:   300,
				Tags: map[string]string{"type": "route", "name": "Line 1", "colour": "#ff0000"},
				Members: []relationMember{
					{Type: "node", Ref: 400, Role: "stop"},
					{Type: "way", Ref: 200, Role: ""},
					{Type: "way", Ref: 999, Role: "platform"}, // platform way: skipped
					{Type: "node", Ref: 401, Role: "platform"},
				},
			},
		},
	}

	routes := parseRoutesResponse(resp, 1)
	require.Len(t, routes, 1)
	route := routes[0]
	assert.Equal(t, "#ff0000", route.Color, "colour tag")

	require.Len(t, route.Ways, 1)
	assert.Equal(t, int64(200), route.Ways[0].WayOsmID)
	assert.Equal(t, 1, route.Ways[0].Sequence)
	require.Len(t, route.Ways[0].Geometry, 2)
	assert.Equal(t, [2]float64{11.0, 48.0}, route.Ways[0].Geometry[0], "[lon,lat] ordering")

	require.Len(t, route.Stops, 2)
	assert.Equal(t, 0, route.Stops[0].Sequence)
	assert.Equal(t, int64(400), *route.Stops[0].StopPositionID)
	assert.Equal(t, 3, route.Stops[1].Sequence)
	assert.Equal(t, int64(401), *route.Stops[1].StopPositionID)
}

func TestParseRoutesResponse_SkipsWayWithUnresolvedNodes(t *testing.T) {
	resp := overpassResponse{
		Elements: []element{
			{Type: "way", ID: 200, Nodes: []int64{999}}, // node 999 never indexed
			{
				Type: "relation",
				ID:   300,
				Tags: map[string]string{"type": "route"},
				Members: []relationMember{
					{Type: "way", Ref: 200},
				},
			},
		},
	}

	routes := parseRoutesResponse(resp, 1)
	require.Len(t, routes, 1)
	assert.Empty(t, routes[0].Ways, "way with no resolvable geometry should be dropped")
}
