package osm

import "tramsync.dev/tramsync/model"

// extractStationPlatformMappings is a pure function over stop_area
// relations: only members with role "platform" or "stop" map to the
// station that contains them.
func extractStationPlatformMappings(stations []element) map[int64]int64 {
	mappings := make(map[int64]int64)

	for _, station := range stations {
		if station.Type != "relation" {
			continue
		}
		for _, member := range station.Members {
			if member.Role == "platform" || member.Role == "stop" {
				mappings[member.Ref] = station.ID
			}
		}
	}

	return mappings
}

// elementsToStations keeps only elements with a resolvable center
// coordinate, per the Station persistence invariant.
func elementsToStations(elements []element, areaID int64) []model.Station {
	out := make([]model.Station, 0, len(elements))
	for _, e := range elements {
		lat, okLat := e.latitude()
		lon, okLon := e.longitude()
		if !okLat || !okLon {
			continue
		}
		out = append(out, model.Station{
			OsmID:       e.ID,
			ElementKind: model.ElementKind(e.Type),
			Name:        e.tag("name"),
			Ref:         e.tag("ref"),
			RefIFOPT:    e.tag("ref:IFOPT"),
			Lat:         lat,
			Lon:         lon,
			Tags:        e.Tags,
			AreaID:      areaID,
		})
	}
	return out
}

func elementsToPlatforms(elements []element, mappings map[int64]int64, stationOsmToID map[int64]int64, areaID int64) []model.Platform {
	out := make([]model.Platform, 0, len(elements))
	for _, e := range elements {
		lat, okLat := e.latitude()
		lon, okLon := e.longitude()
		if !okLat || !okLon {
			continue
		}

		p := model.Platform{
			OsmID:       e.ID,
			ElementKind: model.ElementKind(e.Type),
			Name:        e.tag("name"),
			Ref:         e.tag("ref"),
			RefIFOPT:    e.tag("ref:IFOPT"),
			Lat:         lat,
			Lon:         lon,
			Tags:        e.Tags,
			AreaID:      areaID,
		}

		if stationOsmID, ok := mappings[e.ID]; ok {
			if stationID, ok := stationOsmToID[stationOsmID]; ok {
				id := stationID
				p.StationID = &id
			}
		}

		out = append(out, p)
	}
	return out
}

func elementsToStopPositions(elements []element, areaID int64) []model.StopPosition {
	out := make([]model.StopPosition, 0, len(elements))
	for _, e := range elements {
		lat, okLat := e.latitude()
		lon, okLon := e.longitude()
		if !okLat || !okLon {
			continue
		}
		out = append(out, model.StopPosition{
			OsmID:       e.ID,
			ElementKind: model.ElementKind(e.Type),
			Name:        e.tag("name"),
			Ref:         e.tag("ref"),
			RefIFOPT:    e.tag("ref:IFOPT"),
			Lat:         lat,
			Lon:         lon,
			Tags:        e.Tags,
			AreaID:      areaID,
		})
	}
	return out
}

// parseRoutesResponse runs the two-pass route resolution: index nodes
// and ways first, then walk every type=route relation, preserving
// sequence across member kinds.
func parseRoutesResponse(resp overpassResponse, areaID int64) []model.Route {
	nodes := make(map[int64][2]float64) // id -> [lat, lon]
	ways := make(map[int64][]int64)     // id -> ordered node ids

	for _, e := range resp.Elements {
		switch e.Type {
		case "node":
			if e.Lat != nil && e.Lon != nil {
				nodes[e.ID] = [2]float64{*e.Lat, *e.Lon}
			}
		case "way":
			if e.Nodes != nil {
				ways[e.ID] = e.Nodes
			}
		}
	}

	var routes []model.Route
	for _, e := range resp.Elements {
		if e.Type != "relation" || e.tag("type") != "route" {
			continue
		}

		var routeWays []model.RouteWay
		var routeStops []model.RouteStop

		for seq, member := range e.Members {
			switch member.Type {
			case "way":
				if member.Role == "platform" {
					continue
				}
				nodeIDs, ok := ways[member.Ref]
				if !ok {
					continue
				}
				geom := make([][2]float64, 0, len(nodeIDs))
				for _, nodeID := range nodeIDs {
					if ll, ok := nodes[nodeID]; ok {
						geom = append(geom, [2]float64{ll[1], ll[0]}) // [lon, lat]
					}
				}
				if len(geom) == 0 {
					continue
				}
				routeWays = append(routeWays, model.RouteWay{
					WayOsmID: member.Ref,
					Sequence: seq,
					Geometry: geom,
				})
			case "node":
				if member.Role == "stop" || member.Role == "platform" || member.Role == "" {
					id := member.Ref
					routeStops = append(routeStops, model.RouteStop{
						Sequence:       seq,
						Role:           member.Role,
						StopPositionID: &id,
					})
				}
			}
		}

		color := e.tag("colour")
		if color == "" {
			color = e.tag("color")
		}

		routes = append(routes, model.Route{
			OsmID:     e.ID,
			Name:      e.tag("name"),
			Ref:       e.tag("ref"),
			RouteType: e.tag("route"),
			Operator:  e.tag("operator"),
			Network:   e.tag("network"),
			Color:     color,
			Tags:      e.Tags,
			AreaID:    areaID,
			Ways:      routeWays,
			Stops:     routeStops,
		})
	}

	return routes
}
