// Package model holds all external facing types shared across the
// topology store, the OSM/EFA providers, the sync manager and the
// vehicle position tracker.
package model

import (
	"fmt"
	"time"
)

// TransportType is one of the modes a configured Area watches for.
type TransportType string

const (
	TransportTram    TransportType = "tram"
	TransportBus     TransportType = "bus"
	TransportSubway  TransportType = "subway"
	TransportTrain   TransportType = "train"
	TransportFerry   TransportType = "ferry"
	TransportUnknown TransportType = "unknown"
)

// ElementKind is the OSM element type a feature was parsed from.
type ElementKind string

const (
	ElementNode     ElementKind = "node"
	ElementWay      ElementKind = "way"
	ElementRelation ElementKind = "relation"
)

// BoundingBox is a south/west/north/east WGS84 box.
type BoundingBox struct {
	South float64
	West  float64
	North float64
	East  float64
}

// OverpassString renders the box the way Overpass QL expects it:
// "south,west,north,east".
func (b BoundingBox) OverpassString() string {
	return fmt.Sprintf("%v,%v,%v,%v", b.South, b.West, b.North, b.East)
}

// Area is a configured region synced from OSM.
type Area struct {
	ID             int64
	Name           string
	BoundingBox    BoundingBox
	TransportTypes []TransportType
	LastSyncedAt   *time.Time
}

// Station is a stop_area relation or an explicit station node/way.
type Station struct {
	OsmID       int64
	ElementKind ElementKind
	Name        string
	Ref         string
	RefIFOPT    string
	Lat         float64
	Lon         float64
	Tags        map[string]string
	AreaID      int64
}

// Platform is a boarding point, optionally linked to a Station either
// by stop_area membership (authoritative) or spatial fallback.
type Platform struct {
	OsmID       int64
	ElementKind ElementKind
	Name        string
	Ref         string
	RefIFOPT    string
	Lat         float64
	Lon         float64
	Tags        map[string]string
	StationID   *int64
	AreaID      int64
}

// StopPosition is the precise point a vehicle halts at, distinct from
// the passenger-facing Platform it usually sits beside.
type StopPosition struct {
	OsmID       int64
	ElementKind ElementKind
	Name        string
	Ref         string
	RefIFOPT    string
	Lat         float64
	Lon         float64
	Tags        map[string]string
	PlatformID  *int64
	StationID   *int64
	AreaID      int64
}

// Route is a type=route relation. Its ways and stops are replaced
// wholesale on every sync — there are no leftovers from prior syncs.
type Route struct {
	OsmID     int64
	Name      string
	Ref       string
	RouteType string
	Operator  string
	Network   string
	Color     string
	Tags      map[string]string
	AreaID    int64
	Ways      []RouteWay
	Stops     []RouteStop
}

// RouteWay is one way segment of a route, in relation-member order,
// filtered to non-platform ways.
type RouteWay struct {
	RouteID  int64
	Sequence int
	WayOsmID int64
	Geometry [][2]float64 // [lon, lat] pairs, in node order
}

// RouteStop is one stop reference inside a route relation. Any of the
// three FKs may be nil if the referenced feature was not stored.
type RouteStop struct {
	RouteID        int64
	Sequence       int
	Role           string
	StopPositionID *int64
	PlatformID     *int64
	StationID      *int64
}

// Departure is a single upcoming vehicle event at a stop. It never
// touches disk — it lives only in the sync manager's in-memory map,
// replaced wholesale per fetch.
type Departure struct {
	StopIFOPT          string
	LineNumber         string
	Destination        string
	PlannedDeparture   time.Time
	EstimatedDeparture *time.Time
	DelayMinutes       *int
	Platform           string
}

// OsmIssue is a diagnostic record describing a data quality anomaly
// found during sync (never persisted, exposed for operator triage).
type OsmIssue struct {
	AreaName     string
	Kind         string
	SubjectOsmID int64
	Message      string
	DetectedAt   time.Time
}

// VehicleInfo is one vehicle's current feed entry, as the (external,
// out-of-scope) vehicle feed ingestion would hand it to the tracker
// on each tick. Keyed by VehicleID in the snapshot map passed to
// Tick.
type VehicleInfo struct {
	VehicleID           string
	TripCode            int64
	PhysicalVehicleID   string
	LineNumber          string
	Destination         string
	Origin              string
	DelayMinutes        *int
	LastDeparturePlanned string // RFC 3339
	CurrentStopID       string
	CurrentStopName     string
	NextStopID          string
	NextStopName        string
}

// VehiclePosition is one tram's calculated position, ready for the
// API layer to render.
type VehiclePosition struct {
	VehicleID       string
	LineNumber      string
	LineName        string
	Destination     string
	Progress        float64
	FromStationID   string
	ToStationID     string
	GeometrySegment [][2]float64 // [lon, lat] pairs
	DepartureTime   string       // RFC 3339
	ArrivalTime     string       // RFC 3339
	Delay           *int
	CalculatedAt    string // RFC 3339
}

// VehiclePositionsResponse is the full snapshot the API layer reads.
type VehiclePositionsResponse struct {
	Vehicles  map[string]VehiclePosition
	Timestamp string // RFC 3339
}

// AreaFeatures is the converted, ready-to-persist output of an OSM
// fetch for one area: stations, platforms and stop_positions already
// filtered down to elements with a resolvable center coordinate, and
// routes with their ways/stops fully expanded.
type AreaFeatures struct {
	Stations      []Station
	Platforms     []Platform
	StopPositions []StopPosition
	Routes        []Route
}
