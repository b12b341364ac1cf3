package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"tramsync.dev/tramsync/geo"
	"tramsync.dev/tramsync/model"
)

const (
	stationFallbackThreshold = 0.005 * 0.005
	platformFallbackThreshold = 0.0005 * 0.0005
)

// SQLiteStorage is the embedded-SQL topology store. Every schema
// object is created with CREATE TABLE IF NOT EXISTS the same way
// tidbyt-gtfs's NewSQLiteStorage bootstraps its own schema.
type SQLiteStorage struct {
	db *sql.DB
}

// SQLiteConfig selects on-disk vs in-memory storage.
type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

// NewSQLiteStorage opens (or creates) the SQLite database and ensures
// the schema exists.
func NewSQLiteStorage(cfg SQLiteConfig) (*SQLiteStorage, error) {
	dsn := ":memory:"
	if cfg.OnDisk {
		dsn = fmt.Sprintf("%s/tramsync.db?_foreign_keys=on", cfg.Directory)
	} else {
		dsn = "file::memory:?cache=shared&_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite database")
	}
	if !cfg.OnDisk {
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStorage{db: db}
	if err := s.createSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStorage) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS areas (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			south REAL NOT NULL,
			west REAL NOT NULL,
			north REAL NOT NULL,
			east REAL NOT NULL,
			transport_types TEXT NOT NULL DEFAULT '[]',
			last_synced_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS stations (
			osm_id INTEGER PRIMARY KEY,
			element_kind TEXT NOT NULL,
			name TEXT,
			ref TEXT,
			ref_ifopt TEXT,
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			tags TEXT,
			area_id INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS platforms (
			osm_id INTEGER PRIMARY KEY,
			element_kind TEXT NOT NULL,
			name TEXT,
			ref TEXT,
			ref_ifopt TEXT,
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			tags TEXT,
			station_id INTEGER,
			area_id INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stop_positions (
			osm_id INTEGER PRIMARY KEY,
			element_kind TEXT NOT NULL,
			name TEXT,
			ref TEXT,
			ref_ifopt TEXT,
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			tags TEXT,
			platform_id INTEGER,
			station_id INTEGER,
			area_id INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS routes (
			osm_id INTEGER PRIMARY KEY,
			name TEXT,
			ref TEXT,
			route_type TEXT,
			operator TEXT,
			network TEXT,
			color TEXT,
			tags TEXT,
			area_id INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS route_ways (
			route_id INTEGER NOT NULL,
			sequence INTEGER NOT NULL,
			way_osm_id INTEGER NOT NULL,
			geometry TEXT,
			PRIMARY KEY (route_id, sequence)
		)`,
		`CREATE TABLE IF NOT EXISTS route_stops (
			route_id INTEGER NOT NULL,
			sequence INTEGER NOT NULL,
			role TEXT,
			stop_position_id INTEGER,
			platform_id INTEGER,
			station_id INTEGER,
			PRIMARY KEY (route_id, sequence)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrapf(err, "creating schema: %s", stmt)
		}
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// UpsertArea inserts or updates an area by name, returning its
// surrogate id. On a name conflict the bounding box and transport_types
// are both overwritten with the incoming values, even when the incoming
// transport type set is empty.
func (s *SQLiteStorage) UpsertArea(ctx context.Context, area model.Area) (int64, error) {
	types, err := json.Marshal(area.TransportTypes)
	if err != nil {
		return 0, errors.Wrap(err, "marshaling transport types")
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO areas (name, south, west, north, east, transport_types)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			south = excluded.south,
			west = excluded.west,
			north = excluded.north,
			east = excluded.east,
			transport_types = excluded.transport_types
		RETURNING id
	`, area.Name, area.BoundingBox.South, area.BoundingBox.West, area.BoundingBox.North, area.BoundingBox.East, string(types))

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, errors.Wrap(err, "upserting area")
	}
	return id, nil
}

// ListAreas returns every configured area.
func (s *SQLiteStorage) ListAreas(ctx context.Context) ([]model.Area, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, south, west, north, east, transport_types, last_synced_at FROM areas`)
	if err != nil {
		return nil, errors.Wrap(err, "listing areas")
	}
	defer rows.Close()

	var areas []model.Area
	for rows.Next() {
		var a model.Area
		var typesJSON string
		var lastSynced sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &a.BoundingBox.South, &a.BoundingBox.West, &a.BoundingBox.North, &a.BoundingBox.East, &typesJSON, &lastSynced); err != nil {
			return nil, errors.Wrap(err, "scanning area")
		}
		if err := json.Unmarshal([]byte(typesJSON), &a.TransportTypes); err != nil {
			return nil, errors.Wrap(err, "unmarshaling transport types")
		}
		if lastSynced.Valid {
			t, err := time.Parse(time.RFC3339, lastSynced.String)
			if err == nil {
				a.LastSyncedAt = &t
			}
		}
		areas = append(areas, a)
	}
	return areas, rows.Err()
}

// ListIFOPTs returns the distinct non-empty ref:IFOPT values across
// stations, platforms, and stop_positions.
func (s *SQLiteStorage) ListIFOPTs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ref_ifopt FROM stations WHERE ref_ifopt IS NOT NULL AND ref_ifopt <> ''
		UNION
		SELECT ref_ifopt FROM platforms WHERE ref_ifopt IS NOT NULL AND ref_ifopt <> ''
		UNION
		SELECT ref_ifopt FROM stop_positions WHERE ref_ifopt IS NOT NULL AND ref_ifopt <> ''
	`)
	if err != nil {
		return nil, errors.Wrap(err, "listing ifopts")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ifopt string
		if err := rows.Scan(&ifopt); err != nil {
			return nil, errors.Wrap(err, "scanning ifopt")
		}
		out = append(out, ifopt)
	}
	return out, rows.Err()
}

// SyncArea stores a freshly fetched feature set inside a single
// transaction, runs relation resolution, and stamps last_synced_at.
func (s *SQLiteStorage) SyncArea(ctx context.Context, areaID int64, features model.AreaFeatures) ([]model.OsmIssue, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning sync transaction")
	}
	defer tx.Rollback()

	var issues []model.OsmIssue

	for _, station := range features.Stations {
		if err := upsertStation(ctx, tx, areaID, station); err != nil {
			return nil, errors.Wrapf(err, "storing station %d", station.OsmID)
		}
	}
	if len(features.Stations) == 0 {
		issues = append(issues, model.OsmIssue{Kind: "no_stations", Message: "area fetch returned zero stations", DetectedAt: time.Now()})
	}

	for _, platform := range features.Platforms {
		if err := upsertPlatform(ctx, tx, areaID, platform); err != nil {
			return nil, errors.Wrapf(err, "storing platform %d", platform.OsmID)
		}
	}

	for _, sp := range features.StopPositions {
		if err := upsertStopPosition(ctx, tx, areaID, sp); err != nil {
			return nil, errors.Wrapf(err, "storing stop_position %d", sp.OsmID)
		}
	}

	for _, route := range features.Routes {
		if len(route.Ways) == 0 {
			issues = append(issues, model.OsmIssue{Kind: "empty_route", SubjectOsmID: route.OsmID, Message: "route has zero resolvable ways", DetectedAt: time.Now()})
		}
		if err := upsertRoute(ctx, tx, areaID, route); err != nil {
			return nil, errors.Wrapf(err, "storing route %d", route.OsmID)
		}
	}

	resolveIssues, err := resolveRelations(ctx, tx, areaID)
	if err != nil {
		return nil, errors.Wrap(err, "resolving relations")
	}
	issues = append(issues, resolveIssues...)

	if _, err := tx.ExecContext(ctx, `UPDATE areas SET last_synced_at = ? WHERE id = ?`, time.Now().UTC().Format(time.RFC3339), areaID); err != nil {
		return nil, errors.Wrap(err, "updating last_synced_at")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing sync transaction")
	}

	return issues, nil
}

func upsertStation(ctx context.Context, tx *sql.Tx, areaID int64, station model.Station) error {
	tagsJSON, err := marshalTags(station.Tags)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stations (osm_id, element_kind, name, ref, ref_ifopt, lat, lon, tags, area_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(osm_id) DO UPDATE SET
			element_kind = excluded.element_kind,
			name = excluded.name,
			ref = excluded.ref,
			ref_ifopt = excluded.ref_ifopt,
			lat = excluded.lat,
			lon = excluded.lon,
			tags = excluded.tags,
			area_id = excluded.area_id
	`, station.OsmID, string(station.ElementKind), station.Name, station.Ref, station.RefIFOPT, station.Lat, station.Lon, tagsJSON, areaID)
	return err
}

func upsertPlatform(ctx context.Context, tx *sql.Tx, areaID int64, platform model.Platform) error {
	tagsJSON, err := marshalTags(platform.Tags)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO platforms (osm_id, element_kind, name, ref, ref_ifopt, lat, lon, tags, station_id, area_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(osm_id) DO UPDATE SET
			element_kind = excluded.element_kind,
			name = excluded.name,
			ref = excluded.ref,
			ref_ifopt = excluded.ref_ifopt,
			lat = excluded.lat,
			lon = excluded.lon,
			tags = excluded.tags,
			station_id = COALESCE(excluded.station_id, platforms.station_id),
			area_id = excluded.area_id
	`, platform.OsmID, string(platform.ElementKind), platform.Name, platform.Ref, platform.RefIFOPT, platform.Lat, platform.Lon, tagsJSON, nullableInt(platform.StationID), areaID)
	return err
}

func upsertStopPosition(ctx context.Context, tx *sql.Tx, areaID int64, sp model.StopPosition) error {
	tagsJSON, err := marshalTags(sp.Tags)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stop_positions (osm_id, element_kind, name, ref, ref_ifopt, lat, lon, tags, platform_id, station_id, area_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(osm_id) DO UPDATE SET
			element_kind = excluded.element_kind,
			name = excluded.name,
			ref = excluded.ref,
			ref_ifopt = excluded.ref_ifopt,
			lat = excluded.lat,
			lon = excluded.lon,
			tags = excluded.tags,
			platform_id = COALESCE(excluded.platform_id, stop_positions.platform_id),
			station_id = COALESCE(excluded.station_id, stop_positions.station_id),
			area_id = excluded.area_id
	`, sp.OsmID, string(sp.ElementKind), sp.Name, sp.Ref, sp.RefIFOPT, sp.Lat, sp.Lon, tagsJSON, nullableInt(sp.PlatformID), nullableInt(sp.StationID), areaID)
	return err
}

// upsertRoute replaces a route's ways/stops wholesale — there are no
// leftovers from prior syncs.
func upsertRoute(ctx context.Context, tx *sql.Tx, areaID int64, route model.Route) error {
	tagsJSON, err := marshalTags(route.Tags)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO routes (osm_id, name, ref, route_type, operator, network, color, tags, area_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(osm_id) DO UPDATE SET
			name = excluded.name,
			ref = excluded.ref,
			route_type = excluded.route_type,
			operator = excluded.operator,
			network = excluded.network,
			color = excluded.color,
			tags = excluded.tags,
			area_id = excluded.area_id
	`, route.OsmID, route.Name, route.Ref, route.RouteType, route.Operator, route.Network, route.Color, tagsJSON, areaID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM route_ways WHERE route_id = ?`, route.OsmID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM route_stops WHERE route_id = ?`, route.OsmID); err != nil {
		return err
	}

	for _, way := range route.Ways {
		geomJSON, err := json.Marshal(way.Geometry)
		if err != nil {
			return errors.Wrap(err, "marshaling route way geometry")
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO route_ways (route_id, sequence, way_osm_id, geometry) VALUES (?, ?, ?, ?)
		`, route.OsmID, way.Sequence, way.WayOsmID, string(geomJSON)); err != nil {
			return err
		}
	}

	for _, stop := range route.Stops {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO route_stops (route_id, sequence, role, stop_position_id, platform_id, station_id)
			VALUES (?, ?, ?, ?, ?, ?)
		`, route.OsmID, stop.Sequence, stop.Role, nullableInt(stop.StopPositionID), nullableInt(stop.PlatformID), nullableInt(stop.StationID)); err != nil {
			return err
		}
	}

	return nil
}

type coordRow struct {
	id  int64
	lat float64
	lon float64
}

// resolveRelations runs the five-step relation-resolution pipeline
// from the spec, in order, each step consuming the previous step's
// output.
func resolveRelations(ctx context.Context, tx *sql.Tx, areaID int64) ([]model.OsmIssue, error) {
	var issues []model.OsmIssue

	stations, err := queryCoords(ctx, tx, `SELECT osm_id, lat, lon FROM stations WHERE area_id = ?`, areaID)
	if err != nil {
		return nil, err
	}

	// Step 1: platforms -> nearest station within ~500m.
	unlinkedPlatforms, err := queryCoords(ctx, tx, `SELECT osm_id, lat, lon FROM platforms WHERE area_id = ? AND station_id IS NULL`, areaID)
	if err != nil {
		return nil, err
	}
	for _, p := range unlinkedPlatforms {
		if match, ok := nearest(p, stations, stationFallbackThreshold); ok {
			if _, err := tx.ExecContext(ctx, `UPDATE platforms SET station_id = ? WHERE osm_id = ?`, match.id, p.id); err != nil {
				return nil, err
			}
		} else {
			issues = append(issues, model.OsmIssue{Kind: "unlinked_platform", SubjectOsmID: p.id, Message: "platform has no station within fallback threshold", DetectedAt: time.Now()})
		}
	}

	// Step 2: stop_positions -> nearest platform within ~50m.
	platforms, err := queryCoords(ctx, tx, `SELECT osm_id, lat, lon FROM platforms WHERE area_id = ?`, areaID)
	if err != nil {
		return nil, err
	}
	unlinkedStopPositions, err := queryCoords(ctx, tx, `SELECT osm_id, lat, lon FROM stop_positions WHERE area_id = ? AND platform_id IS NULL`, areaID)
	if err != nil {
		return nil, err
	}
	for _, sp := range unlinkedStopPositions {
		if match, ok := nearest(sp, platforms, platformFallbackThreshold); ok {
			if _, err := tx.ExecContext(ctx, `UPDATE stop_positions SET platform_id = ? WHERE osm_id = ?`, match.id, sp.id); err != nil {
				return nil, err
			}
		}
	}

	// Step 3: propagate station_id to stop_positions via their platform.
	if _, err := tx.ExecContext(ctx, `
		UPDATE stop_positions
		SET station_id = (SELECT station_id FROM platforms WHERE osm_id = stop_positions.platform_id)
		WHERE area_id = ? AND station_id IS NULL AND platform_id IS NOT NULL
	`, areaID); err != nil {
		return nil, err
	}

	// Step 4: route_stops -> copy down platform_id/station_id from a
	// matching stop_position.
	if _, err := tx.ExecContext(ctx, `
		UPDATE route_stops
		SET platform_id = (SELECT platform_id FROM stop_positions WHERE osm_id = route_stops.stop_position_id),
			station_id = (SELECT station_id FROM stop_positions WHERE osm_id = route_stops.stop_position_id)
		WHERE route_id IN (SELECT osm_id FROM routes WHERE area_id = ?)
		  AND stop_position_id IN (SELECT osm_id FROM stop_positions)
	`, areaID); err != nil {
		return nil, err
	}

	// Step 5: route_stops still missing platform_id whose
	// stop_position_id is actually a direct platform reference.
	if _, err := tx.ExecContext(ctx, `
		UPDATE route_stops
		SET platform_id = stop_position_id,
			station_id = (SELECT station_id FROM platforms WHERE osm_id = route_stops.stop_position_id)
		WHERE route_id IN (SELECT osm_id FROM routes WHERE area_id = ?)
		  AND platform_id IS NULL
		  AND stop_position_id IN (SELECT osm_id FROM platforms)
	`, areaID); err != nil {
		return nil, err
	}

	return issues, nil
}

func queryCoords(ctx context.Context, tx *sql.Tx, query string, areaID int64) ([]coordRow, error) {
	rows, err := tx.QueryContext(ctx, query, areaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []coordRow
	for rows.Next() {
		var c coordRow
		if err := rows.Scan(&c.id, &c.lat, &c.lon); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// nearest finds the candidate with the smallest squared-degree
// distance to target strictly below threshold. Ties are broken by
// insertion order (candidates is already in query/insertion order);
// NaN distances sort last, same as the source this is grounded on.
func nearest(target coordRow, candidates []coordRow, threshold float64) (coordRow, bool) {
	var best coordRow
	bestDist := math.Inf(1)
	found := false

	for _, c := range candidates {
		d := squaredDegreeDistance(target, c)
		if !(d < threshold) {
			continue
		}
		if !found || less(d, bestDist) {
			best = c
			bestDist = d
			found = true
		}
	}

	return best, found
}

func squaredDegreeDistance(a, b coordRow) float64 {
	return geo.SquaredDegreeDistance(a.lat, a.lon, b.lat, b.lon)
}

// less treats NaN as greater than everything, matching
// partial_cmp(...).unwrap_or(Greater) in the source this mirrors.
func less(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a < b
}

func (s *SQLiteStorage) GetStation(ctx context.Context, osmID int64) (*model.Station, error) {
	row := s.db.QueryRowContext(ctx, `SELECT osm_id, element_kind, name, ref, ref_ifopt, lat, lon, tags, area_id FROM stations WHERE osm_id = ?`, osmID)
	var st model.Station
	var kind, tagsJSON string
	if err := row.Scan(&st.OsmID, &kind, &st.Name, &st.Ref, &st.RefIFOPT, &st.Lat, &st.Lon, &tagsJSON, &st.AreaID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	st.ElementKind = model.ElementKind(kind)
	st.Tags, _ = unmarshalTags(tagsJSON)
	return &st, nil
}

func (s *SQLiteStorage) GetPlatform(ctx context.Context, osmID int64) (*model.Platform, error) {
	row := s.db.QueryRowContext(ctx, `SELECT osm_id, element_kind, name, ref, ref_ifopt, lat, lon, tags, station_id, area_id FROM platforms WHERE osm_id = ?`, osmID)
	var p model.Platform
	var kind, tagsJSON string
	var stationID sql.NullInt64
	if err := row.Scan(&p.OsmID, &kind, &p.Name, &p.Ref, &p.RefIFOPT, &p.Lat, &p.Lon, &tagsJSON, &stationID, &p.AreaID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	p.ElementKind = model.ElementKind(kind)
	p.Tags, _ = unmarshalTags(tagsJSON)
	if stationID.Valid {
		p.StationID = &stationID.Int64
	}
	return &p, nil
}

func (s *SQLiteStorage) GetStopPosition(ctx context.Context, osmID int64) (*model.StopPosition, error) {
	row := s.db.QueryRowContext(ctx, `SELECT osm_id, element_kind, name, ref, ref_ifopt, lat, lon, tags, platform_id, station_id, area_id FROM stop_positions WHERE osm_id = ?`, osmID)
	var sp model.StopPosition
	var kind, tagsJSON string
	var platformID, stationID sql.NullInt64
	if err := row.Scan(&sp.OsmID, &kind, &sp.Name, &sp.Ref, &sp.RefIFOPT, &sp.Lat, &sp.Lon, &tagsJSON, &platformID, &stationID, &sp.AreaID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	sp.ElementKind = model.ElementKind(kind)
	sp.Tags, _ = unmarshalTags(tagsJSON)
	if platformID.Valid {
		sp.PlatformID = &platformID.Int64
	}
	if stationID.Valid {
		sp.StationID = &stationID.Int64
	}
	return &sp, nil
}

func (s *SQLiteStorage) GetRoute(ctx context.Context, osmID int64) (*model.Route, error) {
	row := s.db.QueryRowContext(ctx, `SELECT osm_id, name, ref, route_type, operator, network, color, tags, area_id FROM routes WHERE osm_id = ?`, osmID)
	var r model.Route
	var tagsJSON string
	if err := row.Scan(&r.OsmID, &r.Name, &r.Ref, &r.RouteType, &r.Operator, &r.Network, &r.Color, &tagsJSON, &r.AreaID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	r.Tags, _ = unmarshalTags(tagsJSON)

	wayRows, err := s.db.QueryContext(ctx, `SELECT sequence, way_osm_id, geometry FROM route_ways WHERE route_id = ? ORDER BY sequence`, osmID)
	if err != nil {
		return nil, err
	}
	defer wayRows.Close()
	for wayRows.Next() {
		var w model.RouteWay
		var geomJSON string
		if err := wayRows.Scan(&w.Sequence, &w.WayOsmID, &geomJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(geomJSON), &w.Geometry)
		w.RouteID = osmID
		r.Ways = append(r.Ways, w)
	}

	stopRows, err := s.db.QueryContext(ctx, `SELECT sequence, role, stop_position_id, platform_id, station_id FROM route_stops WHERE route_id = ? ORDER BY sequence`, osmID)
	if err != nil {
		return nil, err
	}
	defer stopRows.Close()
	for stopRows.Next() {
		var rs model.RouteStop
		var stopPos, platformID, stationID sql.NullInt64
		if err := stopRows.Scan(&rs.Sequence, &rs.Role, &stopPos, &platformID, &stationID); err != nil {
			return nil, err
		}
		rs.RouteID = osmID
		if stopPos.Valid {
			rs.StopPositionID = &stopPos.Int64
		}
		if platformID.Valid {
			rs.PlatformID = &platformID.Int64
		}
		if stationID.Valid {
			rs.StationID = &stationID.Int64
		}
		r.Stops = append(r.Stops, rs)
	}

	return &r, nil
}

func marshalTags(tags map[string]string) (string, error) {
	if tags == nil {
		return "{}", nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", errors.Wrap(err, "marshaling tags")
	}
	return string(b), nil
}

func unmarshalTags(tagsJSON string) (map[string]string, error) {
	if tagsJSON == "" {
		return nil, nil
	}
	var tags map[string]string
	if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func nullableInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
