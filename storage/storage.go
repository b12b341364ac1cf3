// Package storage owns the durable relational topology model: areas
// and the OSM features synced into them. All writes for one area sync
// happen inside a single transaction; relation resolution (§4.4 of the
// spec this module implements) runs as the last step of that same
// transaction.
package storage

import (
	"context"

	"tramsync.dev/tramsync/model"
)

// Storage is the topology store's full read/write surface.
type Storage interface {
	// UpsertArea inserts or updates an area by name and returns its
	// surrogate id. Areas are never deleted by a sync.
	UpsertArea(ctx context.Context, area model.Area) (int64, error)

	// SyncArea stores a freshly fetched AreaFeatures set for the given
	// area id inside a single transaction, runs relation resolution,
	// and updates last_synced_at. Any error rolls the whole sync back.
	SyncArea(ctx context.Context, areaID int64, features model.AreaFeatures) ([]model.OsmIssue, error)

	// ListAreas returns every configured area.
	ListAreas(ctx context.Context) ([]model.Area, error)

	// ListIFOPTs returns the distinct, non-empty ref:IFOPT values
	// across stations, platforms and stop_positions — the fan-out set
	// for the departure sync loop.
	ListIFOPTs(ctx context.Context) ([]string, error)

	GetStation(ctx context.Context, osmID int64) (*model.Station, error)
	GetPlatform(ctx context.Context, osmID int64) (*model.Platform, error)
	GetStopPosition(ctx context.Context, osmID int64) (*model.StopPosition, error)
	GetRoute(ctx context.Context, osmID int64) (*model.Route, error)

	Close() error
}
