// Package sync owns the two cooperating periodic tasks: the slow OSM
// topology sync and the fast EFA departure sync. It mirrors the
// block-then-launch startup shape of tidbyt-gtfs's Manager.Refresh,
// generalized to two independently scheduled loops instead of one.
package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tramsync.dev/tramsync/efa"
	"tramsync.dev/tramsync/model"
	"tramsync.dev/tramsync/storage"
)

// OsmFetcher is the subset of osm.Client's surface the sync manager
// depends on, accepted as an interface so tests can inject a fake.
type OsmFetcher interface {
	FetchAreaFeatures(ctx context.Context, area model.Area) (model.AreaFeatures, error)
}

// EfaFetcher is the subset of efa.Client's surface the sync manager
// depends on.
type EfaFetcher interface {
	GetDeparturesBatch(ctx context.Context, ifopts []string, limit int, useRealtime bool) []efa.BatchResult
}

const (
	osmSyncInterval  = 6 * time.Hour
	efaSyncInterval  = 30 * time.Second
	efaInitialDelay  = 5 * time.Second
	maxAreaAttempts  = 5
	areaRetryUnit    = 30 * time.Second
	departuresLimit  = 10
	departuresUseRT  = true
)

// Manager owns the departure store, the issue store, and the two
// periodic loops that keep them and the topology store up to date.
type Manager struct {
	store      storage.Storage
	osmClient  OsmFetcher
	efaClient  EfaFetcher
	areas      []model.Area
	departures *DepartureStore
	issues     *IssueStore
	log        *zap.SugaredLogger
}

// NewManager wires a Manager over an already-open Storage and the
// configured areas. Areas are read-only for the Manager's lifetime.
func NewManager(store storage.Storage, osmClient OsmFetcher, efaClient EfaFetcher, areas []model.Area, log *zap.SugaredLogger) *Manager {
	return &Manager{
		store:      store,
		osmClient:  osmClient,
		efaClient:  efaClient,
		areas:      areas,
		departures: NewDepartureStore(),
		issues:     NewIssueStore(),
		log:        log,
	}
}

// Departures exposes the shared departure store to the API layer.
func (m *Manager) Departures() *DepartureStore { return m.departures }

// Issues exposes the shared issue store to the API layer.
func (m *Manager) Issues() *IssueStore { return m.issues }

// Start runs one OSM sync immediately (blocking), then launches the
// two periodic loops. It returns once ctx is cancelled and both loops
// have stopped.
func (m *Manager) Start(ctx context.Context) {
	m.log.Info("starting sync manager")

	m.syncAllAreas(ctx)

	done := make(chan struct{}, 2)

	go func() {
		m.osmLoop(ctx)
		done <- struct{}{}
	}()
	go func() {
		m.efaLoop(ctx)
		done <- struct{}{}
	}()

	<-done
	<-done
}

// RunOnce runs a single OSM sync pass followed by a single departure
// sync pass, then returns — the one-shot counterpart to Start used by
// the "sync" CLI subcommand.
func (m *Manager) RunOnce(ctx context.Context) {
	m.syncAllAreas(ctx)
	m.syncAllDepartures(ctx)
}

// osmLoop ticks every 6 hours. The first tick is skipped since Start
// already ran the initial sync before launching this loop.
func (m *Manager) osmLoop(ctx context.Context) {
	ticker := time.NewTicker(osmSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.syncAllAreas(ctx)
		}
	}
}

// efaLoop waits 5s to let the first OSM sync land, runs a first
// departure sync, then ticks every 30 seconds.
func (m *Manager) efaLoop(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(efaInitialDelay):
	}

	m.syncAllDepartures(ctx)

	ticker := time.NewTicker(efaSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.syncAllDepartures(ctx)
		}
	}
}

// syncAllAreas attempts each configured area up to 5 times with
// linearly-increasing 30s spacing. A single area exhausting its
// retries never blocks the rest.
func (m *Manager) syncAllAreas(ctx context.Context) {
	for _, area := range m.areas {
		attempt := 0
		for {
			attempt++
			err := m.syncArea(ctx, area)
			if err == nil {
				break
			}
			if attempt >= maxAreaAttempts {
				m.log.Errorw("area sync exhausted retries, skipping", "area", area.Name, "attempts", attempt, "error", err)
				break
			}

			wait := time.Duration(attempt) * areaRetryUnit
			m.log.Errorw("area sync failed, retrying", "area", area.Name, "attempt", attempt, "wait", wait, "error", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}
}

// syncArea fetches OSM features for one area, then stores them inside
// a single transaction (including relation resolution).
func (m *Manager) syncArea(ctx context.Context, area model.Area) error {
	m.log.Infow("starting sync for area", "area", area.Name)

	features, err := m.osmClient.FetchAreaFeatures(ctx, area)
	if err != nil {
		return err
	}

	m.log.Infow("fetched features from osm", "area", area.Name,
		"stations", len(features.Stations), "platforms", len(features.Platforms),
		"stop_positions", len(features.StopPositions), "routes", len(features.Routes))

	areaID, err := m.store.UpsertArea(ctx, area)
	if err != nil {
		return err
	}

	issues, err := m.store.SyncArea(ctx, areaID, features)
	if err != nil {
		return err
	}
	for i := range issues {
		issues[i].AreaName = area.Name
	}
	m.issues.Add(issues...)

	m.log.Infow("completed sync for area", "area", area.Name)
	return nil
}

// syncAllDepartures collects the distinct IFOPT set, fans out to EFA,
// and applies the per-stop replace/remove/preserve rule.
func (m *Manager) syncAllDepartures(ctx context.Context) {
	ifopts, err := m.store.ListIFOPTs(ctx)
	if err != nil {
		m.log.Errorw("failed to list ifopts for departure sync", "error", err)
		return
	}
	if len(ifopts) == 0 {
		m.log.Warn("no stop ifopts found for departure sync")
		return
	}

	m.log.Infow("fetching departures", "count", len(ifopts))
	results := m.efaClient.GetDeparturesBatch(ctx, ifopts, departuresLimit, departuresUseRT)

	now := time.Now().UTC()
	successCount, errorCount := 0, 0

	for _, result := range results {
		if result.Err != nil {
			errorCount++
			m.log.Debugw("departure fetch failed, preserving previous entry", "ifopt", result.IFOPT, "error", result.Err)
			continue
		}

		departures := efa.ParseDepartures(result.IFOPT, result.Monitor, now)
		if len(departures) == 0 {
			m.departures.Remove(result.IFOPT)
			continue
		}

		m.departures.Set(result.IFOPT, departures)
		successCount++
	}

	m.log.Infow("departure sync complete", "success", successCount, "errors", errorCount)
}
