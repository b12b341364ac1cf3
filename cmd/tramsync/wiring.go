package main

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"tramsync.dev/tramsync/config"
	"tramsync.dev/tramsync/downloader"
	"tramsync.dev/tramsync/efa"
	"tramsync.dev/tramsync/osm"
	"tramsync.dev/tramsync/storage"
	"tramsync.dev/tramsync/sync"
)

// buildManager loads the config file and wires a sync.Manager over a
// new or existing on-disk SQLite store, an OSM client, and an EFA client — the
// shared setup for both the sync and serve subcommands.
func buildManager(dbDirectory string) (*sync.Manager, *config.Config, *zap.SugaredLogger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("building logger: %w", err)
	}
	log := logger.Sugar()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config %s: %w", configPath, err)
	}

	store, err := storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: dbDirectory})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening storage: %w", err)
	}

	osmClient := osm.NewClient(log)

	efaClient := efa.NewClient(log)
	stationCache, err := downloader.NewFilesystem(filepath.Join(dbDirectory, "efa-station-cache.json"), log)
	if err != nil {
		log.Warnw("could not open efa station cache, continuing uncached", "error", err)
	} else {
		efaClient = efaClient.WithDownloader(stationCache)
	}

	manager := sync.NewManager(store, osmClient, efaClient, cfg.ModelAreas(), log)
	return manager, cfg, log, nil
}
