package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one OSM topology sync and one EFA departure sync pass, then print a summary",
	RunE:  runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	manager, cfg, log, err := buildManager(".")
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()

	log.Infow("running one-shot sync pass", "areas", len(cfg.Areas))
	manager.RunOnce(ctx)

	ifopts := manager.Departures().Snapshot()
	issues := manager.Issues().Snapshot()

	fmt.Printf("synced %d area(s)\n", len(cfg.Areas))
	fmt.Printf("departures known for %d stop(s)\n", len(ifopts))
	fmt.Printf("%d issue(s) recorded during sync\n", len(issues))
	for _, issue := range issues {
		fmt.Printf("  - [%s] area=%s osm_id=%d: %s\n", issue.Kind, issue.AreaName, issue.SubjectOsmID, issue.Message)
	}

	return nil
}
