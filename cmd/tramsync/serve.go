package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var dbDirectory string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the OSM and EFA periodic sync loops and block until signaled",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&dbDirectory, "db-dir", "", ".", "Directory holding the on-disk SQLite store")
}

func runServe(cmd *cobra.Command, args []string) error {
	manager, cfg, log, err := buildManager(dbDirectory)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Infow("starting tramsync engine", "areas", len(cfg.Areas))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager.Start(ctx)

	log.Info("tramsync engine stopped")
	return nil
}
