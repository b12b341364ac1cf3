package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "tramsync",
	Short:        "OSM topology sync and EFA departure monitoring engine",
	Long:         "Syncs tram/bus stop topology from OpenStreetMap and live departures from an EFA endpoint into an embedded store",
	SilenceUsage: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "tramsync.yaml", "Path to the area configuration file")
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
