package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/forest-guardian/phenology-zones/internal/catalog"
	"github.com/forest-guardian/phenology-zones/internal/export"
	"github.com/forest-guardian/phenology-zones/internal/failure"
	"github.com/forest-guardian/phenology-zones/internal/geotiff"
	"github.com/forest-guardian/phenology-zones/internal/log"
	"github.com/forest-guardian/phenology-zones/internal/metrics"
	"github.com/forest-guardian/phenology-zones/internal/notification"
	"github.com/forest-guardian/phenology-zones/internal/pipeline"
	"github.com/forest-guardian/phenology-zones/internal/properties"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "classify zones, sample points and export zones.csv and points.csv",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx := cmd.Context()

		in, closeInputs, err := pipeline.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeInputs()

		notifier := &notification.Discord{ErrorURL: cfg.DiscordErrorURL, SuccessURL: cfg.DiscordSuccessURL}
		m := metrics.NewCollector()
		summary, err := pipeline.Run(ctx, cfg, in, pipeline.Options{Metrics: m, Progress: os.Stderr})
		if err != nil {
			if nerr := notifier.Error(ctx, err.Error()); nerr != nil {
				log.GetSugaredLogger().Warnw("failed to notify", "error", nerr)
			}
			return err
		}
		fmt.Println()
		summary.Print(os.Stdout)

		var report strings.Builder
		summary.Print(&report)
		if err := notifier.Success(ctx, report.String()); err != nil {
			log.GetSugaredLogger().Warnw("failed to notify", "error", err)
		}

		if metricsFile != "" {
			return m.WriteTextfile(metricsFile)
		}
		return nil
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "scan the raster root into the scene index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.RasterRoot == "" {
			return failure.New(failure.InvalidConfig, properties.EnvRasterRoot, "a raster root directory is required")
		}
		if cfg.IndexPath == "" {
			return failure.New(failure.InvalidConfig, properties.EnvIndexPath, "an index path is required to keep the scan")
		}
		ctx := cmd.Context()

		index, err := catalog.Open(cfg.IndexPath)
		if err != nil {
			return err
		}
		defer index.Close()

		n, err := geotiff.Scan(ctx, cfg.RasterRoot, index)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %d scenes from %s\n", n, cfg.RasterRoot)

		ids, err := index.Sources(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			count, err := index.Count(ctx, id)
			if err != nil {
				return err
			}
			fmt.Printf("  %-10s %d scenes\n", id, count)
		}
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "summarise the tables of a previous run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		zones, err := export.ReadZoneStats(cfg.ZonesPath())
		if err != nil {
			return err
		}
		points, err := export.ReadPointValues(cfg.PointsPath())
		if err != nil {
			return err
		}

		fmt.Printf("%s: %d rows\n", cfg.ZonesPath(), len(zones))
		fmt.Printf("%s: %d rows\n", cfg.PointsPath(), len(points))
		summarizeZones(zones).print(os.Stdout)
		return nil
	},
}
