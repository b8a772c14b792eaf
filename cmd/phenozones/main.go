package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/forest-guardian/phenology-zones/internal/failure"
	"github.com/forest-guardian/phenology-zones/internal/log"
	"github.com/forest-guardian/phenology-zones/internal/properties"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var cfg *properties.Config

var (
	envFile     string
	noBanner    bool
	metricsFile string
	startTime   time.Time
)

var rootCmd = &cobra.Command{
	Use:   "phenozones",
	Short: "elevation-zone phenology tables from MODIS vegetation index rasters",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		startTime = time.Now()
		if err := properties.LoadEnvFiles(envFile, "../.env"); err != nil {
			return err
		}
		var err error
		if cfg, err = properties.FromEnv(); err != nil {
			return err
		}
		if err := applyFlags(cmd.Flags(), cfg); err != nil {
			return err
		}
		if err := log.Init(cfg.Debug); err != nil {
			return err
		}
		if !noBanner {
			printBanner()
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		log.GetSugaredLogger().Debugf("command %s took %.1fs", cmd.Name(), time.Since(startTime).Seconds())
		log.Sync()
	},
}

func init() {
	def := properties.Default()
	registerRootFlags(rootCmd.PersistentFlags(), def)
	registerRunFlags(runCmd.Flags(), def)
	rootCmd.AddCommand(runCmd, indexCmd, summaryCmd)
}

func registerRootFlags(f *pflag.FlagSet, def *properties.Config) {
	f.StringVar(&envFile, "env", ".env", "environment file to load before reading PHENO_* variables")
	f.BoolVar(&noBanner, "no-banner", false, "do not print the banner")
	f.Bool("debug", false, "development logging")
	f.String("out", def.OutputDir, "directory of zones.csv and points.csv")
	f.String("rasters", "", "raster root holding one directory per source")
	f.String("index", "", "sqlite scene index, in memory when empty")
}

func registerRunFlags(f *pflag.FlagSet, def *properties.Config) {
	f.String("aoi", "", "area of interest GeoJSON")
	f.String("elevation", "", "elevation GeoTIFF")
	f.String("elevation-band", def.ElevationBand, "elevation band name or 1-based index")
	f.String("cache", "", "cache directory for zone maps and sample points")
	f.String("start", "", "first acquisition date, YYYY-MM-DD")
	f.String("end", "", "end of the window, exclusive, YYYY-MM-DD")
	f.String("percentiles", "", "elevation percentiles, e.g. 33,67")
	f.String("sources", "", "sources as ID:Satellite pairs, e.g. MOD13Q1:Terra,MYD13Q1:Aqua")
	f.Int("samples", def.SampleCount, "number of sample points")
	f.Uint64("seed", def.Seed, "sampling seed")
	f.Float64("scale", def.TargetScale, "zone map resolution in metres")
	f.Int("workers", def.Workers, "rasters processed concurrently")
	f.Int("max-samples", def.MaxSamples, "pixel cap per zonal reduction, 0 for none")
	f.Bool("best-effort", def.BestEffort, "coarsen instead of failing when the pixel cap is hit")
	f.StringVar(&metricsFile, "metrics-file", "", "write run metrics in textfile format")
}

// applyFlags copies every flag set on the command line over cfg, so flags
// win over the environment. Flags the command does not define are ignored.
func applyFlags(f *pflag.FlagSet, cfg *properties.Config) error {
	strs := map[string]*string{
		"out":            &cfg.OutputDir,
		"rasters":        &cfg.RasterRoot,
		"index":          &cfg.IndexPath,
		"aoi":            &cfg.AOIPath,
		"elevation":      &cfg.ElevationPath,
		"elevation-band": &cfg.ElevationBand,
		"cache":          &cfg.CacheDir,
	}
	ints := map[string]*int{
		"samples":     &cfg.SampleCount,
		"workers":     &cfg.Workers,
		"max-samples": &cfg.MaxSamples,
	}
	bools := map[string]*bool{
		"debug":       &cfg.Debug,
		"best-effort": &cfg.BestEffort,
	}

	var err error
	for name, dst := range strs {
		if f.Changed(name) {
			if *dst, err = f.GetString(name); err != nil {
				return err
			}
		}
	}
	for name, dst := range ints {
		if f.Changed(name) {
			if *dst, err = f.GetInt(name); err != nil {
				return err
			}
		}
	}
	for name, dst := range bools {
		if f.Changed(name) {
			if *dst, err = f.GetBool(name); err != nil {
				return err
			}
		}
	}
	if f.Changed("seed") {
		if cfg.Seed, err = f.GetUint64("seed"); err != nil {
			return err
		}
	}
	if f.Changed("scale") {
		if cfg.TargetScale, err = f.GetFloat64("scale"); err != nil {
			return err
		}
	}

	parsed := func(name string, parse func(string) error) error {
		if !f.Changed(name) {
			return nil
		}
		v, err := f.GetString(name)
		if err != nil {
			return err
		}
		if err := parse(v); err != nil {
			return failure.Wrap(failure.InvalidConfig, name, err)
		}
		return nil
	}
	if err := parsed("start", func(v string) (err error) {
		cfg.Start, err = time.Parse(time.DateOnly, v)
		return err
	}); err != nil {
		return err
	}
	if err := parsed("end", func(v string) (err error) {
		cfg.End, err = time.Parse(time.DateOnly, v)
		return err
	}); err != nil {
		return err
	}
	if err := parsed("percentiles", func(v string) (err error) {
		cfg.Percentiles, err = properties.ParsePercentiles(v)
		return err
	}); err != nil {
		return err
	}
	return parsed("sources", func(v string) (err error) {
		cfg.Sources, err = properties.ParseSources(v)
		return err
	})
}

func printBanner() {
	figure1 := figure.NewFigure("Pheno", "isometric1", true)
	figure2 := figure.NewFigure("Zones", "isometric1", true)
	bannercolor.Green(figure1.String())
	bannercolor.Green(figure2.String())
	fmt.Println()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if kind := failure.KindOf(err); kind != failure.Unknown {
			bannercolor.Red("%s: %s", kind, failure.ParamOf(err))
		}
		bannercolor.Red("Error: %v", err)
		os.Exit(1)
	}
}
