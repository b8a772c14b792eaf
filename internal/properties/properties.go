// Package properties reads the run configuration from the environment.
package properties

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/forest-guardian/phenology-zones/internal/failure"
	"github.com/joho/godotenv"
)

const (
	EnvStartDate     = "PHENO_START_DATE"
	EnvEndDate       = "PHENO_END_DATE"
	EnvSampleCount   = "PHENO_SAMPLE_COUNT"
	EnvPercentiles   = "PHENO_PERCENTILES"
	EnvTargetScale   = "PHENO_TARGET_SCALE"
	EnvSeed          = "PHENO_SEED"
	EnvKeepThreshold = "PHENO_QUALITY_KEEP_THRESHOLD"
	EnvAOIPath       = "PHENO_AOI_PATH"
	EnvElevationPath = "PHENO_ELEVATION_PATH"
	EnvElevationBand = "PHENO_ELEVATION_BAND"
	EnvRasterRoot    = "PHENO_RASTER_ROOT"
	EnvIndexPath     = "PHENO_INDEX_PATH"
	EnvOutputDir     = "PHENO_OUTPUT_DIR"
	EnvCacheDir      = "PHENO_CACHE_DIR"
	EnvWorkers       = "PHENO_WORKERS"
	EnvScaleFactor   = "PHENO_SCALE_FACTOR"
	EnvValueBand     = "PHENO_VALUE_BAND"
	EnvQABand        = "PHENO_QA_BAND"
	EnvSources       = "PHENO_SOURCES"
	EnvMaxSamples    = "PHENO_MAX_SAMPLES"
	EnvBestEffort    = "PHENO_BEST_EFFORT"
	EnvTileScale     = "PHENO_TILE_SCALE"
	EnvDebug         = "PHENO_DEBUG"

	EnvDiscordErrorURL   = "PHENO_DISCORD_ERROR_URL"
	EnvDiscordSuccessURL = "PHENO_DISCORD_SUCCESS_URL"
)

// SourceSpec names a collection directory and the satellite label its rows
// carry.
type SourceSpec struct {
	ID        string
	Satellite string
}

type Config struct {
	AOIPath       string
	ElevationPath string
	ElevationBand string
	RasterRoot    string
	// IndexPath is the sqlite scene index. Empty keeps it in memory.
	IndexPath string
	OutputDir string
	// CacheDir holds zone maps and sample points between runs. Empty
	// disables caching.
	CacheDir string

	Start time.Time
	// End is exclusive.
	End time.Time

	Sources     []SourceSpec
	ValueBand   string
	QABand      string
	ScaleFactor float64
	// KeepThreshold is the highest QA code kept.
	KeepThreshold int

	Percentiles []float64
	TargetScale float64
	SampleCount int
	Seed        uint64

	Workers    int
	MaxSamples int
	BestEffort bool
	TileScale  int
	Debug      bool

	DiscordErrorURL   string
	DiscordSuccessURL string
}

// Default is the Terra + Aqua MOD13Q1/MYD13Q1 EVI run over the full MODIS record.
func Default() *Config {
	return &Config{
		ElevationBand: "1",
		OutputDir:     "output",
		Start:         time.Date(2000, 2, 18, 0, 0, 0, 0, time.UTC),
		End:           time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Sources: []SourceSpec{
			{ID: "MOD13Q1", Satellite: "Terra"},
			{ID: "MYD13Q1", Satellite: "Aqua"},
		},
		ValueBand:     "EVI",
		QABand:        "SummaryQA",
		ScaleFactor:   0.0001,
		KeepThreshold: 1,
		Percentiles:   []float64{33, 67},
		TargetScale:   250,
		SampleCount:   500,
		Seed:          42,
		Workers:       runtime.NumCPU(),
		BestEffort:    true,
		TileScale:     4,
	}
}

// LoadEnvFiles loads the first .env file found among paths. Missing files
// are not an error; malformed ones are.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// FromEnv overlays the PHENO_* environment variables on Default.
func FromEnv() (*Config, error) {
	c := Default()
	var err error

	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str(EnvAOIPath, &c.AOIPath)
	str(EnvElevationPath, &c.ElevationPath)
	str(EnvElevationBand, &c.ElevationBand)
	str(EnvRasterRoot, &c.RasterRoot)
	str(EnvIndexPath, &c.IndexPath)
	str(EnvOutputDir, &c.OutputDir)
	str(EnvCacheDir, &c.CacheDir)
	str(EnvValueBand, &c.ValueBand)
	str(EnvQABand, &c.QABand)
	str(EnvDiscordErrorURL, &c.DiscordErrorURL)
	str(EnvDiscordSuccessURL, &c.DiscordSuccessURL)

	if c.Start, err = dateEnv(EnvStartDate, c.Start); err != nil {
		return nil, err
	}
	if c.End, err = dateEnv(EnvEndDate, c.End); err != nil {
		return nil, err
	}
	if c.SampleCount, err = intEnv(EnvSampleCount, c.SampleCount); err != nil {
		return nil, err
	}
	if c.KeepThreshold, err = intEnv(EnvKeepThreshold, c.KeepThreshold); err != nil {
		return nil, err
	}
	if c.Workers, err = intEnv(EnvWorkers, c.Workers); err != nil {
		return nil, err
	}
	if c.MaxSamples, err = intEnv(EnvMaxSamples, c.MaxSamples); err != nil {
		return nil, err
	}
	if c.TileScale, err = intEnv(EnvTileScale, c.TileScale); err != nil {
		return nil, err
	}
	if c.TargetScale, err = floatEnv(EnvTargetScale, c.TargetScale); err != nil {
		return nil, err
	}
	if c.ScaleFactor, err = floatEnv(EnvScaleFactor, c.ScaleFactor); err != nil {
		return nil, err
	}
	if c.BestEffort, err = boolEnv(EnvBestEffort, c.BestEffort); err != nil {
		return nil, err
	}
	if c.Debug, err = boolEnv(EnvDebug, c.Debug); err != nil {
		return nil, err
	}
	if v := os.Getenv(EnvSeed); v != "" {
		if c.Seed, err = strconv.ParseUint(v, 10, 64); err != nil {
			return nil, failure.Wrap(failure.InvalidConfig, EnvSeed, err)
		}
	}
	if v := os.Getenv(EnvPercentiles); v != "" {
		if c.Percentiles, err = ParsePercentiles(v); err != nil {
			return nil, failure.Wrap(failure.InvalidConfig, EnvPercentiles, err)
		}
	}
	if v := os.Getenv(EnvSources); v != "" {
		if c.Sources, err = ParseSources(v); err != nil {
			return nil, failure.Wrap(failure.InvalidConfig, EnvSources, err)
		}
	}
	return c, nil
}

// ParsePercentiles reads a comma separated list such as "33,67".
func ParsePercentiles(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		p, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid percentile %q: %w", part, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ParseSources reads "ID:Satellite" pairs such as "MOD13Q1:Terra,MYD13Q1:Aqua".
func ParseSources(s string) ([]SourceSpec, error) {
	var out []SourceSpec
	for _, part := range strings.Split(s, ",") {
		id, sat, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok || id == "" || sat == "" {
			return nil, fmt.Errorf("invalid source %q, expected ID:Satellite", part)
		}
		out = append(out, SourceSpec{ID: id, Satellite: sat})
	}
	return out, nil
}

// Validate reports the first setting that cannot drive a run, tagged with
// its environment variable name.
func (c *Config) Validate() error {
	switch {
	case c.AOIPath == "":
		return failure.New(failure.InvalidConfig, EnvAOIPath, "an area of interest is required")
	case c.ElevationPath == "":
		return failure.New(failure.InvalidConfig, EnvElevationPath, "an elevation raster is required")
	case c.RasterRoot == "":
		return failure.New(failure.InvalidConfig, EnvRasterRoot, "a raster root directory is required")
	case c.OutputDir == "":
		return failure.New(failure.InvalidConfig, EnvOutputDir, "an output directory is required")
	case !c.Start.Before(c.End):
		return failure.New(failure.InvalidConfig, EnvEndDate, "end %s must be after start %s",
			c.End.Format(time.DateOnly), c.Start.Format(time.DateOnly))
	case c.SampleCount <= 0:
		return failure.New(failure.InvalidConfig, EnvSampleCount, "sample count must be positive, got %d", c.SampleCount)
	case c.TargetScale <= 0:
		return failure.New(failure.InvalidConfig, EnvTargetScale, "target scale must be positive, got %v", c.TargetScale)
	case c.ScaleFactor == 0:
		return failure.New(failure.InvalidConfig, EnvScaleFactor, "scale factor must not be zero")
	case c.ValueBand == "":
		return failure.New(failure.InvalidConfig, EnvValueBand, "a value band is required")
	case c.QABand == "":
		return failure.New(failure.InvalidConfig, EnvQABand, "a QA band is required")
	case len(c.Sources) == 0:
		return failure.New(failure.InvalidConfig, EnvSources, "at least one source is required")
	case c.Workers < 0:
		return failure.New(failure.InvalidConfig, EnvWorkers, "workers must not be negative")
	case c.MaxSamples < 0:
		return failure.New(failure.InvalidConfig, EnvMaxSamples, "max samples must not be negative")
	}
	for i, p := range c.Percentiles {
		if p < 0 || p > 100 || (i > 0 && p <= c.Percentiles[i-1]) {
			return failure.New(failure.InvalidConfig, EnvPercentiles, "percentiles must ascend strictly within [0,100], got %v", c.Percentiles)
		}
	}
	if len(c.Percentiles) == 0 {
		return failure.New(failure.InvalidConfig, EnvPercentiles, "at least one percentile is required")
	}
	return nil
}

// ZonesPath and PointsPath are the output tables of a run.
func (c *Config) ZonesPath() string  { return filepath.Join(c.OutputDir, "zones.csv") }
func (c *Config) PointsPath() string { return filepath.Join(c.OutputDir, "points.csv") }

func dateEnv(name string, def time.Time) (time.Time, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(v))
	if err != nil {
		return def, failure.Wrap(failure.InvalidConfig, name, err)
	}
	return t, nil
}

func intEnv(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, failure.Wrap(failure.InvalidConfig, name, err)
	}
	return n, nil
}

func floatEnv(name string, def float64) (float64, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def, failure.Wrap(failure.InvalidConfig, name, err)
	}
	return f, nil
}

func boolEnv(name string, def bool) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def, failure.Wrap(failure.InvalidConfig, name, err)
	}
	return b, nil
}
