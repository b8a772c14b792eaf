package main

import (
	"testing"
	"time"

	"github.com/forest-guardian/phenology-zones/internal/failure"
	"github.com/forest-guardian/phenology-zones/internal/properties"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flagSet(t *testing.T) *pflag.FlagSet {
	t.Helper()
	def := properties.Default()
	f := pflag.NewFlagSet("phenozones", pflag.ContinueOnError)
	registerRootFlags(f, def)
	registerRunFlags(f, def)
	return f
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		args  []string
		check func(t *testing.T, c *properties.Config)
	}{
		{
			name: "environment kept without flags",
			env:  map[string]string{properties.EnvSampleCount: "100", properties.EnvAOIPath: "env.geojson"},
			check: func(t *testing.T, c *properties.Config) {
				assert.Equal(t, 100, c.SampleCount)
				assert.Equal(t, "env.geojson", c.AOIPath)
			},
		},
		{
			name: "flags win over environment",
			env:  map[string]string{properties.EnvSampleCount: "100", properties.EnvAOIPath: "env.geojson"},
			args: []string{"--samples=7", "--aoi=flag.geojson"},
			check: func(t *testing.T, c *properties.Config) {
				assert.Equal(t, 7, c.SampleCount)
				assert.Equal(t, "flag.geojson", c.AOIPath)
			},
		},
		{
			name: "flag equal to the default still overrides",
			env:  map[string]string{properties.EnvSampleCount: "100"},
			args: []string{"--samples=500"},
			check: func(t *testing.T, c *properties.Config) {
				assert.Equal(t, 500, c.SampleCount)
			},
		},
		{
			name: "typed flags",
			args: []string{
				"--seed=7", "--scale=500", "--best-effort=false", "--debug",
				"--start=2010-01-01", "--end=2011-01-01", "--percentiles=25,50,75",
				"--sources=MOD13Q1:Terra", "--out=tables", "--elevation-band=2",
			},
			check: func(t *testing.T, c *properties.Config) {
				assert.Equal(t, uint64(7), c.Seed)
				assert.Equal(t, 500.0, c.TargetScale)
				assert.False(t, c.BestEffort)
				assert.True(t, c.Debug)
				assert.Equal(t, time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), c.Start)
				assert.Equal(t, time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC), c.End)
				assert.Equal(t, []float64{25, 50, 75}, c.Percentiles)
				assert.Equal(t, []properties.SourceSpec{{ID: "MOD13Q1", Satellite: "Terra"}}, c.Sources)
				assert.Equal(t, "tables", c.OutputDir)
				assert.Equal(t, "2", c.ElevationBand)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			c, err := properties.FromEnv()
			require.NoError(t, err)

			f := flagSet(t)
			require.NoError(t, f.Parse(tt.args))
			require.NoError(t, applyFlags(f, c))
			tt.check(t, c)
		})
	}
}

func TestApplyFlagsTagsParseErrors(t *testing.T) {
	tests := []struct {
		arg   string
		param string
	}{
		{"--start=2010-13-01", "start"},
		{"--end=yesterday", "end"},
		{"--percentiles=33,high", "percentiles"},
		{"--sources=MOD13Q1", "sources"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			f := flagSet(t)
			require.NoError(t, f.Parse([]string{tt.arg}))
			err := applyFlags(f, properties.Default())
			require.Error(t, err)
			assert.Equal(t, failure.InvalidConfig, failure.KindOf(err))
			assert.Equal(t, tt.param, failure.ParamOf(err))
		})
	}
}

func TestApplyFlagsIgnoresUndefinedFlags(t *testing.T) {
	f := pflag.NewFlagSet("index", pflag.ContinueOnError)
	registerRootFlags(f, properties.Default())
	require.NoError(t, f.Parse([]string{"--rasters=/data/modis"}))

	c := properties.Default()
	require.NoError(t, applyFlags(f, c))
	assert.Equal(t, "/data/modis", c.RasterRoot)
	assert.Equal(t, 500, c.SampleCount)
}
