// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

package cfgstruct_test

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"geostac.io/geostac/internal/cfgstruct"
)

type testConfig struct {
	Address string `help:"listening address" default:":8080"`
	API     struct {
		BasePath        string        `help:"base path" default:"/api/stac/v1"`
		PresignedExpiry time.Duration `help:"presigned url lifetime" default:"1h"`
		MaxParts        int           `help:"maximum parts" default:"100"`
		Debug           bool          `help:"debug mode" default:"false"`
	}
}

func TestBindDefaults(t *testing.T) {
	var config testConfig
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfgstruct.Bind(flags, &config)

	require.NoError(t, flags.Parse(nil))
	require.Equal(t, ":8080", config.Address)
	require.Equal(t, "/api/stac/v1", config.API.BasePath)
	require.Equal(t, time.Hour, config.API.PresignedExpiry)
	require.Equal(t, 100, config.API.MaxParts)
	require.False(t, config.API.Debug)
}

func TestBindFlagsOverride(t *testing.T) {
	var config testConfig
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfgstruct.Bind(flags, &config)

	require.NoError(t, flags.Parse([]string{
		"--address", ":9090",
		"--api.max-parts", "10",
	}))
	require.Equal(t, ":9090", config.Address)
	require.Equal(t, 10, config.API.MaxParts)
}

func TestBindEnvOverride(t *testing.T) {
	t.Setenv("GEOSTAC_API_BASE_PATH", "/api/stac/v2")

	var config testConfig
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfgstruct.Bind(flags, &config)

	require.NoError(t, flags.Parse(nil))
	require.Equal(t, "/api/stac/v2", config.API.BasePath)
}
