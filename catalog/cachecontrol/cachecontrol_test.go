// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

package cachecontrol_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"geostac.io/geostac/catalog/cachecontrol"
)

func testConfig() cachecontrol.Config {
	return cachecontrol.Config{
		Metadata:  "public, max-age=600",
		AssetData: "public, max-age=7200",
		NoCache:   "max-age=0, no-cache, no-store, must-revalidate",
	}
}

func TestResolve(t *testing.T) {
	resolver := cachecontrol.New(testConfig())

	tests := []struct {
		name     string
		kind     cachecontrol.Kind
		class    cachecontrol.Class
		override string
		want     string
	}{
		{
			name:  "metadata default",
			kind:  cachecontrol.KindSingleCollection,
			class: cachecontrol.ClassMetadata,
			want:  "public, max-age=600",
		},
		{
			name:  "asset data default",
			kind:  cachecontrol.KindSingleCollection,
			class: cachecontrol.ClassAssetData,
			want:  "public, max-age=7200",
		},
		{
			name:     "collection override verbatim",
			kind:     cachecontrol.KindSingleCollection,
			class:    cachecontrol.ClassAssetData,
			override: "public, max-age=31536000, immutable",
			want:     "public, max-age=31536000, immutable",
		},
		{
			name:  "aggregate ignores defaults",
			kind:  cachecontrol.KindAggregate,
			class: cachecontrol.ClassMetadata,
			want:  "max-age=0, no-cache, no-store, must-revalidate",
		},
		{
			name:     "aggregate ignores override",
			kind:     cachecontrol.KindAggregate,
			class:    cachecontrol.ClassMetadata,
			override: "public, max-age=31536000",
			want:     "max-age=0, no-cache, no-store, must-revalidate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolver.Resolve(tt.kind, tt.class, tt.override)
			require.Equal(t, tt.want, got)
		})
	}
}
