// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

// Package cachecontrol computes Cache-Control values for catalog reads
// and asset data.
//
// A collection may override the process-wide default with its
// cache_control_header field. Endpoints that aggregate several
// collections (search, collection listing) always use the no-cache
// value: blending per-collection freshness requirements into one cached
// response is never correct.
//
// An earlier design derived cache durations from per-asset
// update_interval hints aggregated over the collection tree; it was
// dropped for performance reasons and update_interval is inert now.
package cachecontrol

// Kind classifies an endpoint by how many collections its response
// depends on.
type Kind int

const (
	// KindSingleCollection covers reads scoped to one collection:
	// item, asset, asset data and collection-asset endpoints.
	KindSingleCollection Kind = iota
	// KindAggregate covers search and listing endpoints spanning
	// multiple collections.
	KindAggregate
)

// Class distinguishes response content for default selection.
type Class int

const (
	// ClassMetadata is API JSON metadata.
	ClassMetadata Class = iota
	// ClassAssetData is asset binary payload.
	ClassAssetData
)

// Config holds the environment-configured defaults.
type Config struct {
	Metadata  string `help:"default Cache-Control for API metadata responses" default:"public, max-age=600"`
	AssetData string `help:"default Cache-Control for asset binary data" default:"public, max-age=7200"`
	NoCache   string `help:"Cache-Control for responses that must not be cached" default:"max-age=0, no-cache, no-store, must-revalidate"`
}

// Resolver computes Cache-Control header values. It is pure: all inputs
// arrive via Config at construction and the Resolve arguments.
type Resolver struct {
	config Config
}

// New creates a Resolver.
func New(config Config) *Resolver {
	return &Resolver{config: config}
}

// Resolve returns the Cache-Control value for a response.
// collectionOverride is the collection's cache_control_header, empty
// when unset; it is ignored for aggregate endpoints.
func (resolver *Resolver) Resolve(kind Kind, class Class, collectionOverride string) string {
	if kind == KindAggregate {
		return resolver.config.NoCache
	}
	if collectionOverride != "" {
		return collectionOverride
	}
	if class == ClassAssetData {
		return resolver.config.AssetData
	}
	return resolver.config.Metadata
}

// NoCache returns the configured never-cache value, for health and
// error responses.
func (resolver *Resolver) NoCache() string {
	return resolver.config.NoCache
}
