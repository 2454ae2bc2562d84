// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

// Package stac contains the core domain types shared by the catalog
// database, the upload orchestrator and the HTTP API.
package stac

import (
	"time"

	"github.com/zeebo/errs"
)

// Error is the default error class for the stac package.
var Error = errs.Class("stac")

// Collection is a STAC collection. Geometry and extent aggregation are
// handled elsewhere; only the fields the API and the cache policy need
// are modeled here.
type Collection struct {
	Name        string
	Title       string
	Description string
	License     string

	// CacheControlHeader overrides the process-wide Cache-Control default
	// for all single-collection reads when non-empty.
	CacheControlHeader string

	Created time.Time
	Updated time.Time
	ETag    string
}

// Item is a STAC item inside a collection.
type Item struct {
	Collection string
	Name       string

	// GeometryJSON is stored verbatim; extent computation is out of scope.
	GeometryJSON string
	Datetime     time.Time

	Created time.Time
	Updated time.Time
	ETag    string
}

// Asset is one binary file attached to an item, or directly to a
// collection when Item is empty.
type Asset struct {
	Collection string
	Item       string
	Name       string

	MediaType string

	// Href is empty until the first upload completes. For external assets
	// it is set by hand and uploads are refused.
	Href       string
	IsExternal bool

	// Checksum is a hex-encoded sha2-256 multihash of the current content.
	Checksum        string
	ContentEncoding string

	// UpdateInterval is deprecated and inert; kept for API compatibility.
	UpdateInterval int64

	FileSize int64

	Created time.Time
	Updated time.Time
	ETag    string
}

// Ref returns the asset's reference.
func (asset *Asset) Ref() AssetRef {
	return AssetRef{Collection: asset.Collection, Item: asset.Item, Asset: asset.Name}
}

// AssetRef identifies an asset. Item is empty for collection assets.
type AssetRef struct {
	Collection string
	Item       string
	Asset      string
}

// ObjectKey returns the object storage key for the asset, mirroring the
// catalog hierarchy.
func (ref AssetRef) ObjectKey() string {
	if ref.Item == "" {
		return ref.Collection + "/" + ref.Asset
	}
	return ref.Collection + "/" + ref.Item + "/" + ref.Asset
}

// IsZero reports whether the reference is empty.
func (ref AssetRef) IsZero() bool { return ref == AssetRef{} }
