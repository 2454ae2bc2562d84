// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

// Package catalog defines the database interfaces for the STAC metadata
// store: collections, items and assets. Implementations live in
// catalog/catalogdb.
package catalog

import (
	"context"

	"github.com/zeebo/errs"

	"geostac.io/geostac/stac"
)

var (
	// Error is the default error class for the catalog package.
	Error = errs.Class("catalog")

	// ErrCollectionNotFound means the referenced collection does not exist.
	ErrCollectionNotFound = errs.Class("collection not found")
	// ErrItemNotFound means the referenced item does not exist.
	ErrItemNotFound = errs.Class("item not found")
	// ErrAssetNotFound means the referenced asset does not exist.
	ErrAssetNotFound = errs.Class("asset not found")
	// ErrAlreadyExists means a row with the same natural key exists.
	ErrAlreadyExists = errs.Class("already exists")
	// ErrPrecondition means an If-Match style etag precondition failed;
	// the caller raced with another writer and must re-read.
	ErrPrecondition = errs.Class("precondition failed")
)

// DB is the metadata database.
type DB interface {
	Collections() Collections
	Items() Items
	Assets() Assets

	// MigrateToLatest brings the schema up to date.
	MigrateToLatest(ctx context.Context) error
	// Close releases the underlying connections.
	Close() error
}

// Collections gives access to collection rows.
type Collections interface {
	Create(ctx context.Context, collection *stac.Collection) (*stac.Collection, error)
	Get(ctx context.Context, name string) (*stac.Collection, error)
	// List returns all collections ordered by name.
	List(ctx context.Context) ([]stac.Collection, error)
	// CacheControlHeader returns the collection's Cache-Control override,
	// empty when unset. Fails with ErrCollectionNotFound.
	CacheControlHeader(ctx context.Context, name string) (string, error)
	// Update applies the mutable fields. When matchETag is non-empty the
	// update only succeeds if the stored etag matches, else
	// ErrPrecondition.
	Update(ctx context.Context, collection *stac.Collection, matchETag string) (*stac.Collection, error)
}

// Items gives access to item rows.
type Items interface {
	Create(ctx context.Context, item *stac.Item) (*stac.Item, error)
	Get(ctx context.Context, collection, name string) (*stac.Item, error)
	// List returns the collection's items ordered by name.
	List(ctx context.Context, collection string) ([]stac.Item, error)
}

// Assets gives access to asset rows. Collection assets use a reference
// with an empty item name.
type Assets interface {
	Create(ctx context.Context, asset *stac.Asset) (*stac.Asset, error)
	Get(ctx context.Context, ref stac.AssetRef) (*stac.Asset, error)
	// List returns the assets of an item, or of the collection itself
	// when ref.Item is empty, ordered by name.
	List(ctx context.Context, collection, item string) ([]stac.Asset, error)
	// Update applies the mutable fields with an optional etag
	// precondition, like Collections.Update.
	Update(ctx context.Context, asset *stac.Asset, matchETag string) (*stac.Asset, error)
	// Delete removes the asset row and returns the removed asset so the
	// caller can purge the storage object.
	Delete(ctx context.Context, ref stac.AssetRef) (*stac.Asset, error)
}
