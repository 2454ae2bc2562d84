// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

package catalogdb_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"geostac.io/geostac/catalog"
	"geostac.io/geostac/catalog/catalogdb"
	"geostac.io/geostac/catalog/uploads"
	"geostac.io/geostac/internal/testcontext"
	"geostac.io/geostac/stac"
)

const testChecksum = "12203e4c93e9021f395dfc434c26465a55d4a4f1ba8ab5a0280b953aa97435ff8946"

func openDB(t *testing.T, ctx *testcontext.Context) *catalogdb.DB {
	db, err := catalogdb.Open(ctx, zaptest.NewLogger(t), "sqlite3://"+ctx.File("catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	require.NoError(t, db.MigrateToLatest(ctx))
	return db
}

func seedAsset(t *testing.T, ctx *testcontext.Context, db *catalogdb.DB) stac.AssetRef {
	_, err := db.Collections().Create(ctx, &stac.Collection{Name: "swiss-maps"})
	require.NoError(t, err)
	_, err = db.Items().Create(ctx, &stac.Item{Collection: "swiss-maps", Name: "bern-2026"})
	require.NoError(t, err)
	asset, err := db.Assets().Create(ctx, &stac.Asset{
		Collection: "swiss-maps",
		Item:       "bern-2026",
		Name:       "map.tiff",
		MediaType:  "image/tiff",
	})
	require.NoError(t, err)
	return asset.Ref()
}

func TestCollections(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	db := openDB(t, ctx)

	created, err := db.Collections().Create(ctx, &stac.Collection{
		Name:  "swiss-maps",
		Title: "Swiss Maps",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ETag)
	require.False(t, created.Created.IsZero())

	_, err = db.Collections().Create(ctx, &stac.Collection{Name: "swiss-maps"})
	require.True(t, catalog.ErrAlreadyExists.Has(err))

	_, err = db.Collections().Get(ctx, "missing")
	require.True(t, catalog.ErrCollectionNotFound.Has(err))

	header, err := db.Collections().CacheControlHeader(ctx, "swiss-maps")
	require.NoError(t, err)
	require.Empty(t, header)

	created.CacheControlHeader = "public, max-age=31536000"
	updated, err := db.Collections().Update(ctx, created, created.ETag)
	require.NoError(t, err)
	require.NotEqual(t, created.ETag, updated.ETag)

	_, err = db.Collections().Update(ctx, created, created.ETag)
	require.True(t, catalog.ErrPrecondition.Has(err))

	header, err = db.Collections().CacheControlHeader(ctx, "swiss-maps")
	require.NoError(t, err)
	require.Equal(t, "public, max-age=31536000", header)

	list, err := db.Collections().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestAssets(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	db := openDB(t, ctx)
	ref := seedAsset(t, ctx, db)

	asset, err := db.Assets().Get(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, int64(-1), asset.UpdateInterval)
	require.Empty(t, asset.Href)

	_, err = db.Assets().Create(ctx, &stac.Asset{
		Collection: "swiss-maps", Item: "bern-2026", Name: "map.tiff",
	})
	require.True(t, catalog.ErrAlreadyExists.Has(err))

	_, err = db.Assets().Create(ctx, &stac.Asset{
		Collection: "swiss-maps", Item: "missing", Name: "map.tiff",
	})
	require.True(t, catalog.ErrItemNotFound.Has(err))

	// collection asset, no item
	collAsset, err := db.Assets().Create(ctx, &stac.Asset{
		Collection: "swiss-maps", Name: "metadata.json", MediaType: "application/json",
	})
	require.NoError(t, err)
	require.Equal(t, "swiss-maps/metadata.json", collAsset.Ref().ObjectKey())

	list, err := db.Assets().List(ctx, "swiss-maps", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "metadata.json", list[0].Name)

	removed, err := db.Assets().Delete(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, "map.tiff", removed.Name)
	_, err = db.Assets().Get(ctx, ref)
	require.True(t, catalog.ErrAssetNotFound.Has(err))
}

func newUpload(ref stac.AssetRef, uploadID string) *uploads.Upload {
	return &uploads.Upload{
		Asset:       ref,
		UploadID:    uploadID,
		Status:      uploads.StatusInProgress,
		NumberParts: 1,
		MD5Parts:    []uploads.PartMD5{{PartNumber: 1, MD5: "yLLiDqX2OL7mDIMTa2WLcg=="}},
		Checksum:    testChecksum,
	}
}

func TestUploadsLifecycle(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	db := openDB(t, ctx)
	ref := seedAsset(t, ctx, db)

	before, err := db.Assets().Get(ctx, ref)
	require.NoError(t, err)

	created, err := db.Uploads().Create(ctx, newUpload(ref, "upload-1"))
	require.NoError(t, err)
	require.Equal(t, uploads.StatusInProgress, created.Status)
	require.NotZero(t, created.ID)
	require.True(t, created.Ended.IsZero())

	// second in-progress upload is refused with the existing id
	_, err = db.Uploads().Create(ctx, newUpload(ref, "upload-2"))
	require.True(t, uploads.ErrInProgress.Has(err))
	conflictID, ok := uploads.ConflictUploadID(err)
	require.True(t, ok)
	require.Equal(t, "upload-1", conflictID)

	inProgress, err := db.Uploads().InProgress(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, "upload-1", inProgress.UploadID)

	completed, err := db.Uploads().Complete(ctx, ref, "upload-1", 1024, "https://data.example.com/swiss-maps/bern-2026/map.tiff")
	require.NoError(t, err)
	require.Equal(t, uploads.StatusCompleted, completed.Status)
	require.Empty(t, completed.URLs)
	require.False(t, completed.Ended.IsZero())
	require.Equal(t, int64(1024), completed.FileSize)
	require.NotEqual(t, created.ETag, completed.ETag)

	// completion propagated to the asset, with a fresh etag and an
	// advanced updated timestamp
	asset, err := db.Assets().Get(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, testChecksum, asset.Checksum)
	require.Equal(t, int64(1024), asset.FileSize)
	require.Equal(t, "https://data.example.com/swiss-maps/bern-2026/map.tiff", asset.Href)
	require.NotEqual(t, before.ETag, asset.ETag)
	require.True(t, asset.Updated.After(before.Updated))

	// terminal uploads cannot transition again
	_, err = db.Uploads().Complete(ctx, ref, "upload-1", 1024, "ignored")
	require.True(t, uploads.ErrNotInProgress.Has(err))
	_, err = db.Uploads().Abort(ctx, ref, "upload-1")
	require.True(t, uploads.ErrNotInProgress.Has(err))

	// a new upload is accepted now and the href stays first-wins
	_, err = db.Uploads().Create(ctx, newUpload(ref, "upload-3"))
	require.NoError(t, err)
	_, err = db.Uploads().Complete(ctx, ref, "upload-3", 2048, "https://other.example.com/elsewhere")
	require.NoError(t, err)
	asset, err = db.Assets().Get(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, "https://data.example.com/swiss-maps/bern-2026/map.tiff", asset.Href)
	require.Equal(t, int64(2048), asset.FileSize)

	_, err = db.Uploads().Get(ctx, ref, "missing")
	require.True(t, uploads.ErrNotFound.Has(err))
}

func TestUploadsAbort(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	db := openDB(t, ctx)
	ref := seedAsset(t, ctx, db)

	_, err := db.Uploads().Create(ctx, newUpload(ref, "upload-1"))
	require.NoError(t, err)

	aborted, err := db.Uploads().Abort(ctx, ref, "upload-1")
	require.NoError(t, err)
	require.Equal(t, uploads.StatusAborted, aborted.Status)
	require.False(t, aborted.Ended.IsZero())

	// abort does not touch the asset
	asset, err := db.Assets().Get(ctx, ref)
	require.NoError(t, err)
	require.Empty(t, asset.Checksum)

	_, err = db.Uploads().InProgress(ctx, ref)
	require.True(t, uploads.ErrNotFound.Has(err))
}

func TestUploadsList(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	db := openDB(t, ctx)
	ref := seedAsset(t, ctx, db)

	for i := 0; i < 5; i++ {
		uploadID := string(rune('a' + i))
		_, err := db.Uploads().Create(ctx, newUpload(ref, uploadID))
		require.NoError(t, err)
		_, err = db.Uploads().Abort(ctx, ref, uploadID)
		require.NoError(t, err)
	}
	_, err := db.Uploads().Create(ctx, newUpload(ref, "current"))
	require.NoError(t, err)

	page, err := db.Uploads().List(ctx, ref, uploads.ListOptions{Limit: 4})
	require.NoError(t, err)
	require.Len(t, page.Uploads, 4)
	require.True(t, page.More)
	require.Equal(t, "current", page.Uploads[0].UploadID)

	rest, err := db.Uploads().List(ctx, ref, uploads.ListOptions{Limit: 4, Cursor: page.Next})
	require.NoError(t, err)
	require.Len(t, rest.Uploads, 2)
	require.False(t, rest.More)

	aborted, err := db.Uploads().List(ctx, ref, uploads.ListOptions{Status: uploads.StatusAborted})
	require.NoError(t, err)
	require.Len(t, aborted.Uploads, 5)
}

func TestUploadsConcurrentCreate(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	db := openDB(t, ctx)
	ref := seedAsset(t, ctx, db)

	const workers = 8
	var wg sync.WaitGroup
	errors := make([]error, workers)
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errors[i] = db.Uploads().Create(ctx, newUpload(ref, string(rune('a'+i))))
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errors {
		if err == nil {
			succeeded++
			continue
		}
		require.True(t, uploads.ErrInProgress.Has(err), "unexpected error: %v", err)
	}
	require.Equal(t, 1, succeeded)
}
