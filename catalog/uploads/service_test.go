// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

package uploads_test

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"geostac.io/geostac/catalog"
	"geostac.io/geostac/catalog/cachecontrol"
	"geostac.io/geostac/catalog/catalogdb"
	"geostac.io/geostac/catalog/uploads"
	"geostac.io/geostac/internal/testcontext"
	"geostac.io/geostac/objectstore"
	"geostac.io/geostac/objectstore/teststore"
	"geostac.io/geostac/stac"
)

type testEnv struct {
	db      *catalogdb.DB
	store   *teststore.Client
	service *uploads.Service
	ref     stac.AssetRef
}

func newEnv(t *testing.T, ctx *testcontext.Context) *testEnv {
	log := zaptest.NewLogger(t)

	db, err := catalogdb.Open(ctx, log, "sqlite3://"+ctx.File("catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	require.NoError(t, db.MigrateToLatest(ctx))

	_, err = db.Collections().Create(ctx, &stac.Collection{Name: "swiss-maps"})
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

	store := teststore.New()
	resolver := cachecontrol.New(cachecontrol.Config{
		Metadata:  "public, max-age=600",
		AssetData: "public, max-age=7200",
		NoCache:   "max-age=0, no-cache, no-store, must-revalidate",
	})
	service := uploads.NewService(log, db.Uploads(), db.Assets(), db.Collections(), store, resolver, uploads.Config{})

	return &testEnv{db: db, store: store, service: service, ref: asset.Ref()}
}

func declare(data []byte) (req uploads.CreateRequest, contentMD5 string) {
	sum := sha256.Sum256(data)
	checksum, err := stac.ChecksumFromSHA256Hex(hex.EncodeToString(sum[:]))
	if err != nil {
		panic(err)
	}
	md5sum := md5.Sum(data)
	contentMD5 = base64.StdEncoding.EncodeToString(md5sum[:])
	return uploads.CreateRequest{
		NumberParts:    1,
		MD5Parts:       []uploads.PartMD5{{PartNumber: 1, MD5: contentMD5}},
		Checksum:       checksum,
		UpdateInterval: -1,
	}, contentMD5
}

func TestCreateCompleteHappyPath(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	env := newEnv(t, ctx)

	data := []byte("geodata payload")
	req, contentMD5 := declare(data)

	upload, err := env.service.Create(ctx, env.ref, req)
	require.NoError(t, err)
	require.Equal(t, uploads.StatusInProgress, upload.Status)
	require.Len(t, upload.URLs, 1)
	require.Equal(t, 1, upload.URLs[0].PartNumber)

	etag, err := env.store.UploadPart(env.ref.ObjectKey(), upload.UploadID, 1, data, contentMD5)
	require.NoError(t, err)

	completed, err := env.service.Complete(ctx, env.ref, upload.UploadID,
		[]objectstore.CompletedPart{{PartNumber: 1, ETag: etag}})
	require.NoError(t, err)
	require.Equal(t, uploads.StatusCompleted, completed.Status)
	require.Equal(t, int64(len(data)), completed.FileSize)
	require.Empty(t, completed.URLs)

	asset, err := env.db.Assets().Get(ctx, env.ref)
	require.NoError(t, err)
	require.Equal(t, req.Checksum, asset.Checksum)
	require.Equal(t, int64(len(data)), asset.FileSize)
	require.Equal(t, env.store.PublicURL(env.ref.ObjectKey()), asset.Href)

	object, ok := env.store.GetObject(env.ref.ObjectKey())
	require.True(t, ok)
	require.Equal(t, data, object.Data)
	require.Equal(t, "image/tiff", object.Opts.ContentType)
	require.Equal(t, "public, max-age=7200", object.Opts.CacheControl)
	require.Zero(t, env.store.OpenUploads())
}

func TestCreateConflict(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	env := newEnv(t, ctx)

	req, _ := declare([]byte("first"))
	first, err := env.service.Create(ctx, env.ref, req)
	require.NoError(t, err)

	// the conflict names the blocking upload and leaves no orphan behind
	req2, _ := declare([]byte("second"))
	_, err = env.service.Create(ctx, env.ref, req2)
	require.True(t, uploads.ErrInProgress.Has(err))
	conflictID, ok := uploads.ConflictUploadID(err)
	require.True(t, ok)
	require.Equal(t, first.UploadID, conflictID)
	require.Equal(t, 1, env.store.OpenUploads())

	// discover, abort, retry
	_, err = env.service.Abort(ctx, env.ref, conflictID)
	require.NoError(t, err)
	retried, err := env.service.Create(ctx, env.ref, req2)
	require.NoError(t, err)
	require.NotEqual(t, first.UploadID, retried.UploadID)
}

func TestCreateValidation(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	env := newEnv(t, ctx)

	good, _ := declare([]byte("data"))

	bad := good
	bad.NumberParts = 0
	_, err := env.service.Create(ctx, env.ref, bad)
	require.True(t, uploads.ErrValidation.Has(err))

	bad = good
	bad.NumberParts = 2
	_, err = env.service.Create(ctx, env.ref, bad)
	require.True(t, uploads.ErrValidation.Has(err))

	// over the part limit, with a matching md5 count so only the bound
	// can fail
	bad = good
	bad.NumberParts = 101
	bad.MD5Parts = make([]uploads.PartMD5, 101)
	for i := range bad.MD5Parts {
		bad.MD5Parts[i] = uploads.PartMD5{PartNumber: i + 1, MD5: good.MD5Parts[0].MD5}
	}
	_, err = env.service.Create(ctx, env.ref, bad)
	require.True(t, uploads.ErrValidation.Has(err))

	bad = good
	bad.MD5Parts = []uploads.PartMD5{{PartNumber: 1, MD5: "not base64!"}}
	_, err = env.service.Create(ctx, env.ref, bad)
	require.True(t, uploads.ErrValidation.Has(err))

	bad = good
	bad.Checksum = "deadbeef"
	_, err = env.service.Create(ctx, env.ref, bad)
	require.True(t, uploads.ErrValidation.Has(err))

	bad = good
	bad.ContentEncoding = "zstd"
	_, err = env.service.Create(ctx, env.ref, bad)
	require.True(t, uploads.ErrValidation.Has(err))

	bad = good
	bad.UpdateInterval = 9999
	_, err = env.service.Create(ctx, env.ref, bad)
	require.True(t, uploads.ErrValidation.Has(err))

	// nothing reached the backend
	require.Zero(t, env.store.CallCount.Create)

	_, err = env.service.Create(ctx, stac.AssetRef{Collection: "swiss-maps", Item: "bern-2026", Asset: "nope"}, good)
	require.True(t, catalog.ErrAssetNotFound.Has(err))
}

func TestCreateExternalAssetRefused(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	env := newEnv(t, ctx)

	external, err := env.db.Assets().Create(ctx, &stac.Asset{
		Collection: "swiss-maps",
		Item:       "bern-2026",
		Name:       "external.json",
		Href:       "https://elsewhere.example.com/external.json",
		IsExternal: true,
	})
	require.NoError(t, err)

	req, _ := declare([]byte("data"))
	_, err = env.service.Create(ctx, external.Ref(), req)
	require.True(t, uploads.ErrValidation.Has(err))
	require.Zero(t, env.store.CallCount.Create)
}

func TestCompletePartCountMismatch(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	env := newEnv(t, ctx)

	partA := []byte("part a")
	partB := []byte("part b")
	whole := append(append([]byte(nil), partA...), partB...)
	sum := sha256.Sum256(whole)
	checksum, err := stac.ChecksumFromSHA256Hex(hex.EncodeToString(sum[:]))
	require.NoError(t, err)

	md5A := md5.Sum(partA)
	md5B := md5.Sum(partB)
	req := uploads.CreateRequest{
		NumberParts: 2,
		MD5Parts: []uploads.PartMD5{
			{PartNumber: 1, MD5: base64.StdEncoding.EncodeToString(md5A[:])},
			{PartNumber: 2, MD5: base64.StdEncoding.EncodeToString(md5B[:])},
		},
		Checksum:       checksum,
		UpdateInterval: -1,
	}

	upload, err := env.service.Create(ctx, env.ref, req)
	require.NoError(t, err)
	require.Len(t, upload.URLs, 2)

	etagA, err := env.store.UploadPart(env.ref.ObjectKey(), upload.UploadID, 1, partA, req.MD5Parts[0].MD5)
	require.NoError(t, err)

	// too few parts fails and leaves the upload in progress
	_, err = env.service.Complete(ctx, env.ref, upload.UploadID,
		[]objectstore.CompletedPart{{PartNumber: 1, ETag: etagA}})
	require.True(t, uploads.ErrValidation.Has(err))

	current, err := env.service.Get(ctx, env.ref, upload.UploadID)
	require.NoError(t, err)
	require.Equal(t, uploads.StatusInProgress, current.Status)

	etagB, err := env.store.UploadPart(env.ref.ObjectKey(), upload.UploadID, 2, partB, req.MD5Parts[1].MD5)
	require.NoError(t, err)

	completed, err := env.service.Complete(ctx, env.ref, upload.UploadID, []objectstore.CompletedPart{
		{PartNumber: 1, ETag: etagA},
		{PartNumber: 2, ETag: etagB},
	})
	require.NoError(t, err)
	require.Equal(t, int64(len(whole)), completed.FileSize)
}

func TestParts(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	env := newEnv(t, ctx)

	data := []byte("payload")
	req, contentMD5 := declare(data)
	upload, err := env.service.Create(ctx, env.ref, req)
	require.NoError(t, err)

	parts, more, err := env.service.Parts(ctx, env.ref, upload.UploadID, 0, 0)
	require.NoError(t, err)
	require.Empty(t, parts)
	require.False(t, more)

	_, err = env.store.UploadPart(env.ref.ObjectKey(), upload.UploadID, 1, data, contentMD5)
	require.NoError(t, err)

	parts, _, err = env.service.Parts(ctx, env.ref, upload.UploadID, 0, 0)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	require.Equal(t, int64(len(data)), parts[0].Size)

	_, err = env.service.Abort(ctx, env.ref, upload.UploadID)
	require.NoError(t, err)

	// terminal uploads have no listable parts
	_, _, err = env.service.Parts(ctx, env.ref, upload.UploadID, 0, 0)
	require.True(t, uploads.ErrNotFound.Has(err))
}

func TestAbortTwice(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	env := newEnv(t, ctx)

	req, _ := declare([]byte("data"))
	upload, err := env.service.Create(ctx, env.ref, req)
	require.NoError(t, err)

	aborted, err := env.service.Abort(ctx, env.ref, upload.UploadID)
	require.NoError(t, err)
	require.Equal(t, uploads.StatusAborted, aborted.Status)
	require.Zero(t, env.store.OpenUploads())

	_, err = env.service.Abort(ctx, env.ref, upload.UploadID)
	require.True(t, uploads.ErrNotInProgress.Has(err))

	_, err = env.service.Abort(ctx, env.ref, "missing")
	require.True(t, uploads.ErrNotFound.Has(err))
}

func TestCompleteReconciliation(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	env := newEnv(t, ctx)

	data := []byte("survived a crash")
	req, contentMD5 := declare(data)
	upload, err := env.service.Create(ctx, env.ref, req)
	require.NoError(t, err)

	etag, err := env.store.UploadPart(env.ref.ObjectKey(), upload.UploadID, 1, data, contentMD5)
	require.NoError(t, err)

	// the backend finalized but the catalog never heard about it
	_, err = env.store.CompleteMultipartUpload(ctx, env.ref.ObjectKey(), upload.UploadID,
		[]objectstore.CompletedPart{{PartNumber: 1, ETag: etag}})
	require.NoError(t, err)

	completed, err := env.service.Complete(ctx, env.ref, upload.UploadID,
		[]objectstore.CompletedPart{{PartNumber: 1, ETag: etag}})
	require.NoError(t, err)
	require.Equal(t, uploads.StatusCompleted, completed.Status)
	require.Equal(t, int64(len(data)), completed.FileSize)
}

func TestCompleteUnknownUploadWithoutObject(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	env := newEnv(t, ctx)

	req, _ := declare([]byte("data"))
	upload, err := env.service.Create(ctx, env.ref, req)
	require.NoError(t, err)

	// backend lost the upload and no object exists either
	require.NoError(t, env.store.AbortMultipartUpload(ctx, env.ref.ObjectKey(), upload.UploadID))

	_, err = env.service.Complete(ctx, env.ref, upload.UploadID,
		[]objectstore.CompletedPart{{PartNumber: 1, ETag: `"whatever"`}})
	require.True(t, uploads.ErrNotFound.Has(err))

	// the record is still in progress, the client can abort it
	_, err = env.service.Abort(ctx, env.ref, upload.UploadID)
	require.NoError(t, err)
}

func TestBackendUnavailable(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	env := newEnv(t, ctx)

	env.store.ForcedError = objectstore.Error.New("backend down")

	req, _ := declare([]byte("data"))
	_, err := env.service.Create(ctx, env.ref, req)
	require.True(t, objectstore.ErrUnavailable.Has(err))
}
