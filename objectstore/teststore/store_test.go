// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

package teststore_test

import (
	"crypto/md5"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"geostac.io/geostac/internal/testcontext"
	"geostac.io/geostac/objectstore"
	"geostac.io/geostac/objectstore/teststore"
)

func md5Base64(data []byte) string {
	sum := md5.Sum(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func TestMultipartLifecycle(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := teststore.New()

	uploadID, err := store.CreateMultipartUpload(ctx, "c1/i1/a1.tif", objectstore.UploadOptions{
		ContentType: "image/tiff; application=geotiff",
		SHA256Hex:   "ab",
	})
	require.NoError(t, err)
	require.NotEmpty(t, uploadID)

	first, second := []byte("first part"), []byte("second part")

	urlInfo, err := store.PresignPart(ctx, "c1/i1/a1.tif", uploadID, 1, md5Base64(first), time.Hour)
	require.NoError(t, err)
	require.Contains(t, urlInfo.URL, "partNumber=1")

	etag1, err := store.UploadPart("c1/i1/a1.tif", uploadID, 1, first, md5Base64(first))
	require.NoError(t, err)
	etag2, err := store.UploadPart("c1/i1/a1.tif", uploadID, 2, second, md5Base64(second))
	require.NoError(t, err)

	// md5 mismatch is refused, like S3 does with Content-MD5
	_, err = store.UploadPart("c1/i1/a1.tif", uploadID, 3, first, md5Base64(second))
	require.True(t, objectstore.ErrRejected.Has(err))

	parts, more, err := store.ListParts(ctx, "c1/i1/a1.tif", uploadID, 0, 1)
	require.NoError(t, err)
	require.True(t, more)
	require.Len(t, parts, 1)
	require.Equal(t, 1, parts[0].PartNumber)

	parts, more, err = store.ListParts(ctx, "c1/i1/a1.tif", uploadID, 1, 100)
	require.NoError(t, err)
	require.False(t, more)
	require.Len(t, parts, 1)
	require.Equal(t, 2, parts[0].PartNumber)

	// wrong etag at completion leaves the upload open
	_, err = store.CompleteMultipartUpload(ctx, "c1/i1/a1.tif", uploadID, []objectstore.CompletedPart{
		{PartNumber: 1, ETag: etag1},
		{PartNumber: 2, ETag: `"bogus"`},
	})
	require.True(t, objectstore.ErrRejected.Has(err))
	require.Equal(t, 1, store.OpenUploads())

	object, err := store.CompleteMultipartUpload(ctx, "c1/i1/a1.tif", uploadID, []objectstore.CompletedPart{
		{PartNumber: 1, ETag: etag1},
		{PartNumber: 2, ETag: etag2},
	})
	require.NoError(t, err)
	require.Equal(t, int64(len(first)+len(second)), object.Size)
	require.Equal(t, "ab", object.SHA256Hex)
	require.Equal(t, 0, store.OpenUploads())

	stat, err := store.Stat(ctx, "c1/i1/a1.tif")
	require.NoError(t, err)
	require.Equal(t, object.ETag, stat.ETag)

	// the upload id is gone after completion
	err = store.AbortMultipartUpload(ctx, "c1/i1/a1.tif", uploadID)
	require.True(t, objectstore.ErrUploadNotFound.Has(err))
}

func TestAbortDeletesParts(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := teststore.New()

	uploadID, err := store.CreateMultipartUpload(ctx, "c1/a1", objectstore.UploadOptions{})
	require.NoError(t, err)

	_, err = store.UploadPart("c1/a1", uploadID, 1, []byte("data"), "")
	require.NoError(t, err)

	require.NoError(t, store.AbortMultipartUpload(ctx, "c1/a1", uploadID))
	require.Equal(t, 0, store.OpenUploads())

	_, _, err = store.ListParts(ctx, "c1/a1", uploadID, 0, 100)
	require.True(t, objectstore.ErrUploadNotFound.Has(err))
}

func TestForcedError(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := teststore.New()
	store.ForcedError = objectstore.Error.New("backend down")

	_, err := store.CreateMultipartUpload(ctx, "c1/a1", objectstore.UploadOptions{})
	require.True(t, objectstore.ErrUnavailable.Has(err))
}
