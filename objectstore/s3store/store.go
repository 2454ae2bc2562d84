// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

// Package s3store implements the object storage gateway on any
// S3-compatible backend.
package s3store

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"geostac.io/geostac/objectstore"
)

var (
	mon = monkit.Package()

	// Error is the default error class for the s3store package.
	Error = errs.Class("s3store")
)

// Config holds the backend connection settings.
type Config struct {
	Endpoint      string `help:"host:port of the S3-compatible backend" default:"localhost:9000"`
	Bucket        string `help:"bucket holding all asset objects" default:"geostac-assets"`
	AccessKey     string `help:"access key for the backend" default:""`
	SecretKey     string `help:"secret key for the backend" default:""`
	Region        string `help:"backend region" default:"us-east-1"`
	UseSSL        bool   `help:"connect to the backend over https" default:"true"`
	PublicBaseURL string `help:"base url for public object downloads, defaults to the backend url" default:""`
}

// Store implements objectstore.Gateway against an S3-compatible backend.
type Store struct {
	core   *minio.Core
	config Config
}

// New connects to the backend named by config.
func New(config Config) (*Store, error) {
	core, err := minio.NewCore(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &Store{core: core, config: config}, nil
}

var _ objectstore.Gateway = (*Store)(nil)

// CreateMultipartUpload implements objectstore.Gateway.
func (store *Store) CreateMultipartUpload(ctx context.Context, key string, opts objectstore.UploadOptions) (uploadID string, err error) {
	defer mon.Task()(&ctx)(&err)

	putOpts := minio.PutObjectOptions{
		ContentType:     opts.ContentType,
		ContentEncoding: opts.ContentEncoding,
		CacheControl:    opts.CacheControl,
	}
	if opts.SHA256Hex != "" {
		putOpts.UserMetadata = map[string]string{"sha256": opts.SHA256Hex}
	}

	uploadID, err = store.core.NewMultipartUpload(ctx, store.config.Bucket, key, putOpts)
	if err != nil {
		return "", translate(err)
	}
	return uploadID, nil
}

// PresignPart implements objectstore.Gateway. The returned URL signs the
// Content-MD5 header, so the backend verifies every part against the
// md5 declared at creation.
func (store *Store) PresignPart(ctx context.Context, key, uploadID string, partNumber int, contentMD5 string, expires time.Duration) (_ objectstore.PartURL, err error) {
	defer mon.Task()(&ctx)(&err)

	values := make(url.Values)
	values.Set("uploadId", uploadID)
	values.Set("partNumber", strconv.Itoa(partNumber))

	headers := make(http.Header)
	headers.Set("Content-MD5", contentMD5)

	signed, err := store.core.Client.PresignHeader(ctx, http.MethodPut, store.config.Bucket, key, expires, values, headers)
	if err != nil {
		return objectstore.PartURL{}, translate(err)
	}
	return objectstore.PartURL{
		URL:        signed.String(),
		PartNumber: partNumber,
		Expires:    time.Now().Add(expires),
	}, nil
}

// ListParts implements objectstore.Gateway.
func (store *Store) ListParts(ctx context.Context, key, uploadID string, offset, limit int) (parts []objectstore.Part, more bool, err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := store.core.ListObjectParts(ctx, store.config.Bucket, key, uploadID, offset, limit)
	if err != nil {
		return nil, false, translate(err)
	}
	for _, part := range result.ObjectParts {
		parts = append(parts, objectstore.Part{
			PartNumber: part.PartNumber,
			ETag:       part.ETag,
			Size:       part.Size,
			Modified:   part.LastModified,
		})
	}
	return parts, result.IsTruncated, nil
}

// CompleteMultipartUpload implements objectstore.Gateway.
func (store *Store) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []objectstore.CompletedPart) (_ objectstore.Object, err error) {
	defer mon.Task()(&ctx)(&err)

	completed := make([]minio.CompletePart, 0, len(parts))
	for _, part := range parts {
		completed = append(completed, minio.CompletePart{
			PartNumber: part.PartNumber,
			ETag:       strings.Trim(part.ETag, `"`),
		})
	}

	info, err := store.core.CompleteMultipartUpload(ctx, store.config.Bucket, key, uploadID, completed, minio.PutObjectOptions{})
	if err != nil {
		return objectstore.Object{}, translate(err)
	}
	return objectstore.Object{
		Key:      key,
		Size:     info.Size,
		ETag:     info.ETag,
		Modified: info.LastModified,
	}, nil
}

// AbortMultipartUpload implements objectstore.Gateway.
func (store *Store) AbortMultipartUpload(ctx context.Context, key, uploadID string) (err error) {
	defer mon.Task()(&ctx)(&err)
	return translate(store.core.AbortMultipartUpload(ctx, store.config.Bucket, key, uploadID))
}

// Stat implements objectstore.Gateway.
func (store *Store) Stat(ctx context.Context, key string) (_ objectstore.Object, err error) {
	defer mon.Task()(&ctx)(&err)

	info, err := store.core.Client.StatObject(ctx, store.config.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return objectstore.Object{}, translate(err)
	}

	sha256Hex := info.UserMetadata["Sha256"]
	if sha256Hex == "" {
		sha256Hex = info.Metadata.Get("X-Amz-Meta-Sha256")
	}
	return objectstore.Object{
		Key:       key,
		Size:      info.Size,
		ETag:      info.ETag,
		SHA256Hex: sha256Hex,
		Modified:  info.LastModified,
	}, nil
}

// Delete implements objectstore.Gateway.
func (store *Store) Delete(ctx context.Context, key string) (err error) {
	defer mon.Task()(&ctx)(&err)
	return translate(store.core.Client.RemoveObject(ctx, store.config.Bucket, key, minio.RemoveObjectOptions{}))
}

// PublicURL implements objectstore.Gateway.
func (store *Store) PublicURL(key string) string {
	if store.config.PublicBaseURL != "" {
		return strings.TrimSuffix(store.config.PublicBaseURL, "/") + "/" + key
	}
	scheme := "http"
	if store.config.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + store.config.Endpoint + "/" + store.config.Bucket + "/" + key
}

// translate maps backend failures onto the objectstore error classes.
// Server-side failures are retryable; everything the backend refuses
// outright is not.
func translate(err error) error {
	if err == nil {
		return nil
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchUpload":
		return objectstore.ErrUploadNotFound.Wrap(err)
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return objectstore.ErrObjectNotFound.Wrap(err)
	}
	switch {
	case resp.StatusCode >= 500:
		return objectstore.ErrUnavailable.Wrap(err)
	case resp.StatusCode >= 400:
		return objectstore.ErrRejected.Wrap(err)
	}
	// No S3 error response at all, likely a network failure.
	return objectstore.ErrUnavailable.Wrap(err)
}
