// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

// Package objectstore defines the object storage gateway used for asset
// data. The gateway issues presigned part-upload URLs and performs the
// multipart upload primitives; clients upload part data directly to the
// backend, never through this process.
package objectstore

import (
	"context"
	"time"

	"github.com/zeebo/errs"
)

var (
	// Error is the default error class for the objectstore package.
	Error = errs.Class("objectstore")

	// ErrUnavailable means the storage backend failed transiently and the
	// operation may be retried with backoff.
	ErrUnavailable = errs.Class("object storage unavailable")

	// ErrRejected means the storage backend permanently refused the
	// operation, for example an etag mismatch at completion. Retrying
	// without correcting the request will not help.
	ErrRejected = errs.Class("object storage rejected request")

	// ErrUploadNotFound means the referenced multipart upload does not
	// exist on the backend (never created, already completed or aborted).
	ErrUploadNotFound = errs.Class("multipart upload not found")

	// ErrObjectNotFound means the referenced object does not exist.
	ErrObjectNotFound = errs.Class("object not found")
)

// UploadOptions carries the object metadata set at multipart creation
// and kept on the finalized object.
type UploadOptions struct {
	ContentType     string
	ContentEncoding string
	CacheControl    string

	// SHA256Hex is stored as the object's sha256 metadata so readers can
	// compare it against the catalog's multihash checksum.
	SHA256Hex string
}

// PartURL is one presigned part-upload URL with its expiry.
type PartURL struct {
	URL        string    `json:"url"`
	PartNumber int       `json:"part"`
	Expires    time.Time `json:"expires"`
}

// Part describes one uploaded part as recorded by the backend.
type Part struct {
	PartNumber int       `json:"part_number"`
	ETag       string    `json:"etag"`
	Size       int64     `json:"size"`
	Modified   time.Time `json:"modified"`
}

// CompletedPart references an uploaded part in a completion request.
type CompletedPart struct {
	PartNumber int
	ETag       string
}

// Object describes a stored object.
type Object struct {
	Key       string
	Size      int64
	ETag      string
	SHA256Hex string
	Modified  time.Time
}

// Gateway is the object storage backend for asset data.
//
// All operations report backend failures through the ErrUnavailable and
// ErrRejected classes so callers can distinguish retryable conditions.
type Gateway interface {
	// CreateMultipartUpload starts a multipart upload for key and returns
	// the backend-issued upload id.
	CreateMultipartUpload(ctx context.Context, key string, opts UploadOptions) (uploadID string, err error)

	// PresignPart returns a time-limited URL granting a single part PUT.
	// The client must send the Content-MD5 header with the declared md5.
	PresignPart(ctx context.Context, key, uploadID string, partNumber int, contentMD5 string, expires time.Duration) (PartURL, error)

	// ListParts returns up to limit parts already uploaded, starting after
	// part number offset, and whether more parts follow.
	ListParts(ctx context.Context, key, uploadID string, offset, limit int) (parts []Part, more bool, err error)

	// CompleteMultipartUpload finalizes the object from the given parts.
	// The backend verifies each part's etag; a mismatch or a missing part
	// fails with ErrRejected and leaves the upload open.
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) (Object, error)

	// AbortMultipartUpload aborts the upload and deletes any uploaded
	// parts. Destructive and irreversible.
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error

	// Stat returns the metadata of a finalized object.
	Stat(ctx context.Context, key string) (Object, error)

	// Delete removes a finalized object.
	Delete(ctx context.Context, key string) error

	// PublicURL returns the canonical download location for key. It does
	// not imply the object exists.
	PublicURL(key string) string
}
