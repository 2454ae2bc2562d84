// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

package uploads

import (
	"context"
	"fmt"

	"github.com/zeebo/errs"

	"geostac.io/geostac/stac"
)

var (
	// Error is the default error class for the uploads package.
	Error = errs.Class("uploads")

	// ErrValidation means the request is malformed and a retry without
	// correction will fail again.
	ErrValidation = errs.Class("invalid upload request")

	// ErrNotFound means no upload with the given id exists for the asset.
	ErrNotFound = errs.Class("upload not found")

	// ErrInProgress means another upload is already in progress for the
	// asset. The wrapped InProgressError carries its id so clients can
	// discover and abort it.
	ErrInProgress = errs.Class("upload already in progress")

	// ErrNotInProgress means the upload exists but already reached a
	// terminal status.
	ErrNotInProgress = errs.Class("upload not in progress")
)

// InProgressError carries the id of the conflicting in-progress upload.
type InProgressError struct {
	UploadID string
}

// Error implements error.
func (e *InProgressError) Error() string {
	return fmt.Sprintf("upload %s already in progress", e.UploadID)
}

// DB persists upload records and enforces the single in-progress upload
// per asset rule.
type DB interface {
	// Create inserts a new in-progress upload. When another in-progress
	// upload exists for the same asset the insert fails with ErrInProgress
	// wrapping an InProgressError, even under concurrent creation.
	Create(ctx context.Context, upload *Upload) (*Upload, error)

	// Get returns the upload with the given backend id for the asset.
	// Fails with ErrNotFound.
	Get(ctx context.Context, ref stac.AssetRef, uploadID string) (*Upload, error)

	// InProgress returns the asset's in-progress upload, or ErrNotFound
	// when there is none.
	InProgress(ctx context.Context, ref stac.AssetRef) (*Upload, error)

	// List pages through the asset's uploads, newest first.
	List(ctx context.Context, ref stac.AssetRef, opts ListOptions) (Page, error)

	// Complete transitions the upload to completed and applies the
	// declared checksum, content encoding, update interval, file size and
	// href to the asset, in one transaction. The presigned URLs are
	// cleared and both etags regenerate. Fails with ErrNotFound when the
	// upload does not exist and ErrNotInProgress when it is terminal.
	Complete(ctx context.Context, ref stac.AssetRef, uploadID string, fileSize int64, href string) (*Upload, error)

	// Abort transitions the upload to aborted, clearing the presigned
	// URLs and regenerating the etag. The asset is untouched. Same error
	// contract as Complete.
	Abort(ctx context.Context, ref stac.AssetRef, uploadID string) (*Upload, error)
}
