// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

// Package uploads orchestrates multipart asset uploads.
//
// The service owns the stateful part of the upload protocol: it records
// every attempt in the catalog database, drives the object storage
// gateway and keeps the two in agreement. Part data never passes through
// this process; clients PUT it directly to the presigned URLs.
package uploads

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"

	"geostac.io/geostac/catalog"
	"geostac.io/geostac/catalog/cachecontrol"
	"geostac.io/geostac/objectstore"
	"geostac.io/geostac/stac"
)

var mon = monkit.Package()

// Config holds the upload service settings.
type Config struct {
	PresignedExpiry time.Duration `help:"validity window of presigned part upload URLs" default:"1h"`
	ListLimit       int           `help:"default and maximum page size for upload and part listings" default:"100"`
}

// Service coordinates upload state between the catalog database and the
// object storage gateway.
//
// Gateway failures surface unchanged: objectstore.ErrUnavailable means
// the client should retry with backoff of at least 100ms, everything
// else is terminal for the request.
type Service struct {
	log     *zap.Logger
	db      DB
	assets  catalog.Assets
	colls   catalog.Collections
	gateway objectstore.Gateway
	cache   *cachecontrol.Resolver
	config  Config
}

// NewService creates an upload service.
func NewService(log *zap.Logger, db DB, assets catalog.Assets, colls catalog.Collections, gateway objectstore.Gateway, cache *cachecontrol.Resolver, config Config) *Service {
	if config.ListLimit <= 0 {
		config.ListLimit = 100
	}
	if config.PresignedExpiry <= 0 {
		config.PresignedExpiry = time.Hour
	}
	return &Service{
		log:     log,
		db:      db,
		assets:  assets,
		colls:   colls,
		gateway: gateway,
		cache:   cache,
		config:  config,
	}
}

// Create starts a multipart upload for the asset. The request fixes the
// part count, per-part md5s and the target checksum; the returned upload
// carries one presigned URL per declared part.
//
// When an upload is already in progress for the asset, Create fails with
// ErrInProgress wrapping an InProgressError that names the conflicting
// upload id. Uploads to external assets are refused.
func (service *Service) Create(ctx context.Context, ref stac.AssetRef, req CreateRequest) (_ *Upload, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	asset, err := service.assets.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if asset.IsExternal {
		return nil, ErrValidation.New("upload is not supported for external assets")
	}

	// Cheap pre-check; the insert below still enforces the invariant
	// under races.
	if existing, err := service.db.InProgress(ctx, ref); err == nil {
		return nil, ErrInProgress.Wrap(&InProgressError{UploadID: existing.UploadID})
	} else if !ErrNotFound.Has(err) {
		return nil, err
	}

	sha256Hex, err := stac.ChecksumSHA256Hex(req.Checksum)
	if err != nil {
		return nil, ErrValidation.Wrap(err)
	}

	override, err := service.colls.CacheControlHeader(ctx, ref.Collection)
	if err != nil {
		return nil, err
	}

	key := ref.ObjectKey()
	uploadID, err := service.gateway.CreateMultipartUpload(ctx, key, objectstore.UploadOptions{
		ContentType:     asset.MediaType,
		ContentEncoding: req.ContentEncoding,
		CacheControl:    service.cache.Resolve(cachecontrol.KindSingleCollection, cachecontrol.ClassAssetData, override),
		SHA256Hex:       sha256Hex,
	})
	if err != nil {
		return nil, err
	}

	urls, err := service.presignParts(ctx, key, uploadID, req.MD5Parts)
	if err != nil {
		service.abandonBackendUpload(ctx, key, uploadID)
		return nil, err
	}

	upload, err := service.db.Create(ctx, &Upload{
		Asset:           ref,
		UploadID:        uploadID,
		Status:          StatusInProgress,
		NumberParts:     req.NumberParts,
		MD5Parts:        sortedParts(req.MD5Parts),
		URLs:            urls,
		Checksum:        req.Checksum,
		ContentEncoding: req.ContentEncoding,
		UpdateInterval:  req.UpdateInterval,
	})
	if err != nil {
		// Lost a race or the database failed; either way the backend
		// upload we just opened is orphaned.
		service.abandonBackendUpload(ctx, key, uploadID)
		return nil, err
	}

	service.log.Info("upload created",
		zap.String("key", key),
		zap.String("upload_id", uploadID),
		zap.Int("number_parts", req.NumberParts))
	return upload, nil
}

func (service *Service) presignParts(ctx context.Context, key, uploadID string, parts []PartMD5) ([]objectstore.PartURL, error) {
	parts = sortedParts(parts)
	urls := make([]objectstore.PartURL, 0, len(parts))
	for _, part := range parts {
		url, err := service.gateway.PresignPart(ctx, key, uploadID, part.PartNumber, part.MD5, service.config.PresignedExpiry)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// abandonBackendUpload aborts a backend upload that never made it into
// the database. Best effort: a leftover upload only wastes backend
// storage until its lifecycle expiry.
func (service *Service) abandonBackendUpload(ctx context.Context, key, uploadID string) {
	if err := service.gateway.AbortMultipartUpload(ctx, key, uploadID); err != nil {
		service.log.Warn("failed to abort orphaned backend upload",
			zap.String("key", key),
			zap.String("upload_id", uploadID),
			zap.Error(err))
	}
}

// Get returns the upload with the given backend id for the asset.
func (service *Service) Get(ctx context.Context, ref stac.AssetRef, uploadID string) (_ *Upload, err error) {
	defer mon.Task()(&ctx)(&err)
	return service.db.Get(ctx, ref, uploadID)
}

// List pages through the asset's uploads, newest first.
func (service *Service) List(ctx context.Context, ref stac.AssetRef, opts ListOptions) (_ Page, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := service.assets.Get(ctx, ref); err != nil {
		return Page{}, err
	}
	if opts.Status != "" && !opts.Status.Valid() {
		return Page{}, ErrValidation.New("unknown status %q", opts.Status)
	}
	if opts.Limit <= 0 || opts.Limit > service.config.ListLimit {
		opts.Limit = service.config.ListLimit
	}
	return service.db.List(ctx, ref, opts)
}

// Parts lists the parts uploaded to the backend so far, starting after
// part number offset. Only in-progress uploads have listable parts.
func (service *Service) Parts(ctx context.Context, ref stac.AssetRef, uploadID string, offset, limit int) (parts []objectstore.Part, more bool, err error) {
	defer mon.Task()(&ctx)(&err)

	upload, err := service.db.Get(ctx, ref, uploadID)
	if err != nil {
		return nil, false, err
	}
	if upload.Status != StatusInProgress {
		return nil, false, ErrNotFound.New("upload %s is %s", uploadID, upload.Status)
	}
	if limit <= 0 || limit > service.config.ListLimit {
		limit = service.config.ListLimit
	}
	return service.gateway.ListParts(ctx, ref.ObjectKey(), uploadID, offset, limit)
}

// Complete finalizes the upload from the parts the client uploaded. On
// success the asset reflects the declared checksum, content encoding and
// update interval, its file size and href, and the upload is terminal.
//
// A part count or etag mismatch fails with ErrValidation and leaves the
// upload in progress so the client can re-upload and retry. When the
// backend no longer knows the upload but the finalized object already
// matches the declared checksum, the catalog record is reconciled as
// completed; this heals a crash between backend completion and the
// database transition.
func (service *Service) Complete(ctx context.Context, ref stac.AssetRef, uploadID string, parts []objectstore.CompletedPart) (_ *Upload, err error) {
	defer mon.Task()(&ctx)(&err)

	upload, err := service.db.Get(ctx, ref, uploadID)
	if err != nil {
		return nil, err
	}
	if upload.Status != StatusInProgress {
		return nil, ErrNotInProgress.New("upload %s is %s", uploadID, upload.Status)
	}

	if len(parts) == 0 {
		return nil, ErrValidation.New("parts must not be empty")
	}
	if len(parts) > upload.NumberParts {
		return nil, ErrValidation.New("too many parts: expected %d, got %d", upload.NumberParts, len(parts))
	}
	if len(parts) < upload.NumberParts {
		return nil, ErrValidation.New("too few parts: expected %d, got %d", upload.NumberParts, len(parts))
	}

	key := ref.ObjectKey()
	object, err := service.gateway.CompleteMultipartUpload(ctx, key, uploadID, parts)
	switch {
	case err == nil:
	case objectstore.ErrUploadNotFound.Has(err):
		object, err = service.reconcileCompleted(ctx, key, upload)
		if err != nil {
			return nil, err
		}
	case objectstore.ErrRejected.Has(err):
		return nil, ErrValidation.Wrap(err)
	default:
		return nil, err
	}

	if object.Size == 0 && object.Key != "" {
		// Some backends omit the size from the completion response.
		if stat, statErr := service.gateway.Stat(ctx, key); statErr == nil {
			object = stat
		}
	}

	completed, err := service.db.Complete(ctx, ref, uploadID, object.Size, service.gateway.PublicURL(key))
	if err != nil {
		return nil, err
	}

	service.log.Info("upload completed",
		zap.String("key", key),
		zap.String("upload_id", uploadID),
		zap.Int64("file_size", object.Size))
	return completed, nil
}

// reconcileCompleted handles a backend that reports the upload unknown.
// The upload is still in progress in the database, so either it never
// existed on the backend or a previous completion finalized the object
// without reaching the database. Only when the stored object's sha256
// matches the declared checksum is the latter assumed.
func (service *Service) reconcileCompleted(ctx context.Context, key string, upload *Upload) (objectstore.Object, error) {
	wantSHA256, err := stac.ChecksumSHA256Hex(upload.Checksum)
	if err != nil {
		return objectstore.Object{}, Error.Wrap(err)
	}

	object, err := service.gateway.Stat(ctx, key)
	if err != nil {
		if objectstore.ErrObjectNotFound.Has(err) {
			return objectstore.Object{}, ErrNotFound.New("upload %s not found on backend", upload.UploadID)
		}
		return objectstore.Object{}, err
	}
	if object.SHA256Hex != wantSHA256 {
		return objectstore.Object{}, ErrNotFound.New("upload %s not found on backend", upload.UploadID)
	}

	service.log.Warn("reconciled completed upload from backend object",
		zap.String("key", key),
		zap.String("upload_id", upload.UploadID))
	return object, nil
}

// Abort aborts an in-progress upload and deletes its parts from the
// backend. Completed and aborted uploads cannot be aborted.
func (service *Service) Abort(ctx context.Context, ref stac.AssetRef, uploadID string) (_ *Upload, err error) {
	defer mon.Task()(&ctx)(&err)

	upload, err := service.db.Get(ctx, ref, uploadID)
	if err != nil {
		return nil, err
	}
	if upload.Status != StatusInProgress {
		return nil, ErrNotInProgress.New("upload %s is %s", uploadID, upload.Status)
	}

	key := ref.ObjectKey()
	if err := service.gateway.AbortMultipartUpload(ctx, key, uploadID); err != nil {
		if !objectstore.ErrUploadNotFound.Has(err) {
			return nil, err
		}
		service.log.Warn("backend upload already gone during abort",
			zap.String("key", key),
			zap.String("upload_id", uploadID))
	}

	aborted, err := service.db.Abort(ctx, ref, uploadID)
	if err != nil {
		return nil, err
	}

	service.log.Info("upload aborted",
		zap.String("key", key),
		zap.String("upload_id", uploadID))
	return aborted, nil
}

// ConflictUploadID extracts the in-progress upload id from an
// ErrInProgress error, for conflict responses.
func ConflictUploadID(err error) (string, bool) {
	var conflict *InProgressError
	if errors.As(err, &conflict) {
		return conflict.UploadID, true
	}
	return "", false
}

func sortedParts(parts []PartMD5) []PartMD5 {
	out := append([]PartMD5(nil), parts...)
	sort.Slice(out, func(i, j int) bool { return out[i].PartNumber < out[j].PartNumber })
	return out
}
