// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"geostac.io/geostac/catalog"
	"geostac.io/geostac/catalog/cachecontrol"
	"geostac.io/geostac/catalog/uploads"
	"geostac.io/geostac/stac"
)

type assetJSON struct {
	ID              string    `json:"id"`
	MediaType       string    `json:"media_type,omitempty"`
	Href            string    `json:"href,omitempty"`
	IsExternal      bool      `json:"is_external,omitempty"`
	Checksum        string    `json:"file:checksum,omitempty"`
	ContentEncoding string    `json:"content_encoding,omitempty"`
	UpdateInterval  int64     `json:"update_interval"`
	FileSize        int64     `json:"file_size,omitempty"`
	Created         time.Time `json:"created"`
	Updated         time.Time `json:"updated"`
	ETag            string    `json:"etag"`
}

func toAssetJSON(asset *stac.Asset) assetJSON {
	return assetJSON{
		ID:              asset.Name,
		MediaType:       asset.MediaType,
		Href:            asset.Href,
		IsExternal:      asset.IsExternal,
		Checksum:        asset.Checksum,
		ContentEncoding: asset.ContentEncoding,
		UpdateInterval:  asset.UpdateInterval,
		FileSize:        asset.FileSize,
		Created:         asset.Created,
		Updated:         asset.Updated,
		ETag:            asset.ETag,
	}
}

// assetRef builds the asset reference from the route variables. The
// item variable is absent on collection-asset routes.
func assetRef(r *http.Request) stac.AssetRef {
	vars := mux.Vars(r)
	return stac.AssetRef{
		Collection: vars["collection"],
		Item:       vars["item"],
		Asset:      vars["asset"],
	}
}

func (server *Server) getAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	ref := assetRef(r)
	asset, err := server.db.Assets().Get(ctx, ref)
	if err != nil {
		server.serveError(w, err)
		return
	}
	if checkPreconditions(w, r, asset.ETag) {
		return
	}

	override, err := server.db.Collections().CacheControlHeader(ctx, ref.Collection)
	if err != nil {
		server.serveError(w, err)
		return
	}
	server.setCacheHeaders(w, cachecontrol.ClassMetadata, override)
	w.Header().Set("ETag", asset.ETag)
	sendJSONData(w, http.StatusOK, toAssetJSON(asset))
}

func (server *Server) putAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	var body assetJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if body.Href != "" && !body.IsExternal {
		sendJSONError(w, http.StatusBadRequest, "href can only be set on external assets")
		return
	}

	ref := assetRef(r)
	asset := &stac.Asset{
		Collection:      ref.Collection,
		Item:            ref.Item,
		Name:            ref.Asset,
		MediaType:       body.MediaType,
		Href:            body.Href,
		IsExternal:      body.IsExternal,
		ContentEncoding: body.ContentEncoding,
		UpdateInterval:  body.UpdateInterval,
	}

	existing, err := server.db.Assets().Get(ctx, ref)
	switch {
	case catalog.ErrAssetNotFound.Has(err):
		created, err := server.db.Assets().Create(ctx, asset)
		if err != nil {
			server.serveError(w, err)
			return
		}
		w.Header().Set("ETag", created.ETag)
		sendJSONData(w, http.StatusCreated, toAssetJSON(created))
	case err != nil:
		server.serveError(w, err)
	default:
		// Upload-managed fields stay untouched on metadata updates.
		asset.Checksum = existing.Checksum
		asset.FileSize = existing.FileSize
		if !existing.IsExternal {
			asset.Href = existing.Href
			asset.IsExternal = false
		}
		updated, err := server.db.Assets().Update(ctx, asset, r.Header.Get("If-Match"))
		if err != nil {
			server.serveError(w, err)
			return
		}
		w.Header().Set("ETag", updated.ETag)
		sendJSONData(w, http.StatusOK, toAssetJSON(updated))
	}
}

func (server *Server) deleteAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	ref := assetRef(r)

	// Remember an open upload before the delete removes its record, so
	// its backend parts can be cleaned up afterwards.
	var openUploadID string
	page, err := server.uploads.List(ctx, ref, uploads.ListOptions{Status: uploads.StatusInProgress, Limit: 1})
	if err == nil && len(page.Uploads) > 0 {
		openUploadID = page.Uploads[0].UploadID
	}

	removed, err := server.db.Assets().Delete(ctx, ref)
	if err != nil {
		server.serveError(w, err)
		return
	}

	if openUploadID != "" {
		if err := server.gateway.AbortMultipartUpload(ctx, ref.ObjectKey(), openUploadID); err != nil {
			server.log.Warn("failed to abort open upload for deleted asset",
				zap.String("key", ref.ObjectKey()),
				zap.String("upload_id", openUploadID),
				zap.Error(err))
		}
	}
	if !removed.IsExternal && removed.Href != "" {
		if err := server.gateway.Delete(ctx, ref.ObjectKey()); err != nil {
			server.log.Warn("failed to purge object for deleted asset",
				zap.String("key", ref.ObjectKey()),
				zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// assetData redirects to the object location. The response carries the
// caching headers and the raw sha256 so clients can verify downloads
// against the catalog checksum.
func (server *Server) assetData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	ref := assetRef(r)
	asset, err := server.db.Assets().Get(ctx, ref)
	if err != nil {
		server.serveError(w, err)
		return
	}
	if asset.Href == "" {
		server.serveError(w, uploads.ErrNotFound.New("asset %s has no uploaded data", ref.ObjectKey()))
		return
	}
	if checkPreconditions(w, r, asset.ETag) {
		return
	}

	override, err := server.db.Collections().CacheControlHeader(ctx, ref.Collection)
	if err != nil {
		server.serveError(w, err)
		return
	}
	server.setCacheHeaders(w, cachecontrol.ClassAssetData, override)
	w.Header().Set("ETag", asset.ETag)
	if asset.Checksum != "" {
		if sha256Hex, err := stac.ChecksumSHA256Hex(asset.Checksum); err == nil {
			w.Header().Set("X-Amz-Meta-Sha256", sha256Hex)
		}
	}
	w.Header().Set("Location", asset.Href)
	w.WriteHeader(http.StatusSeeOther)
}
