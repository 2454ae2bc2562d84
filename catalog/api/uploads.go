// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"geostac.io/geostac/catalog/uploads"
	"geostac.io/geostac/objectstore"
)

type uploadJSON struct {
	UploadID        string                `json:"upload_id"`
	Status          uploads.Status        `json:"status"`
	NumberParts     int                   `json:"number_parts"`
	MD5Parts        []uploads.PartMD5     `json:"md5_parts"`
	URLs            []objectstore.PartURL `json:"urls,omitempty"`
	Checksum        string                `json:"file:checksum"`
	ContentEncoding string                `json:"content_encoding,omitempty"`
	UpdateInterval  int64                 `json:"update_interval"`
	FileSize        int64                 `json:"file_size,omitempty"`
	Created         time.Time             `json:"created"`
	Completed       *time.Time            `json:"completed,omitempty"`
	Aborted         *time.Time            `json:"aborted,omitempty"`
	ETag            string                `json:"etag"`
}

func toUploadJSON(upload *uploads.Upload) uploadJSON {
	out := uploadJSON{
		UploadID:        upload.UploadID,
		Status:          upload.Status,
		NumberParts:     upload.NumberParts,
		MD5Parts:        upload.MD5Parts,
		URLs:            upload.URLs,
		Checksum:        upload.Checksum,
		ContentEncoding: upload.ContentEncoding,
		UpdateInterval:  upload.UpdateInterval,
		FileSize:        upload.FileSize,
		Created:         upload.Created,
		ETag:            upload.ETag,
	}
	if completed := upload.Completed(); !completed.IsZero() {
		out.Completed = &completed
	}
	if aborted := upload.Aborted(); !aborted.IsZero() {
		out.Aborted = &aborted
	}
	return out
}

func (server *Server) createUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	// update_interval is deprecated; an absent field means -1, while an
	// explicit 0 is kept as sent.
	var body struct {
		uploads.CreateRequest
		UpdateInterval *int64 `json:"update_interval"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req := body.CreateRequest
	if body.UpdateInterval == nil {
		req.UpdateInterval = -1
	} else {
		req.UpdateInterval = *body.UpdateInterval
	}

	upload, err := server.uploads.Create(ctx, assetRef(r), req)
	if err != nil {
		server.serveError(w, err)
		return
	}

	w.Header().Set("Cache-Control", server.cache.NoCache())
	w.Header().Set("Location", r.URL.Path+"/"+upload.UploadID)
	w.Header().Set("ETag", upload.ETag)
	sendJSONData(w, http.StatusCreated, toUploadJSON(upload))
}

func (server *Server) listUploads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	query := r.URL.Query()
	opts := uploads.ListOptions{
		Status: uploads.Status(query.Get("status")),
		Cursor: query.Get("cursor"),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			sendJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = limit
	}

	page, err := server.uploads.List(ctx, assetRef(r), opts)
	if err != nil {
		server.serveError(w, err)
		return
	}

	out := make([]uploadJSON, 0, len(page.Uploads))
	for i := range page.Uploads {
		out = append(out, toUploadJSON(&page.Uploads[i]))
	}
	response := map[string]interface{}{"uploads": out}
	if page.More {
		response["cursor"] = page.Next
	}

	w.Header().Set("Cache-Control", server.cache.NoCache())
	sendJSONData(w, http.StatusOK, response)
}

func (server *Server) getUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	upload, err := server.uploads.Get(ctx, assetRef(r), mux.Vars(r)["upload_id"])
	if err != nil {
		server.serveError(w, err)
		return
	}
	if checkPreconditions(w, r, upload.ETag) {
		return
	}

	w.Header().Set("Cache-Control", server.cache.NoCache())
	w.Header().Set("ETag", upload.ETag)
	sendJSONData(w, http.StatusOK, toUploadJSON(upload))
}

func (server *Server) listUploadParts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	query := r.URL.Query()
	var offset, limit int
	if raw := query.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			sendJSONError(w, http.StatusBadRequest, "invalid offset")
			return
		}
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			sendJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	parts, more, err := server.uploads.Parts(ctx, assetRef(r), mux.Vars(r)["upload_id"], offset, limit)
	if err != nil {
		server.serveError(w, err)
		return
	}
	if parts == nil {
		parts = []objectstore.Part{}
	}

	w.Header().Set("Cache-Control", server.cache.NoCache())
	sendJSONData(w, http.StatusOK, map[string]interface{}{
		"parts": parts,
		"more":  more,
	})
}

type completeRequest struct {
	Parts []struct {
		PartNumber int    `json:"part_number"`
		ETag       string `json:"etag"`
	} `json:"parts"`
}

func (server *Server) completeUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	parts := make([]objectstore.CompletedPart, 0, len(req.Parts))
	for _, part := range req.Parts {
		parts = append(parts, objectstore.CompletedPart{
			PartNumber: part.PartNumber,
			ETag:       part.ETag,
		})
	}

	upload, err := server.uploads.Complete(ctx, assetRef(r), mux.Vars(r)["upload_id"], parts)
	if err != nil {
		server.serveError(w, err)
		return
	}

	w.Header().Set("Cache-Control", server.cache.NoCache())
	w.Header().Set("ETag", upload.ETag)
	sendJSONData(w, http.StatusOK, toUploadJSON(upload))
}

func (server *Server) abortUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	upload, err := server.uploads.Abort(ctx, assetRef(r), mux.Vars(r)["upload_id"])
	if err != nil {
		server.serveError(w, err)
		return
	}

	w.Header().Set("Cache-Control", server.cache.NoCache())
	w.Header().Set("ETag", upload.ETag)
	sendJSONData(w, http.StatusOK, toUploadJSON(upload))
}
