// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

package api

import (
	"encoding/json"
	"net/http"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"geostac.io/geostac/catalog"
	"geostac.io/geostac/catalog/uploads"
	"geostac.io/geostac/objectstore"
)

// Error is the default error class for the api package.
var Error = errs.Class("api")

type errorBody struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
	UploadID    string `json:"upload_id,omitempty"`
}

func sendJSONData(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		sendJSONError(w, http.StatusInternalServerError, "json encoding failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func sendJSONError(w http.ResponseWriter, status int, description string) {
	sendJSONData(w, status, errorBody{Code: status, Description: description})
}

// serveError maps domain error classes onto HTTP statuses. Unrecognized
// errors become opaque 500s; the details stay in the log.
func (server *Server) serveError(w http.ResponseWriter, err error) {
	switch {
	case uploads.ErrInProgress.Has(err):
		body := errorBody{Code: http.StatusBadRequest, Description: "Upload already in progress"}
		if uploadID, ok := uploads.ConflictUploadID(err); ok {
			body.UploadID = uploadID
		}
		sendJSONData(w, http.StatusBadRequest, body)
	case uploads.ErrValidation.Has(err):
		sendJSONError(w, http.StatusBadRequest, err.Error())
	case uploads.ErrNotFound.Has(err),
		catalog.ErrCollectionNotFound.Has(err),
		catalog.ErrItemNotFound.Has(err),
		catalog.ErrAssetNotFound.Has(err),
		objectstore.ErrObjectNotFound.Has(err),
		objectstore.ErrUploadNotFound.Has(err):
		sendJSONError(w, http.StatusNotFound, err.Error())
	case uploads.ErrNotInProgress.Has(err),
		catalog.ErrAlreadyExists.Has(err):
		sendJSONError(w, http.StatusConflict, err.Error())
	case catalog.ErrPrecondition.Has(err):
		sendJSONError(w, http.StatusPreconditionFailed, err.Error())
	case objectstore.ErrRejected.Has(err):
		sendJSONError(w, http.StatusBadGateway, err.Error())
	case objectstore.ErrUnavailable.Has(err):
		// Retryable; clients should back off at least 100ms.
		w.Header().Set("Retry-After", "1")
		sendJSONError(w, http.StatusServiceUnavailable, "object storage unavailable, retry later")
	default:
		server.log.Error("unhandled error", zap.Error(err))
		sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// checkPreconditions handles If-Match and If-None-Match against the
// current etag. It reports whether the request was already answered.
func checkPreconditions(w http.ResponseWriter, r *http.Request, etag string) bool {
	if match := r.Header.Get("If-Match"); match != "" {
		if match != etag && match != `"`+etag+`"` && match != "*" {
			sendJSONError(w, http.StatusPreconditionFailed, "etag mismatch")
			return true
		}
	}
	if noneMatch := r.Header.Get("If-None-Match"); noneMatch != "" {
		if noneMatch == etag || noneMatch == `"`+etag+`"` || noneMatch == "*" {
			w.WriteHeader(http.StatusNotModified)
			return true
		}
	}
	return false
}
