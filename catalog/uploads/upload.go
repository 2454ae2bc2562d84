// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

package uploads

import (
	"time"

	"geostac.io/geostac/objectstore"
	"geostac.io/geostac/stac"
)

// Status is the lifecycle state of an upload.
//
//	          Create()
//	[none] -------------> [in-progress] --Complete()--> [completed]
//	                            |
//	                            +--------Abort()------> [aborted]
//
// completed and aborted are terminal; no transition leaves them. A new
// upload for the same asset is accepted only while no upload for that
// asset is in progress.
type Status string

const (
	// StatusInProgress means parts may still be uploaded.
	StatusInProgress Status = "in-progress"
	// StatusCompleted means the object was finalized.
	StatusCompleted Status = "completed"
	// StatusAborted means the upload was aborted and its parts deleted.
	StatusAborted Status = "aborted"
)

// Terminal reports whether no further transition is allowed.
func (status Status) Terminal() bool {
	return status == StatusCompleted || status == StatusAborted
}

// Valid reports whether status is one of the three known states.
func (status Status) Valid() bool {
	switch status {
	case StatusInProgress, StatusCompleted, StatusAborted:
		return true
	}
	return false
}

// PartMD5 is the client-declared md5 for one part, supplied at creation.
type PartMD5 struct {
	PartNumber int    `json:"part_number"`
	MD5        string `json:"md5"`
}

// Upload is one multipart upload attempt against a single asset.
type Upload struct {
	// ID is the database key; it also serves as the list cursor.
	ID int64

	Asset    stac.AssetRef
	UploadID string
	Status   Status

	NumberParts int
	MD5Parts    []PartMD5

	// URLs holds the presigned part URLs while in progress; cleared on
	// the terminal transition.
	URLs []objectstore.PartURL

	// Checksum is the target multihash the completed object must match.
	Checksum        string
	ContentEncoding string

	// UpdateInterval is deprecated and inert; accepted for backward
	// compatibility and propagated to the asset on completion.
	UpdateInterval int64

	FileSize int64

	Created time.Time
	// Ended is zero until the upload reaches a terminal status.
	Ended time.Time

	ETag string
}

// Completed returns the completion time, zero unless completed.
func (upload *Upload) Completed() time.Time {
	if upload.Status == StatusCompleted {
		return upload.Ended
	}
	return time.Time{}
}

// Aborted returns the abort time, zero unless aborted.
func (upload *Upload) Aborted() time.Time {
	if upload.Status == StatusAborted {
		return upload.Ended
	}
	return time.Time{}
}

// ListOptions narrows and pages an upload listing.
type ListOptions struct {
	// Status filters to one state when non-empty.
	Status Status
	// Cursor resumes after a previous page's Next value.
	Cursor string
	// Limit bounds the page size; 0 means the default.
	Limit int
}

// Page is one page of uploads ordered by creation time descending.
type Page struct {
	Uploads []Upload
	// Next resumes the listing when More is true.
	Next string
	More bool
}
