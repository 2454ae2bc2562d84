// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

package uploads

import (
	"encoding/base64"

	"geostac.io/geostac/stac"
)

// MaxParts is the largest allowed number_parts, matching the part count
// limit enforced by S3-compatible backends per presigned batch.
const MaxParts = 100

const (
	// UpdateIntervalMin is the smallest accepted update_interval; -1
	// means unset.
	UpdateIntervalMin = -1
	// UpdateIntervalMax is the largest accepted update_interval.
	UpdateIntervalMax = 3600
)

// CreateRequest is the client's declaration of the upload about to
// happen. Everything the backend needs to presign and later verify is
// fixed here; nothing can change after creation.
type CreateRequest struct {
	NumberParts     int       `json:"number_parts"`
	MD5Parts        []PartMD5 `json:"md5_parts"`
	Checksum        string    `json:"file:checksum"`
	ContentEncoding string    `json:"content_encoding,omitempty"`
	UpdateInterval  int64     `json:"update_interval,omitempty"`
}

// Validate checks the request against the creation rules. All failures
// use the ErrValidation class.
func (req *CreateRequest) Validate() error {
	if req.NumberParts < 1 || req.NumberParts > MaxParts {
		return ErrValidation.New("number_parts must be between 1 and %d, got %d", MaxParts, req.NumberParts)
	}
	if len(req.MD5Parts) != req.NumberParts {
		return ErrValidation.New("md5_parts must have exactly %d entries, got %d", req.NumberParts, len(req.MD5Parts))
	}

	seen := make(map[int]bool, len(req.MD5Parts))
	for _, part := range req.MD5Parts {
		if part.PartNumber < 1 || part.PartNumber > req.NumberParts {
			return ErrValidation.New("part_number must be between 1 and %d, got %d", req.NumberParts, part.PartNumber)
		}
		if seen[part.PartNumber] {
			return ErrValidation.New("duplicate part_number %d", part.PartNumber)
		}
		seen[part.PartNumber] = true

		if err := validateMD5(part.MD5); err != nil {
			return ErrValidation.New("part %d: %v", part.PartNumber, err)
		}
	}

	if err := stac.ValidateChecksum(req.Checksum); err != nil {
		return ErrValidation.Wrap(err)
	}
	if err := stac.ValidateContentEncoding(req.ContentEncoding); err != nil {
		return ErrValidation.Wrap(err)
	}
	if req.UpdateInterval < UpdateIntervalMin || req.UpdateInterval > UpdateIntervalMax {
		return ErrValidation.New("update_interval must be between %d and %d, got %d", UpdateIntervalMin, UpdateIntervalMax, req.UpdateInterval)
	}
	return nil
}

// validateMD5 checks a declared part md5: standard base64 of a raw
// 16-byte digest, as required by the Content-MD5 header.
func validateMD5(value string) error {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return Error.New("md5 is not valid base64: %v", err)
	}
	if len(raw) != 16 {
		return Error.New("md5 must decode to 16 bytes, got %d", len(raw))
	}
	return nil
}
