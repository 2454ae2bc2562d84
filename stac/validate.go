// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

package stac

import (
	"regexp"
)

var nameRx = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// ValidateName checks a collection, item or asset identifier.
func ValidateName(name string) error {
	if name == "" {
		return Error.New("name is missing")
	}
	if len(name) > 255 {
		return Error.New("name %q exceeds 255 characters", name)
	}
	if !nameRx.MatchString(name) {
		return Error.New("name %q contains invalid characters", name)
	}
	return nil
}

// Supported content encodings for asset data. Restrictive on purpose;
// deflate and compress can be added when a client needs them.
var contentEncodings = map[string]bool{
	"gzip": true,
	"br":   true,
}

// ValidateContentEncoding checks an optional content encoding value.
// The empty string means no encoding.
func ValidateContentEncoding(value string) error {
	if value == "" {
		return nil
	}
	if !contentEncodings[value] {
		return Error.New("invalid encoding %q: must be one of \"br, gzip\"", value)
	}
	return nil
}
