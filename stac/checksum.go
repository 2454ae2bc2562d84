// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

package stac

import (
	"encoding/hex"

	"github.com/multiformats/go-multihash"
	"github.com/zeebo/errs"
)

// ErrChecksum means a checksum value is not a valid sha2-256 multihash.
var ErrChecksum = errs.Class("invalid checksum")

// ValidateChecksum checks that value is a hex-encoded multihash carrying
// a sha2-256 digest. Only sha2-256 is accepted; the prefix of any other
// algorithm is rejected.
func ValidateChecksum(value string) error {
	decoded, err := decodeMultihash(value)
	if err != nil {
		return err
	}
	if decoded.Code != multihash.SHA2_256 {
		return ErrChecksum.New("must be sha2-256, got code 0x%x", decoded.Code)
	}
	return nil
}

// ChecksumSHA256Hex extracts the raw sha256 digest from a hex-encoded
// sha2-256 multihash and returns it hex-encoded.
func ChecksumSHA256Hex(value string) (string, error) {
	decoded, err := decodeMultihash(value)
	if err != nil {
		return "", err
	}
	if decoded.Code != multihash.SHA2_256 {
		return "", ErrChecksum.New("must be sha2-256, got code 0x%x", decoded.Code)
	}
	return hex.EncodeToString(decoded.Digest), nil
}

// ChecksumFromSHA256Hex wraps a hex sha256 digest into a hex-encoded
// sha2-256 multihash.
func ChecksumFromSHA256Hex(digest string) (string, error) {
	raw, err := hex.DecodeString(digest)
	if err != nil {
		return "", ErrChecksum.Wrap(err)
	}
	encoded, err := multihash.Encode(raw, multihash.SHA2_256)
	if err != nil {
		return "", ErrChecksum.Wrap(err)
	}
	return hex.EncodeToString(encoded), nil
}

func decodeMultihash(value string) (*multihash.DecodedMultihash, error) {
	mh, err := multihash.FromHexString(value)
	if err != nil {
		return nil, ErrChecksum.Wrap(err)
	}
	decoded, err := multihash.Decode(mh)
	if err != nil {
		return nil, ErrChecksum.Wrap(err)
	}
	return decoded, nil
}
