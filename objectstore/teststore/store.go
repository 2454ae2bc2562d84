// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

// Package teststore implements an in-memory object storage gateway with
// real multipart semantics for tests.
package teststore

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"geostac.io/geostac/objectstore"
)

// Client implements objectstore.Gateway in memory.
type Client struct {
	mu sync.Mutex

	// ForcedError, when set, is returned by every backend call. Use it to
	// simulate an unavailable backend.
	ForcedError error

	CallCount struct {
		Create   int
		Presign  int
		List     int
		Complete int
		Abort    int
		Stat     int
		Delete   int
	}

	objects map[string]*Object
	uploads map[string]*Upload
	nextID  int
}

// Object is a finalized in-memory object.
type Object struct {
	Key      string
	Data     []byte
	Opts     objectstore.UploadOptions
	ETag     string
	Modified time.Time
}

// Upload is an open multipart upload.
type Upload struct {
	Key     string
	ID      string
	Opts    objectstore.UploadOptions
	Created time.Time

	parts map[int]partData
}

type partData struct {
	data     []byte
	etag     string
	modified time.Time
}

// New creates an empty in-memory gateway.
func New() *Client {
	return &Client{
		objects: map[string]*Object{},
		uploads: map[string]*Upload{},
	}
}

var _ objectstore.Gateway = (*Client)(nil)

// CreateMultipartUpload implements objectstore.Gateway.
func (store *Client) CreateMultipartUpload(ctx context.Context, key string, opts objectstore.UploadOptions) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Create++
	if store.ForcedError != nil {
		return "", objectstore.ErrUnavailable.Wrap(store.ForcedError)
	}

	store.nextID++
	uploadID := fmt.Sprintf("upload-%04d", store.nextID)
	store.uploads[uploadID] = &Upload{
		Key:     key,
		ID:      uploadID,
		Opts:    opts,
		Created: time.Now(),
		parts:   map[int]partData{},
	}
	return uploadID, nil
}

// PresignPart implements objectstore.Gateway.
func (store *Client) PresignPart(ctx context.Context, key, uploadID string, partNumber int, contentMD5 string, expires time.Duration) (objectstore.PartURL, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Presign++
	if store.ForcedError != nil {
		return objectstore.PartURL{}, objectstore.ErrUnavailable.Wrap(store.ForcedError)
	}
	if _, ok := store.uploads[uploadID]; !ok {
		return objectstore.PartURL{}, objectstore.ErrUploadNotFound.New("%s", uploadID)
	}

	values := url.Values{}
	values.Set("uploadId", uploadID)
	values.Set("partNumber", fmt.Sprint(partNumber))
	return objectstore.PartURL{
		URL:        "https://teststore.invalid/" + key + "?" + values.Encode(),
		PartNumber: partNumber,
		Expires:    time.Now().Add(expires),
	}, nil
}

// UploadPart simulates the client-side PUT against a presigned URL. The
// backend verifies the Content-MD5 header against the data, exactly as
// S3 does, and returns the part's etag.
func (store *Client) UploadPart(key, uploadID string, partNumber int, data []byte, contentMD5 string) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	upload, ok := store.uploads[uploadID]
	if !ok || upload.Key != key {
		return "", objectstore.ErrUploadNotFound.New("%s", uploadID)
	}
	sum := md5.Sum(data)
	if contentMD5 != "" && contentMD5 != base64.StdEncoding.EncodeToString(sum[:]) {
		return "", objectstore.ErrRejected.New("content-md5 mismatch for part %d", partNumber)
	}

	etag := `"` + hex.EncodeToString(sum[:]) + `"`
	upload.parts[partNumber] = partData{
		data:     append([]byte(nil), data...),
		etag:     etag,
		modified: time.Now(),
	}
	return etag, nil
}

// ListParts implements objectstore.Gateway.
func (store *Client) ListParts(ctx context.Context, key, uploadID string, offset, limit int) ([]objectstore.Part, bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.List++
	if store.ForcedError != nil {
		return nil, false, objectstore.ErrUnavailable.Wrap(store.ForcedError)
	}
	upload, ok := store.uploads[uploadID]
	if !ok || upload.Key != key {
		return nil, false, objectstore.ErrUploadNotFound.New("%s", uploadID)
	}

	numbers := make([]int, 0, len(upload.parts))
	for number := range upload.parts {
		if number > offset {
			numbers = append(numbers, number)
		}
	}
	sort.Ints(numbers)

	more := false
	if limit > 0 && len(numbers) > limit {
		numbers = numbers[:limit]
		more = true
	}

	parts := make([]objectstore.Part, 0, len(numbers))
	for _, number := range numbers {
		part := upload.parts[number]
		parts = append(parts, objectstore.Part{
			PartNumber: number,
			ETag:       part.etag,
			Size:       int64(len(part.data)),
			Modified:   part.modified,
		})
	}
	return parts, more, nil
}

// CompleteMultipartUpload implements objectstore.Gateway.
func (store *Client) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []objectstore.CompletedPart) (objectstore.Object, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Complete++
	if store.ForcedError != nil {
		return objectstore.Object{}, objectstore.ErrUnavailable.Wrap(store.ForcedError)
	}
	upload, ok := store.uploads[uploadID]
	if !ok || upload.Key != key {
		return objectstore.Object{}, objectstore.ErrUploadNotFound.New("%s", uploadID)
	}
	if len(parts) == 0 {
		return objectstore.Object{}, objectstore.ErrRejected.New("no parts in completion request")
	}

	var data []byte
	var etagSource []byte
	seen := map[int]bool{}
	for _, completed := range parts {
		if seen[completed.PartNumber] {
			return objectstore.Object{}, objectstore.ErrRejected.New("duplicate part %d", completed.PartNumber)
		}
		seen[completed.PartNumber] = true

		uploaded, ok := upload.parts[completed.PartNumber]
		if !ok {
			return objectstore.Object{}, objectstore.ErrRejected.New("part %d was never uploaded", completed.PartNumber)
		}
		if uploaded.etag != completed.ETag {
			return objectstore.Object{}, objectstore.ErrRejected.New("etag mismatch for part %d", completed.PartNumber)
		}
		data = append(data, uploaded.data...)

		raw, err := hex.DecodeString(trimQuotes(uploaded.etag))
		if err != nil {
			return objectstore.Object{}, objectstore.ErrRejected.Wrap(err)
		}
		etagSource = append(etagSource, raw...)
	}

	// AWS-style multipart etag: md5 of the concatenated part digests
	// suffixed with the part count.
	sum := md5.Sum(etagSource)
	object := &Object{
		Key:      key,
		Data:     data,
		Opts:     upload.Opts,
		ETag:     fmt.Sprintf(`"%s-%d"`, hex.EncodeToString(sum[:]), len(parts)),
		Modified: time.Now(),
	}
	store.objects[key] = object
	delete(store.uploads, uploadID)

	return store.objectInfo(object), nil
}

// AbortMultipartUpload implements objectstore.Gateway.
func (store *Client) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Abort++
	if store.ForcedError != nil {
		return objectstore.ErrUnavailable.Wrap(store.ForcedError)
	}
	upload, ok := store.uploads[uploadID]
	if !ok || upload.Key != key {
		return objectstore.ErrUploadNotFound.New("%s", uploadID)
	}
	delete(store.uploads, uploadID)
	return nil
}

// Stat implements objectstore.Gateway.
func (store *Client) Stat(ctx context.Context, key string) (objectstore.Object, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Stat++
	if store.ForcedError != nil {
		return objectstore.Object{}, objectstore.ErrUnavailable.Wrap(store.ForcedError)
	}
	object, ok := store.objects[key]
	if !ok {
		return objectstore.Object{}, objectstore.ErrObjectNotFound.New("%s", key)
	}
	return store.objectInfo(object), nil
}

// Delete implements objectstore.Gateway.
func (store *Client) Delete(ctx context.Context, key string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Delete++
	if store.ForcedError != nil {
		return objectstore.ErrUnavailable.Wrap(store.ForcedError)
	}
	delete(store.objects, key)
	return nil
}

// PublicURL implements objectstore.Gateway.
func (store *Client) PublicURL(key string) string {
	return "https://teststore.invalid/" + key
}

// GetObject returns a stored object for test assertions.
func (store *Client) GetObject(key string) (*Object, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()
	object, ok := store.objects[key]
	return object, ok
}

// OpenUploads returns the number of multipart uploads still open.
func (store *Client) OpenUploads() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.uploads)
}

func (store *Client) objectInfo(object *Object) objectstore.Object {
	sha := object.Opts.SHA256Hex
	if sha == "" {
		sum := sha256.Sum256(object.Data)
		sha = hex.EncodeToString(sum[:])
	}
	return objectstore.Object{
		Key:       object.Key,
		Size:      int64(len(object.Data)),
		ETag:      object.ETag,
		SHA256Hex: sha,
		Modified:  object.Modified,
	}
}

func trimQuotes(etag string) string {
	if len(etag) >= 2 && etag[0] == '"' && etag[len(etag)-1] == '"' {
		return etag[1 : len(etag)-1]
	}
	return etag
}
