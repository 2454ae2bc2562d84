// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

package catalogdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/errs"

	"geostac.io/geostac/catalog/uploads"
	"geostac.io/geostac/stac"
)

type uploadsDB struct {
	db *DB
}

const uploadColumns = `id, collection, item, asset, upload_id, status, number_parts,
	md5_parts, urls, checksum, content_encoding, update_interval, file_size, created, ended, etag`

func scanUpload(row interface{ Scan(...interface{}) error }) (*uploads.Upload, error) {
	var upload uploads.Upload
	var md5Parts, urls string
	var ended sql.NullTime
	err := row.Scan(&upload.ID, &upload.Asset.Collection, &upload.Asset.Item, &upload.Asset.Asset,
		&upload.UploadID, &upload.Status, &upload.NumberParts,
		&md5Parts, &urls, &upload.Checksum, &upload.ContentEncoding,
		&upload.UpdateInterval, &upload.FileSize, &upload.Created, &ended, &upload.ETag)
	if err != nil {
		return nil, err
	}
	if ended.Valid {
		upload.Ended = ended.Time
	}
	if err := json.Unmarshal([]byte(md5Parts), &upload.MD5Parts); err != nil {
		return nil, Error.New("corrupt md5_parts for upload %s: %v", upload.UploadID, err)
	}
	if err := json.Unmarshal([]byte(urls), &upload.URLs); err != nil {
		return nil, Error.New("corrupt urls for upload %s: %v", upload.UploadID, err)
	}
	return &upload, nil
}

func (db *uploadsDB) Create(ctx context.Context, upload *uploads.Upload) (_ *uploads.Upload, err error) {
	defer mon.Task()(&ctx)(&err)

	md5Parts, err := json.Marshal(upload.MD5Parts)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	urls, err := json.Marshal(upload.URLs)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	now := time.Now().UTC()
	_, err = db.db.db.ExecContext(ctx, db.db.rebind(`
		INSERT INTO asset_uploads (collection, item, asset, upload_id, status, number_parts,
			md5_parts, urls, checksum, content_encoding, update_interval, file_size, created, etag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		upload.Asset.Collection, upload.Asset.Item, upload.Asset.Asset,
		upload.UploadID, uploads.StatusInProgress, upload.NumberParts,
		string(md5Parts), string(urls), upload.Checksum, upload.ContentEncoding,
		upload.UpdateInterval, upload.FileSize, now, uuid.NewString())
	if err != nil {
		if isConstraintError(err) {
			if existing, lookupErr := db.InProgress(ctx, upload.Asset); lookupErr == nil {
				return nil, uploads.ErrInProgress.Wrap(&uploads.InProgressError{UploadID: existing.UploadID})
			}
			return nil, uploads.ErrInProgress.New("%s", upload.Asset.ObjectKey())
		}
		return nil, Error.Wrap(err)
	}
	return db.Get(ctx, upload.Asset, upload.UploadID)
}

func (db *uploadsDB) Get(ctx context.Context, ref stac.AssetRef, uploadID string) (_ *uploads.Upload, err error) {
	defer mon.Task()(&ctx)(&err)

	row := db.db.db.QueryRowContext(ctx, db.db.rebind(`
		SELECT `+uploadColumns+` FROM asset_uploads
		WHERE collection = ? AND item = ? AND asset = ? AND upload_id = ?`),
		ref.Collection, ref.Item, ref.Asset, uploadID)

	upload, err := scanUpload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, uploads.ErrNotFound.New("upload %s for %s", uploadID, ref.ObjectKey())
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return upload, nil
}

func (db *uploadsDB) InProgress(ctx context.Context, ref stac.AssetRef) (_ *uploads.Upload, err error) {
	defer mon.Task()(&ctx)(&err)

	row := db.db.db.QueryRowContext(ctx, db.db.rebind(`
		SELECT `+uploadColumns+` FROM asset_uploads
		WHERE collection = ? AND item = ? AND asset = ? AND status = ?`),
		ref.Collection, ref.Item, ref.Asset, uploads.StatusInProgress)

	upload, err := scanUpload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, uploads.ErrNotFound.New("no in-progress upload for %s", ref.ObjectKey())
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return upload, nil
}

func (db *uploadsDB) List(ctx context.Context, ref stac.AssetRef, opts uploads.ListOptions) (page uploads.Page, err error) {
	defer mon.Task()(&ctx)(&err)

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + uploadColumns + ` FROM asset_uploads
		WHERE collection = ? AND item = ? AND asset = ?`
	args := []interface{}{ref.Collection, ref.Item, ref.Asset}
	if opts.Status != "" {
		query += ` AND status = ?`
		args = append(args, opts.Status)
	}
	if opts.Cursor != "" {
		after, err := strconv.ParseInt(opts.Cursor, 10, 64)
		if err != nil {
			return uploads.Page{}, uploads.ErrValidation.New("invalid cursor %q", opts.Cursor)
		}
		query += ` AND id < ?`
		args = append(args, after)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := db.db.db.QueryContext(ctx, db.db.rebind(query), args...)
	if err != nil {
		return uploads.Page{}, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return uploads.Page{}, Error.Wrap(err)
		}
		page.Uploads = append(page.Uploads, *upload)
	}
	if err := rows.Err(); err != nil {
		return uploads.Page{}, Error.Wrap(err)
	}

	if len(page.Uploads) > limit {
		page.Uploads = page.Uploads[:limit]
		page.More = true
		page.Next = strconv.FormatInt(page.Uploads[limit-1].ID, 10)
	}
	return page, nil
}

func (db *uploadsDB) Complete(ctx context.Context, ref stac.AssetRef, uploadID string, fileSize int64, href string) (_ *uploads.Upload, err error) {
	defer mon.Task()(&ctx)(&err)

	now := time.Now().UTC()
	err = db.db.withTx(ctx, func(tx *sql.Tx) error {
		upload, err := db.finalize(ctx, tx, ref, uploadID, uploads.StatusCompleted, fileSize, now)
		if err != nil {
			return err
		}

		// The asset takes over everything the upload declared. The href
		// is only set the first time; later uploads replace content at
		// the same location.
		_, err = tx.ExecContext(ctx, db.db.rebind(`
			UPDATE assets
			SET checksum = ?, content_encoding = ?, update_interval = ?, file_size = ?,
				href = CASE WHEN href = '' THEN ? ELSE href END,
				updated = ?, etag = ?
			WHERE collection = ? AND item = ? AND name = ?`),
			upload.Checksum, upload.ContentEncoding, upload.UpdateInterval, fileSize,
			href, now, uuid.NewString(),
			ref.Collection, ref.Item, ref.Asset)
		return Error.Wrap(err)
	})
	if err != nil {
		return nil, err
	}
	return db.Get(ctx, ref, uploadID)
}

func (db *uploadsDB) Abort(ctx context.Context, ref stac.AssetRef, uploadID string) (_ *uploads.Upload, err error) {
	defer mon.Task()(&ctx)(&err)

	now := time.Now().UTC()
	err = db.db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := db.finalize(ctx, tx, ref, uploadID, uploads.StatusAborted, 0, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return db.Get(ctx, ref, uploadID)
}

// finalize moves an in-progress upload to a terminal status, clearing
// the presigned URLs and regenerating the etag. The status guard in the
// WHERE clause keeps concurrent finalizations from both succeeding.
func (db *uploadsDB) finalize(ctx context.Context, tx *sql.Tx, ref stac.AssetRef, uploadID string, status uploads.Status, fileSize int64, ended time.Time) (*uploads.Upload, error) {
	result, err := tx.ExecContext(ctx, db.db.rebind(`
		UPDATE asset_uploads
		SET status = ?, urls = '[]', file_size = ?, ended = ?, etag = ?
		WHERE collection = ? AND item = ? AND asset = ? AND upload_id = ? AND status = ?`),
		status, fileSize, ended, uuid.NewString(),
		ref.Collection, ref.Item, ref.Asset, uploadID, uploads.StatusInProgress)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if affected == 0 {
		row := tx.QueryRowContext(ctx, db.db.rebind(`
			SELECT status FROM asset_uploads
			WHERE collection = ? AND item = ? AND asset = ? AND upload_id = ?`),
			ref.Collection, ref.Item, ref.Asset, uploadID)
		var current uploads.Status
		if err := row.Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, uploads.ErrNotFound.New("upload %s for %s", uploadID, ref.ObjectKey())
			}
			return nil, Error.Wrap(err)
		}
		return nil, uploads.ErrNotInProgress.New("upload %s is %s", uploadID, current)
	}

	row := tx.QueryRowContext(ctx, db.db.rebind(`
		SELECT `+uploadColumns+` FROM asset_uploads
		WHERE collection = ? AND item = ? AND asset = ? AND upload_id = ?`),
		ref.Collection, ref.Item, ref.Asset, uploadID)
	upload, err := scanUpload(row)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return upload, nil
}
