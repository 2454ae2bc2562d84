// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

package catalogdb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/errs"

	"geostac.io/geostac/catalog"
	"geostac.io/geostac/stac"
)

type assetsDB struct {
	db *DB
}

const assetColumns = `collection, item, name, media_type, href, is_external,
	checksum, content_encoding, update_interval, file_size, created, updated, etag`

func scanAsset(row interface{ Scan(...interface{}) error }) (*stac.Asset, error) {
	var asset stac.Asset
	err := row.Scan(&asset.Collection, &asset.Item, &asset.Name, &asset.MediaType,
		&asset.Href, &asset.IsExternal, &asset.Checksum, &asset.ContentEncoding,
		&asset.UpdateInterval, &asset.FileSize, &asset.Created, &asset.Updated, &asset.ETag)
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

func (assets *assetsDB) Create(ctx context.Context, asset *stac.Asset) (_ *stac.Asset, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := stac.ValidateName(asset.Name); err != nil {
		return nil, Error.Wrap(err)
	}
	if err := stac.ValidateContentEncoding(asset.ContentEncoding); err != nil {
		return nil, Error.Wrap(err)
	}
	if asset.Checksum != "" {
		if err := stac.ValidateChecksum(asset.Checksum); err != nil {
			return nil, Error.Wrap(err)
		}
	}
	if asset.Item != "" {
		if _, err := (&itemsDB{db: assets.db}).Get(ctx, asset.Collection, asset.Item); err != nil {
			return nil, err
		}
	} else {
		if _, err := (&collectionsDB{db: assets.db}).Get(ctx, asset.Collection); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	created := *asset
	created.Created = now
	created.Updated = now
	created.ETag = uuid.NewString()
	if created.UpdateInterval == 0 {
		created.UpdateInterval = -1
	}

	_, err = assets.db.db.ExecContext(ctx, assets.db.rebind(`
		INSERT INTO assets (`+assetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		created.Collection, created.Item, created.Name, created.MediaType,
		created.Href, created.IsExternal, created.Checksum, created.ContentEncoding,
		created.UpdateInterval, created.FileSize, created.Created, created.Updated, created.ETag)
	if err != nil {
		if isConstraintError(err) {
			return nil, catalog.ErrAlreadyExists.New("asset %s", created.Ref().ObjectKey())
		}
		return nil, Error.Wrap(err)
	}
	return &created, nil
}

func (assets *assetsDB) Get(ctx context.Context, ref stac.AssetRef) (_ *stac.Asset, err error) {
	defer mon.Task()(&ctx)(&err)

	row := assets.db.db.QueryRowContext(ctx, assets.db.rebind(`
		SELECT `+assetColumns+` FROM assets
		WHERE collection = ? AND item = ? AND name = ?`),
		ref.Collection, ref.Item, ref.Asset)

	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrAssetNotFound.New("%s", ref.ObjectKey())
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return asset, nil
}

func (assets *assetsDB) List(ctx context.Context, collection, item string) (_ []stac.Asset, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := assets.db.db.QueryContext(ctx, assets.db.rebind(`
		SELECT `+assetColumns+` FROM assets
		WHERE collection = ? AND item = ? ORDER BY name`), collection, item)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	var list []stac.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		list = append(list, *asset)
	}
	return list, Error.Wrap(rows.Err())
}

func (assets *assetsDB) Update(ctx context.Context, asset *stac.Asset, matchETag string) (_ *stac.Asset, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := stac.ValidateContentEncoding(asset.ContentEncoding); err != nil {
		return nil, Error.Wrap(err)
	}
	if asset.Checksum != "" {
		if err := stac.ValidateChecksum(asset.Checksum); err != nil {
			return nil, Error.Wrap(err)
		}
	}

	now := time.Now().UTC()
	etag := uuid.NewString()

	query := `
		UPDATE assets
		SET media_type = ?, href = ?, is_external = ?, checksum = ?, content_encoding = ?,
			update_interval = ?, file_size = ?, updated = ?, etag = ?
		WHERE collection = ? AND item = ? AND name = ?`
	args := []interface{}{
		asset.MediaType, asset.Href, asset.IsExternal, asset.Checksum, asset.ContentEncoding,
		asset.UpdateInterval, asset.FileSize, now, etag,
		asset.Collection, asset.Item, asset.Name,
	}
	if matchETag != "" {
		query += ` AND etag = ?`
		args = append(args, matchETag)
	}

	result, err := assets.db.db.ExecContext(ctx, assets.db.rebind(query), args...)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if affected == 0 {
		if _, getErr := assets.Get(ctx, asset.Ref()); getErr != nil {
			return nil, getErr
		}
		return nil, catalog.ErrPrecondition.New("asset %s etag mismatch", asset.Ref().ObjectKey())
	}
	return assets.Get(ctx, asset.Ref())
}

func (assets *assetsDB) Delete(ctx context.Context, ref stac.AssetRef) (_ *stac.Asset, err error) {
	defer mon.Task()(&ctx)(&err)

	asset, err := assets.Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	err = assets.db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, assets.db.rebind(`
			DELETE FROM asset_uploads WHERE collection = ? AND item = ? AND asset = ?`),
			ref.Collection, ref.Item, ref.Asset)
		if err != nil {
			return Error.Wrap(err)
		}
		result, err := tx.ExecContext(ctx, assets.db.rebind(`
			DELETE FROM assets WHERE collection = ? AND item = ? AND name = ?`),
			ref.Collection, ref.Item, ref.Asset)
		if err != nil {
			return Error.Wrap(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return Error.Wrap(err)
		}
		if affected == 0 {
			return catalog.ErrAssetNotFound.New("%s", ref.ObjectKey())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}
