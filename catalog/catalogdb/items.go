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

type itemsDB struct {
	db *DB
}

func (items *itemsDB) Create(ctx context.Context, item *stac.Item) (_ *stac.Item, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := stac.ValidateName(item.Name); err != nil {
		return nil, Error.Wrap(err)
	}
	if _, err := (&collectionsDB{db: items.db}).Get(ctx, item.Collection); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created := *item
	created.Created = now
	created.Updated = now
	created.ETag = uuid.NewString()
	if created.Datetime.IsZero() {
		created.Datetime = now
	}

	_, err = items.db.db.ExecContext(ctx, items.db.rebind(`
		INSERT INTO items (collection, name, geometry, datetime, created, updated, etag)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		created.Collection, created.Name, created.GeometryJSON, created.Datetime,
		created.Created, created.Updated, created.ETag)
	if err != nil {
		if isConstraintError(err) {
			return nil, catalog.ErrAlreadyExists.New("item %s/%s", item.Collection, item.Name)
		}
		return nil, Error.Wrap(err)
	}
	return &created, nil
}

func (items *itemsDB) Get(ctx context.Context, collection, name string) (_ *stac.Item, err error) {
	defer mon.Task()(&ctx)(&err)

	row := items.db.db.QueryRowContext(ctx, items.db.rebind(`
		SELECT collection, name, geometry, datetime, created, updated, etag
		FROM items WHERE collection = ? AND name = ?`), collection, name)

	var item stac.Item
	err = row.Scan(&item.Collection, &item.Name, &item.GeometryJSON, &item.Datetime,
		&item.Created, &item.Updated, &item.ETag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrItemNotFound.New("%s/%s", collection, name)
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &item, nil
}

func (items *itemsDB) List(ctx context.Context, collection string) (_ []stac.Item, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := items.db.db.QueryContext(ctx, items.db.rebind(`
		SELECT collection, name, geometry, datetime, created, updated, etag
		FROM items WHERE collection = ? ORDER BY name`), collection)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	var list []stac.Item
	for rows.Next() {
		var item stac.Item
		err := rows.Scan(&item.Collection, &item.Name, &item.GeometryJSON, &item.Datetime,
			&item.Created, &item.Updated, &item.ETag)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		list = append(list, item)
	}
	return list, Error.Wrap(rows.Err())
}
