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

type collectionsDB struct {
	db *DB
}

func (coll *collectionsDB) Create(ctx context.Context, collection *stac.Collection) (_ *stac.Collection, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := stac.ValidateName(collection.Name); err != nil {
		return nil, Error.Wrap(err)
	}

	now := time.Now().UTC()
	created := *collection
	created.Created = now
	created.Updated = now
	created.ETag = uuid.NewString()

	_, err = coll.db.db.ExecContext(ctx, coll.db.rebind(`
		INSERT INTO collections (name, title, description, license, cache_control_header, created, updated, etag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		created.Name, created.Title, created.Description, created.License,
		created.CacheControlHeader, created.Created, created.Updated, created.ETag)
	if err != nil {
		if isConstraintError(err) {
			return nil, catalog.ErrAlreadyExists.New("collection %q", collection.Name)
		}
		return nil, Error.Wrap(err)
	}
	return &created, nil
}

func (coll *collectionsDB) Get(ctx context.Context, name string) (_ *stac.Collection, err error) {
	defer mon.Task()(&ctx)(&err)

	row := coll.db.db.QueryRowContext(ctx, coll.db.rebind(`
		SELECT name, title, description, license, cache_control_header, created, updated, etag
		FROM collections WHERE name = ?`), name)

	var collection stac.Collection
	err = row.Scan(&collection.Name, &collection.Title, &collection.Description,
		&collection.License, &collection.CacheControlHeader,
		&collection.Created, &collection.Updated, &collection.ETag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrCollectionNotFound.New("%q", name)
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &collection, nil
}

func (coll *collectionsDB) List(ctx context.Context) (_ []stac.Collection, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := coll.db.db.QueryContext(ctx, `
		SELECT name, title, description, license, cache_control_header, created, updated, etag
		FROM collections ORDER BY name`)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	var collections []stac.Collection
	for rows.Next() {
		var collection stac.Collection
		err := rows.Scan(&collection.Name, &collection.Title, &collection.Description,
			&collection.License, &collection.CacheControlHeader,
			&collection.Created, &collection.Updated, &collection.ETag)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		collections = append(collections, collection)
	}
	return collections, Error.Wrap(rows.Err())
}

func (coll *collectionsDB) CacheControlHeader(ctx context.Context, name string) (_ string, err error) {
	defer mon.Task()(&ctx)(&err)

	row := coll.db.db.QueryRowContext(ctx,
		coll.db.rebind(`SELECT cache_control_header FROM collections WHERE name = ?`), name)

	var header string
	err = row.Scan(&header)
	if errors.Is(err, sql.ErrNoRows) {
		return "", catalog.ErrCollectionNotFound.New("%q", name)
	}
	if err != nil {
		return "", Error.Wrap(err)
	}
	return header, nil
}

func (coll *collectionsDB) Update(ctx context.Context, collection *stac.Collection, matchETag string) (_ *stac.Collection, err error) {
	defer mon.Task()(&ctx)(&err)

	now := time.Now().UTC()
	etag := uuid.NewString()

	query := `
		UPDATE collections
		SET title = ?, description = ?, license = ?, cache_control_header = ?, updated = ?, etag = ?
		WHERE name = ?`
	args := []interface{}{
		collection.Title, collection.Description, collection.License,
		collection.CacheControlHeader, now, etag, collection.Name,
	}
	if matchETag != "" {
		query += ` AND etag = ?`
		args = append(args, matchETag)
	}

	result, err := coll.db.db.ExecContext(ctx, coll.db.rebind(query), args...)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if affected == 0 {
		if _, getErr := coll.Get(ctx, collection.Name); getErr != nil {
			return nil, getErr
		}
		return nil, catalog.ErrPrecondition.New("collection %q etag mismatch", collection.Name)
	}
	return coll.Get(ctx, collection.Name)
}
