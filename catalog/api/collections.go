// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"geostac.io/geostac/catalog/cachecontrol"
	"geostac.io/geostac/catalog/uploads"
	"geostac.io/geostac/stac"
)

type collectionJSON struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title,omitempty"`
	Description        string    `json:"description,omitempty"`
	License            string    `json:"license,omitempty"`
	CacheControlHeader string    `json:"cache_control_header,omitempty"`
	Created            time.Time `json:"created"`
	Updated            time.Time `json:"updated"`
	ETag               string    `json:"etag"`
}

func toCollectionJSON(collection *stac.Collection) collectionJSON {
	return collectionJSON{
		ID:                 collection.Name,
		Title:              collection.Title,
		Description:        collection.Description,
		License:            collection.License,
		CacheControlHeader: collection.CacheControlHeader,
		Created:            collection.Created,
		Updated:            collection.Updated,
		ETag:               collection.ETag,
	}
}

type itemJSON struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Geometry   string    `json:"geometry,omitempty"`
	Datetime   time.Time `json:"datetime"`
	Created    time.Time `json:"created"`
	Updated    time.Time `json:"updated"`
	ETag       string    `json:"etag"`
}

func toItemJSON(item *stac.Item) itemJSON {
	return itemJSON{
		Collection: item.Collection,
		ID:         item.Name,
		Geometry:   item.GeometryJSON,
		Datetime:   item.Datetime,
		Created:    item.Created,
		Updated:    item.Updated,
		ETag:       item.ETag,
	}
}

// setCacheHeaders resolves and sets Cache-Control for a response scoped
// to one collection; override is the collection's configured value.
func (server *Server) setCacheHeaders(w http.ResponseWriter, class cachecontrol.Class, override string) {
	w.Header().Set("Cache-Control", server.cache.Resolve(cachecontrol.KindSingleCollection, class, override))
}

func (server *Server) listCollections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	collections, err := server.db.Collections().List(ctx)
	if err != nil {
		server.serveError(w, err)
		return
	}
	out := make([]collectionJSON, 0, len(collections))
	for i := range collections {
		out = append(out, toCollectionJSON(&collections[i]))
	}

	// Listing spans collections, so it is never cached.
	w.Header().Set("Cache-Control", server.cache.Resolve(cachecontrol.KindAggregate, cachecontrol.ClassMetadata, ""))
	sendJSONData(w, http.StatusOK, map[string]interface{}{"collections": out})
}

func (server *Server) createCollection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	var body collectionJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := stac.ValidateName(body.ID); err != nil {
		server.serveError(w, uploads.ErrValidation.Wrap(err))
		return
	}

	created, err := server.db.Collections().Create(ctx, &stac.Collection{
		Name:               body.ID,
		Title:              body.Title,
		Description:        body.Description,
		License:            body.License,
		CacheControlHeader: body.CacheControlHeader,
	})
	if err != nil {
		server.serveError(w, err)
		return
	}
	w.Header().Set("ETag", created.ETag)
	sendJSONData(w, http.StatusCreated, toCollectionJSON(created))
}

func (server *Server) getCollection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	collection, err := server.db.Collections().Get(ctx, mux.Vars(r)["collection"])
	if err != nil {
		server.serveError(w, err)
		return
	}
	if checkPreconditions(w, r, collection.ETag) {
		return
	}
	server.setCacheHeaders(w, cachecontrol.ClassMetadata, collection.CacheControlHeader)
	w.Header().Set("ETag", collection.ETag)
	sendJSONData(w, http.StatusOK, toCollectionJSON(collection))
}

func (server *Server) updateCollection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	var body collectionJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	updated, err := server.db.Collections().Update(ctx, &stac.Collection{
		Name:               mux.Vars(r)["collection"],
		Title:              body.Title,
		Description:        body.Description,
		License:            body.License,
		CacheControlHeader: body.CacheControlHeader,
	}, r.Header.Get("If-Match"))
	if err != nil {
		server.serveError(w, err)
		return
	}
	w.Header().Set("ETag", updated.ETag)
	sendJSONData(w, http.StatusOK, toCollectionJSON(updated))
}

func (server *Server) listItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	collection, err := server.db.Collections().Get(ctx, mux.Vars(r)["collection"])
	if err != nil {
		server.serveError(w, err)
		return
	}
	items, err := server.db.Items().List(ctx, collection.Name)
	if err != nil {
		server.serveError(w, err)
		return
	}
	out := make([]itemJSON, 0, len(items))
	for i := range items {
		out = append(out, toItemJSON(&items[i]))
	}

	server.setCacheHeaders(w, cachecontrol.ClassMetadata, collection.CacheControlHeader)
	sendJSONData(w, http.StatusOK, map[string]interface{}{"items": out})
}

func (server *Server) createItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	var body itemJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := stac.ValidateName(body.ID); err != nil {
		server.serveError(w, uploads.ErrValidation.Wrap(err))
		return
	}

	created, err := server.db.Items().Create(ctx, &stac.Item{
		Collection:   mux.Vars(r)["collection"],
		Name:         body.ID,
		GeometryJSON: body.Geometry,
		Datetime:     body.Datetime,
	})
	if err != nil {
		server.serveError(w, err)
		return
	}
	w.Header().Set("ETag", created.ETag)
	sendJSONData(w, http.StatusCreated, toItemJSON(created))
}

func (server *Server) getItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	vars := mux.Vars(r)
	item, err := server.db.Items().Get(ctx, vars["collection"], vars["item"])
	if err != nil {
		server.serveError(w, err)
		return
	}
	if checkPreconditions(w, r, item.ETag) {
		return
	}

	override, err := server.db.Collections().CacheControlHeader(ctx, item.Collection)
	if err != nil {
		server.serveError(w, err)
		return
	}
	server.setCacheHeaders(w, cachecontrol.ClassMetadata, override)
	w.Header().Set("ETag", item.ETag)
	sendJSONData(w, http.StatusOK, toItemJSON(item))
}
