// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

// Package api implements the HTTP surface of the catalog: collection,
// item and asset reads, asset management and the multipart upload
// endpoints.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"geostac.io/geostac/catalog"
	"geostac.io/geostac/catalog/cachecontrol"
	"geostac.io/geostac/catalog/uploads"
	"geostac.io/geostac/objectstore"
)

var mon = monkit.Package()

// Config holds the HTTP server settings.
type Config struct {
	Address  string `help:"address the api server listens on" default:":8080"`
	BasePath string `help:"path prefix for all api routes" default:"/api/stac/v1"`
}

// Server serves the catalog API.
type Server struct {
	log *zap.Logger

	listener net.Listener
	server   http.Server

	db      catalog.DB
	uploads *uploads.Service
	gateway objectstore.Gateway
	cache   *cachecontrol.Resolver
	config  Config
}

// NewServer creates an API server serving on listener.
func NewServer(log *zap.Logger, listener net.Listener, db catalog.DB, uploadService *uploads.Service, gateway objectstore.Gateway, cache *cachecontrol.Resolver, config Config) *Server {
	server := &Server{
		log:      log,
		listener: listener,
		db:       db,
		uploads:  uploadService,
		gateway:  gateway,
		cache:    cache,
		config:   config,
	}

	root := mux.NewRouter()
	api := root.PathPrefix(config.BasePath).Subrouter()

	api.HandleFunc("/healthz", server.health).Methods("GET")

	api.HandleFunc("/collections", server.listCollections).Methods("GET")
	api.HandleFunc("/collections", server.createCollection).Methods("POST")
	api.HandleFunc("/collections/{collection}", server.getCollection).Methods("GET")
	api.HandleFunc("/collections/{collection}", server.updateCollection).Methods("PUT")
	api.HandleFunc("/collections/{collection}/items", server.listItems).Methods("GET")
	api.HandleFunc("/collections/{collection}/items", server.createItem).Methods("POST")
	api.HandleFunc("/collections/{collection}/items/{item}", server.getItem).Methods("GET")

	// Asset and upload routes exist twice: for item assets and for
	// assets attached directly to a collection.
	for _, prefix := range []string{
		"/collections/{collection}/items/{item}/assets/{asset}",
		"/collections/{collection}/assets/{asset}",
	} {
		api.HandleFunc(prefix, server.getAsset).Methods("GET")
		api.HandleFunc(prefix, server.putAsset).Methods("PUT")
		api.HandleFunc(prefix, server.deleteAsset).Methods("DELETE")
		api.HandleFunc(prefix+"/data", server.assetData).Methods("GET")

		api.HandleFunc(prefix+"/uploads", server.createUpload).Methods("POST")
		api.HandleFunc(prefix+"/uploads", server.listUploads).Methods("GET")
		api.HandleFunc(prefix+"/uploads/{upload_id}", server.getUpload).Methods("GET")
		api.HandleFunc(prefix+"/uploads/{upload_id}/parts", server.listUploadParts).Methods("GET")
		api.HandleFunc(prefix+"/uploads/{upload_id}/complete", server.completeUpload).Methods("POST")
		api.HandleFunc(prefix+"/uploads/{upload_id}/abort", server.abortUpload).Methods("POST")
	}

	server.server.Handler = root
	return server
}

// Run serves requests until ctx is canceled.
func (server *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var group errgroup.Group
	group.Go(func() error {
		<-ctx.Done()
		return Error.Wrap(server.server.Shutdown(context.Background()))
	})
	group.Go(func() error {
		defer cancel()
		err := server.server.Serve(server.listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return Error.Wrap(err)
	})
	return group.Wait()
}

// Close closes the server and the underlying listener.
func (server *Server) Close() error {
	return Error.Wrap(server.server.Close())
}

// TestHandler exposes the router for httptest-based tests.
func (server *Server) TestHandler() http.Handler {
	return server.server.Handler
}

func (server *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", server.cache.NoCache())
	sendJSONData(w, http.StatusOK, map[string]string{"status": "ok"})
}
