// Copyright (C) 2026 GeoStac Contributors.
// See LICENSE for copying information.

// geostac runs the STAC catalog and asset management service.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"geostac.io/geostac/catalog/api"
	"geostac.io/geostac/catalog/cachecontrol"
	"geostac.io/geostac/catalog/catalogdb"
	"geostac.io/geostac/catalog/uploads"
	"geostac.io/geostac/internal/cfgstruct"
	"geostac.io/geostac/objectstore/s3store"
)

// Config aggregates the settings of every component.
type Config struct {
	Database string `help:"database url (sqlite3://path or postgres://...)" default:"sqlite3://geostac.db"`
	Dev      bool   `help:"use development logging" default:"false"`

	API     api.Config
	Cache   cachecontrol.Config
	Uploads uploads.Config
	S3      s3store.Config
}

var config Config

func main() {
	root := &cobra.Command{
		Use:   "geostac",
		Short: "STAC catalog and asset management service",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the api server",
		RunE:  cmdRun,
	}
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "bring the database schema up to date",
		RunE:  cmdMigrate,
	}

	root.AddCommand(runCmd, migrateCmd)
	cfgstruct.Bind(root.PersistentFlags(), &config)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func openLogger() (*zap.Logger, error) {
	if config.Dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func cmdMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	log, err := openLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := catalogdb.Open(ctx, log.Named("db"), config.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.MigrateToLatest(ctx); err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}

func cmdRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := openLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := catalogdb.Open(ctx, log.Named("db"), config.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.MigrateToLatest(ctx); err != nil {
		return err
	}

	gateway, err := s3store.New(config.S3)
	if err != nil {
		return err
	}

	resolver := cachecontrol.New(config.Cache)
	service := uploads.NewService(log.Named("uploads"), db.Uploads(), db.Assets(), db.Collections(), gateway, resolver, config.Uploads)

	listener, err := net.Listen("tcp", config.API.Address)
	if err != nil {
		return err
	}
	server := api.NewServer(log.Named("api"), listener, db, service, gateway, resolver, config.API)

	log.Info("server starting", zap.String("address", listener.Addr().String()))
	return server.Run(ctx)
}
