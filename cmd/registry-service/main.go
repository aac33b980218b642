// Command registry-service exposes the promotion engine and registry reads
// over HTTP for pipeline triggers and operators.
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/churnlab/modelregistry/internal/artifact"
	"github.com/churnlab/modelregistry/internal/audit"
	"github.com/churnlab/modelregistry/internal/config"
	"github.com/churnlab/modelregistry/internal/engine"
	"github.com/churnlab/modelregistry/internal/httpserver"
	"github.com/churnlab/modelregistry/internal/metrics"
	"github.com/churnlab/modelregistry/internal/registry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store registry.Store = registry.NewFileStore(cfg.RegistryDir, cfg.LockWait)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db open: %v", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
		if err := db.Ping(); err != nil {
			log.Fatalf("db ping: %v", err)
		}
		store = registry.NewPGStore(db)
	}

	artifacts := artifact.NewStore(cfg.ModelsDir)
	reg := registry.New(store, artifacts, cfg.RegistryDir)
	reader := metrics.NewReader(cfg.MetricsDir)

	var publisher *audit.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err = audit.NewPublisher(audit.PublisherConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		if err != nil {
			log.Fatalf("kafka publisher init: %v", err)
		}
		defer publisher.Close()
	}

	var archiver artifact.Archiver
	if cfg.S3Bucket != "" {
		archiver, err = artifact.NewS3Archiver(ctx, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			log.Fatalf("s3 archiver init: %v", err)
		}
	}

	eng := engine.New(reader, reg, publisher, archiver)
	server := httpserver.New(cfg, eng, reg)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("model registry service listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	waitForShutdown(cancel, httpServer)
}

func waitForShutdown(cancel context.CancelFunc, srv *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
