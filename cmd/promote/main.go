// Command promote performs one promotion run: it loads the latest metrics
// for each configured candidate, picks the best by the primary metric, and
// promotes it to production, printing the resulting alias path.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/churnlab/modelregistry/internal/artifact"
	"github.com/churnlab/modelregistry/internal/audit"
	"github.com/churnlab/modelregistry/internal/config"
	"github.com/churnlab/modelregistry/internal/engine"
	"github.com/churnlab/modelregistry/internal/metrics"
	"github.com/churnlab/modelregistry/internal/registry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	modelsDir := flag.String("models-dir", cfg.ModelsDir, "directory holding model binaries")
	metricsDir := flag.String("metrics-dir", cfg.MetricsDir, "directory holding evaluation metrics records")
	registryDir := flag.String("registry-dir", cfg.RegistryDir, "registry directory")
	primaryMetric := flag.String("metric", cfg.PrimaryMetric, "primary metric used to rank candidates")
	candidates := flag.String("candidates", strings.Join(cfg.CandidateNames, ","), "comma-separated candidate names")
	flag.Parse()

	cfg.ModelsDir = *modelsDir
	cfg.MetricsDir = *metricsDir
	cfg.RegistryDir = *registryDir
	cfg.PrimaryMetric = *primaryMetric

	var names []string
	for _, n := range strings.Split(*candidates, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store registry.Store = registry.NewFileStore(cfg.RegistryDir, cfg.LockWait)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db open: %v", err)
		}
		defer db.Close()
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

	log.Printf("[promote] promoting best of %s by metric %q", strings.Join(names, ", "), cfg.PrimaryMetric)
	result, err := eng.Run(ctx, names, cfg.PrimaryMetric)
	if err != nil {
		log.Fatalf("[promote] promotion failed: %v", err)
	}
	log.Printf("[promote] production alias updated -> %s (candidate=%s score=%.4f)",
		result.Alias, result.Entry.Name, result.Entry.PrimaryScore)
}
