// Package engine orchestrates one promotion run: load candidates, select a
// winner, promote it through the registry.
package engine

import (
	"context"
	"log"
	"path/filepath"

	"github.com/churnlab/modelregistry/internal/artifact"
	"github.com/churnlab/modelregistry/internal/audit"
	"github.com/churnlab/modelregistry/internal/metrics"
	"github.com/churnlab/modelregistry/internal/models"
	"github.com/churnlab/modelregistry/internal/registry"
	"github.com/churnlab/modelregistry/internal/selector"
)

// Engine is the single entry point for promotion runs. It sequences the
// reader, selector, and registry; errors from any of them propagate
// unchanged so callers can distinguish failure kinds.
type Engine struct {
	reader    *metrics.Reader
	registry  *registry.Registry
	publisher *audit.Publisher
	archiver  artifact.Archiver
}

// New constructs an Engine. publisher and archiver may be nil; promotion
// itself never depends on them.
func New(reader *metrics.Reader, reg *registry.Registry, publisher *audit.Publisher, archiver artifact.Archiver) *Engine {
	return &Engine{
		reader:    reader,
		registry:  reg,
		publisher: publisher,
		archiver:  archiver,
	}
}

// Result is the outcome of one successful promotion run.
type Result struct {
	Alias string               `json:"alias"`
	Entry models.RegistryEntry `json:"entry"`
}

// Run performs one promotion over the named candidates and returns the
// production alias plus the recorded entry. Audit publication and off-site
// archival happen after the promotion is durable and are best-effort: the
// registry is the source of truth, so their failures are logged, not fatal.
func (e *Engine) Run(ctx context.Context, candidateNames []string, primaryMetric string) (Result, error) {
	candidates, err := e.reader.Load(ctx, candidateNames)
	if err != nil {
		return Result{}, err
	}
	sel, err := selector.Select(candidates, primaryMetric)
	if err != nil {
		return Result{}, err
	}
	entry, alias, err := e.registry.Promote(ctx, sel, primaryMetric)
	if err != nil {
		return Result{}, err
	}

	if e.publisher != nil {
		if err := e.publisher.PublishPromotion(ctx, entry, alias); err != nil {
			log.Printf("[promotion] warning: publish audit event: %v", err)
		}
	}
	if e.archiver != nil {
		dir := e.registry.Dir()
		err := e.archiver.ArchivePromotion(ctx, entry.PromotedAt,
			filepath.Join(dir, entry.Artifact),
			filepath.Join(dir, entry.MetricsFile),
		)
		if err != nil {
			log.Printf("[promotion] warning: archive registry copies: %v", err)
		}
	}
	return Result{Alias: alias, Entry: entry}, nil
}
