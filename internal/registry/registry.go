// Package registry owns the durable promotion history, the production
// pointer, and the atomicity of the promote transition.
package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/churnlab/modelregistry/internal/artifact"
	"github.com/churnlab/modelregistry/internal/models"
)

// AliasName is the stable production pointer in the models directory; each
// promotion overwrites it. The artifact's extension is appended, so a
// "candidate.bin" winner lands as "production_latest.bin".
const AliasName = "production_latest"

// StampFormat qualifies per-promotion registry copies with a second-precision
// UTC timestamp, e.g. candidate_hgb_20240102T000000Z.bin.
const StampFormat = "20060102T150405Z"

// Registry performs promotions: it copies the winning artifact and its
// metrics record into the registry directory, repoints the production alias,
// and records the decision through a Store.
type Registry struct {
	store     Store
	artifacts *artifact.Store
	dir       string
}

func New(store Store, artifacts *artifact.Store, dir string) *Registry {
	_ = os.MkdirAll(dir, 0o755)
	return &Registry{store: store, artifacts: artifacts, dir: dir}
}

// Dir returns the registry directory promotions are copied into.
func (r *Registry) Dir() string {
	return r.dir
}

// History returns the ordered promotion log.
func (r *Registry) History(ctx context.Context) ([]models.RegistryEntry, error) {
	state, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return state.Models, nil
}

// Production returns the current production entry, or nil if nothing has ever
// been promoted.
func (r *Registry) Production(ctx context.Context) (*models.RegistryEntry, error) {
	state, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return state.Production, nil
}

// Promote durably designates the selection's winner as production, returning
// the recorded entry and the production alias path. Every step either fully
// completes or leaves all previously durable state unchanged; the only
// mutation visible to registry readers is the final store append. Registry
// copies orphaned by a failure after they landed are never referenced and are
// harmless.
func (r *Registry) Promote(ctx context.Context, sel models.Selection, primaryMetric string) (models.RegistryEntry, string, error) {
	winner := sel.Winner
	if winner.ArtifactRef == "" {
		return models.RegistryEntry{}, "", fmt.Errorf("%w: candidate %s (record %s)", ErrMissingArtifactRef, winner.Name, winner.SourcePath)
	}
	artifactPath, err := r.artifacts.Resolve(winner.ArtifactRef)
	if err != nil {
		return models.RegistryEntry{}, "", err
	}

	now := time.Now().UTC()
	ident := winner.Name + "_" + now.Format(StampFormat)
	ext := filepath.Ext(winner.ArtifactRef)
	artifactCopy := ident + ext
	metricsCopy := ident + ".json"

	regArtifact, err := artifact.CopyInto(artifactPath, r.dir, artifactCopy)
	if err != nil {
		return models.RegistryEntry{}, "", fmt.Errorf("copy artifact into registry: %w", err)
	}
	if _, err := artifact.CopyInto(winner.SourcePath, r.dir, metricsCopy); err != nil {
		return models.RegistryEntry{}, "", fmt.Errorf("copy metrics record into registry: %w", err)
	}

	alias, err := artifact.CopyInto(regArtifact, r.artifacts.Root(), AliasName+ext)
	if err != nil {
		return models.RegistryEntry{}, "", fmt.Errorf("update production alias: %w", err)
	}

	entry := models.RegistryEntry{
		ID:            uuid.New(),
		Name:          winner.Name,
		Artifact:      artifactCopy,
		MetricsFile:   metricsCopy,
		PrimaryMetric: primaryMetric,
		PrimaryScore:  sel.Score,
		PromotedAt:    now.Truncate(time.Second),
	}
	if _, err := r.store.AppendAndSetProduction(ctx, entry); err != nil {
		return models.RegistryEntry{}, "", err
	}
	return entry, alias, nil
}
