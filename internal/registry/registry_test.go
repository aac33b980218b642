package registry_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churnlab/modelregistry/internal/artifact"
	"github.com/churnlab/modelregistry/internal/models"
	"github.com/churnlab/modelregistry/internal/registry"
)

type promoteFixture struct {
	modelsDir   string
	metricsDir  string
	registryDir string
	reg         *registry.Registry
}

func newPromoteFixture(t *testing.T) *promoteFixture {
	t.Helper()
	f := &promoteFixture{
		modelsDir:   t.TempDir(),
		metricsDir:  t.TempDir(),
		registryDir: t.TempDir(),
	}
	store := registry.NewFileStore(f.registryDir, time.Second)
	f.reg = registry.New(store, artifact.NewStore(f.modelsDir), f.registryDir)
	return f
}

func (f *promoteFixture) selection(t *testing.T, name, artifactRef string, score float64) models.Selection {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.modelsDir, artifactRef), []byte(name+"-weights"), 0o644))
	record := filepath.Join(f.metricsDir, name+"_20240101T000000Z.json")
	require.NoError(t, os.WriteFile(record, []byte(`{"pr_auc": 0.88, "artifact": "`+artifactRef+`"}`), 0o644))
	return models.Selection{
		Winner: models.Candidate{
			Name:        name,
			Metrics:     map[string]float64{"pr_auc": score},
			ArtifactRef: artifactRef,
			SourcePath:  record,
		},
		Score: score,
	}
}

func TestPromoteRecordsEntryAndUpdatesAlias(t *testing.T) {
	ctx := context.Background()
	f := newPromoteFixture(t)
	sel := f.selection(t, "candidate_hgb", "candidate.bin", 0.88)

	entry, alias, err := f.reg.Promote(ctx, sel, "pr_auc")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.modelsDir, "production_latest.bin"), alias)
	assert.Equal(t, "candidate_hgb", entry.Name)
	assert.Equal(t, 0.88, entry.PrimaryScore)
	assert.Equal(t, "pr_auc", entry.PrimaryMetric)

	regArtifact := filepath.Join(f.registryDir, entry.Artifact)
	regMetrics := filepath.Join(f.registryDir, entry.MetricsFile)
	artifactBytes, err := os.ReadFile(regArtifact)
	require.NoError(t, err)
	assert.Equal(t, []byte("candidate_hgb-weights"), artifactBytes)
	_, err = os.Stat(regMetrics)
	require.NoError(t, err)

	aliasBytes, err := os.ReadFile(alias)
	require.NoError(t, err)
	assert.Equal(t, artifactBytes, aliasBytes)

	prod, err := f.reg.Production(ctx)
	require.NoError(t, err)
	require.NotNil(t, prod)
	assert.Equal(t, entry.ID, prod.ID)
}

func TestPromoteMissingArtifactReference(t *testing.T) {
	f := newPromoteFixture(t)
	sel := models.Selection{Winner: models.Candidate{Name: "candidate_hgb", SourcePath: "somewhere.json"}}

	_, _, err := f.reg.Promote(context.Background(), sel, "pr_auc")
	assert.ErrorIs(t, err, registry.ErrMissingArtifactRef)

	history, err := f.reg.History(context.Background())
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPromoteArtifactMissing(t *testing.T) {
	f := newPromoteFixture(t)
	sel := models.Selection{Winner: models.Candidate{
		Name:        "candidate_hgb",
		ArtifactRef: "nonexistent.bin",
		SourcePath:  "somewhere.json",
	}}

	_, _, err := f.reg.Promote(context.Background(), sel, "pr_auc")
	assert.ErrorIs(t, err, artifact.ErrArtifactMissing)

	history, err := f.reg.History(context.Background())
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPromoteInterruptedCopyLeavesDurableStateUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newPromoteFixture(t)

	first := f.selection(t, "baseline_logreg", "baseline.bin", 0.81)
	firstEntry, firstAlias, err := f.reg.Promote(ctx, first, "pr_auc")
	require.NoError(t, err)
	aliasBefore, err := os.ReadFile(firstAlias)
	require.NoError(t, err)

	// second run dies while copying into the registry: its artifact resolves
	// but its metrics record vanished under it
	second := f.selection(t, "candidate_hgb", "candidate.bin", 0.88)
	require.NoError(t, os.Remove(second.Winner.SourcePath))

	_, _, err = f.reg.Promote(ctx, second, "pr_auc")
	require.Error(t, err)

	history, err := f.reg.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, firstEntry.ID, history[0].ID)

	prod, err := f.reg.Production(ctx)
	require.NoError(t, err)
	require.NotNil(t, prod)
	assert.Equal(t, firstEntry.ID, prod.ID)

	aliasAfter, err := os.ReadFile(filepath.Join(f.modelsDir, "production_latest.bin"))
	require.NoError(t, err)
	assert.Equal(t, aliasBefore, aliasAfter)
}
