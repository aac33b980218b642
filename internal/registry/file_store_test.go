package registry_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churnlab/modelregistry/internal/models"
	"github.com/churnlab/modelregistry/internal/registry"
)

func testEntry(name string, score float64) models.RegistryEntry {
	return models.RegistryEntry{
		ID:            uuid.New(),
		Name:          name,
		Artifact:      name + "_20240101T000000Z.bin",
		MetricsFile:   name + "_20240101T000000Z.json",
		PrimaryMetric: "pr_auc",
		PrimaryScore:  score,
		PromotedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestFileStoreLoadEmpty(t *testing.T) {
	store := registry.NewFileStore(t.TempDir(), time.Second)
	state, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, state.Models)
	assert.Nil(t, state.Production)
}

func TestFileStoreAppendIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	store := registry.NewFileStore(t.TempDir(), time.Second)

	entries := []models.RegistryEntry{
		testEntry("baseline_logreg", 0.81),
		testEntry("candidate_hgb", 0.88),
		testEntry("candidate_hgb", 0.91),
	}
	for _, e := range entries {
		_, err := store.AppendAndSetProduction(ctx, e)
		require.NoError(t, err)
	}

	state, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, state.Models, len(entries))
	for i, e := range entries {
		assert.Equal(t, e.ID, state.Models[i].ID)
	}
	require.NotNil(t, state.Production)
	// production is the last appended entry, not the max-by-score one
	assert.Equal(t, entries[len(entries)-1].ID, state.Production.ID)
}

func TestFileStoreCorruptStateIsNotOverwritten(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := registry.NewFileStore(dir, time.Second)

	statePath := filepath.Join(dir, registry.StateFileName)
	require.NoError(t, os.WriteFile(statePath, []byte("{not json"), 0o644))

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, registry.ErrRegistryCorrupt)

	_, err = store.AppendAndSetProduction(ctx, testEntry("candidate_hgb", 0.88))
	assert.ErrorIs(t, err, registry.ErrRegistryCorrupt)

	b, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("{not json"), b)
}

func TestFileStoreLockContention(t *testing.T) {
	dir := t.TempDir()
	store := registry.NewFileStore(dir, 150*time.Millisecond)

	lockPath := filepath.Join(dir, registry.StateFileName+".lock")
	held, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer held.Close()
	require.NoError(t, syscall.Flock(int(held.Fd()), syscall.LOCK_EX))
	defer syscall.Flock(int(held.Fd()), syscall.LOCK_UN)

	_, err = store.AppendAndSetProduction(context.Background(), testEntry("candidate_hgb", 0.88))
	assert.ErrorIs(t, err, registry.ErrRegistryLocked)
}

func TestFileStoreConcurrentAppendsLoseNoUpdate(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a := testEntry("baseline_logreg", 0.81)
	b := testEntry("candidate_hgb", 0.88)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, e := range []models.RegistryEntry{a, b} {
		wg.Add(1)
		go func(i int, e models.RegistryEntry) {
			defer wg.Done()
			// separate store values, as two racing promotion runs would have
			s := registry.NewFileStore(dir, 5*time.Second)
			_, errs[i] = s.AppendAndSetProduction(ctx, e)
		}(i, e)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	state, err := registry.NewFileStore(dir, time.Second).Load(ctx)
	require.NoError(t, err)
	require.Len(t, state.Models, 2)
	seen := map[uuid.UUID]bool{state.Models[0].ID: true, state.Models[1].ID: true}
	assert.True(t, seen[a.ID])
	assert.True(t, seen[b.ID])
	require.NotNil(t, state.Production)
	assert.Equal(t, state.Models[1].ID, state.Production.ID)
}
