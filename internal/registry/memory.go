package registry

import (
	"context"
	"sync"

	"github.com/churnlab/modelregistry/internal/models"
)

// MemoryStore is an in-memory Store for tests and local wiring.
type MemoryStore struct {
	mu    sync.Mutex
	state models.RegistryState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: models.RegistryState{Models: []models.RegistryEntry{}}}
}

func (m *MemoryStore) Load(ctx context.Context) (models.RegistryState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot(), nil
}

func (m *MemoryStore) AppendAndSetProduction(ctx context.Context, entry models.RegistryEntry) (models.RegistryState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Models = append(m.state.Models, entry)
	m.state.Production = &entry
	return m.snapshot(), nil
}

func (m *MemoryStore) snapshot() models.RegistryState {
	out := models.RegistryState{
		Models: append([]models.RegistryEntry(nil), m.state.Models...),
	}
	if m.state.Production != nil {
		p := *m.state.Production
		out.Production = &p
	}
	return out
}
