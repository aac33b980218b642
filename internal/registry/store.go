package registry

import (
	"context"
	"errors"

	"github.com/churnlab/modelregistry/internal/models"
)

var (
	// ErrMissingArtifactRef indicates the winning candidate's metrics record
	// never declared an artifact reference.
	ErrMissingArtifactRef = errors.New("metrics record missing artifact reference")

	// ErrRegistryCorrupt indicates persisted registry state exists but does
	// not parse. The state is never overwritten in this case; an operator has
	// to intervene.
	ErrRegistryCorrupt = errors.New("registry state corrupt")

	// ErrRegistryLocked indicates the exclusive registry lock could not be
	// acquired within the configured wait bound.
	ErrRegistryLocked = errors.New("registry locked")
)

// Store is the durable registry state backend. Implementations own the
// serialization discipline: AppendAndSetProduction must be atomic with
// respect to readers and serialized across concurrent writers, so two
// promotions can never clobber each other's history entry.
type Store interface {
	Load(ctx context.Context) (models.RegistryState, error)
	AppendAndSetProduction(ctx context.Context, entry models.RegistryEntry) (models.RegistryState, error)
}
