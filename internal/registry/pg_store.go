package registry

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/churnlab/modelregistry/internal/models"
)

// registryLockKey serializes concurrent appends via a postgres advisory lock,
// the transactional equivalent of the FileStore flock.
const registryLockKey = 7421

// PGStore is a postgres-backed Store. History order is the insertion order of
// the registry_entries table (its seq column), and production is the most
// recently appended row, matching the file backend's semantics.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const selectEntries = `
	SELECT id, name, artifact, metrics_file, primary_metric, primary_score, promoted_at
	FROM registry_entries
	ORDER BY seq
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (models.RegistryEntry, error) {
	var e models.RegistryEntry
	if err := row.Scan(
		&e.ID,
		&e.Name,
		&e.Artifact,
		&e.MetricsFile,
		&e.PrimaryMetric,
		&e.PrimaryScore,
		&e.PromotedAt,
	); err != nil {
		return models.RegistryEntry{}, err
	}
	return e, nil
}

func collectState(rows *sql.Rows) (models.RegistryState, error) {
	defer rows.Close()
	state := models.RegistryState{Models: []models.RegistryEntry{}}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return models.RegistryState{}, fmt.Errorf("scan registry entry: %w", err)
		}
		state.Models = append(state.Models, entry)
	}
	if err := rows.Err(); err != nil {
		return models.RegistryState{}, fmt.Errorf("iterate registry entries: %w", err)
	}
	if n := len(state.Models); n > 0 {
		state.Production = &state.Models[n-1]
	}
	return state, nil
}

func (s *PGStore) Load(ctx context.Context) (models.RegistryState, error) {
	rows, err := s.db.QueryContext(ctx, selectEntries)
	if err != nil {
		return models.RegistryState{}, fmt.Errorf("load registry state: %w", err)
	}
	return collectState(rows)
}

func (s *PGStore) AppendAndSetProduction(ctx context.Context, entry models.RegistryEntry) (models.RegistryState, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.RegistryState{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", registryLockKey); err != nil {
		return models.RegistryState{}, fmt.Errorf("acquire registry lock: %w", err)
	}

	const insert = `
		INSERT INTO registry_entries (id, name, artifact, metrics_file, primary_metric, primary_score, promoted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`
	if _, err := tx.ExecContext(ctx, insert,
		entry.ID, entry.Name, entry.Artifact, entry.MetricsFile,
		entry.PrimaryMetric, entry.PrimaryScore, entry.PromotedAt,
	); err != nil {
		return models.RegistryState{}, fmt.Errorf("insert registry entry: %w", err)
	}

	rows, err := tx.QueryContext(ctx, selectEntries)
	if err != nil {
		return models.RegistryState{}, fmt.Errorf("reload registry state: %w", err)
	}
	state, err := collectState(rows)
	if err != nil {
		return models.RegistryState{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.RegistryState{}, fmt.Errorf("commit registry append: %w", err)
	}
	return state, nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}
