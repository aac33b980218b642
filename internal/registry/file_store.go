package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/churnlab/modelregistry/internal/models"
)

// StateFileName is the registry state document inside the registry directory.
const StateFileName = "model_registry.json"

const lockPollInterval = 50 * time.Millisecond

// FileStore persists registry state as a single JSON document. Writers take
// an exclusive flock on a sibling lock file for the whole read-modify-write,
// then land the new state via temp-file-and-rename, so readers always see
// either the previous or the new document, never a partial one.
//
// The lock lives on a dedicated file rather than the state file itself:
// the rename replaces the state file's inode, which would silently detach
// any lock held on it.
type FileStore struct {
	path     string
	lockPath string
	lockWait time.Duration
}

// NewFileStore returns a FileStore rooted at dir and ensures dir exists.
// lockWait bounds how long AppendAndSetProduction waits for the registry
// lock before giving up with ErrRegistryLocked.
func NewFileStore(dir string, lockWait time.Duration) *FileStore {
	_ = os.MkdirAll(dir, 0o755)
	path := filepath.Join(dir, StateFileName)
	return &FileStore{
		path:     path,
		lockPath: path + ".lock",
		lockWait: lockWait,
	}
}

func (f *FileStore) Load(ctx context.Context) (models.RegistryState, error) {
	if err := ctx.Err(); err != nil {
		return models.RegistryState{}, err
	}
	return f.read()
}

func (f *FileStore) read() (models.RegistryState, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.RegistryState{Models: []models.RegistryEntry{}}, nil
		}
		return models.RegistryState{}, fmt.Errorf("read registry state %s: %w", f.path, err)
	}
	var state models.RegistryState
	if err := json.Unmarshal(b, &state); err != nil {
		return models.RegistryState{}, fmt.Errorf("%w: %s: %v", ErrRegistryCorrupt, f.path, err)
	}
	if state.Models == nil {
		state.Models = []models.RegistryEntry{}
	}
	return state, nil
}

// AppendAndSetProduction appends entry to the history and designates it
// production, as one all-or-nothing state transition.
func (f *FileStore) AppendAndSetProduction(ctx context.Context, entry models.RegistryEntry) (models.RegistryState, error) {
	lock, err := f.acquireLock(ctx)
	if err != nil {
		return models.RegistryState{}, err
	}
	defer lock.release()

	state, err := f.read()
	if err != nil {
		return models.RegistryState{}, err
	}
	state.Models = append(state.Models, entry)
	state.Production = &entry

	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return models.RegistryState{}, fmt.Errorf("marshal registry state: %w", err)
	}
	if err := writeFileAtomic(f.path, b, 0o644); err != nil {
		return models.RegistryState{}, err
	}
	return state, nil
}

type fileLock struct {
	f *os.File
}

func (l *fileLock) release() {
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	_ = l.f.Close()
}

// acquireLock takes the exclusive advisory lock, polling non-blocking flock
// until the wait bound expires. Failing fast with ErrRegistryLocked beats
// hanging a pipeline run on a wedged peer.
func (f *FileStore) acquireLock(ctx context.Context) (*fileLock, error) {
	lf, err := os.OpenFile(f.lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open registry lock %s: %w", f.lockPath, err)
	}
	deadline := time.Now().Add(f.lockWait)
	for {
		err := syscall.Flock(int(lf.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return &fileLock{f: lf}, nil
		}
		if err != syscall.EWOULDBLOCK {
			lf.Close()
			return nil, fmt.Errorf("flock %s: %w", f.lockPath, err)
		}
		if time.Now().After(deadline) {
			lf.Close()
			return nil, fmt.Errorf("%w: %s not acquired within %s", ErrRegistryLocked, f.lockPath, f.lockWait)
		}
		select {
		case <-ctx.Done():
			lf.Close()
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// writeFileAtomic lands data at path via a temp file in the same directory
// and a rename, syncing before the swap.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp for %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	tmpName = ""
	return nil
}
