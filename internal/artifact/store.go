// Package artifact resolves model binaries under a models directory and
// copies them durably.
package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrArtifactMissing indicates a resolved artifact path does not exist.
var ErrArtifactMissing = errors.New("model artifact missing")

// Store resolves artifact references against a single models root.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the models directory this store resolves against.
func (s *Store) Root() string {
	return s.root
}

// Resolve joins a reference under the models root and verifies it exists.
// Only the filename component of the reference is used; a reference carrying
// a directory portion cannot escape the root.
func (s *Store) Resolve(reference string) (string, error) {
	name := filepath.Base(reference)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", fmt.Errorf("%w: unusable reference %q", ErrArtifactMissing, reference)
	}
	path := filepath.Join(s.root, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return "", fmt.Errorf("stat artifact %s: %w", path, err)
	}
	return path, nil
}

// CopyInto copies src to destDir/destName. The bytes land in a temp file in
// the same directory, are synced, and are renamed into place, so a reader
// never observes a partially written destination. The source file mode is
// preserved.
func CopyInto(src, destDir, destName string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", src, err)
	}

	tmp, err := os.CreateTemp(destDir, "."+destName+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp in %s: %w", destDir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return "", fmt.Errorf("copy %s: %w", src, err)
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("chmod temp for %s: %w", destName, err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("sync temp for %s: %w", destName, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp for %s: %w", destName, err)
	}

	dest := filepath.Join(destDir, destName)
	if err := os.Rename(tmpName, dest); err != nil {
		return "", fmt.Errorf("rename into %s: %w", dest, err)
	}
	tmpName = ""
	return dest, nil
}
