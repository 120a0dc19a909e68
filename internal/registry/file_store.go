package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// FileStore persists the registry as an indented JSON object.
type FileStore struct {
	path string
	lock *flock.Flock
}

// NewFileStore returns a store for path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, lock: flock.New(path + ".lock")}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context) (Instances, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Instances{}, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return decode(b, s.path)
}

func decode(b []byte, src string) (Instances, error) {
	var in Instances
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, src, err)
	}
	if in == nil {
		in = Instances{}
	}
	return in, nil
}

// Save writes to a temp file in the same directory, syncs it and renames it over the target.
func (s *FileStore) Save(_ context.Context, in Instances) error {
	if in == nil {
		in = Instances{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(in); err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp registry: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp registry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}

// Lock takes the sidecar file lock, retrying until ctx is done.
func (s *FileStore) Lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return nil, err
	}
	ok, err := s.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("registry lock not acquired")
	}
	return func() { _ = s.lock.Unlock() }, nil
}

func (s *FileStore) Close() error { return nil }
