package strata

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Filesystem Store
// -----------------------------------------------------------------------------

// fsStore implements Store on the local filesystem. Put relies on O_EXCL so
// concurrent writers cannot both claim a path.
type fsStore struct {
	root string
}

// NewFS creates a filesystem-backed Store rooted at the given directory.
// The directory must exist.
//
// Consistency: immediate read-after-write.
func NewFS(root string) (Store, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, os.ErrNotExist)
	}
	return &fsStore{root: root}, nil
}

func (f *fsStore) Put(_ context.Context, p string, r io.Reader) error {
	full, err := f.resolve(p, false)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}

	// Write to a hidden staging name first so a crashed writer never leaves
	// a partial file at the published path.
	staging := filepath.Join(filepath.Dir(full), "."+filepath.Base(full)+".tmp")
	file, err := os.OpenFile(staging, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return ErrPathExists
		}
		return err
	}

	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		_ = os.Remove(staging)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(staging)
		return err
	}

	if _, err := os.Stat(full); err == nil {
		_ = os.Remove(staging)
		return ErrPathExists
	}
	if err := os.Rename(staging, full); err != nil {
		_ = os.Remove(staging)
		return err
	}
	return nil
}

func (f *fsStore) Get(_ context.Context, p string) (io.ReadCloser, error) {
	full, err := f.resolve(p, false)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return file, nil
}

func (f *fsStore) Exists(_ context.Context, p string) (bool, error) {
	full, err := f.resolve(p, false)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (f *fsStore) List(_ context.Context, prefix string) ([]string, error) {
	// A storage prefix is not a directory boundary: "raw/users/users_" must
	// match files in raw/users/. Walk the nearest directory and filter.
	rel, valid := cleanPrefix(prefix)
	if !valid {
		return nil, ErrInvalidPath
	}
	dir := f.root
	if rel != "" {
		dir = filepath.Join(f.root, filepath.FromSlash(rel))
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			dir = filepath.Dir(dir)
		}
	}

	var keys []string
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		relPath, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(relPath)
		if strings.HasPrefix(key, rel) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (f *fsStore) resolve(p string, allowEmpty bool) (string, error) {
	cleaned, valid := cleanKey(p)
	if !valid || (!allowEmpty && cleaned == "") {
		return "", ErrInvalidPath
	}
	full := filepath.Join(f.root, filepath.FromSlash(cleaned))

	absRoot, err := filepath.Abs(f.root)
	if err != nil {
		return "", err
	}
	absFull, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if absFull != absRoot && !strings.HasPrefix(absFull, absRoot+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return full, nil
}

// -----------------------------------------------------------------------------
// Memory Store
// -----------------------------------------------------------------------------

// memoryStore implements Store with an in-memory map. Safe for concurrent
// use; intended for tests and local runs.
type memoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an in-memory Store.
func NewMemory() Store {
	return &memoryStore{data: make(map[string][]byte)}
}

func (m *memoryStore) Put(_ context.Context, p string, r io.Reader) error {
	key, valid := cleanKey(p)
	if !valid || key == "" {
		return ErrInvalidPath
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data[key]; exists {
		return ErrPathExists
	}
	m.data[key] = data
	return nil
}

func (m *memoryStore) Get(_ context.Context, p string) (io.ReadCloser, error) {
	key, valid := cleanKey(p)
	if !valid || key == "" {
		return nil, ErrInvalidPath
	}

	m.mu.RLock()
	data, exists := m.data[key]
	m.mu.RUnlock()
	if !exists {
		return nil, ErrNotFound
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	return io.NopCloser(strings.NewReader(string(cp))), nil
}

func (m *memoryStore) Exists(_ context.Context, p string) (bool, error) {
	key, valid := cleanKey(p)
	if !valid || key == "" {
		return false, ErrInvalidPath
	}

	m.mu.RLock()
	_, exists := m.data[key]
	m.mu.RUnlock()
	return exists, nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]string, error) {
	cleaned, valid := cleanPrefix(prefix)
	if !valid {
		return nil, ErrInvalidPath
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for key := range m.data {
		if strings.HasPrefix(key, cleaned) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// cleanKey normalizes an object key and rejects escapes.
func cleanKey(p string) (string, bool) {
	if p == "" {
		return "", false
	}
	cleaned := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "/")
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return cleaned, true
}

// cleanPrefix normalizes a listing prefix. Unlike keys, prefixes may be
// empty (list everything) and keep a trailing component that is not a full
// path segment.
func cleanPrefix(p string) (string, bool) {
	if p == "" {
		return "", true
	}
	trailing := strings.HasSuffix(p, "/")
	cleaned := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "/")
	if cleaned == "." {
		return "", true
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	if trailing {
		cleaned += "/"
	}
	return cleaned, true
}
