package patch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSystem is the capability the applicator uses instead of direct OS
// calls. Implementations may cache reads; the cache lifetime is one tool
// invocation (one adapter instance per call, never shared).
type FileSystem interface {
	Exists(path string) bool
	Read(path string) (string, error)
	ReadBinary(path string) ([]byte, error)
	Write(path, content string) error
	Delete(path string) error
	MkdirAll(path string) error
}

// Writethrough is the hook invoked once per successful file write, typically
// to run formatting or collect LSP diagnostics. A nil Writethrough is a
// no-op. Returned strings are advisory diagnostics merged into the result.
type Writethrough func(ctx context.Context, path, content string) ([]string, error)

// osFS is the OS-backed FileSystem with a per-instance content cache.
type osFS struct {
	cache map[string]string
}

// NewOSFS returns a FileSystem backed by the real filesystem. Construct one
// per tool call; the read cache is private to the instance.
func NewOSFS() FileSystem {
	return &osFS{cache: make(map[string]string)}
}

func (f *osFS) Exists(path string) bool {
	if _, ok := f.cache[path]; ok {
		return true
	}
	_, err := os.Stat(path)
	return err == nil
}

func (f *osFS) Read(path string) (string, error) {
	if content, ok := f.cache[path]; ok {
		return content, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	content := string(data)
	f.cache[path] = content
	return content, nil
}

func (f *osFS) ReadBinary(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// Write writes atomically via a temp file in the target directory, preserving
// the original file mode when the target already exists.
func (f *osFS) Write(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".patch-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if info, statErr := os.Stat(path); statErr == nil {
		_ = os.Chmod(tmpPath, info.Mode())
	} else {
		_ = os.Chmod(tmpPath, 0644)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	f.cache[path] = content
	return nil
}

func (f *osFS) Delete(path string) error {
	delete(f.cache, path)
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (f *osFS) MkdirAll(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return nil
}

// MemFS is an in-memory FileSystem used by tests and dry runs.
type MemFS struct {
	Files map[string]string
}

// NewMemFS returns a MemFS seeded with the given files.
func NewMemFS(files map[string]string) *MemFS {
	m := &MemFS{Files: make(map[string]string, len(files))}
	for k, v := range files {
		m.Files[k] = v
	}
	return m
}

func (m *MemFS) Exists(path string) bool {
	_, ok := m.Files[path]
	return ok
}

func (m *MemFS) Read(path string) (string, error) {
	content, ok := m.Files[path]
	if !ok {
		return "", fmt.Errorf("read file: %w", os.ErrNotExist)
	}
	return content, nil
}

func (m *MemFS) ReadBinary(path string) ([]byte, error) {
	content, err := m.Read(path)
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}

func (m *MemFS) Write(path, content string) error {
	m.Files[path] = content
	return nil
}

func (m *MemFS) Delete(path string) error {
	if _, ok := m.Files[path]; !ok {
		return fmt.Errorf("delete file: %w", os.ErrNotExist)
	}
	delete(m.Files, path)
	return nil
}

func (m *MemFS) MkdirAll(path string) error { return nil }
