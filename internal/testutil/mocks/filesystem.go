package mocks

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"

	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// FileSystem is a thread-safe test double for ports.FileSystem.
type FileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte
	modes map[string]os.FileMode
	dirs  map[string]bool
}

// NewFileSystem creates a new FileSystem mock.
func NewFileSystem() *FileSystem {
	return &FileSystem{
		files: make(map[string][]byte),
		modes: make(map[string]os.FileMode),
		dirs:  make(map[string]bool),
	}
}

// AddFile adds a file to the mock filesystem.
func (fs *FileSystem) AddFile(path string, content string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = []byte(content)
}

// AddDir adds a directory to the mock filesystem.
func (fs *FileSystem) AddDir(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.dirs[path] = true
}

// ReadFile reads a file from the mock filesystem.
func (fs *FileSystem) ReadFile(path string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if content, ok := fs.files[path]; ok {
		return append([]byte(nil), content...), nil
	}
	return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
}

// WriteFile writes a file to the mock filesystem.
func (fs *FileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = append([]byte(nil), data...)
	fs.modes[path] = perm
	return nil
}

// Mode returns the permissions a file was last written with.
func (fs *FileSystem) Mode(path string) os.FileMode {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.modes[path]
}

// Exists checks if a file exists in the mock filesystem.
func (fs *FileSystem) Exists(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, fileExists := fs.files[path]
	_, dirExists := fs.dirs[path]
	return fileExists || dirExists
}

// MkdirAll creates a directory in the mock filesystem.
func (fs *FileSystem) MkdirAll(path string, _ os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.dirs[path] = true
	return nil
}

// FileHash returns a hash of a file in the mock filesystem.
func (fs *FileSystem) FileHash(path string) (string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	content, ok := fs.files[path]
	if !ok {
		return "", fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:]), nil
}

// Ensure FileSystem implements ports.FileSystem.
var _ ports.FileSystem = (*FileSystem)(nil)
