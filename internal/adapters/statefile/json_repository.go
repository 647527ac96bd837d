// Package statefile provides adapters for state file persistence.
package statefile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/edgeprov/internal/domain/state"
)

// JSONRepository implements state.Repository using JSON files.
type JSONRepository struct{}

// NewJSONRepository creates a new JSON-based state repository.
func NewJSONRepository() *JSONRepository {
	return &JSONRepository{}
}

// Load reads the state document at path.
func (r *JSONRepository) Load(_ context.Context, path string) (*state.ProvisioningState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, state.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var doc state.ProvisioningState
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", state.ErrStateCorrupt, err)
	}
	if doc.Version > state.CurrentVersion {
		return nil, fmt.Errorf("%w: version %d is newer than supported version %d",
			state.ErrStateCorrupt, doc.Version, state.CurrentVersion)
	}

	return &doc, nil
}

// Save writes the state document to path.
func (r *JSONRepository) Save(_ context.Context, path string, doc *state.ProvisioningState) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", state.ErrSaveFailed, err)
	}
	data = append(data, '\n')

	if err := writeAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("%w: %w", state.ErrSaveFailed, err)
	}
	return nil
}

// writeAtomic replaces path with data through a synced temp file in the same
// directory followed by a rename.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Ensure JSONRepository implements state.Repository.
var _ state.Repository = (*JSONRepository)(nil)
