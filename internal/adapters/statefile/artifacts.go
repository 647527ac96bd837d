package statefile

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ArtifactDocument is the machine-readable run summary handed to downstream
// tooling (the cluster_info.json consumed by remote configuration).
type ArtifactDocument struct {
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	ClusterName string            `json:"cluster_name,omitempty"`
	Status      string            `json:"status"`
	Artifacts   map[string]string `json:"artifacts"`
	Steps       map[string]string `json:"steps"`
}

// WriteArtifacts writes doc to path atomically.
func WriteArtifacts(path string, doc ArtifactDocument) error {
	if doc.Artifacts == nil {
		doc.Artifacts = map[string]string{}
	}
	if doc.Steps == nil {
		doc.Steps = map[string]string{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode artifacts: %w", err)
	}
	data = append(data, '\n')
	if err := writeAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifacts %s: %w", path, err)
	}
	return nil
}

// ReadArtifacts reads a document written by WriteArtifacts.
func ReadArtifacts(path string) (ArtifactDocument, error) {
	var doc ArtifactDocument
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to decode artifacts %s: %w", path, err)
	}
	return doc, nil
}
