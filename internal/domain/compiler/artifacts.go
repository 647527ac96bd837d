package compiler

import (
	"sort"
	"sync"
)

// Well-known artifact keys.
const (
	ArtifactClusterName     = "cluster-name"
	ArtifactNodeName        = "node-name"
	ArtifactNodeIP          = "node-ip"
	ArtifactClusterEndpoint = "cluster-endpoint"
	ArtifactK3sVersion      = "k3s-version"
	ArtifactKubeconfigPath  = "kubeconfig-path"
	ArtifactNodeIdentity    = "node-identity"
	ArtifactArcResourceID   = "arc-resource-id"
	ArtifactCustomLocation  = "custom-location-id"
	ArtifactAIOInstance     = "aio-instance"
)

// ArtifactSet holds values produced by steps for later steps and for the
// downstream artifact file. Values published during a step stay pending until
// the pipeline commits them, which it does only when the step is Applied.
type ArtifactSet struct {
	mu        sync.RWMutex
	committed map[string]string
	pending   map[string]string
}

// NewArtifactSet creates a set seeded with previously committed values.
func NewArtifactSet(initial map[string]string) *ArtifactSet {
	a := &ArtifactSet{
		committed: make(map[string]string, len(initial)),
		pending:   make(map[string]string),
	}
	for k, v := range initial {
		a.committed[k] = v
	}
	return a
}

// Get returns a value, preferring one published by the running step.
func (a *ArtifactSet) Get(key string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if v, ok := a.pending[key]; ok {
		return v, true
	}
	v, ok := a.committed[key]
	return v, ok
}

// Has reports whether every key has a value.
func (a *ArtifactSet) Has(keys ...string) bool {
	for _, k := range keys {
		if v, ok := a.Get(k); !ok || v == "" {
			return false
		}
	}
	return true
}

// Publish records a value for the running step.
func (a *ArtifactSet) Publish(key, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending[key] = value
}

// Commit promotes pending values and returns them.
func (a *ArtifactSet) Commit() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string, len(a.pending))
	for k, v := range a.pending {
		a.committed[k] = v
		out[k] = v
	}
	a.pending = make(map[string]string)
	return out
}

// Discard drops pending values.
func (a *ArtifactSet) Discard() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = make(map[string]string)
}

// All returns a copy of the committed values.
func (a *ArtifactSet) All() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]string, len(a.committed))
	for k, v := range a.committed {
		out[k] = v
	}
	return out
}

// Keys returns the committed keys, sorted.
func (a *ArtifactSet) Keys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]string, 0, len(a.committed))
	for k := range a.committed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
