package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArtifactSet_PublishCommitDiscard(t *testing.T) {
	seed := map[string]string{ArtifactClusterName: "edge-01"}
	set := NewArtifactSet(seed)
	seed[ArtifactClusterName] = "mutated"

	v, ok := set.Get(ArtifactClusterName)
	assert.True(t, ok)
	assert.Equal(t, "edge-01", v, "seed is copied")

	set.Publish(ArtifactNodeIP, "10.0.0.5")
	v, ok = set.Get(ArtifactNodeIP)
	assert.True(t, ok, "pending values are visible to the running step")
	assert.Equal(t, "10.0.0.5", v)
	assert.NotContains(t, set.All(), ArtifactNodeIP, "pending values are not committed")

	set.Discard()
	_, ok = set.Get(ArtifactNodeIP)
	assert.False(t, ok)

	set.Publish(ArtifactNodeIP, "10.0.0.6")
	committed := set.Commit()
	assert.Equal(t, map[string]string{ArtifactNodeIP: "10.0.0.6"}, committed)
	assert.Equal(t, "10.0.0.6", set.All()[ArtifactNodeIP])
	assert.Equal(t, []string{ArtifactClusterName, ArtifactNodeIP}, set.Keys())
	assert.Empty(t, set.Commit(), "nothing pending after commit")
}

func TestArtifactSet_PendingShadowsCommitted(t *testing.T) {
	set := NewArtifactSet(map[string]string{ArtifactK3sVersion: "v1.29.0+k3s1"})
	set.Publish(ArtifactK3sVersion, "v1.30.4+k3s1")

	v, _ := set.Get(ArtifactK3sVersion)
	assert.Equal(t, "v1.30.4+k3s1", v)
}

func TestArtifactSet_Has(t *testing.T) {
	set := NewArtifactSet(map[string]string{ArtifactNodeName: "edge", ArtifactNodeIP: ""})

	assert.True(t, set.Has(ArtifactNodeName))
	assert.False(t, set.Has(ArtifactNodeName, ArtifactNodeIP), "empty values do not count")
	assert.False(t, set.Has(ArtifactClusterEndpoint))
	assert.True(t, set.Has())
}
