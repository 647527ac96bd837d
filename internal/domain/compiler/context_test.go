package compiler

import (
	"context"
	"testing"
	"time"

	"github.com/juju/clock"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
)

func TestRunContext_Defaults(t *testing.T) {
	rc := NewRunContext(context.Background())

	assert.False(t, rc.DryRun())
	assert.False(t, rc.Force())
	assert.False(t, rc.SkipVerification())
	assert.Equal(t, clock.WallClock, rc.Clock())
	assert.NotNil(t, rc.Logger())
	assert.NotNil(t, rc.Artifacts())
}

func TestRunContext_WithersCopy(t *testing.T) {
	base := NewRunContext(context.Background())
	clk := testclock.NewClock(time.Unix(0, 0))
	artifacts := NewArtifactSet(map[string]string{ArtifactClusterName: "edge"})

	rc := base.WithDryRun(true).WithForce(true).WithSkipVerification(true).WithClock(clk).WithArtifacts(artifacts)

	assert.True(t, rc.DryRun())
	assert.True(t, rc.Force())
	assert.True(t, rc.SkipVerification())
	assert.Equal(t, clk, rc.Clock())
	assert.Same(t, artifacts, rc.Artifacts())
	assert.False(t, base.DryRun(), "original is unchanged")
}

func TestRunContext_NilArgumentsKeepDefaults(t *testing.T) {
	rc := NewRunContext(context.Background()).WithClock(nil).WithLogger(nil).WithArtifacts(nil)

	assert.NotNil(t, rc.Clock())
	assert.NotNil(t, rc.Logger())
	assert.NotNil(t, rc.Artifacts())
}

func TestRunContext_WithContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	rc := NewRunContext(context.Background()).WithContext(ctx)

	assert.Equal(t, "v", rc.Context().Value(key{}))
}
