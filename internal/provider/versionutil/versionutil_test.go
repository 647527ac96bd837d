package versionutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		output string
		want   string
	}{
		{"k3s version v1.30.4+k3s1 (e05e2d5f)\ngo version go1.22.5", "v1.30.4+k3s1"},
		{"v3.14.4+g81c902a", "v3.14.4+g81c902a"},
		{"Version:    v0.32.5\nCommit:     1440643e", "v0.32.5"},
		{"2.61.0", "v2.61.0"},
		{"no version here", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.output))
		})
	}
}

func TestAtLeast(t *testing.T) {
	assert.True(t, AtLeast("v3.14.4", "v3.0.0"))
	assert.True(t, AtLeast("v3.0.0", "v3.0.0"))
	assert.False(t, AtLeast("v2.17.0", "v3.0.0"))
	assert.False(t, AtLeast("", "v3.0.0"))
	assert.False(t, AtLeast("v3.1.0", "latest"))
}

func TestSame(t *testing.T) {
	assert.True(t, Same("v1.30.4+k3s1", "v1.30.4+k3s1"))
	assert.False(t, Same("v1.30.4+k3s1", "v1.30.4+k3s2"))
	assert.False(t, Same("v1.30.4+k3s1", "v1.29.8+k3s1"))
	assert.False(t, Same("", "v1.30.4+k3s1"))
}
