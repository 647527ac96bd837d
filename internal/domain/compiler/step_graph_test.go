package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(steps []Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.ID().String()
	}
	return out
}

func TestStepGraph_AddAndGet(t *testing.T) {
	graph := NewStepGraph()
	require.NoError(t, graph.Add(newMockStep("k3s:install")))

	assert.Equal(t, 1, graph.Len())
	step, ok := graph.Get(MustNewStepID("k3s:install"))
	require.True(t, ok)
	assert.Equal(t, "k3s:install", step.ID().String())

	_, ok = graph.Get(MustNewStepID("k3s:missing"))
	assert.False(t, ok)
}

func TestStepGraph_AddDuplicate(t *testing.T) {
	graph := NewStepGraph()
	require.NoError(t, graph.Add(newMockStep("k3s:install")))

	assert.ErrorIs(t, graph.Add(newMockStep("k3s:install")), ErrDuplicateStep)
}

func TestStepGraph_StepsKeepInsertionOrder(t *testing.T) {
	graph := NewStepGraph()
	for _, id := range []string{"c:one", "a:two", "b:three"} {
		require.NoError(t, graph.Add(newMockStep(id)))
	}

	assert.Equal(t, []string{"c:one", "a:two", "b:three"}, ids(graph.Steps()))
}

func TestStepGraph_TopologicalSort(t *testing.T) {
	graph := NewStepGraph()
	require.NoError(t, graph.Add(newMockStep("modules:sputnik", "k3s:kubeconfig")))
	require.NoError(t, graph.Add(newMockStep("host:os-check")))
	require.NoError(t, graph.Add(newMockStep("k3s:kubeconfig", "k3s:install")))
	require.NoError(t, graph.Add(newMockStep("k3s:install", "host:os-check")))
	require.NoError(t, graph.Add(newMockStep("tools:helm", "host:os-check")))

	sorted, err := graph.TopologicalSort()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"host:os-check",
		"k3s:install",
		"k3s:kubeconfig",
		"modules:sputnik",
		"tools:helm",
	}, ids(sorted))
}

func TestStepGraph_TopologicalSortIsDeterministic(t *testing.T) {
	build := func() *StepGraph {
		graph := NewStepGraph()
		for _, id := range []string{"a:1", "b:2", "c:3", "d:4", "e:5", "f:6"} {
			require.NoError(t, graph.Add(newMockStep(id)))
		}
		require.NoError(t, graph.Add(newMockStep("z:last", "f:6", "a:1")))
		return graph
	}

	first, err := build().TopologicalSort()
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := build().TopologicalSort()
		require.NoError(t, err)
		assert.Equal(t, ids(first), ids(again))
	}
	assert.Equal(t, "z:last", ids(first)[6])
}

func TestStepGraph_Cycle(t *testing.T) {
	graph := NewStepGraph()
	require.NoError(t, graph.Add(newMockStep("host:os-check")))
	require.NoError(t, graph.Add(newMockStep("custom:a", "custom:c")))
	require.NoError(t, graph.Add(newMockStep("custom:b", "custom:a")))
	require.NoError(t, graph.Add(newMockStep("custom:c", "custom:b")))

	_, err := graph.TopologicalSort()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCyclicDependency)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"custom:a", "custom:c", "custom:b", "custom:a"}, cycleErr.Path)
	assert.Contains(t, err.Error(), "custom:a -> custom:c -> custom:b -> custom:a")
}

func TestStepGraph_SelfCycle(t *testing.T) {
	graph := NewStepGraph()
	require.NoError(t, graph.Add(newMockStep("custom:loop", "custom:loop")))

	assert.Equal(t, []string{"custom:loop", "custom:loop"}, graph.FindCycle())
}

func TestStepGraph_FindCycleAcyclic(t *testing.T) {
	graph := NewStepGraph()
	require.NoError(t, graph.Add(newMockStep("a:1")))
	require.NoError(t, graph.Add(newMockStep("b:2", "a:1")))

	assert.Nil(t, graph.FindCycle())
}

func TestStepGraph_Validate(t *testing.T) {
	graph := NewStepGraph()
	require.NoError(t, graph.Add(newMockStep("modules:sputnik", "k3s:kubeconfig")))

	err := graph.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingDep)

	var missing *MissingDependencyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "modules:sputnik", missing.StepID)
	assert.Equal(t, "k3s:kubeconfig", missing.DependsOn)
}

