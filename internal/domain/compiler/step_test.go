package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStep is a test double for the Step interface.
type mockStep struct {
	id       StepID
	deps     []StepID
	checkFn  func(RunContext) (Precondition, error)
	applyFn  func(RunContext) error
	verifyFn func(RunContext) error
	prompt   string
}

func newMockStep(id string, deps ...string) *mockStep {
	depIDs := make([]StepID, len(deps))
	for i, d := range deps {
		depIDs[i] = MustNewStepID(d)
	}
	return &mockStep{
		id:       MustNewStepID(id),
		deps:     depIDs,
		checkFn:  func(RunContext) (Precondition, error) { return NotSatisfied, nil },
		applyFn:  func(RunContext) error { return nil },
		verifyFn: func(RunContext) error { return nil },
	}
}

func (m *mockStep) ID() StepID                                 { return m.id }
func (m *mockStep) DependsOn() []StepID                        { return m.deps }
func (m *mockStep) Check(ctx RunContext) (Precondition, error) { return m.checkFn(ctx) }
func (m *mockStep) Plan(RunContext) (Diff, error)              { return NewDiff(DiffTypeAdd, "test", m.id.String(), "", ""), nil }
func (m *mockStep) Apply(ctx RunContext) error                 { return m.applyFn(ctx) }
func (m *mockStep) Verify(ctx RunContext) error                { return m.verifyFn(ctx) }
func (m *mockStep) Explain() Explanation                       { return NewExplanation("Test step", "For testing", nil) }

type confirmableMockStep struct {
	*mockStep
}

func (c confirmableMockStep) ConfirmPrompt() string { return c.prompt }

func TestStep_Interface(t *testing.T) {
	step := newMockStep("host:os-check")
	ctx := NewRunContext(context.Background())

	assert.Equal(t, "host:os-check", step.ID().String())
	assert.Empty(t, step.DependsOn())

	pre, err := step.Check(ctx)
	require.NoError(t, err)
	assert.True(t, pre.NeedsApply())
	assert.False(t, step.Explain().IsEmpty())
}

func TestAsConfirmable(t *testing.T) {
	plain := newMockStep("k3s:kubeconfig")
	_, ok := AsConfirmable(plain)
	assert.False(t, ok)

	inner := newMockStep("k3s:install")
	inner.prompt = "Reinstall K3s?"
	c, ok := AsConfirmable(confirmableMockStep{mockStep: inner})
	require.True(t, ok)
	assert.Equal(t, "Reinstall K3s?", c.ConfirmPrompt())
}

func TestPrecondition(t *testing.T) {
	assert.False(t, Satisfied.NeedsApply())
	assert.True(t, NotSatisfied.NeedsApply())
	assert.True(t, Unknown.NeedsApply())
	assert.Equal(t, "not-satisfied", NotSatisfied.String())
}
