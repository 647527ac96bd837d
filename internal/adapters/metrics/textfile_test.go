package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/domain/execution"
)

func TestTextfileRecorder_StepFinished(t *testing.T) {
	r := NewTextfileRecorder(filepath.Join(t.TempDir(), "edgeprov.prom"))
	id := compiler.MustNewStepID("k3s:install")
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	r.StepStarted(id)
	r.StepFinished(execution.NewStepResult(id, execution.StatusApplied).
		WithTiming(started, started.Add(90*time.Second)))
	r.StepFinished(execution.NewStepResult(id, execution.StatusFailed).
		WithError(errors.New("boom")))

	applied, err := r.stepResults.GetMetricWithLabelValues("k3s:install", "applied")
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(applied))

	failed, err := r.stepResults.GetMetricWithLabelValues("k3s:install", "failed")
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(failed))

	assert.Equal(t, 1, testutil.CollectAndCount(r.stepDuration))
}

func TestTextfileRecorder_Flush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "edgeprov.prom")
	r := NewTextfileRecorder(path)
	r.StepFinished(execution.NewStepResult(compiler.MustNewStepID("host:os-check"), execution.StatusSkipped))

	require.NoError(t, r.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `edgeprov_step_results_total{status="skipped",step="host:os-check"} 1`)
	assert.Contains(t, string(data), "edgeprov_run_failed 0")
}

func TestTextfileRecorder_RecordRunNil(t *testing.T) {
	r := NewTextfileRecorder("unused.prom")

	assert.NotPanics(t, func() { r.RecordRun(nil) })
}
