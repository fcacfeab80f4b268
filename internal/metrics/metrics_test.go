package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lumipallolabs/diskprobe/internal/engine"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder("/mnt/data")

	r.OnPlan(engine.PlanInfo{Count: 3, FreeBytes: 300})
	r.OnFragment(engine.FragmentUpdate{Phase: engine.PhaseWriting, Status: engine.StatusWriteOk, Duration: 2 * time.Second})
	r.OnFragment(engine.FragmentUpdate{Phase: engine.PhaseWriting, Status: engine.StatusWriteSlow, Duration: 30 * time.Second})
	r.OnFragment(engine.FragmentUpdate{Phase: engine.PhaseWriting, Status: engine.StatusWriteFailed})
	r.OnFragment(engine.FragmentUpdate{Phase: engine.PhaseVerifying, Status: engine.StatusVerifyOk})
	r.OnDiagnostic(engine.Diagnostic{})

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.OnComplete(engine.Report{
		StartedAt:    start,
		FinishedAt:   start.Add(time.Minute),
		FragmentSize: 100,
		Planned:      3,
		Tally:        engine.Tally{Good: 1, Bad: 1, Slow: 1},
		Average:      12 * time.Second,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.fragments.WithLabelValues("good")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fragments.WithLabelValues("slow")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.planned))
	assert.Equal(t, 12.0, testutil.ToFloat64(r.timeout))
	assert.Equal(t, 300.0, testutil.ToFloat64(r.bytesProbed))
	assert.Equal(t, 60.0, testutil.ToFloat64(r.duration))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.diagnostics))
	assert.Equal(t, uint64(2), writeSamples(t, r))
}

func writeSamples(t *testing.T, r *Recorder) uint64 {
	t.Helper()
	families, err := r.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "diskprobe_fragment_write_seconds" {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatal("write histogram not gathered")
	return 0
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder("/")
	r.OnComplete(engine.Report{Tally: engine.Tally{Good: 5}, Cancelled: true})

	path := filepath.Join(t.TempDir(), "diskprobe.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `diskprobe_fragment_outcomes_total{outcome="good",volume="/"} 5`)
	assert.Contains(t, text, `diskprobe_session_cancelled{volume="/"} 1`)
}
