// Package metrics records session outcomes as Prometheus metrics and exports them
// in the node_exporter textfile format.
package metrics

import (
	"github.com/lumipallolabs/diskprobe/internal/engine"
	"github.com/prometheus/client_golang/prometheus"
)

const Namespace = "diskprobe"

// Recorder is an engine.Sink that feeds a private registry.
type Recorder struct {
	volume   string
	registry *prometheus.Registry

	fragments     *prometheus.CounterVec
	writeSeconds  prometheus.Histogram
	diagnostics   prometheus.Counter
	timeout       prometheus.Gauge
	bytesProbed   prometheus.Gauge
	freeBytes     prometheus.Gauge
	planned       prometheus.Gauge
	cancelled     prometheus.Gauge
	duration      prometheus.Gauge
	lastCompleted prometheus.Gauge
}

// NewRecorder creates a recorder whose series carry a volume label
func NewRecorder(volume string) *Recorder {
	labels := prometheus.Labels{"volume": volume}
	r := &Recorder{
		volume:   volume,
		registry: prometheus.NewRegistry(),

		fragments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   Namespace,
				Subsystem:   "fragment",
				Name:        "outcomes_total",
				Help:        "Fragments classified, by outcome.",
				ConstLabels: labels,
			}, []string{"outcome"}),

		writeSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   Namespace,
				Subsystem:   "fragment",
				Name:        "write_seconds",
				Help:        "Bucketed histogram of successful fragment write durations.",
				Buckets:     prometheus.ExponentialBuckets(0.001, 2, 16),
				ConstLabels: labels,
			}),

		diagnostics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "session", Name: "diagnostics_total",
			Help: "Best-effort failures that did not change a classification.", ConstLabels: labels,
		}),
		timeout: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "session", Name: "write_timeout_seconds",
			Help: "Adaptive write timeout at the end of the session.", ConstLabels: labels,
		}),
		bytesProbed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "session", Name: "bytes_probed",
			Help: "Bytes covered by classified fragments.", ConstLabels: labels,
		}),
		freeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "session", Name: "free_bytes",
			Help: "Free bytes measured before planning.", ConstLabels: labels,
		}),
		planned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "session", Name: "fragments_planned",
			Help: "Fragments allocated by the planner.", ConstLabels: labels,
		}),
		cancelled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "session", Name: "cancelled",
			Help: "1 if the session was cancelled.", ConstLabels: labels,
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "session", Name: "duration_seconds",
			Help: "Wall time of the session.", ConstLabels: labels,
		}),
		lastCompleted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "session", Name: "last_completed_timestamp_seconds",
			Help: "Unix time the session finished.", ConstLabels: labels,
		}),
	}

	r.registry.MustRegister(
		r.fragments, r.writeSeconds, r.diagnostics, r.timeout, r.bytesProbed,
		r.freeBytes, r.planned, r.cancelled, r.duration, r.lastCompleted,
	)
	return r
}

// Registry exposes the recorder's registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) OnPlan(p engine.PlanInfo) {
	r.planned.Set(float64(p.Count))
	r.freeBytes.Set(float64(p.FreeBytes))
}

func (r *Recorder) OnProgress(engine.Progress) {}

func (r *Recorder) OnFragment(u engine.FragmentUpdate) {
	if u.Phase == engine.PhaseWriting && u.Status.Survived() {
		r.writeSeconds.Observe(u.Duration.Seconds())
	}
}

func (r *Recorder) OnDiagnostic(engine.Diagnostic) {
	r.diagnostics.Inc()
}

func (r *Recorder) OnComplete(rep engine.Report) {
	r.fragments.WithLabelValues("good").Add(float64(rep.Tally.Good))
	r.fragments.WithLabelValues("bad").Add(float64(rep.Tally.Bad))
	r.fragments.WithLabelValues("slow").Add(float64(rep.Tally.Slow))

	r.timeout.Set(rep.Average.Seconds())
	r.bytesProbed.Set(float64(rep.BytesProbed()))
	r.duration.Set(rep.Elapsed().Seconds())
	r.lastCompleted.Set(float64(rep.FinishedAt.Unix()))
	if rep.Cancelled {
		r.cancelled.Set(1)
	} else {
		r.cancelled.Set(0)
	}
}

// WriteTextfile writes the registry atomically to path
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

var _ engine.Sink = (*Recorder)(nil)
