package verification

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the rendezvous engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Published        *prometheus.CounterVec
	Submits          *prometheus.CounterVec
	WaitDuration     prometheus.Histogram
	AnalysisDuration *prometheus.HistogramVec
	QueueRejected    *prometheus.CounterVec
	QueueDepth       prometheus.Gauge
}

// NewMetrics registers the verification metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceguard_results_published_total",
			Help: "Verification results published, by label",
		}, []string{"label"}),
		Submits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceguard_submits_total",
			Help: "Verification submissions, by outcome code",
		}, []string{"code"}),
		WaitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceguard_rendezvous_wait_seconds",
			Help:    "Time a submitter waited for the opponent's result",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}),
		AnalysisDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voiceguard_analysis_duration_seconds",
			Help:    "Duration of analysis stages (spoof, identify, total)",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"stage"}),
		QueueRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceguard_analysis_rejected_total",
			Help: "Analyses rejected before running, by reason",
		}, []string{"reason"}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "voiceguard_analysis_queue_depth",
			Help: "Jobs waiting for an analysis worker",
		}),
	}
}

func (m *Metrics) IncPublished(label string) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(label).Inc()
}

func (m *Metrics) IncSubmit(code string) {
	if m == nil {
		return
	}
	m.Submits.WithLabelValues(code).Inc()
}

// ObserveWait records a rendezvous wait. Call with time.Now() at wait entry.
func (m *Metrics) ObserveWait(start time.Time) {
	if m == nil {
		return
	}
	m.WaitDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveAnalysis(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.AnalysisDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) IncQueueRejected(reason string) {
	if m == nil {
		return
	}
	m.QueueRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}
