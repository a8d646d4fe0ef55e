package program

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/achievemint/internal/engine"
)

// Metrics provides observability for badge instructions.
type Metrics struct {
	// Submission outcomes by instruction, status and failure code
	Submissions *prometheus.CounterVec

	// End-to-end submission latency by instruction
	SubmitLatency *prometheus.HistogramVec

	// Failures by error category
	Failures *prometheus.CounterVec
}

// NewMetrics registers the badge metrics on reg. Pass a fresh registry in
// tests so repeated construction does not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "achievemint_submissions_total",
			Help: "Total transaction submissions by instruction, status and code",
		}, []string{"instruction", "status", "code"}),

		SubmitLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "achievemint_submit_duration_seconds",
			Help:    "Duration of transaction submission including verification and journaling",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"instruction"}),

		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "achievemint_failures_total",
			Help: "Failed submissions by error category",
		}, []string{"category"}),
	}
}

// ObserveSubmission implements engine.Observer.
func (m *Metrics) ObserveSubmission(instruction, status, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(instruction, status, code).Inc()
	m.SubmitLatency.WithLabelValues(instruction).Observe(elapsed.Seconds())
	if code != "" {
		m.Failures.WithLabelValues(string(CategoryOf(code))).Inc()
	}
}

// CategoryOf returns the category of a journaled code. Runtime rejections
// (signature, duplicate, routing) are authorization or validation failures.
func CategoryOf(code string) Category {
	if c, ok := categories[Code(code)]; ok {
		return c
	}
	switch engine.ErrorCode(code) {
	case engine.ErrCodeInvalidSignature:
		return CategoryAuthorization
	case engine.ErrCodeDuplicateTransaction:
		return CategoryState
	default:
		return CategoryValidation
	}
}

var _ engine.Observer = (*Metrics)(nil)
