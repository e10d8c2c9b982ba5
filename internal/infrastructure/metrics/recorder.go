package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "partselect"

// Result label values
const (
	resultOK      = "ok"
	resultError   = "error"
	resultTimeout = "timeout"
	resultEmpty   = "empty"
	resultFailure = "failure"
)

// Recorder exports source call and selection metrics. It satisfies
// usecase.SourceObserver and usecase.SelectionObserver.
type Recorder struct {
	gatherer prometheus.Gatherer

	sourceCalls   *prometheus.CounterVec
	sourceLatency *prometheus.HistogramVec
	selections    *prometheus.CounterVec
	candidates    prometheus.Histogram
}

// NewRecorder registers the collectors on a fresh registry
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewRecorderWith(reg, reg)
}

// NewRecorderWith registers the collectors on reg; gatherer backs Handler
func NewRecorderWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		gatherer: gatherer,
		sourceCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "calls_total",
			Help:      "Catalog source calls by source, operation and result",
		}, []string{"source", "operation", "result"}),
		sourceLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "latency_seconds",
			Help:      "Catalog source call latency",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source", "operation"}),
		selections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "selection",
			Name:      "total",
			Help:      "Completed selections by outcome",
		}, []string{"result"}),
		candidates: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "selection",
			Name:      "recommended_parts",
			Help:      "Number of parts recommended per selection",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
		}),
	}
}

// ObserveSourceCall records one adapter call
func (r *Recorder) ObserveSourceCall(source, operation string, elapsed time.Duration, err error) {
	result := resultOK
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		result = resultTimeout
	default:
		result = resultError
	}
	r.sourceCalls.WithLabelValues(source, operation, result).Inc()
	r.sourceLatency.WithLabelValues(source, operation).Observe(elapsed.Seconds())
}

// ObserveSelection records one completed selection
func (r *Recorder) ObserveSelection(candidates int, err error) {
	result := resultOK
	switch {
	case err != nil:
		result = resultFailure
	case candidates == 0:
		result = resultEmpty
	}
	r.selections.WithLabelValues(result).Inc()
	r.candidates.Observe(float64(candidates))
}

// Handler serves the gathered metrics in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
