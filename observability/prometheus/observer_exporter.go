// Package prometheus bridges the executor's observer hook to Prometheus
// collectors, so the per-node execution stream can be scraped instead of (or
// in addition to) being traced.
package prometheus

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/tasklab/go-task-graph/core"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// ObserverExporter is a core.Observer that exports task execution events as
// Prometheus metrics: a started counter and a duration histogram per worker,
// plus an in-flight gauge. Attach it with Executor.Observe.
type ObserverExporter struct {
	taskStartedTotal    *prom.CounterVec
	taskDurationSeconds *prom.HistogramVec
	tasksInflight       prom.Gauge

	mu      sync.Mutex
	entered map[int]time.Time // enter timestamp per worker
}

var _ core.Observer = (*ObserverExporter)(nil)

// NewObserverExporter creates and registers the collectors.
func NewObserverExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*ObserverExporter, error) {
	if namespace == "" {
		namespace = "taskgraph"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	startedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_started_total",
		Help:      "Total number of tasks started.",
	}, []string{"worker"})
	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"worker"})
	inflight := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "tasks_inflight",
		Help:      "Number of tasks currently executing.",
	})

	var err error
	if startedVec, err = registerCollector(reg, startedVec); err != nil {
		return nil, err
	}
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if inflight, err = registerCollector(reg, inflight); err != nil {
		return nil, err
	}

	return &ObserverExporter{
		taskStartedTotal:    startedVec,
		taskDurationSeconds: durationVec,
		tasksInflight:       inflight,
		entered:             make(map[int]time.Time),
	}, nil
}

// OnEnter implements core.Observer.
func (o *ObserverExporter) OnEnter(workerID int, task core.Task) {
	if o == nil {
		return
	}
	o.taskStartedTotal.WithLabelValues(workerLabel(workerID)).Inc()
	o.tasksInflight.Inc()

	o.mu.Lock()
	o.entered[workerID] = time.Now()
	o.mu.Unlock()
}

// OnLeave implements core.Observer.
func (o *ObserverExporter) OnLeave(workerID int, task core.Task) {
	if o == nil {
		return
	}
	o.tasksInflight.Dec()

	o.mu.Lock()
	enter, ok := o.entered[workerID]
	delete(o.entered, workerID)
	o.mu.Unlock()
	if !ok {
		return
	}
	o.taskDurationSeconds.WithLabelValues(workerLabel(workerID)).Observe(time.Since(enter).Seconds())
}

func workerLabel(id int) string {
	return strconv.Itoa(id)
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
