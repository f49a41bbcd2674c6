package prometheus

import (
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	taskgraph "github.com/tasklab/go-task-graph"
	"github.com/tasklab/go-task-graph/core"
)

func TestObserverExporter_CountsExecutions(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewObserverExporter("test", reg, ExporterOptions{})
	if err != nil {
		t.Fatal(err)
	}

	exec := taskgraph.New(1)
	defer exec.Stop()
	exec.Observe(exporter)

	g := core.New()
	const nodes = 6
	for i := 0; i < nodes; i++ {
		g.Emplace(func() error { return nil })
	}
	if err := exec.RunWait(g); err != nil {
		t.Fatal(err)
	}

	started := testutil.ToFloat64(exporter.taskStartedTotal.WithLabelValues("0"))
	if started != nodes {
		t.Errorf("expected %d started tasks on worker 0, got %v", nodes, started)
	}
	if inflight := testutil.ToFloat64(exporter.tasksInflight); inflight != 0 {
		t.Errorf("expected 0 in-flight tasks after run, got %v", inflight)
	}
}

func TestObserverExporter_DurationHistogram(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewObserverExporter("test", reg, ExporterOptions{
		DurationBuckets: []float64{0.001, 0.01, 0.1, 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	exec := taskgraph.New(1)
	defer exec.Stop()
	exec.Observe(exporter)

	g := core.New()
	a := g.Emplace(func() error { return nil })
	b := g.Emplace(func() error { return nil })
	a.Precede(b)
	if err := exec.RunWait(g); err != nil {
		t.Fatal(err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}

	var hist *dto.Histogram
	for _, mf := range families {
		if mf.GetName() == "test_task_duration_seconds" {
			hist = mf.GetMetric()[0].GetHistogram()
		}
	}
	if hist == nil {
		t.Fatal("duration histogram not gathered")
	}
	if hist.GetSampleCount() != 2 {
		t.Errorf("expected 2 duration samples, got %d", hist.GetSampleCount())
	}
}

func TestObserverExporter_ReregisterReusesCollectors(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewObserverExporter("dup", reg, ExporterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewObserverExporter("dup", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("re-creating against the same registry must reuse collectors: %v", err)
	}
	if first.taskStartedTotal != second.taskStartedTotal {
		t.Error("expected the already-registered counter vec to be reused")
	}
}
