package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	m := New()

	if m.TotalTasks() != 0 {
		t.Errorf("expected 0 total tasks, got %d", m.TotalTasks())
	}
	if m.ErrorRate() != 0 {
		t.Errorf("expected error rate 0, got %f", m.ErrorRate())
	}
	if m.AverageLatency() != 0 {
		t.Errorf("expected average latency 0, got %v", m.AverageLatency())
	}
	if m.P99Latency() != 0 {
		t.Errorf("expected P99 0, got %v", m.P99Latency())
	}
}

func TestRecordSuccessAndFailure(t *testing.T) {
	m := New()

	m.RecordSuccess(10 * time.Millisecond)
	m.RecordSuccess(20 * time.Millisecond)
	m.RecordFailure(30 * time.Millisecond)

	if m.TotalTasks() != 3 {
		t.Errorf("expected 3 total, got %d", m.TotalTasks())
	}
	if m.CompletedTasks() != 2 {
		t.Errorf("expected 2 completed, got %d", m.CompletedTasks())
	}
	if m.FailedTasks() != 1 {
		t.Errorf("expected 1 failed, got %d", m.FailedTasks())
	}
	if m.AverageLatency() != 20*time.Millisecond {
		t.Errorf("expected average 20ms, got %v", m.AverageLatency())
	}

	rate := m.ErrorRate()
	if rate < 0.33 || rate > 0.34 {
		t.Errorf("expected error rate ~0.333, got %f", rate)
	}
}

func TestP99Latency(t *testing.T) {
	m := New()

	for i := 1; i <= 100; i++ {
		m.RecordSuccess(time.Duration(i) * time.Millisecond)
	}

	if p99 := m.P99Latency(); p99 != 100*time.Millisecond {
		t.Errorf("expected P99 100ms, got %v", p99)
	}
}

func TestMaxLatencySamples(t *testing.T) {
	m := NewWithConfig(Config{MaxLatencySamples: 5})

	for i := 1; i <= 10; i++ {
		m.RecordSuccess(time.Duration(i) * time.Millisecond)
	}

	// サンプルは先頭5件のみ保持される
	if p99 := m.P99Latency(); p99 != 5*time.Millisecond {
		t.Errorf("expected P99 5ms from capped samples, got %v", p99)
	}
	if m.TotalTasks() != 10 {
		t.Errorf("expected counters to keep counting, got %d", m.TotalTasks())
	}

	if d := NewWithConfig(Config{}); d.maxLatencySamples != 1000 {
		t.Errorf("expected default sample size 1000, got %d", d.maxLatencySamples)
	}
}

func TestResetAndSnapshot(t *testing.T) {
	m := New()
	m.RecordSuccess(time.Millisecond)
	m.RecordFailure(time.Millisecond)

	snap := m.Snapshot()
	if snap.TotalTasks != 2 || snap.CompletedTasks != 1 || snap.FailedTasks != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.OverallThroughput <= 0 {
		t.Errorf("expected positive overall throughput, got %f", snap.OverallThroughput)
	}

	m.Reset()
	if m.P99Latency() != 0 {
		t.Errorf("expected samples cleared by reset, got %v", m.P99Latency())
	}
	if m.TotalTasks() != 2 {
		t.Errorf("reset must not clear totals, got %d", m.TotalTasks())
	}
}

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg, "", "test")

	c.TasksSubmitted.Add(3)
	c.ObserveTask(10*time.Millisecond, false)
	c.ObserveTask(20*time.Millisecond, false)
	c.ObserveTask(5*time.Millisecond, true)
	c.QueueDepth.Set(7)

	if got := testutil.ToFloat64(c.TasksSubmitted); got != 3 {
		t.Errorf("expected 3 submitted, got %f", got)
	}
	if got := testutil.ToFloat64(c.TasksCompleted); got != 2 {
		t.Errorf("expected 2 completed, got %f", got)
	}
	if got := testutil.ToFloat64(c.TasksFailed); got != 1 {
		t.Errorf("expected 1 failed, got %f", got)
	}
	if got := testutil.ToFloat64(c.QueueDepth); got != 7 {
		t.Errorf("expected queue depth 7, got %f", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "workpool_task_duration_seconds" {
			found = true
			for _, metric := range mf.GetMetric() {
				if metric.GetHistogram().GetSampleCount() != 3 {
					t.Errorf("expected 3 histogram samples, got %d", metric.GetHistogram().GetSampleCount())
				}
			}
		}
	}
	if !found {
		t.Error("expected workpool_task_duration_seconds to be registered")
	}
}

func TestCollectorSeparatePools(t *testing.T) {
	reg := prometheus.NewRegistry()

	// pool ラベルが異なれば同じ registerer に複数登録できる
	a := NewCollector(reg, "workpool", "a")
	b := NewCollector(reg, "workpool", "b")

	a.TasksRejected.Inc()
	if got := testutil.ToFloat64(b.TasksRejected); got != 0 {
		t.Errorf("expected pool b to be unaffected, got %f", got)
	}
}
