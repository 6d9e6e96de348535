// Package metrics provides task metrics collection and reporting.
//
// Metrics collects in-process statistics about task latency, completion and
// failure counts, and throughput. Collector exposes the same signals as
// Prometheus collectors registered on a caller-supplied registerer.
//
// # Basic Usage
//
//	m := metrics.New()
//
//	start := time.Now()
//	// ... run a task ...
//	m.RecordSuccess(time.Since(start))
//
//	snap := m.Snapshot()
//	fmt.Printf("Total: %d, P99: %v\n", snap.TotalTasks, snap.P99Latency)
//
// # Prometheus
//
//	reg := prometheus.NewRegistry()
//	c := metrics.NewCollector(reg, "workpool", "default")
//	c.ObserveTask(d, false)
//
// # Thread Safety
//
// Counters are atomic and latency samples are guarded by a mutex; all
// operations are safe for concurrent use.
package metrics
