package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace はPrometheusメトリクスのデフォルト名前空間
const DefaultNamespace = "workpool"

// Collector はワーカープールのPrometheusメトリクス
type Collector struct {
	TasksSubmitted prometheus.Counter
	TasksCompleted prometheus.Counter
	TasksFailed    prometheus.Counter
	TasksRejected  prometheus.Counter
	QueueDepth     prometheus.Gauge
	BusyWorkers    prometheus.Gauge
	Workers        prometheus.Gauge
	TaskDuration   prometheus.Histogram
}

// NewCollector はメトリクスを作成し registerer に登録する
// registerer が nil の場合は prometheus.DefaultRegisterer を使う
// 同じ registerer に二度登録するとパニックするため、プールごとに pool ラベルで区別する
func NewCollector(registerer prometheus.Registerer, namespace, pool string) *Collector {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if pool != "" {
		registerer = prometheus.WrapRegistererWith(prometheus.Labels{"pool": pool}, registerer)
	}
	factory := promauto.With(registerer)

	return &Collector{
		TasksSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_submitted_total",
			Help:      "Total number of tasks accepted by the pool",
		}),
		TasksCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Total number of tasks that finished without error",
		}),
		TasksFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_failed_total",
			Help:      "Total number of tasks that returned an error or panicked",
		}),
		TasksRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_rejected_total",
			Help:      "Total number of submissions refused because the pool was stopped",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of tasks waiting in the queue",
		}),
		BusyWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "busy_workers",
			Help:      "Number of workers currently running a task",
		}),
		Workers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers",
			Help:      "Number of live worker goroutines",
		}),
		TaskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Histogram of task execution time",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ObserveTask は1タスク分の実行結果を記録する
func (c *Collector) ObserveTask(d time.Duration, failed bool) {
	c.TaskDuration.Observe(d.Seconds())
	if failed {
		c.TasksFailed.Inc()
	} else {
		c.TasksCompleted.Inc()
	}
}
