package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics はタスク実行のメトリクスを収集する
type Metrics struct {
	totalTasks   atomic.Uint64
	completedTasks atomic.Uint64
	failedTasks  atomic.Uint64
	totalLatencyNs  atomic.Uint64

	mu                sync.RWMutex
	startTime         time.Time
	lastResetTime     time.Time
	windowTasks    uint64
	latencies         []time.Duration
	maxLatencySamples int
}

// Config はメトリクスの設定
type Config struct {
	MaxLatencySamples int // P99算出に保持するレイテンシのサンプル数
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{MaxLatencySamples: 1000}
}

// New は新しいメトリクスを作成する
func New() *Metrics {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig は設定を指定してメトリクスを作成する
func NewWithConfig(config Config) *Metrics {
	samples := config.MaxLatencySamples
	if samples <= 0 {
		samples = DefaultConfig().MaxLatencySamples
	}
	now := time.Now()
	return &Metrics{
		startTime:         now,
		lastResetTime:     now,
		latencies:         make([]time.Duration, 0, samples),
		maxLatencySamples: samples,
	}
}

// RecordSuccess は正常終了したタスクを記録する
func (m *Metrics) RecordSuccess(latency time.Duration) {
	m.totalTasks.Add(1)
	m.completedTasks.Add(1)
	m.totalLatencyNs.Add(uint64(latency.Nanoseconds()))

	m.mu.Lock()
	m.windowTasks++
	if len(m.latencies) < m.maxLatencySamples {
		m.latencies = append(m.latencies, latency)
	}
	m.mu.Unlock()
}

// RecordFailure は失敗したタスク（エラー/パニック）を記録する
func (m *Metrics) RecordFailure(latency time.Duration) {
	m.totalTasks.Add(1)
	m.failedTasks.Add(1)
	m.totalLatencyNs.Add(uint64(latency.Nanoseconds()))

	m.mu.Lock()
	m.windowTasks++
	m.mu.Unlock()
}

// TotalTasks は実行済みタスク総数を返す
func (m *Metrics) TotalTasks() uint64 {
	return m.totalTasks.Load()
}

// CompletedTasks は正常終了タスク数を返す
func (m *Metrics) CompletedTasks() uint64 {
	return m.completedTasks.Load()
}

// FailedTasks は失敗タスク数を返す
func (m *Metrics) FailedTasks() uint64 {
	return m.failedTasks.Load()
}

// Throughput は現在のウィンドウでの毎秒タスク数を返す
func (m *Metrics) Throughput() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := time.Since(m.lastResetTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.windowTasks) / elapsed
}

// OverallThroughput は開始からの平均毎秒タスク数を返す
func (m *Metrics) OverallThroughput() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.totalTasks.Load()) / elapsed
}

// AverageLatency は平均レイテンシを返す
func (m *Metrics) AverageLatency() time.Duration {
	total := m.totalTasks.Load()
	if total == 0 {
		return 0
	}
	avgNs := m.totalLatencyNs.Load() / total
	return time.Duration(avgNs)
}

// P99Latency はP99レイテンシを返す（サンプルベース）
func (m *Metrics) P99Latency() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencies) == 0 {
		return 0
	}

	// コピーしてソート（標準ライブラリ使用）
	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// ErrorRate は失敗率を返す（0.0〜1.0）
func (m *Metrics) ErrorRate() float64 {
	total := m.totalTasks.Load()
	if total == 0 {
		return 0
	}
	return float64(m.failedTasks.Load()) / float64(total)
}

// Reset はウィンドウメトリクスをリセットする
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.windowTasks = 0
	m.lastResetTime = time.Now()
	m.latencies = m.latencies[:0]
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	TotalTasks        uint64        `json:"total_tasks"`
	CompletedTasks    uint64        `json:"completed_tasks"`
	FailedTasks       uint64        `json:"failed_tasks"`
	Throughput        float64       `json:"throughput"`
	OverallThroughput float64       `json:"overall_throughput"`
	AverageLatency    time.Duration `json:"average_latency"`
	P99Latency        time.Duration `json:"p99_latency"`
	ErrorRate         float64       `json:"error_rate"`
	Elapsed           time.Duration `json:"elapsed"`
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TotalTasks:        m.TotalTasks(),
		CompletedTasks:    m.CompletedTasks(),
		FailedTasks:       m.FailedTasks(),
		Throughput:        m.Throughput(),
		OverallThroughput: m.OverallThroughput(),
		AverageLatency:    m.AverageLatency(),
		P99Latency:        m.P99Latency(),
		ErrorRate:         m.ErrorRate(),
		Elapsed:           time.Since(m.startTime),
	}
}
