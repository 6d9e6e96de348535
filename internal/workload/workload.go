package workload

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"workpool/internal/chaos"
	"workpool/internal/events"
	"workpool/internal/future"
	"workpool/internal/logger"
	"workpool/internal/metrics"
	"workpool/internal/recovery"
	"workpool/internal/worker"
)

// Kind はワークロードの種類
type Kind string

const (
	KindSquares    Kind = "squares"
	KindFailing    Kind = "failing"
	KindPi         Kind = "pi"
	KindBackground Kind = "background"
	KindChaos      Kind = "chaos"
)

// ParseKind は文字列からワークロード種別を解決する
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindSquares, KindFailing, KindPi, KindBackground, KindChaos:
		return k, nil
	default:
		return "", fmt.Errorf("unknown workload: %s", s)
	}
}

// backgroundText は background ワークロードが1文字ずつ処理する文字列
const backgroundText = "Hello Threads"

// Config はワークロードの設定
type Config struct {
	Name        string // プリセット名（プール名にも使う）
	Description string // 説明
	Workload    Kind   // 実行するワークロード

	// プール設定
	Workers         int
	LockOSThread    bool
	ShutdownTimeout time.Duration // 0 の場合は無期限に待つ

	// ワークロード設定
	Tasks     int           // 投入するタスク数
	FailEvery int           // failing: この倍数の入力でエラーを返す
	Throws    int           // pi: 全タスク合計の試行回数
	TaskDelay time.Duration // 1タスク（background は1文字）あたりの処理時間

	// カオス設定
	EnableChaos bool
	Chaos       chaos.Config

	// 復旧設定（結果付きタスクのみ）
	Retries    int           // エラー時の最大リトライ回数（0でリトライしない）
	RetryDelay time.Duration // 初回リトライまでの待機時間
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Name:            "default",
		Description:     "Default workload",
		Workload:        KindSquares,
		Workers:         4,
		ShutdownTimeout: 30 * time.Second,
		Tasks:           100,
		FailEvery:       3,
		Throws:          1_000_000,
		Chaos:           chaos.DefaultConfig(),
	}
}

// Validate は設定を検証する
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", worker.ErrConfiguration, c.Workers)
	}
	if c.Tasks < 1 {
		return fmt.Errorf("tasks must be at least 1, got %d", c.Tasks)
	}
	if _, err := ParseKind(string(c.Workload)); err != nil {
		return err
	}
	if c.Workload == KindFailing && c.FailEvery < 1 {
		return fmt.Errorf("fail_every must be at least 1, got %d", c.FailEvery)
	}
	if c.Workload == KindPi && c.Throws < c.Tasks {
		return fmt.Errorf("throws (%d) must be at least tasks (%d)", c.Throws, c.Tasks)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must be non-negative, got %d", c.Retries)
	}
	if c.Chaos.Probability < 0 || c.Chaos.Probability > 1 {
		return fmt.Errorf("chaos probability must be between 0 and 1, got %v", c.Chaos.Probability)
	}
	return nil
}

// Result はワークロード実行結果
type Result struct {
	Name      string        `json:"name"`
	Workload  Kind          `json:"workload"`
	Workers   int           `json:"workers"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	// プール統計
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Rejected  uint64 `json:"rejected"`

	// Future で観測した結果
	Values int `json:"values"`
	Errors int `json:"errors"`
	Panics int `json:"panics"`

	// ワークロード固有の集計
	Sum        int64   `json:"sum,omitempty"`         // squares/failing: 得られた値の合計
	Expected   int64   `json:"expected,omitempty"`    // squares: 期待される合計
	Verified   bool    `json:"verified"`              // squares: 全タスク成功かつ合計が一致
	PiEstimate float64 `json:"pi_estimate,omitempty"` // pi: 推定値
	Hits       int64   `json:"hits,omitempty"`        // pi: 円内に入った試行数

	// メトリクス
	Throughput float64       `json:"throughput"`
	AvgLatency time.Duration `json:"avg_latency"`
	P99Latency time.Duration `json:"p99_latency"`
	ErrorRate  float64       `json:"error_rate"`

	// カオス統計
	FaultsInjected uint64 `json:"faults_injected"`

	// 復旧統計
	Retries     uint64 `json:"retries"`
	Recovered   uint64 `json:"recovered"`
	Unrecovered uint64 `json:"unrecovered"`
}

// Engine はワークロード実行エンジン
type Engine struct {
	config    Config
	log       *logger.Logger
	eventBus  *events.Bus
	collector *metrics.Collector

	mu       sync.RWMutex
	running  bool
	pool     *worker.Pool
	metrics  *metrics.Metrics
	injector *chaos.Injector
	recovery *recovery.Manager
}

// New は新しいEngineを作成する
func New(config Config) *Engine {
	return &Engine{
		config: config,
		log:    logger.Default,
	}
}

// SetEventBus はイベントバスを設定する
func (e *Engine) SetEventBus(bus *events.Bus) {
	e.eventBus = bus
}

// SetLogger はロガーを設定する
func (e *Engine) SetLogger(l *logger.Logger) {
	if l != nil {
		e.log = l
	}
}

// SetCollector はPrometheusメトリクスの記録先を設定する
// 同じ Collector を複数回の実行で共有できる
func (e *Engine) SetCollector(c *metrics.Collector) {
	e.collector = c
}

// Config は設定を返す
func (e *Engine) Config() Config {
	return e.config
}

// Run はワークロードを実行する
// 投入したタスクは ctx がキャンセルされても全て実行されてからプールが停止する
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if err := e.config.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("workload is already running")
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	e.log.Info("", "=== Workload '%s' (%s) started ===", e.config.Name, e.config.Workload)
	if e.config.Description != "" {
		e.log.Info("", "Description: %s", e.config.Description)
	}

	result := &Result{
		Name:      e.config.Name,
		Workload:  e.config.Workload,
		Workers:   e.config.Workers,
		StartTime: time.Now(),
	}

	pool, err := e.setup()
	if err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}

	runErr := e.runWorkload(ctx, pool, result)
	if runErr != nil {
		e.log.Warn("", "Workload interrupted: %v", runErr)
	}

	shutdownErr := e.teardown(pool)

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	e.collectResults(pool, result)

	e.log.Info("", "=== Workload '%s' completed ===", e.config.Name)

	return result, errors.Join(runErr, shutdownErr)
}

// setup はプールとカオスインジェクターを作成する
func (e *Engine) setup() (*worker.Pool, error) {
	m := metrics.New()

	opts := []worker.Option{
		worker.WithLogger(e.log),
		worker.WithMetrics(m),
	}
	if e.eventBus != nil {
		opts = append(opts, worker.WithEventBus(e.eventBus))
	}
	if e.collector != nil {
		opts = append(opts, worker.WithCollector(e.collector))
	}

	pool, err := worker.NewPoolWithConfig(worker.PoolConfig{
		Name:         e.config.Name,
		NumWorkers:   e.config.Workers,
		LockOSThread: e.config.LockOSThread,
	}, opts...)
	if err != nil {
		return nil, err
	}

	var injector *chaos.Injector
	if e.config.EnableChaos || e.config.Workload == KindChaos {
		injector = chaos.New(e.config.Chaos)
		injector.SetLogger(e.log)
		if e.eventBus != nil {
			injector.SetEventBus(e.eventBus)
		}
	}

	var manager *recovery.Manager
	if e.config.Retries > 0 {
		rc := recovery.DefaultConfig()
		rc.MaxRetries = e.config.Retries
		if e.config.RetryDelay > 0 {
			rc.RetryDelay = e.config.RetryDelay
		}
		manager = recovery.New(rc)
		manager.SetLogger(e.log)
		if e.eventBus != nil {
			manager.SetEventBus(e.eventBus)
		}
	}

	e.mu.Lock()
	e.pool = pool
	e.metrics = m
	e.injector = injector
	e.recovery = manager
	e.mu.Unlock()

	return pool, nil
}

// teardown はプールを停止する
func (e *Engine) teardown(pool *worker.Pool) error {
	if e.config.ShutdownTimeout <= 0 {
		pool.Shutdown()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.config.ShutdownTimeout)
	defer cancel()
	return pool.ShutdownContext(ctx)
}

// runWorkload は種類に応じたワークロードを実行する
func (e *Engine) runWorkload(ctx context.Context, pool *worker.Pool, result *Result) error {
	switch e.config.Workload {
	case KindSquares, KindChaos:
		return e.runSquares(ctx, pool, result)
	case KindFailing:
		return e.runFailing(ctx, pool, result)
	case KindPi:
		return e.runPi(ctx, pool, result)
	case KindBackground:
		return e.runBackground(ctx, pool)
	default:
		return fmt.Errorf("unknown workload: %s", e.config.Workload)
	}
}

// sleep はタスクの処理時間を模擬する
func (e *Engine) sleep() {
	if e.config.TaskDelay > 0 {
		time.Sleep(e.config.TaskDelay)
	}
}

// submit は計算にカオスと再試行を適用してプールに投入する
// 再試行は注入されたエラーも対象にするため外側で包む
func submit[T any](e *Engine, pool *worker.Pool, fn func() (T, error)) (*future.Future[T], error) {
	if e.injector != nil {
		fn = chaos.WrapResult(e.injector, fn)
	}
	if e.recovery != nil {
		fn = recovery.Wrap(e.recovery, fn)
	}
	return worker.SubmitWithResult(pool, fn)
}

// collect は Future の結果を集計する
// ctx が終了した場合は残りの Future を待たずに ctx のエラーを返す
func collect[T any](ctx context.Context, futures []*future.Future[T], result *Result, onValue func(T)) error {
	for _, f := range futures {
		v, err := f.GetContext(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			result.Errors++
			var taskErr *worker.TaskError
			if errors.As(err, &taskErr) && taskErr.Panicked() {
				result.Panics++
			}
			continue
		}
		result.Values++
		onValue(v)
	}
	return nil
}

// runSquares は 1..Tasks の二乗を計算して合計を検証する
func (e *Engine) runSquares(ctx context.Context, pool *worker.Pool, result *Result) error {
	n := e.config.Tasks
	futures := make([]*future.Future[int], 0, n)

	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := submit(e, pool, func() (int, error) {
			e.sleep()
			return i * i, nil
		})
		if err != nil {
			return err
		}
		futures = append(futures, f)
	}

	err := collect(ctx, futures, result, func(v int) {
		result.Sum += int64(v)
	})

	result.Expected = int64(n) * int64(n+1) * int64(2*n+1) / 6
	result.Verified = err == nil && result.Errors == 0 && result.Sum == result.Expected
	return err
}

// calculateSquare は x の二乗を返す。failEvery の倍数はエラーになる
func calculateSquare(x, failEvery int) (int, error) {
	if x%failEvery == 0 {
		return 0, fmt.Errorf("cannot square %d: divisible by %d", x, failEvery)
	}
	return x * x, nil
}

// runFailing は一部のタスクがエラーになる計算を投入し、値とエラーを数える
func (e *Engine) runFailing(ctx context.Context, pool *worker.Pool, result *Result) error {
	futures := make([]*future.Future[int], 0, e.config.Tasks)

	for i := 1; i <= e.config.Tasks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := submit(e, pool, func() (int, error) {
			e.sleep()
			return calculateSquare(i, e.config.FailEvery)
		})
		if err != nil {
			return err
		}
		futures = append(futures, f)
	}

	return collect(ctx, futures, result, func(v int) {
		result.Sum += int64(v)
	})
}

// throwsFor は i 番目のタスクが担当する試行回数を返す
func throwsFor(i, total, tasks int) int {
	n := total / tasks
	if i < total%tasks {
		n++
	}
	return n
}

// piSample は1タスク分のモンテカルロ試行結果
type piSample struct {
	hits   int64
	throws int64
}

// runPi はモンテカルロ法で円周率を推定する
// 失敗したタスクの試行は母数から除く
func (e *Engine) runPi(ctx context.Context, pool *worker.Pool, result *Result) error {
	futures := make([]*future.Future[piSample], 0, e.config.Tasks)

	for i := range e.config.Tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		throws := throwsFor(i, e.config.Throws, e.config.Tasks)
		seed1, seed2 := rand.Uint64(), rand.Uint64()

		f, err := submit(e, pool, func() (piSample, error) {
			rng := rand.New(rand.NewPCG(seed1, seed2))
			sample := piSample{throws: int64(throws)}
			for range throws {
				x, y := rng.Float64(), rng.Float64()
				if x*x+y*y <= 1 {
					sample.hits++
				}
			}
			return sample, nil
		})
		if err != nil {
			return err
		}
		futures = append(futures, f)
	}

	var counted int64
	err := collect(ctx, futures, result, func(s piSample) {
		result.Hits += s.hits
		counted += s.throws
	})
	if counted > 0 {
		result.PiEstimate = 4 * float64(result.Hits) / float64(counted)
	}
	return err
}

// runBackground は結果を返さないジョブを投入する
// 各ジョブは文字列を1文字ずつ処理し、完了はシャットダウン後のプール統計で数える
func (e *Engine) runBackground(ctx context.Context, pool *worker.Pool) error {
	for i := range e.config.Tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		source := fmt.Sprintf("bw#%d", i)
		job := func() {
			e.log.Debug(source, "has started")
			for _, c := range backgroundText {
				e.log.Debug(source, "%c", c)
				e.sleep()
			}
			e.log.Debug(source, "is finished")
		}
		if e.injector != nil {
			job = e.injector.Wrap(job)
		}
		if err := pool.Submit(job); err != nil {
			return err
		}
	}
	return nil
}

// collectResults はプールとメトリクスから結果を収集する
func (e *Engine) collectResults(pool *worker.Pool, result *Result) {
	stats := pool.Stats()
	result.Submitted = stats.Submitted
	result.Completed = stats.Completed
	result.Failed = stats.Failed
	result.Rejected = stats.Rejected

	e.mu.RLock()
	m := e.metrics
	injector := e.injector
	manager := e.recovery
	e.mu.RUnlock()

	snapshot := m.Snapshot()
	result.Throughput = snapshot.OverallThroughput
	result.AvgLatency = snapshot.AverageLatency
	result.P99Latency = snapshot.P99Latency
	result.ErrorRate = snapshot.ErrorRate

	if injector != nil {
		result.FaultsInjected = injector.FaultCount()
	}
	if manager != nil {
		stats := manager.Stats()
		result.Retries = stats.TotalRetries
		result.Recovered = stats.SuccessRecoveries
		result.Unrecovered = stats.FailedRecoveries
	}
}

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	report := fmt.Sprintf(`
================================================================================
                         WORKLOAD REPORT: %s (%s)
================================================================================

EXECUTION SUMMARY
-----------------
  Start Time:     %s
  End Time:       %s
  Duration:       %v
  Workers:        %d

POOL STATISTICS
---------------
  Submitted:        %d
  Completed:        %d
  Failed:           %d
  Rejected:         %d
  Error Rate:       %.2f%%
  Throughput:       %.1f tasks/s
  Avg Latency:      %v
  P99 Latency:      %v

RESULTS
-------
  Values:           %d
  Errors:           %d
  Panics:           %d
`,
		r.Name, r.Workload,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		r.Workers,
		r.Submitted,
		r.Completed,
		r.Failed,
		r.Rejected,
		r.ErrorRate*100,
		r.Throughput,
		r.AvgLatency.Round(time.Microsecond),
		r.P99Latency.Round(time.Microsecond),
		r.Values,
		r.Errors,
		r.Panics,
	)

	switch r.Workload {
	case KindSquares, KindChaos:
		report += fmt.Sprintf("  Sum:              %d (expected %d, verified: %t)\n", r.Sum, r.Expected, r.Verified)
	case KindFailing:
		report += fmt.Sprintf("  Sum:              %d\n", r.Sum)
	case KindPi:
		report += fmt.Sprintf("  Pi Estimate:      %.6f (hits %d)\n", r.PiEstimate, r.Hits)
	}

	if r.FaultsInjected > 0 || r.Workload == KindChaos {
		report += fmt.Sprintf(`
CHAOS STATISTICS
----------------
  Faults Injected:  %d
`, r.FaultsInjected)
	}

	if r.Retries > 0 {
		report += fmt.Sprintf(`
RECOVERY STATISTICS
-------------------
  Retries:          %d
  Recovered:        %d
  Unrecovered:      %d
`, r.Retries, r.Recovered, r.Unrecovered)
	}

	report += "\n================================================================================"

	return report
}

// IsRunning は実行中かどうかを返す
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Pool は最後に作成したプールを返す
func (e *Engine) Pool() *worker.Pool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pool
}

// Metrics はタスクメトリクスのスナップショットを返す
func (e *Engine) Metrics() *metrics.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.metrics == nil {
		return nil
	}
	snapshot := e.metrics.Snapshot()
	return &snapshot
}

// ChaosStats はカオス統計を返す
func (e *Engine) ChaosStats() *chaos.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.injector == nil {
		return nil
	}
	stats := e.injector.Stats()
	return &stats
}

// RecoveryStats は復旧統計を返す
func (e *Engine) RecoveryStats() *recovery.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.recovery == nil {
		return nil
	}
	stats := e.recovery.Stats()
	return &stats
}
