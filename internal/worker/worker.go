package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"workpool/internal/events"
	"workpool/internal/future"
	"workpool/internal/logger"
	"workpool/internal/metrics"
	"workpool/internal/queue"
)

// Job はワーカーが実行する結果を持たないジョブ
type Job func()

// PoolConfig はワーカープールの設定
type PoolConfig struct {
	Name         string // ログ・イベント・メトリクスに使うプール名
	NumWorkers   int    // ワーカー数（1以上）
	LockOSThread bool   // 各ワーカーを専用のOSスレッドに固定する
}

// DefaultPoolConfig はデフォルト設定を返す
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Name:       "pool",
		NumWorkers: runtime.NumCPU(),
	}
}

// Option はプールの任意設定
type Option func(*Pool)

// WithLogger はロガーを設定する
func WithLogger(l *logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}

// WithEventBus はイベントバスを設定する
func WithEventBus(bus *events.Bus) Option {
	return func(p *Pool) { p.eventBus = bus }
}

// WithMetrics はタスクメトリクスの記録先を設定する
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

// WithCollector はPrometheusメトリクスの記録先を設定する
func WithCollector(c *metrics.Collector) Option {
	return func(p *Pool) { p.collector = c }
}

// WithName はプール名を設定する
func WithName(name string) Option {
	return func(p *Pool) {
		if name != "" {
			p.name = name
		}
	}
}

// WithLockOSThread は各ワーカーをOSスレッドに固定するかを設定する
func WithLockOSThread(lock bool) Option {
	return func(p *Pool) { p.lockOSThread = lock }
}

// task はキューに積まれる型消去済みの実行単位
type task struct {
	id string
	// observed は結果が Future で観測されるタスクか
	// false（通常のジョブ）の失敗はログにしか残らない
	observed bool
	run      func() error
}

// Stats はプールの統計情報
type Stats struct {
	Name       string `json:"name"`
	Workers    int    `json:"workers"`
	Idle       int    `json:"idle"`
	Running    int    `json:"running"`
	Terminated int    `json:"terminated"`
	Queued     int    `json:"queued"`
	Submitted  uint64 `json:"submitted"`
	Rejected   uint64 `json:"rejected"`
	Completed  uint64 `json:"completed"`
	Failed     uint64 `json:"failed"`
	Stopped    bool   `json:"stopped"`
}

// Pool は固定数のワーカーゴルーチンを管理する
type Pool struct {
	name         string
	numWorkers   int
	lockOSThread bool

	tasks  *queue.Queue[*task]
	wg     sync.WaitGroup
	states []atomic.Int32

	stopOnce sync.Once
	stopping atomic.Bool
	stopped  chan struct{}

	submitted atomic.Uint64
	rejected  atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64

	log       *logger.Logger
	eventBus  *events.Bus
	metrics   *metrics.Metrics
	collector *metrics.Collector
}

// NewPool は numWorkers 個のワーカーを起動したプールを作成する
// numWorkers が1未満の場合は ErrConfiguration を返し、ワーカーは起動しない
func NewPool(numWorkers int, opts ...Option) (*Pool, error) {
	config := DefaultPoolConfig()
	config.NumWorkers = numWorkers
	return NewPoolWithConfig(config, opts...)
}

// NewPoolWithConfig は設定を指定してプールを作成する
func NewPoolWithConfig(config PoolConfig, opts ...Option) (*Pool, error) {
	if config.NumWorkers < 1 {
		return nil, fmt.Errorf("%w: worker count must be at least 1, got %d", ErrConfiguration, config.NumWorkers)
	}

	p := &Pool{
		name:         config.Name,
		numWorkers:   config.NumWorkers,
		lockOSThread: config.LockOSThread,
		tasks:        queue.New[*task](),
		states:       make([]atomic.Int32, config.NumWorkers),
		stopped:      make(chan struct{}),
		log:          logger.Default,
	}
	if p.name == "" {
		p.name = DefaultPoolConfig().Name
	}
	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(p.numWorkers)
	for i := range p.numWorkers {
		go p.worker(i)
	}

	if p.collector != nil {
		p.collector.Workers.Set(float64(p.numWorkers))
	}
	p.publishEvent(events.NewPoolStartedEvent(p.name, p.numWorkers))
	p.log.Info(p.name, "WorkerPool started with %d workers", p.numWorkers)

	return p, nil
}

// worker は個々のワーカーゴルーチン
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	if p.lockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	for {
		p.states[id].Store(int32(StateIdle))

		t, err := p.tasks.Pop()
		if err != nil {
			// クローズ済みかつ空: 残りのタスクは全て取り出し済み
			p.states[id].Store(int32(StateTerminated))
			if p.collector != nil {
				p.collector.Workers.Dec()
			}
			p.log.Debug(p.workerSource(id), "worker terminated")
			return
		}

		p.states[id].Store(int32(StateRunning))
		p.executeTask(id, t)
	}
}

// executeTask はタスクをエラー境界の内側で実行する
func (p *Pool) executeTask(workerID int, t *task) {
	if p.collector != nil {
		p.collector.BusyWorkers.Inc()
		p.collector.QueueDepth.Set(float64(p.tasks.Len()))
		defer p.collector.BusyWorkers.Dec()
	}

	start := time.Now()
	err := p.runSafely(t)
	duration := time.Since(start)

	if p.metrics != nil {
		if err != nil {
			p.metrics.RecordFailure(duration)
		} else {
			p.metrics.RecordSuccess(duration)
		}
	}
	if p.collector != nil {
		p.collector.ObserveTask(duration, err != nil)
	}

	if err == nil {
		p.completed.Add(1)
		return
	}

	p.failed.Add(1)

	var taskErr *TaskError
	panicked := errors.As(err, &taskErr) && taskErr.Panicked()
	p.publishEvent(events.NewTaskFailedEvent(p.name, t.id, workerID, err, panicked))

	if t.observed {
		// 結果付きタスクのエラーは Future の待ち手が受け取る
		p.log.Debug(p.workerSource(workerID), "task %s failed: %v", t.id, err)
		return
	}

	if panicked {
		p.log.Error(p.workerSource(workerID), "job %s panicked: %v\n%s", t.id, taskErr.Panic, taskErr.Stack)
	} else {
		p.log.Error(p.workerSource(workerID), "job %s failed: %v", t.id, err)
	}
}

// runSafely はパニックを回復してエラーとして返す
func (p *Pool) runSafely(t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(t.id, r)
		}
	}()
	return t.run()
}

// enqueue はタスクをキューに積む
// キューがクローズ済みの場合のみ失敗するため、受理されたタスクは必ず実行される
func (p *Pool) enqueue(t *task) error {
	if err := p.tasks.Push(t); err != nil {
		p.rejected.Add(1)
		if p.collector != nil {
			p.collector.TasksRejected.Inc()
		}
		p.publishEvent(events.NewTaskRejectedEvent(p.name, t.id))
		return ErrPoolStopped
	}

	p.submitted.Add(1)
	if p.collector != nil {
		p.collector.TasksSubmitted.Inc()
		p.collector.QueueDepth.Set(float64(p.tasks.Len()))
	}
	return nil
}

// Submit はジョブをプールに投入する。ブロックしない
// シャットダウン開始後は ErrPoolStopped を返す
func (p *Pool) Submit(job Job) error {
	if job == nil {
		return ErrNilJob
	}
	return p.enqueue(&task{
		id: uuid.NewString(),
		run: func() error {
			job()
			return nil
		},
	})
}

// SubmitWithResult は結果を返す計算をプールに投入し、その Future を即座に返す
// 計算が返したエラーやパニックは *TaskError として Future に届き、ワーカーには伝播しない
func SubmitWithResult[T any](p *Pool, fn func() (T, error)) (*future.Future[T], error) {
	if fn == nil {
		return nil, ErrNilJob
	}

	promise, f := future.New[T]()
	id := uuid.NewString()

	t := &task{
		id:       id,
		observed: true,
		run: func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					taskErr := newPanicError(id, r)
					_ = promise.SetError(taskErr)
					err = taskErr
				}
			}()

			value, fnErr := fn()
			if fnErr != nil {
				taskErr := &TaskError{TaskID: id, Err: fnErr}
				_ = promise.SetError(taskErr)
				return taskErr
			}
			_ = promise.SetValue(value)
			return nil
		},
	}

	if err := p.enqueue(t); err != nil {
		return nil, err
	}
	return f, nil
}

// SubmitValue はエラーを返さない計算を投入する
func SubmitValue[T any](p *Pool, fn func() T) (*future.Future[T], error) {
	if fn == nil {
		return nil, ErrNilJob
	}
	return SubmitWithResult(p, func() (T, error) {
		return fn(), nil
	})
}

// beginShutdown はキューをクローズし、全ワーカーの終了を待つゴルーチンを起動する
func (p *Pool) beginShutdown() {
	p.stopOnce.Do(func() {
		p.stopping.Store(true)

		pending := p.tasks.Len()
		p.publishEvent(events.NewPoolStoppingEvent(p.name, pending))
		p.log.Info(p.name, "WorkerPool stopping (%d queued tasks to drain)", pending)

		p.tasks.Close()

		go func() {
			p.wg.Wait()
			if p.collector != nil {
				p.collector.QueueDepth.Set(0)
			}
			p.publishEvent(events.NewPoolStoppedEvent(p.name))
			p.log.Info(p.name, "WorkerPool stopped")
			close(p.stopped)
		}()
	})
}

// Shutdown はプールを停止する
// 投入済みのタスクを全て実行し終え、全ワーカーが終了するまでブロックする
// 何度呼んでも安全で、並行に呼ばれた場合も全員が停止完了まで待つ
func (p *Pool) Shutdown() {
	p.beginShutdown()
	<-p.stopped
}

// ShutdownContext は ctx が終了するまで停止完了を待つ
// ctx が先に終了した場合は ctx.Err() を返すが、ワーカーはバックグラウンドで残りのタスクを実行し続ける
func (p *Pool) ShutdownContext(ctx context.Context) error {
	p.beginShutdown()

	select {
	case <-p.stopped:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown wait aborted: %w", ctx.Err())
	}
}

// Close は io.Closer としての Shutdown
func (p *Pool) Close() error {
	p.Shutdown()
	return nil
}

// Done は全ワーカーの終了時にクローズされるチャネルを返す
func (p *Pool) Done() <-chan struct{} {
	return p.stopped
}

// IsStopped はシャットダウンが開始されたかを返す
func (p *Pool) IsStopped() bool {
	return p.stopping.Load()
}

// Name はプール名を返す
func (p *Pool) Name() string {
	return p.name
}

// NumWorkers はワーカー数を返す
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// QueueSize は現在のキューサイズを返す
func (p *Pool) QueueSize() int {
	return p.tasks.Len()
}

// WorkerStates は各ワーカーの現在の状態を返す
func (p *Pool) WorkerStates() []WorkerState {
	states := make([]WorkerState, len(p.states))
	for i := range p.states {
		states[i] = WorkerState(p.states[i].Load())
	}
	return states
}

// Stats は現在の統計情報を返す
func (p *Pool) Stats() Stats {
	stats := Stats{
		Name:      p.name,
		Workers:   p.numWorkers,
		Queued:    p.tasks.Len(),
		Submitted: p.submitted.Load(),
		Rejected:  p.rejected.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Stopped:   p.stopping.Load(),
	}
	for _, s := range p.WorkerStates() {
		switch s {
		case StateIdle:
			stats.Idle++
		case StateRunning:
			stats.Running++
		case StateTerminated:
			stats.Terminated++
		}
	}
	return stats
}

// publishEvent はイベントを発行する
func (p *Pool) publishEvent(event events.Event) {
	if p.eventBus != nil {
		p.eventBus.Publish(event)
	}
}

func (p *Pool) workerSource(id int) string {
	return fmt.Sprintf("%s/worker-%d", p.name, id)
}
