package recovery

import (
	"sync/atomic"
	"time"

	"workpool/internal/events"
	"workpool/internal/logger"
)

// Config は再試行の設定
type Config struct {
	MaxRetries int           // 最大リトライ回数（0でリトライしない）
	RetryDelay time.Duration // 初回リトライまでの待機時間
	Backoff    float64       // リトライごとの待機時間の倍率（1未満は1として扱う）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		RetryDelay: 10 * time.Millisecond,
		Backoff:    2,
	}
}

// Stats は復旧統計
type Stats struct {
	TotalRetries      uint64 `json:"total_retries"`
	SuccessRecoveries uint64 `json:"success_recoveries"`
	FailedRecoveries  uint64 `json:"failed_recoveries"`
}

// Manager はエラーを返した計算を再試行する
// 同じ Manager を複数のワーカーから並行に使える
type Manager struct {
	config   Config
	eventBus *events.Bus
	log      *logger.Logger

	totalRetries      atomic.Uint64
	successRecoveries atomic.Uint64
	failedRecoveries  atomic.Uint64

	// テストで待機を差し替えるため
	sleep func(time.Duration)
}

// New は新しいManagerを作成する
func New(config Config) *Manager {
	if config.Backoff < 1 {
		config.Backoff = 1
	}
	return &Manager{
		config: config,
		log:    logger.Default,
		sleep:  time.Sleep,
	}
}

// SetEventBus はイベントバスを設定する
func (m *Manager) SetEventBus(bus *events.Bus) {
	m.eventBus = bus
}

// SetLogger はロガーを設定する（nil は無視する）
func (m *Manager) SetLogger(l *logger.Logger) {
	if l != nil {
		m.log = l
	}
}

// publishEvent はイベントを発行する
func (m *Manager) publishEvent(event events.Event) {
	if m.eventBus != nil {
		m.eventBus.Publish(event)
	}
}

// delayFor は attempt 回目のリトライ前の待機時間を返す（attempt は1から）
func (m *Manager) delayFor(attempt int) time.Duration {
	d := float64(m.config.RetryDelay)
	for i := 1; i < attempt; i++ {
		d *= m.config.Backoff
	}
	return time.Duration(d)
}

// Wrap は fn がエラーを返した場合に再試行するラッパーを返す
// パニックは再試行せずそのまま伝播する
//
// リトライ間の待機は呼び出し元のワーカー上で行われる。
// 待機中もワーカーは占有されたままで、Shutdown はその待機の終了も待つ。
// RetryDelay と Backoff はプールの停止時間への影響を考えて決めること。
func Wrap[T any](m *Manager, fn func() (T, error)) func() (T, error) {
	return func() (T, error) {
		for attempt := 0; ; attempt++ {
			v, err := fn()
			if err == nil {
				if attempt > 0 {
					m.successRecoveries.Add(1)
					m.log.Debug("", "Recovery: succeeded after %d retries", attempt)
					m.publishEvent(events.NewTaskRecoveredEvent(attempt + 1))
				}
				return v, nil
			}

			if attempt >= m.config.MaxRetries {
				if attempt > 0 {
					m.failedRecoveries.Add(1)
					m.log.Debug("", "Recovery: giving up after %d retries: %v", attempt, err)
					m.publishEvent(events.NewRecoveryFailedEvent(attempt+1, err))
				}
				var zero T
				return zero, err
			}

			m.totalRetries.Add(1)
			if d := m.delayFor(attempt + 1); d > 0 {
				m.sleep(d)
			}
		}
	}
}

// Stats は復旧統計を返す
func (m *Manager) Stats() Stats {
	return Stats{
		TotalRetries:      m.totalRetries.Load(),
		SuccessRecoveries: m.successRecoveries.Load(),
		FailedRecoveries:  m.failedRecoveries.Load(),
	}
}

// ResetStats は統計をリセットする
func (m *Manager) ResetStats() {
	m.totalRetries.Store(0)
	m.successRecoveries.Store(0)
	m.failedRecoveries.Store(0)
}
