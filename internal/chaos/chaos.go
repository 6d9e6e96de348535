package chaos

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"workpool/internal/events"
	"workpool/internal/logger"
)

// FaultType は注入する障害の種類を表す
type FaultType int

const (
	FaultError FaultType = iota
	FaultPanic
	FaultDelay
)

func (f FaultType) String() string {
	switch f {
	case FaultError:
		return "error"
	case FaultPanic:
		return "panic"
	case FaultDelay:
		return "delay"
	default:
		return "unknown"
	}
}

// ParseFaultType は文字列から障害タイプを解決する
func ParseFaultType(s string) (FaultType, error) {
	switch s {
	case "error":
		return FaultError, nil
	case "panic":
		return FaultPanic, nil
	case "delay":
		return FaultDelay, nil
	default:
		return 0, fmt.Errorf("unknown fault type: %s", s)
	}
}

// ErrInjected は FaultError で注入されるエラー
var ErrInjected = errors.New("chaos: injected fault")

// Config はInjectorの設定
type Config struct {
	Probability   float64       // 1タスクあたりの障害注入確率（0.0〜1.0）
	FaultTypes    []FaultType   // 有効な障害タイプ
	DelayDuration time.Duration // Delay障害時の遅延時間
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Probability:   0.1,
		FaultTypes:    []FaultType{FaultError, FaultPanic, FaultDelay},
		DelayDuration: 50 * time.Millisecond,
	}
}

// Stats は障害注入の統計情報
type Stats struct {
	TotalTasks  uint64            `json:"total_tasks"`
	TotalFaults uint64            `json:"total_faults"`
	ByType      map[string]uint64 `json:"faults_by_type"`
}

// Injector はタスクをラップして障害を注入する
type Injector struct {
	config   Config
	eventBus *events.Bus
	log      *logger.Logger

	totalTasks atomic.Uint64

	mu          sync.RWMutex
	faultCount  uint64
	faultByType map[FaultType]uint64

	// テストで乱数を差し替えるため
	roll func() float64
	pick func(n int) int
}

// New は新しいInjectorを作成する
func New(config Config) *Injector {
	return &Injector{
		config:      config,
		faultByType: make(map[FaultType]uint64),
		log:         logger.Default,
		roll:        rand.Float64,
		pick:        rand.IntN,
	}
}

// SetEventBus はイベントバスを設定する
func (inj *Injector) SetEventBus(bus *events.Bus) {
	inj.eventBus = bus
}

// SetLogger はロガーを設定する（nil は無視する）
func (inj *Injector) SetLogger(l *logger.Logger) {
	if l != nil {
		inj.log = l
	}
}

// SetConfig は設定を更新する
func (inj *Injector) SetConfig(config Config) {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	inj.config = config
}

// publishEvent はイベントを発行する
func (inj *Injector) publishEvent(event events.Event) {
	if inj.eventBus != nil {
		inj.eventBus.Publish(event)
	}
}

// decide は今回のタスクに注入する障害を決める
func (inj *Injector) decide() (FaultType, bool) {
	inj.totalTasks.Add(1)

	inj.mu.RLock()
	config := inj.config
	inj.mu.RUnlock()

	if len(config.FaultTypes) == 0 || config.Probability <= 0 {
		return 0, false
	}
	if inj.roll() >= config.Probability {
		return 0, false
	}

	fault := config.FaultTypes[inj.pick(len(config.FaultTypes))]

	inj.mu.Lock()
	inj.faultCount++
	inj.faultByType[fault]++
	inj.mu.Unlock()

	inj.log.Debug("", "Chaos: injecting %s fault", fault)
	inj.publishEvent(events.NewFaultInjectedEvent(fault.String()))

	return fault, true
}

// delay は現在の遅延設定を返す
func (inj *Injector) delay() time.Duration {
	inj.mu.RLock()
	defer inj.mu.RUnlock()
	return inj.config.DelayDuration
}

// Wrap は結果を持たないジョブに障害を注入するラッパーを返す
// FaultError は戻り値がないためパニックとして現れる
func (inj *Injector) Wrap(job func()) func() {
	return func() {
		fault, ok := inj.decide()
		if ok {
			switch fault {
			case FaultError, FaultPanic:
				panic(fmt.Errorf("%w (%s)", ErrInjected, fault))
			case FaultDelay:
				time.Sleep(inj.delay())
			}
		}
		job()
	}
}

// WrapResult は結果付きの計算に障害を注入するラッパーを返す
func WrapResult[T any](inj *Injector, fn func() (T, error)) func() (T, error) {
	return func() (T, error) {
		fault, ok := inj.decide()
		if ok {
			switch fault {
			case FaultError:
				var zero T
				return zero, ErrInjected
			case FaultPanic:
				panic(fmt.Errorf("%w (%s)", ErrInjected, fault))
			case FaultDelay:
				time.Sleep(inj.delay())
			}
		}
		return fn()
	}
}

// FaultCount は障害注入回数を返す
func (inj *Injector) FaultCount() uint64 {
	inj.mu.RLock()
	defer inj.mu.RUnlock()
	return inj.faultCount
}

// Stats は障害注入の統計を返す
func (inj *Injector) Stats() Stats {
	inj.mu.RLock()
	defer inj.mu.RUnlock()

	byType := make(map[string]uint64)
	for t, count := range inj.faultByType {
		byType[t.String()] = count
	}

	return Stats{
		TotalTasks:  inj.totalTasks.Load(),
		TotalFaults: inj.faultCount,
		ByType:      byType,
	}
}
