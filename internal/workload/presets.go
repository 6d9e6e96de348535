package workload

import (
	"time"

	"workpool/internal/chaos"
)

// QuickPreset はクイックテスト用の設定を返す
// 短時間での動作確認用
func QuickPreset() Config {
	return Config{
		Name:            "quick",
		Description:     "Quick verification with a handful of squares",
		Workload:        KindSquares,
		Workers:         2,
		ShutdownTimeout: 5 * time.Second,
		Tasks:           20,
		Chaos:           chaos.DefaultConfig(),
	}
}

// SquaresPreset は二乗計算の設定を返す
func SquaresPreset() Config {
	return Config{
		Name:            "squares",
		Description:     "Compute 1..N squared through futures and verify the sum",
		Workload:        KindSquares,
		Workers:         4,
		ShutdownTimeout: 30 * time.Second,
		Tasks:           100,
		Chaos:           chaos.DefaultConfig(),
	}
}

// FailingPreset は一部のタスクがエラーを返す設定を返す
func FailingPreset() Config {
	return Config{
		Name:            "failing",
		Description:     "Squares that fail for every multiple of 3",
		Workload:        KindFailing,
		Workers:         2,
		ShutdownTimeout: 30 * time.Second,
		Tasks:           10,
		FailEvery:       3,
		TaskDelay:       10 * time.Millisecond,
		Chaos:           chaos.DefaultConfig(),
	}
}

// PiPreset はモンテカルロ法による円周率推定の設定を返す
func PiPreset() Config {
	return Config{
		Name:            "pi",
		Description:     "Monte Carlo pi estimation split across tasks",
		Workload:        KindPi,
		Workers:         4,
		ShutdownTimeout: 60 * time.Second,
		Tasks:           16,
		Throws:          4_000_000,
		Chaos:           chaos.DefaultConfig(),
	}
}

// BackgroundPreset は結果を返さないジョブの設定を返す
func BackgroundPreset() Config {
	return Config{
		Name:            "background",
		Description:     "Fire-and-forget jobs drained on shutdown",
		Workload:        KindBackground,
		Workers:         2,
		ShutdownTimeout: 30 * time.Second,
		Tasks:           4,
		TaskDelay:       20 * time.Millisecond,
		Chaos:           chaos.DefaultConfig(),
	}
}

// ChaosPreset は障害注入付きの設定を返す
// エラー・パニック・遅延がランダムに混入する
func ChaosPreset() Config {
	return Config{
		Name:            "chaos",
		Description:     "Squares with injected errors, panics and delays",
		Workload:        KindChaos,
		Workers:         4,
		ShutdownTimeout: 30 * time.Second,
		Tasks:           200,
		EnableChaos:     true,
		Chaos: chaos.Config{
			Probability:   0.2,
			FaultTypes:    []chaos.FaultType{chaos.FaultError, chaos.FaultPanic, chaos.FaultDelay},
			DelayDuration: 5 * time.Millisecond,
		},
	}
}

// ResilientPreset は注入されたエラーを再試行で吸収する設定を返す
func ResilientPreset() Config {
	return Config{
		Name:            "resilient",
		Description:     "Squares with injected errors recovered by retries",
		Workload:        KindChaos,
		Workers:         4,
		ShutdownTimeout: 30 * time.Second,
		Tasks:           100,
		EnableChaos:     true,
		Chaos: chaos.Config{
			Probability: 0.3,
			FaultTypes:  []chaos.FaultType{chaos.FaultError},
		},
		Retries:    5,
		RetryDelay: time.Millisecond,
	}
}

// GetPreset は名前からプリセットを取得する
func GetPreset(name string) (Config, bool) {
	presets := map[string]func() Config{
		"quick":      QuickPreset,
		"squares":    SquaresPreset,
		"failing":    FailingPreset,
		"pi":         PiPreset,
		"background": BackgroundPreset,
		"chaos":      ChaosPreset,
		"resilient":  ResilientPreset,
	}

	if fn, ok := presets[name]; ok {
		return fn(), true
	}
	return Config{}, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	return []string{"quick", "squares", "failing", "pi", "background", "chaos", "resilient"}
}
