package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"workpool/internal/chaos"
	"workpool/internal/logger"
	"workpool/internal/worker"
	"workpool/internal/workload"

	"gopkg.in/yaml.v3"
)

// DefaultAddr はインスペクタAPIのデフォルト待ち受けアドレス
const DefaultAddr = ":8080"

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Pool     PoolConfig     `yaml:"pool" json:"pool"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Workload WorkloadConfig `yaml:"workload" json:"workload"`
	Chaos    ChaosConfig    `yaml:"chaos" json:"chaos"`
	Server   ServerConfig   `yaml:"server" json:"server"`
}

// PoolConfig はワーカープール設定
type PoolConfig struct {
	Name            string `yaml:"name" json:"name"`
	Workers         int    `yaml:"workers" json:"workers"`
	LockOSThread    bool   `yaml:"lock_os_thread" json:"lock_os_thread"`
	ShutdownTimeout string `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// LogConfig はログ設定
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// WorkloadConfig はワークロード設定
type WorkloadConfig struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Tasks       int    `yaml:"tasks" json:"tasks"`
	FailEvery   int    `yaml:"fail_every" json:"fail_every"`
	Throws      int    `yaml:"throws" json:"throws"`
	TaskDelay   string `yaml:"task_delay" json:"task_delay"`
	Retries     int    `yaml:"retries" json:"retries"`
	RetryDelay  string `yaml:"retry_delay" json:"retry_delay"`
}

// ChaosConfig はカオス設定
type ChaosConfig struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	Probability float64  `yaml:"probability" json:"probability"`
	FaultTypes  []string `yaml:"fault_types" json:"fault_types"`
	Delay       string   `yaml:"delay" json:"delay"`
}

// ServerConfig はインスペクタAPI設定
type ServerConfig struct {
	Addr             string `yaml:"addr" json:"addr"`
	MetricsNamespace string `yaml:"metrics_namespace" json:"metrics_namespace"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// ToPoolConfig はFileConfigをworker.PoolConfigに変換する
func (f *FileConfig) ToPoolConfig() worker.PoolConfig {
	config := worker.DefaultPoolConfig()
	if f.Pool.Name != "" {
		config.Name = f.Pool.Name
	}
	if f.Pool.Workers > 0 {
		config.NumWorkers = f.Pool.Workers
	}
	config.LockOSThread = f.Pool.LockOSThread
	return config
}

// LogLevel はログレベルを返す
func (f *FileConfig) LogLevel() (logger.Level, error) {
	return logger.ParseLevel(f.Log.Level)
}

// Addr は待ち受けアドレスを返す
func (f *FileConfig) Addr() string {
	if f.Server.Addr == "" {
		return DefaultAddr
	}
	return f.Server.Addr
}

// ToWorkloadConfig はFileConfigをworkload.Configに変換する
// workload.name がプリセット名ならそのプリセットを基にする
func (f *FileConfig) ToWorkloadConfig() (workload.Config, error) {
	base := workload.DefaultConfig()
	if preset, ok := workload.GetPreset(f.Workload.Name); ok {
		base = preset
	}
	return f.ApplyTo(base)
}

// ApplyTo はファイルで指定された項目だけを base に上書きする
func (f *FileConfig) ApplyTo(base workload.Config) (workload.Config, error) {
	config := base
	wc := f.Workload

	if f.Pool.Name != "" {
		config.Name = f.Pool.Name
	}
	if f.Pool.Workers > 0 {
		config.Workers = f.Pool.Workers
	}
	if f.Pool.LockOSThread {
		config.LockOSThread = true
	}
	if f.Pool.ShutdownTimeout != "" {
		d, err := time.ParseDuration(f.Pool.ShutdownTimeout)
		if err != nil {
			return config, fmt.Errorf("invalid shutdown_timeout: %w", err)
		}
		config.ShutdownTimeout = d
	}

	// Workload設定
	if wc.Name != "" {
		if _, ok := workload.GetPreset(wc.Name); !ok {
			kind, err := workload.ParseKind(wc.Name)
			if err != nil {
				return config, err
			}
			config.Workload = kind
			if f.Pool.Name == "" {
				config.Name = wc.Name
			}
		}
	}
	if wc.Description != "" {
		config.Description = wc.Description
	}
	if wc.Tasks > 0 {
		config.Tasks = wc.Tasks
	}
	if wc.FailEvery > 0 {
		config.FailEvery = wc.FailEvery
	}
	if wc.Throws > 0 {
		config.Throws = wc.Throws
	}
	if wc.TaskDelay != "" {
		d, err := time.ParseDuration(wc.TaskDelay)
		if err != nil {
			return config, fmt.Errorf("invalid task_delay: %w", err)
		}
		config.TaskDelay = d
	}
	if wc.Retries > 0 {
		config.Retries = wc.Retries
	}
	if wc.RetryDelay != "" {
		d, err := time.ParseDuration(wc.RetryDelay)
		if err != nil {
			return config, fmt.Errorf("invalid retry_delay: %w", err)
		}
		config.RetryDelay = d
	}

	// Chaos設定
	if f.Chaos.Enabled {
		config.EnableChaos = true
	}
	if f.Chaos.Probability > 0 {
		config.Chaos.Probability = f.Chaos.Probability
	}
	if len(f.Chaos.FaultTypes) > 0 {
		faults, err := parseFaultTypes(f.Chaos.FaultTypes)
		if err != nil {
			return config, err
		}
		config.Chaos.FaultTypes = faults
	}
	if f.Chaos.Delay != "" {
		d, err := time.ParseDuration(f.Chaos.Delay)
		if err != nil {
			return config, fmt.Errorf("invalid chaos delay: %w", err)
		}
		config.Chaos.DelayDuration = d
	}

	return config, nil
}

// parseFaultTypes は文字列の障害タイプをパースする
func parseFaultTypes(types []string) ([]chaos.FaultType, error) {
	var faults []chaos.FaultType

	for _, t := range types {
		fault, err := chaos.ParseFaultType(strings.ToLower(t))
		if err != nil {
			return nil, err
		}
		faults = append(faults, fault)
	}

	return faults, nil
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	if f.Pool.Workers < 0 {
		return fmt.Errorf("pool.workers must be non-negative")
	}

	if f.Workload.Tasks < 0 {
		return fmt.Errorf("workload.tasks must be non-negative")
	}

	if f.Workload.FailEvery < 0 {
		return fmt.Errorf("workload.fail_every must be non-negative")
	}

	if f.Workload.Retries < 0 {
		return fmt.Errorf("workload.retries must be non-negative")
	}

	if f.Workload.Throws < 0 {
		return fmt.Errorf("workload.throws must be non-negative")
	}

	if f.Chaos.Probability < 0 || f.Chaos.Probability > 1 {
		return fmt.Errorf("chaos.probability must be between 0 and 1")
	}

	if _, err := f.LogLevel(); err != nil {
		return err
	}

	return nil
}
