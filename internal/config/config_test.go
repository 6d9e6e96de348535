package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"workpool/internal/chaos"
	"workpool/internal/logger"
	"workpool/internal/workload"
)

func TestLoadFileYAML(t *testing.T) {
	content := `
pool:
  name: yaml-pool
  workers: 4
  lock_os_thread: true
  shutdown_timeout: 15s
log:
  level: debug
workload:
  name: failing
  tasks: 30
  fail_every: 5
  task_delay: 10ms
chaos:
  enabled: true
  probability: 0.25
  fault_types:
    - error
    - delay
  delay: 20ms
server:
  addr: ":9090"
  metrics_namespace: test
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	cfg, err := LoadFile(tmpFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Pool.Workers != 4 {
		t.Errorf("expected workers 4, got %d", cfg.Pool.Workers)
	}
	if cfg.Workload.Name != "failing" {
		t.Errorf("expected workload 'failing', got '%s'", cfg.Workload.Name)
	}
	if !cfg.Chaos.Enabled {
		t.Error("expected chaos to be enabled")
	}
	if cfg.Addr() != ":9090" {
		t.Errorf("expected addr ':9090', got '%s'", cfg.Addr())
	}
	if cfg.Server.MetricsNamespace != "test" {
		t.Errorf("expected namespace 'test', got '%s'", cfg.Server.MetricsNamespace)
	}

	level, err := cfg.LogLevel()
	if err != nil || level != logger.LevelDebug {
		t.Errorf("expected debug level, got (%v, %v)", level, err)
	}
}

func TestLoadFileJSON(t *testing.T) {
	content := `{
  "pool": {
    "workers": 2
  },
  "workload": {
    "name": "pi",
    "tasks": 8,
    "throws": 8000
  },
  "chaos": {
    "enabled": false
  }
}`
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	cfg, err := LoadFile(tmpFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Workload.Name != "pi" {
		t.Errorf("expected workload 'pi', got '%s'", cfg.Workload.Name)
	}
	if cfg.Workload.Throws != 8000 {
		t.Errorf("expected throws 8000, got %d", cfg.Workload.Throws)
	}
	if cfg.Chaos.Enabled {
		t.Error("expected chaos to be disabled")
	}
	if cfg.Addr() != DefaultAddr {
		t.Errorf("expected default addr, got '%s'", cfg.Addr())
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := LoadFile("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFileUnsupportedFormat(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.txt")
	if err := os.WriteFile(tmpFile, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	_, err := LoadFile(tmpFile)
	if err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(tmpFile, []byte("pool: [unclosed"), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	if _, err := LoadFile(tmpFile); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestToPoolConfig(t *testing.T) {
	cfg := &FileConfig{
		Pool: PoolConfig{Name: "p", Workers: 3, LockOSThread: true},
	}

	pc := cfg.ToPoolConfig()
	if pc.Name != "p" || pc.NumWorkers != 3 || !pc.LockOSThread {
		t.Errorf("unexpected pool config: %+v", pc)
	}

	empty := (&FileConfig{}).ToPoolConfig()
	if empty.NumWorkers < 1 {
		t.Errorf("expected default worker count, got %d", empty.NumWorkers)
	}
}

func TestToWorkloadConfig(t *testing.T) {
	cfg := &FileConfig{
		Pool: PoolConfig{Workers: 6, ShutdownTimeout: "5s"},
		Workload: WorkloadConfig{
			Name:       "failing",
			Tasks:      30,
			FailEvery:  5,
			TaskDelay:  "1ms",
			Retries:    2,
			RetryDelay: "3ms",
		},
		Chaos: ChaosConfig{
			Enabled:     true,
			Probability: 0.5,
			FaultTypes:  []string{"panic", "DELAY"},
			Delay:       "2ms",
		},
	}

	wc, err := cfg.ToWorkloadConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}

	// プリセット名を基に上書きされる
	if wc.Name != "failing" || wc.Workload != workload.KindFailing {
		t.Errorf("expected failing preset, got %s/%s", wc.Name, wc.Workload)
	}
	if wc.Workers != 6 {
		t.Errorf("expected workers 6, got %d", wc.Workers)
	}
	if wc.Tasks != 30 || wc.FailEvery != 5 {
		t.Errorf("expected tasks 30/fail_every 5, got %d/%d", wc.Tasks, wc.FailEvery)
	}
	if wc.TaskDelay != time.Millisecond {
		t.Errorf("expected task delay 1ms, got %v", wc.TaskDelay)
	}
	if wc.Retries != 2 || wc.RetryDelay != 3*time.Millisecond {
		t.Errorf("expected 2 retries after 3ms, got %d/%v", wc.Retries, wc.RetryDelay)
	}
	if wc.ShutdownTimeout != 5*time.Second {
		t.Errorf("expected shutdown timeout 5s, got %v", wc.ShutdownTimeout)
	}
	if !wc.EnableChaos || wc.Chaos.Probability != 0.5 {
		t.Errorf("unexpected chaos settings: %+v", wc.Chaos)
	}
	if len(wc.Chaos.FaultTypes) != 2 || wc.Chaos.FaultTypes[1] != chaos.FaultDelay {
		t.Errorf("unexpected fault types: %v", wc.Chaos.FaultTypes)
	}
	if wc.Chaos.DelayDuration != 2*time.Millisecond {
		t.Errorf("expected chaos delay 2ms, got %v", wc.Chaos.DelayDuration)
	}
	if err := wc.Validate(); err != nil {
		t.Errorf("converted config should be valid: %v", err)
	}
}

func TestToWorkloadConfigKindName(t *testing.T) {
	cfg := &FileConfig{
		Pool:     PoolConfig{Workers: 2},
		Workload: WorkloadConfig{Name: "chaos", Tasks: 5},
	}

	wc, err := cfg.ToWorkloadConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}
	if wc.Workload != workload.KindChaos {
		t.Errorf("expected chaos workload, got %s", wc.Workload)
	}
}

func TestApplyToKeepsBase(t *testing.T) {
	base := workload.BackgroundPreset()

	wc, err := (&FileConfig{}).ApplyTo(base)
	if err != nil {
		t.Fatalf("failed to apply config: %v", err)
	}
	if wc.Name != base.Name || wc.Tasks != base.Tasks || wc.TaskDelay != base.TaskDelay {
		t.Errorf("empty file config should not change base: %+v", wc)
	}
}

func TestToWorkloadConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		config FileConfig
	}{
		{"invalid shutdown timeout", FileConfig{Pool: PoolConfig{ShutdownTimeout: "invalid"}}},
		{"invalid task delay", FileConfig{Workload: WorkloadConfig{TaskDelay: "soon"}}},
		{"invalid chaos delay", FileConfig{Chaos: ChaosConfig{Delay: "x"}}},
		{"invalid retry delay", FileConfig{Workload: WorkloadConfig{RetryDelay: "later"}}},
		{"unknown workload", FileConfig{Workload: WorkloadConfig{Name: "sort"}}},
		{"unknown fault type", FileConfig{Chaos: ChaosConfig{FaultTypes: []string{"kill"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.config.ToWorkloadConfig(); err == nil {
				t.Error("expected conversion error")
			}
		})
	}
}

func TestParseFaultTypes(t *testing.T) {
	tests := []struct {
		input    []string
		expected []chaos.FaultType
		hasError bool
	}{
		{[]string{"error"}, []chaos.FaultType{chaos.FaultError}, false},
		{[]string{"panic"}, []chaos.FaultType{chaos.FaultPanic}, false},
		{[]string{"delay"}, []chaos.FaultType{chaos.FaultDelay}, false},
		{[]string{"ERROR", "PANIC"}, []chaos.FaultType{chaos.FaultError, chaos.FaultPanic}, false},
		{[]string{"unknown"}, nil, true},
	}

	for _, tt := range tests {
		faults, err := parseFaultTypes(tt.input)
		if tt.hasError {
			if err == nil {
				t.Errorf("expected error for input %v", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("unexpected error for input %v: %v", tt.input, err)
			continue
		}
		if len(faults) != len(tt.expected) {
			t.Errorf("expected %d faults, got %d", len(tt.expected), len(faults))
			continue
		}
		for i := range faults {
			if faults[i] != tt.expected[i] {
				t.Errorf("fault %d: expected %s, got %s", i, tt.expected[i], faults[i])
			}
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		config   FileConfig
		hasError bool
	}{
		{
			name:     "valid config",
			config:   FileConfig{},
			hasError: false,
		},
		{
			name:     "negative workers",
			config:   FileConfig{Pool: PoolConfig{Workers: -1}},
			hasError: true,
		},
		{
			name:     "negative tasks",
			config:   FileConfig{Workload: WorkloadConfig{Tasks: -1}},
			hasError: true,
		},
		{
			name:     "negative fail_every",
			config:   FileConfig{Workload: WorkloadConfig{FailEvery: -3}},
			hasError: true,
		},
		{
			name:     "negative retries",
			config:   FileConfig{Workload: WorkloadConfig{Retries: -1}},
			hasError: true,
		},
		{
			name:     "negative throws",
			config:   FileConfig{Workload: WorkloadConfig{Throws: -1}},
			hasError: true,
		},
		{
			name:     "invalid probability (too high)",
			config:   FileConfig{Chaos: ChaosConfig{Probability: 1.5}},
			hasError: true,
		},
		{
			name:     "invalid probability (negative)",
			config:   FileConfig{Chaos: ChaosConfig{Probability: -0.1}},
			hasError: true,
		},
		{
			name:     "unknown log level",
			config:   FileConfig{Log: LogConfig{Level: "verbose"}},
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.hasError && err == nil {
				t.Error("expected validation error")
			}
			if !tt.hasError && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
