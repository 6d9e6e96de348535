package logger

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
)

// linePattern は1行分のログ出力の形式
var linePattern = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3}\] \[(DEBUG|INFO|WARN|ERROR)\] (\[[^\]]+\] )?.*$`)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level(%d).String() = %s, want %s", tt.level, got, tt.expected)
		}
	}
}

func TestLineFormat(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   *regexp.Regexp
	}{
		{
			name:   "worker source",
			source: "pool/worker-3",
			want:   regexp.MustCompile(`^\[[^\]]+\] \[WARN\] \[pool/worker-3\] queue depth 7\n$`),
		},
		{
			name:   "pool source",
			source: "squares",
			want:   regexp.MustCompile(`^\[[^\]]+\] \[WARN\] \[squares\] queue depth 7\n$`),
		},
		{
			name:   "no source",
			source: "",
			want:   regexp.MustCompile(`^\[[^\]]+\] \[WARN\] queue depth 7\n$`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			New(buf, LevelDebug).Warn(tt.source, "queue depth %d", 7)

			if !tt.want.MatchString(buf.String()) {
				t.Errorf("unexpected line: %q", buf.String())
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	levels := []Level{LevelDebug, LevelInfo, LevelWarn, LevelError}

	for _, minLevel := range levels {
		t.Run(minLevel.String(), func(t *testing.T) {
			buf := &bytes.Buffer{}
			l := New(buf, minLevel)

			l.Debug("pool/worker-0", "worker terminated")
			l.Info("pool", "WorkerPool started")
			l.Warn("", "Workload interrupted")
			l.Error("pool/worker-0", "job failed")

			output := buf.String()
			for _, level := range levels {
				tag := "[" + level.String() + "]"
				if got, want := strings.Contains(output, tag), level >= minLevel; got != want {
					t.Errorf("%s present = %v at min level %s", tag, got, minLevel)
				}
			}
		})
	}
}

func TestSetLevelEnabledAndSetOutput(t *testing.T) {
	first := &bytes.Buffer{}
	second := &bytes.Buffer{}
	l := New(first, LevelError)

	if l.Enabled(LevelInfo) {
		t.Error("INFO should not be enabled at ERROR level")
	}
	l.Info("pool", "dropped")

	l.SetLevel(LevelInfo)
	if !l.Enabled(LevelInfo) {
		t.Error("INFO should be enabled after SetLevel")
	}

	l.SetOutput(second)
	l.Info("pool", "redirected")

	if first.Len() != 0 {
		t.Errorf("expected nothing in the first writer, got %q", first.String())
	}
	if !strings.Contains(second.String(), "[pool] redirected") {
		t.Errorf("expected message in the second writer, got %q", second.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestConcurrentWorkersKeepLinesIntact(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(buf, LevelDebug)

	const workers, lines = 8, 100
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			source := fmt.Sprintf("pool/worker-%d", w)
			for i := range lines {
				l.Debug(source, "task %d done", i)
			}
		}()
	}
	wg.Wait()

	out := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(out) != workers*lines {
		t.Fatalf("expected %d lines, got %d", workers*lines, len(out))
	}
	for _, line := range out {
		if !linePattern.MatchString(line) {
			t.Fatalf("interleaved or malformed line: %q", line)
		}
	}
}
