package logger_test

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"workpool/internal/logger"
	"workpool/internal/worker"
)

func TestPoolLogFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	l := logger.New(buf, logger.LevelDebug)

	pool, err := worker.NewPoolWithConfig(
		worker.PoolConfig{Name: "logtest", NumWorkers: 1},
		worker.WithLogger(l),
	)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	if err := pool.Submit(func() { panic("boom") }); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	pool.Shutdown()

	output := buf.String()

	expected := []*regexp.Regexp{
		regexp.MustCompile(`\[INFO\] \[logtest\] WorkerPool started with 1 workers`),
		regexp.MustCompile(`\[ERROR\] \[logtest/worker-0\] job [0-9a-f-]{36} panicked: boom\n`),
		regexp.MustCompile(`\[DEBUG\] \[logtest/worker-0\] worker terminated`),
		regexp.MustCompile(`\[INFO\] \[logtest\] WorkerPool stopped`),
	}
	for _, re := range expected {
		if !re.MatchString(output) {
			t.Errorf("expected line matching %s in:\n%s", re, output)
		}
	}

	// パニックのスタックはエラー行の直後に続く
	if !strings.Contains(output, "goroutine ") {
		t.Error("expected stack trace after panic line")
	}
}

func TestPoolLogLevelHidesWorkerDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	l := logger.New(buf, logger.LevelInfo)

	pool, err := worker.NewPool(2, worker.WithLogger(l), worker.WithName("quiet"))
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	pool.Shutdown()

	if strings.Contains(buf.String(), "worker terminated") {
		t.Error("worker debug lines should be filtered at INFO level")
	}
	if !strings.Contains(buf.String(), "[quiet] WorkerPool stopped") {
		t.Errorf("expected pool stop line, got:\n%s", buf.String())
	}
}
