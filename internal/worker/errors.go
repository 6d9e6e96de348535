package worker

import (
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	// ErrConfiguration はプール設定が不正な場合に返される（ワーカー数0など）
	ErrConfiguration = errors.New("invalid pool configuration")

	// ErrPoolStopped はシャットダウン開始後の投入で返される
	ErrPoolStopped = errors.New("worker pool is stopped")

	// ErrNilJob は nil のジョブを投入した場合に返される
	ErrNilJob = errors.New("nil job submitted")
)

// TaskError はタスク実行中に発生したエラー
// 結果付きタスクの場合は Future 経由で呼び出し側に届く
type TaskError struct {
	TaskID string
	Err    error
	Panic  any    // パニックした場合の recover 値
	Stack  string // パニックした場合のスタックトレース
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.TaskID, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Panicked はタスクがパニックで終了したかを返す
func (e *TaskError) Panicked() bool {
	return e.Panic != nil
}

// newPanicError は recover 値から TaskError を作る
func newPanicError(taskID string, r any) *TaskError {
	err, ok := r.(error)
	if ok {
		err = fmt.Errorf("panic: %w", err)
	} else {
		err = fmt.Errorf("panic: %v", r)
	}
	return &TaskError{
		TaskID: taskID,
		Err:    err,
		Panic:  r,
		Stack:  string(debug.Stack()),
	}
}
