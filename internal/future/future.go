// Package future pairs a Promise (written once by the producer) with a
// Future (read any number of times by consumers).
package future

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrAlreadySatisfied は二度目の値/エラー設定で返される
	ErrAlreadySatisfied = errors.New("promise already satisfied")

	// ErrNilError は SetError に nil が渡された場合に返される
	ErrNilError = errors.New("promise: nil error")
)

// Status は WaitFor の結果
type Status int

const (
	StatusTimeout Status = iota
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// state は Promise と Future が共有する結果
type state[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// Promise は結果の書き込み側
type Promise[T any] struct {
	s *state[T]
}

// Future は結果の読み出し側
type Future[T any] struct {
	s *state[T]
}

// New は対になる Promise と Future を作成する
func New[T any]() (*Promise[T], *Future[T]) {
	s := &state[T]{done: make(chan struct{})}
	return &Promise[T]{s: s}, &Future[T]{s: s}
}

// Resolved は値で完了済みの Future を返す
func Resolved[T any](value T) *Future[T] {
	p, f := New[T]()
	_ = p.SetValue(value)
	return f
}

// Failed はエラーで完了済みの Future を返す
// err が nil の場合は ErrNilError で完了する
func Failed[T any](err error) *Future[T] {
	if err == nil {
		err = ErrNilError
	}
	p, f := New[T]()
	_ = p.SetError(err)
	return f
}

// SetValue は値を設定する。最初の設定のみ有効
func (p *Promise[T]) SetValue(value T) error {
	return p.complete(value, nil)
}

// SetError はエラーを設定する。最初の設定のみ有効
func (p *Promise[T]) SetError(err error) error {
	if err == nil {
		return ErrNilError
	}
	var zero T
	return p.complete(zero, err)
}

func (p *Promise[T]) complete(value T, err error) error {
	satisfied := false
	p.s.once.Do(func() {
		p.s.value = value
		p.s.err = err
		close(p.s.done)
		satisfied = true
	})
	if !satisfied {
		return ErrAlreadySatisfied
	}
	return nil
}

// Future は対応する Future を返す
func (p *Promise[T]) Future() *Future[T] {
	return &Future[T]{s: p.s}
}

// Get は結果が揃うまでブロックして返す。何度呼んでも同じ結果になる
func (f *Future[T]) Get() (T, error) {
	<-f.s.done
	return f.s.value, f.s.err
}

// GetContext は ctx が終了するまで結果を待つ
// ctx 終了時は ctx.Err() を返すが、元のタスクは取り消されない
func (f *Future[T]) GetContext(ctx context.Context) (T, error) {
	select {
	case <-f.s.done:
		return f.s.value, f.s.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// WaitFor は最大 d だけ完了を待つ
func (f *Future[T]) WaitFor(d time.Duration) Status {
	if f.Ready() {
		return StatusReady
	}
	if d <= 0 {
		return StatusTimeout
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-f.s.done:
		return StatusReady
	case <-timer.C:
		return StatusTimeout
	}
}

// Ready は完了済みかどうかをブロックせずに返す
func (f *Future[T]) Ready() bool {
	select {
	case <-f.s.done:
		return true
	default:
		return false
	}
}

// Done は完了時にクローズされるチャネルを返す
func (f *Future[T]) Done() <-chan struct{} {
	return f.s.done
}
