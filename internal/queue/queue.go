package queue

import (
	"errors"
	"sync"
)

// ErrClosed はクローズ済みキューへの操作で返される
var ErrClosed = errors.New("queue is closed")

// Queue はスレッドセーフなブロッキングFIFOキュー
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond // 「空でない、またはクローズ済み」を待つ
	items    []T
	head     int
	closed   bool
}

// New は新しいキューを作成する
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Push は末尾に要素を追加し、待機中のPopを1つ起こす
func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	q.notEmpty.Signal()
	return nil
}

// Pop は先頭の要素を取り出す
// 空の間はブロックし、クローズ済みかつ空になったら ErrClosed を返す
func (q *Queue[T]) Pop() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.lenLocked() == 0 && !q.closed {
		q.notEmpty.Wait()
	}

	if q.lenLocked() == 0 {
		var zero T
		return zero, ErrClosed
	}
	return q.takeLocked(), nil
}

// TryPop はブロックせずに先頭の要素を取り出す
// 空なら ok=false、クローズ済みかつ空なら ErrClosed
func (q *Queue[T]) TryPop() (item T, ok bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.lenLocked() == 0 {
		if q.closed {
			return item, false, ErrClosed
		}
		return item, false, nil
	}
	return q.takeLocked(), true, nil
}

// Close はキューをクローズし、待機中の全てのPopを起こす（冪等）
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.notEmpty.Broadcast()
}

// Len は現在のキュー長を返す
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// IsClosed はクローズ済みかどうかを返す
func (q *Queue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue[T]) lenLocked() int {
	return len(q.items) - q.head
}

// takeLocked は先頭を取り出す。呼び出し側でロックを保持していること
func (q *Queue[T]) takeLocked() T {
	var zero T
	item := q.items[q.head]
	q.items[q.head] = zero // 取り出した要素への参照を残さない
	q.head++

	// 消費済み領域が半分を超えたら詰め直す
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > len(q.items)/2 && q.head > 32 {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return item
}
