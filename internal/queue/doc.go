// Package queue provides an unbounded, thread-safe blocking FIFO queue.
//
// Producers Push items at the tail; consumers Pop from the head, blocking
// while the queue is empty. Close wakes every blocked consumer. Items that
// were queued before Close are still handed out, one consumer each, and
// only after the queue has drained does Pop report ErrClosed. The worker
// pool relies on this ordering for its drain-then-stop shutdown.
//
// # Basic Usage
//
//	q := queue.New[int]()
//
//	go func() {
//	    for {
//	        v, err := q.Pop()
//	        if errors.Is(err, queue.ErrClosed) {
//	            return
//	        }
//	        fmt.Println(v)
//	    }
//	}()
//
//	_ = q.Push(1)
//	_ = q.Push(2)
//	q.Close()
//
// # Thread Safety
//
// A single mutex guards the buffer and the closed flag; consumers park on a
// condition variable that is signalled on Push and broadcast on Close.
package queue
