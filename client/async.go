package client

import (
	"sync"
)

// asyncCallbacksHandler runs user callbacks one at a time, in the order
// they were pushed, on a goroutine of its own so that no user code ever
// runs on the reader or flusher.
type asyncCallbacksHandler struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*asyncCB
	closed bool
	done   chan struct{}
}

// asyncCB with a nil f tells the dispatcher to exit.
type asyncCB struct {
	f func()
}

func newAsyncCallbacksHandler() *asyncCallbacksHandler {
	ac := &asyncCallbacksHandler{done: make(chan struct{})}
	ac.cond = sync.NewCond(&ac.mu)

	return ac
}

func (ac *asyncCallbacksHandler) dispatch() {
	defer close(ac.done)

	for {
		ac.mu.Lock()
		for len(ac.queue) == 0 {
			ac.cond.Wait()
		}

		cb := ac.queue[0]
		ac.queue[0] = nil
		ac.queue = ac.queue[1:]
		ac.mu.Unlock()

		if cb.f == nil {
			return
		}

		cb.f()
	}
}

// push schedules f. Callbacks pushed after close are dropped.
func (ac *asyncCallbacksHandler) push(f func()) {
	if f == nil {
		panic("nats: nil async callback")
	}

	ac.pushOrClose(f)
}

// close lets the dispatcher exit once every callback pushed before it ran.
func (ac *asyncCallbacksHandler) close() {
	ac.pushOrClose(nil)
}

func (ac *asyncCallbacksHandler) pushOrClose(f func()) {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if ac.closed {
		return
	}

	if f == nil {
		ac.closed = true
	}

	ac.queue = append(ac.queue, &asyncCB{f: f})
	ac.cond.Signal()
}
