package client

const minQueueCap = 16

// msgQueue is a FIFO ring buffer of pending messages. It grows on demand;
// the subscription's pending limits are what bound it. Not safe for
// concurrent use, callers hold the subscription lock.
type msgQueue struct {
	buf  []*Msg
	head int
	n    int
}

func (q *msgQueue) len() int {
	return q.n
}

func (q *msgQueue) push(m *Msg) {
	if q.n == len(q.buf) {
		q.grow()
	}

	q.buf[(q.head+q.n)%len(q.buf)] = m
	q.n++
}

func (q *msgQueue) pop() *Msg {
	if q.n == 0 {
		return nil
	}

	m := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.n--

	return m
}

func (q *msgQueue) grow() {
	size := len(q.buf) * 2
	if size < minQueueCap {
		size = minQueueCap
	}

	buf := make([]*Msg, size)
	for i := 0; i < q.n; i++ {
		buf[i] = q.buf[(q.head+i)%len(q.buf)]
	}

	q.buf = buf
	q.head = 0
}
