package client

import (
	"bytes"
	"io"
)

const defaultBufSize = 32768

// natsWriter batches outbound protocol bytes. While a connection is being
// re-established it switches to a bounded pending buffer whose content is
// replayed once the handshake with the new server succeeds.
type natsWriter struct {
	w     io.Writer
	bufs  []byte
	limit int

	pending *bytes.Buffer
	plimit  int
}

func newNatsWriter(w io.Writer, plimit int) *natsWriter {
	return &natsWriter{
		w:      w,
		bufs:   make([]byte, 0, defaultBufSize),
		limit:  defaultBufSize,
		plimit: plimit,
	}
}

func (w *natsWriter) appendBufs(bufs ...[]byte) error {
	for _, buf := range bufs {
		if len(buf) == 0 {
			continue
		}

		if w.pending != nil {
			w.pending.Write(buf)
		} else {
			w.bufs = append(w.bufs, buf...)
		}
	}

	if w.pending == nil && len(w.bufs) >= w.limit {
		return w.flush()
	}

	return nil
}

// writeDirect bypasses both buffers. It is used for the handshake and for
// replaying subscriptions, which must reach the server before anything that
// was buffered.
func (w *natsWriter) writeDirect(bufs ...[]byte) error {
	for _, buf := range bufs {
		if _, err := w.w.Write(buf); err != nil {
			return err
		}
	}

	return nil
}

func (w *natsWriter) flush() error {
	if w.pending != nil || len(w.bufs) == 0 {
		return nil
	}

	_, err := w.w.Write(w.bufs)
	w.bufs = w.bufs[:0]

	return err
}

func (w *natsWriter) buffered() int {
	if w.pending != nil {
		return w.pending.Len()
	}

	return len(w.bufs)
}

// switchToPending moves anything not yet written into the pending buffer
// and keeps appending there until doneWithPending.
func (w *natsWriter) switchToPending() {
	if w.pending != nil {
		return
	}

	w.pending = new(bytes.Buffer)
	w.pending.Write(w.bufs)
	w.bufs = w.bufs[:0]
}

func (w *natsWriter) atLimitIfUsingPending() bool {
	if w.pending == nil {
		return false
	}

	return w.pending.Len() >= w.plimit
}

func (w *natsWriter) flushPendingBuffer() error {
	if w.pending == nil || w.pending.Len() == 0 {
		return nil
	}

	_, err := w.w.Write(w.pending.Bytes())

	// Never replay the same bytes twice, even after a partial write.
	w.pending.Reset()

	return err
}

func (w *natsWriter) doneWithPending() {
	w.pending = nil
}

func (w *natsWriter) setWriter(wr io.Writer) {
	w.w = wr
}
