package voice

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 70 * time.Second
	pingPeriod = 30 * time.Second
)

// sender is how collaborators talk to the client. Sends never block.
type sender interface {
	sendJSON(v any)
	sendBinary(b []byte)
}

type frame struct {
	json   any
	binary []byte
}

// wire owns all writes to the websocket; gorilla allows one writer at a time.
// Frames are queued without bound and written in order.
type wire struct {
	conn *websocket.Conn
	log  zerolog.Logger

	mu     sync.Mutex
	queue  []frame
	closed bool
	notify chan struct{}
	done   chan struct{}
}

func newWire(conn *websocket.Conn, log zerolog.Logger) *wire {
	return &wire{conn: conn, log: log, notify: make(chan struct{}, 1), done: make(chan struct{})}
}

func (w *wire) push(f frame) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.queue = append(w.queue, f)
	w.mu.Unlock()
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

func (w *wire) sendJSON(v any)      { w.push(frame{json: v}) }
func (w *wire) sendBinary(b []byte) { w.push(frame{binary: b}) }

func (w *wire) take() []frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	q := w.queue
	w.queue = nil
	return q
}

// run writes queued frames and keepalive pings until ctx ends or a write fails.
// Frames queued before ctx ended are flushed first.
func (w *wire) run(ctx context.Context) {
	defer close(w.done)
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-w.notify:
			if err := w.flush(); err != nil {
				w.log.Debug().Err(err).Msg("websocket write failed")
				w.close()
				return
			}
		case <-ping.C:
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				w.close()
				return
			}
		case <-ctx.Done():
			_ = w.flush()
			w.close()
			return
		}
	}
}

func (w *wire) flush() error {
	for _, f := range w.take() {
		_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
		var err error
		if f.binary != nil {
			err = w.conn.WriteMessage(websocket.BinaryMessage, f.binary)
		} else {
			err = w.conn.WriteJSON(f.json)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *wire) close() {
	w.mu.Lock()
	w.closed = true
	w.queue = nil
	w.mu.Unlock()
}
