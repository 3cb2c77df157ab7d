package recorder

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSRecorder pushes events to an external recorder service over a
// websocket. Delivery is best-effort: a full queue drops the event, a
// dead connection is redialed on the next flush, and no error ever
// reaches the enqueueing caller.
type WSRecorder struct {
	url string

	mu      sync.Mutex
	conn    *websocket.Conn
	queue   chan Event
	done    chan struct{}
	running bool
}

// NewWSRecorder creates a websocket recorder for url. Start must be
// called before events are delivered.
func NewWSRecorder(url string) *WSRecorder {
	return &WSRecorder{
		url:   url,
		queue: make(chan Event, 256),
	}
}

// Start launches the delivery pump. Idempotent.
func (r *WSRecorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}
	r.running = true
	r.done = make(chan struct{})
	go r.pump(r.done)

	log.Info().Str("url", r.url).Msg("Recorder started")
}

// Stop shuts the pump down and closes the connection. Idempotent.
func (r *WSRecorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	r.running = false
	close(r.done)
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			log.Debug().Err(err).Msg("Recorder close error")
		}
		r.conn = nil
	}
}

// Running reports whether the pump is active.
func (r *WSRecorder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Enqueue queues an event for delivery, dropping it if the queue is
// full or the recorder is stopped.
func (r *WSRecorder) Enqueue(ev Event) {
	if !r.Running() {
		return
	}
	select {
	case r.queue <- ev:
	default:
		log.Debug().Str("tool", ev.Tool).Msg("Recorder queue full, event dropped")
	}
}

func (r *WSRecorder) pump(done chan struct{}) {
	for {
		select {
		case ev := <-r.queue:
			if err := r.send(ev); err != nil {
				log.Debug().Err(err).Str("tool", ev.Tool).Msg("Recorder delivery failed, event dropped")
			}
		case <-done:
			return
		}
	}
}

func (r *WSRecorder) send(ev Event) error {
	conn, err := r.connection()
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(ev); err != nil {
		r.dropConnection(conn)
		return err
	}
	return nil
}

func (r *WSRecorder) connection() (*websocket.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return r.conn, nil
	}
	conn, _, err := websocket.DefaultDialer.Dial(r.url, nil)
	if err != nil {
		return nil, err
	}
	r.conn = conn
	return conn, nil
}

func (r *WSRecorder) dropConnection(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == conn {
		r.conn = nil
	}
	conn.Close()
}
