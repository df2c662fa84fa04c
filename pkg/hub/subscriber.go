package hub

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// subscriberBufferSize is spec.md §4.7's default per-subscriber bound.
const subscriberBufferSize = 64

// writeTimeout bounds a single outbound frame write; a slow network
// peer trips this the same way a full buffer does.
const writeTimeout = 5 * time.Second

type queuedMsg struct {
	payload       []byte
	transcription bool
}

// subscriber owns one subscriber's outbound message queue and the
// goroutine draining it to a websocket connection. Its drop policy
// (spec.md §4.7): on overflow, drop the oldest non-transcription
// message to make room; if every queued message is itself a
// transcription, the subscriber is marked lagging and closed rather
// than dropping a transcription. A slow subscriber never back-pressures
// the pipeline — enqueue never blocks.
type subscriber struct {
	id   string
	conn *websocket.Conn

	mu      sync.Mutex
	queue   []queuedMsg
	closed  bool
	lagging bool
	notify  chan struct{}
	done    chan struct{}
}

func newSubscriber(id string, conn *websocket.Conn) *subscriber {
	return &subscriber{
		id:     id,
		conn:   conn,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// enqueue appends payload to the queue, applying the overflow policy.
// Never blocks.
func (s *subscriber) enqueue(payload []byte, isTranscription bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if len(s.queue) >= subscriberBufferSize {
		idx := -1
		for i, m := range s.queue {
			if !m.transcription {
				idx = i
				break
			}
		}
		if idx >= 0 {
			s.queue = append(s.queue[:idx], s.queue[idx+1:]...)
		} else {
			s.lagging = true
			s.closeLocked()
			return
		}
	}

	s.queue = append(s.queue, queuedMsg{payload: payload, transcription: isTranscription})
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// run drains the queue to the websocket connection until ctx is
// cancelled or a write fails. Intended to be run in its own goroutine.
func (s *subscriber) run(ctx context.Context) {
	defer s.close()
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-s.notify:
				continue
			}
		}
		msg := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := s.conn.Write(writeCtx, websocket.MessageText, msg.payload)
		cancel()
		if err != nil {
			return
		}
	}
}

func (s *subscriber) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *subscriber) isLagging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lagging
}
