// Package hub is the single point of serialization for a recording
// session's state, per spec.md §4.7: a serial control loop owns
// recording/focus/knowledge mutations, fans broadcast events out to
// bounded per-subscriber queues, and holds the lifecycle handles for
// the batcher, dispatcher, and ticker tasks. Grounded on the teacher's
// mutex-guarded ManagedStream state discipline
// (pkg/orchestrator/managed_stream.go) and on the dispatcher's
// errgroup-supervised goroutine layout, generalized from a single
// stream's turn-taking into a fan-out session with many subscribers.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lokutor-ai/live-transcripts/pkg/batcher"
	"github.com/lokutor-ai/live-transcripts/pkg/contextmgr"
	"github.com/lokutor-ai/live-transcripts/pkg/dispatcher"
	"github.com/lokutor-ai/live-transcripts/pkg/logging"
	"github.com/lokutor-ai/live-transcripts/pkg/ticker"
	"github.com/lokutor-ai/live-transcripts/pkg/transcript"
)

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdSetFocus
	cmdSetKnowledge
	cmdQuestion
	cmdPing
)

type command struct {
	kind commandKind
	sub  *subscriber
	msg  clientMessage
}

// Session is one recording pipeline: a Batcher, a Dispatcher, a
// Context Manager, two tickers, and the set of WebSocket subscribers
// watching it.
type Session struct {
	ID string

	batcher  *batcher.Batcher
	dispatch *dispatcher.Dispatcher
	ctxMgr   *contextmgr.Manager
	tr       *transcript.Transcript
	logger   logging.Logger

	insightTicker  *ticker.InsightTicker
	questionTicker *ticker.DynamicQuestionTicker

	commands chan command

	mu        sync.RWMutex
	recording RecordingState
	focus     string

	subMu       sync.Mutex
	subscribers map[string]*subscriber
}

// Config bundles a Session's collaborators. Callers (cmd/live-transcripts)
// construct the Batcher/Dispatcher/Manager first and hand them in.
type Config struct {
	Batcher          *batcher.Batcher
	Dispatcher       *dispatcher.Dispatcher
	ContextManager   *contextmgr.Manager
	Transcript       *transcript.Transcript
	InsightInterval  time.Duration
	QuestionInterval time.Duration
	Logger           logging.Logger
}

// New builds a Session in the initial PAUSED state (spec.md §4.7).
func New(id string, cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}

	s := &Session{
		ID:          id,
		batcher:     cfg.Batcher,
		dispatch:    cfg.Dispatcher,
		ctxMgr:      cfg.ContextManager,
		tr:          cfg.Transcript,
		logger:      logger,
		commands:    make(chan command, 32),
		recording:   Paused,
		subscribers: make(map[string]*subscriber),
	}
	s.batcher.Pause()

	s.insightTicker = &ticker.InsightTicker{
		Manager:  s.ctxMgr,
		Tr:       s.tr,
		Interval: cfg.InsightInterval,
		State:    s.state,
		OnResult: s.broadcastInsights,
		Logger:   logger,
	}
	s.questionTicker = &ticker.DynamicQuestionTicker{
		Manager:  s.ctxMgr,
		Tr:       s.tr,
		Interval: cfg.QuestionInterval,
		State:    s.state,
		OnResult: s.broadcastQuestions,
		Logger:   logger,
	}

	return s
}

func (s *Session) state() RecordingState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recording
}

// Stop transitions the session to the terminal STOPPED state
// (spec.md §4.7: one-way, tears down all tasks) and broadcasts the
// terminal state event. Idempotent: a second call is a no-op. Called
// directly rather than routed through the command channel so shutdown
// can call it even if ctx is about to be (or already was) cancelled —
// controlLoop exiting alongside ctx must not race the STOPPED
// broadcast and its delivery to subscribers.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.recording == Stopped {
		s.mu.Unlock()
		return
	}
	s.recording = Stopped
	focus := s.focus
	s.mu.Unlock()

	s.batcher.Pause()
	s.broadcastState(Stopped, focus)
}

// Run drives the session's long-lived tasks until ctx is cancelled.
// Subscriber command processing, the batcher, the dispatcher, and both
// tickers are supervised by one errgroup so a fatal failure in any one
// tears the whole session down (spec.md §7's Fatal class).
func (s *Session) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.batcher.Run(gctx) })
	g.Go(func() error { return s.dispatch.Run(gctx, s.batcher.Out()) })
	g.Go(func() error { return s.insightTicker.Run(gctx) })
	g.Go(func() error { return s.questionTicker.Run(gctx) })
	g.Go(func() error { return s.controlLoop(gctx) })

	return g.Wait()
}

func (s *Session) controlLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-s.commands:
			s.handle(ctx, cmd)
		}
	}
}

func (s *Session) handle(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdStart:
		s.mu.Lock()
		if s.recording == Stopped {
			s.mu.Unlock()
			s.unicastError(cmd.sub, "invalid_transition", ErrSessionStopped.Error(), "")
			return
		}
		changed := s.recording != Recording
		s.recording = Recording
		focus := s.focus
		s.mu.Unlock()
		if changed {
			s.batcher.Resume()
			s.broadcastState(Recording, focus)
		}

	case cmdStop:
		s.mu.Lock()
		if s.recording == Stopped {
			s.mu.Unlock()
			return
		}
		changed := s.recording != Paused
		s.recording = Paused
		focus := s.focus
		s.mu.Unlock()
		if changed {
			s.batcher.Pause()
			s.broadcastState(Paused, focus)
		}

	case cmdSetFocus:
		s.mu.Lock()
		if s.focus == cmd.msg.Focus {
			s.mu.Unlock()
			return
		}
		s.focus = cmd.msg.Focus
		recording := s.recording
		s.mu.Unlock()
		s.ctxMgr.SetFocus(cmd.msg.Focus)
		s.broadcastState(recording, cmd.msg.Focus)

	case cmdSetKnowledge:
		items := make([]contextmgr.KnowledgeItem, 0, len(cmd.msg.Items))
		for _, it := range cmd.msg.Items {
			items = append(items, it.toKnowledgeItem())
		}
		s.ctxMgr.SetKnowledge(items)
		s.unicast(cmd.sub, ackEvent{Type: "set_knowledge_ack"})

	case cmdQuestion:
		if cmd.msg.Question == "" || cmd.msg.RequestID == "" {
			s.unicastError(cmd.sub, "invalid_message", ErrInvalidMessage.Error()+": question requires question and request_id", cmd.msg.RequestID)
			return
		}
		go s.answerQuestion(ctx, cmd.sub, cmd.msg.Question, cmd.msg.RequestID)

	case cmdPing:
		s.unicast(cmd.sub, pongEvent{Type: "pong"})
	}
}

// answerQuestion runs detached from ctx: spec.md §5 requires outstanding
// RPCs to be allowed to complete even if the subscriber disconnects;
// only delivery is skipped if the subscriber is gone by the time the
// answer is ready.
func (s *Session) answerQuestion(ctx context.Context, sub *subscriber, question, requestID string) {
	ans := s.ctxMgr.AnswerQuestion(context.Background(), question)
	if ans.TruncationErr != nil {
		s.logger.Debug("hub: prompt projection truncated", "request_id", requestID, "error", ans.TruncationErr)
	}
	s.unicast(sub, answerEvent{
		Type:      "answer",
		RequestID: requestID,
		Answer:    ans.Text,
		LatencyMS: ans.Latency.Milliseconds(),
		Error:     ans.Err != nil,
	})
}

// Dispatch enqueues an inbound client message for serialized handling.
// Called from each subscriber's read loop.
func (s *Session) Dispatch(sub *subscriber, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.unicastError(sub, "invalid_message", ErrInvalidMessage.Error()+": malformed JSON", "")
		return
	}

	var kind commandKind
	switch msg.Type {
	case "start":
		kind = cmdStart
	case "stop":
		kind = cmdStop
	case "set_focus":
		kind = cmdSetFocus
	case "set_knowledge":
		kind = cmdSetKnowledge
	case "question":
		kind = cmdQuestion
	case "ping":
		kind = cmdPing
	default:
		s.unicastError(sub, "unknown_command", ErrUnknownCommand.Error(), "")
		return
	}

	s.commands <- command{kind: kind, sub: sub, msg: msg}
}

// AddSubscriber registers a new subscriber and immediately sends it a
// state snapshot, per a newly connecting client's need to know the
// current recording/focus state without waiting for the next change.
func (s *Session) AddSubscriber(conn *websocket.Conn) *subscriber {
	sub := newSubscriber(uuid.New().String(), conn)
	s.subMu.Lock()
	s.subscribers[sub.id] = sub
	s.subMu.Unlock()

	recording, focus := s.snapshotState()
	s.unicast(sub, stateEvent{Type: "state", Recording: recording.String(), Focus: focus})
	return sub
}

// RemoveSubscriber drops sub from the broadcast set (connection closed
// or it was marked lagging).
func (s *Session) RemoveSubscriber(sub *subscriber) {
	s.subMu.Lock()
	delete(s.subscribers, sub.id)
	s.subMu.Unlock()
	sub.close()
}

func (s *Session) snapshotState() (RecordingState, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recording, s.focus
}

func (s *Session) broadcastState(recording RecordingState, focus string) {
	s.broadcast(stateEvent{Type: "state", Recording: recording.String(), Focus: focus}, false)
}

func (s *Session) broadcastInsights(insights []contextmgr.Insight) {
	for _, ins := range insights {
		s.broadcast(insightEvent{
			Type: "insight",
			Kind: ins.Kind.String(),
			Text: ins.Text,
			TS:   ins.GeneratedAt.UTC().Format(time.RFC3339Nano),
		}, false)
	}
}

func (s *Session) broadcastQuestions(r ticker.QuestionResult) {
	s.broadcast(suggestedQuestionsEvent{
		Type:         "suggested_questions",
		Questions:    r.Questions,
		RotatedIndex: r.RotatedIndex,
	}, false)
}

// BroadcastTranscription is wired as the Dispatcher's OnAppend hook so
// every committed Transcription reaches subscribers in append order,
// per spec.md §4.7's transcription event.
func (s *Session) BroadcastTranscription(t transcript.Transcription) {
	s.broadcast(transcriptionEvent{
		Type:     "transcription",
		Text:     t.Text,
		BatchSeq: t.BatchSeq,
		TS:       t.AppendedAt.UTC().Format(time.RFC3339Nano),
		Error:    t.Failed(),
	}, true)
}

func (s *Session) broadcast(v interface{}, isTranscription bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("hub: failed to marshal broadcast event", "error", err)
		return
	}

	s.subMu.Lock()
	subs := make([]*subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.enqueue(payload, isTranscription)
	}
}

func (s *Session) unicast(sub *subscriber, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("hub: failed to marshal unicast event", "error", err)
		return
	}
	sub.enqueue(payload, false)
}

func (s *Session) unicastError(sub *subscriber, kind, message, requestID string) {
	s.unicast(sub, errorEvent{Type: "error", Kind: kind, Message: message, RequestID: requestID})
}
