package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lokutor-ai/live-transcripts/pkg/batcher"
	"github.com/lokutor-ai/live-transcripts/pkg/contextmgr"
	"github.com/lokutor-ai/live-transcripts/pkg/dispatcher"
	"github.com/lokutor-ai/live-transcripts/pkg/llm"
	"github.com/lokutor-ai/live-transcripts/pkg/transcript"
)

type stubGenerator struct {
	response string
}

func (g *stubGenerator) Name() string { return "stub" }

func (g *stubGenerator) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	return g.response, nil
}

func newTestSession(t *testing.T) (*Session, context.CancelFunc) {
	t.Helper()
	tr := transcript.New()
	b := batcher.New(nil, batcher.DefaultConfig(16000), nil)
	stats := dispatcher.NewStats(prometheus.NewRegistry())
	disp := dispatcher.New([]dispatcher.Transcriber{dispatcher.NewStaticSTT("static", "ok")}, tr, stats, dispatcher.DefaultConfig(), nil)
	mgr := contextmgr.New(&stubGenerator{response: "an answer"}, tr, contextmgr.DefaultConfig())

	sess := New("test-session", Config{
		Batcher:          b,
		Dispatcher:       disp,
		ContextManager:   mgr,
		Transcript:       tr,
		InsightInterval:  time.Hour,
		QuestionInterval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go sess.Run(ctx)
	return sess, cancel
}

// drain copies and clears sub's queue, simulating what the real
// websocket-writing goroutine (subscriber.run) would consume.
func drain(t *testing.T, sub *subscriber) []map[string]interface{} {
	t.Helper()
	sub.mu.Lock()
	defer sub.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(sub.queue))
	for _, m := range sub.queue {
		var v map[string]interface{}
		if err := json.Unmarshal(m.payload, &v); err != nil {
			t.Fatalf("failed to unmarshal queued message: %v", err)
		}
		out = append(out, v)
	}
	sub.queue = nil
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestSessionAddSubscriberSendsInitialState(t *testing.T) {
	sess, cancel := newTestSession(t)
	defer cancel()

	sub := sess.AddSubscriber(nil)
	msgs := drain(t, sub)
	if len(msgs) != 1 {
		t.Fatalf("expected exactly 1 initial message, got %d", len(msgs))
	}
	if msgs[0]["type"] != "state" || msgs[0]["recording"] != "PAUSED" {
		t.Fatalf("expected initial state PAUSED, got %+v", msgs[0])
	}
}

func TestSessionStartTransitionsAndBroadcastsState(t *testing.T) {
	sess, cancel := newTestSession(t)
	defer cancel()

	sub := sess.AddSubscriber(nil)
	drain(t, sub) // consume the initial state event

	sess.Dispatch(sub, []byte(`{"type":"start"}`))
	waitFor(t, time.Second, func() bool { return sess.state() == Recording })

	msgs := drain(t, sub)
	if len(msgs) != 1 || msgs[0]["type"] != "state" || msgs[0]["recording"] != "RECORDING" {
		t.Fatalf("expected one RECORDING state broadcast, got %+v", msgs)
	}
}

func TestSessionSetFocusIsIdempotent(t *testing.T) {
	sess, cancel := newTestSession(t)
	defer cancel()

	sub := sess.AddSubscriber(nil)
	drain(t, sub)

	sess.Dispatch(sub, []byte(`{"type":"set_focus","focus":"roadmap"}`))
	waitFor(t, time.Second, func() bool {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return len(sub.queue) > 0
	})
	first := drain(t, sub)
	if len(first) != 1 || first[0]["type"] != "state" || first[0]["focus"] != "roadmap" {
		t.Fatalf("expected one state broadcast carrying the new focus, got %+v", first)
	}

	// second identical set_focus should not produce another broadcast
	sess.Dispatch(sub, []byte(`{"type":"set_focus","focus":"roadmap"}`))
	time.Sleep(30 * time.Millisecond)
	again := drain(t, sub)
	if len(again) != 0 {
		t.Fatalf("expected no additional broadcast for a repeated identical set_focus, got %+v", again)
	}
}

func TestSessionQuestionRoundTripsRequestID(t *testing.T) {
	sess, cancel := newTestSession(t)
	defer cancel()

	sub := sess.AddSubscriber(nil)
	drain(t, sub)

	sess.Dispatch(sub, []byte(`{"type":"question","question":"what happened?","request_id":"req-1"}`))

	waitFor(t, time.Second, func() bool {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return len(sub.queue) > 0
	})
	msgs := drain(t, sub)
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one answer message, got %+v", msgs)
	}
	if msgs[0]["type"] != "answer" || msgs[0]["request_id"] != "req-1" || msgs[0]["answer"] != "an answer" {
		t.Fatalf("unexpected answer payload: %+v", msgs[0])
	}
}

func TestSessionPingPong(t *testing.T) {
	sess, cancel := newTestSession(t)
	defer cancel()

	sub := sess.AddSubscriber(nil)
	drain(t, sub)

	sess.Dispatch(sub, []byte(`{"type":"ping"}`))
	waitFor(t, time.Second, func() bool {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return len(sub.queue) > 0
	})
	msgs := drain(t, sub)
	if len(msgs) != 1 || msgs[0]["type"] != "pong" {
		t.Fatalf("expected a pong, got %+v", msgs)
	}
}

func TestSessionUnknownCommandYieldsError(t *testing.T) {
	sess, cancel := newTestSession(t)
	defer cancel()

	sub := sess.AddSubscriber(nil)
	drain(t, sub)

	sess.Dispatch(sub, []byte(`{"type":"frobnicate"}`))
	waitFor(t, time.Second, func() bool {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return len(sub.queue) > 0
	})
	msgs := drain(t, sub)
	if len(msgs) != 1 || msgs[0]["type"] != "error" || msgs[0]["kind"] != "unknown_command" {
		t.Fatalf("expected an unknown_command error, got %+v", msgs)
	}
}

func TestSessionStopIsTerminalAndBroadcasts(t *testing.T) {
	sess, cancel := newTestSession(t)
	defer cancel()

	sub := sess.AddSubscriber(nil)
	drain(t, sub)

	sess.Dispatch(sub, []byte(`{"type":"start"}`))
	waitFor(t, time.Second, func() bool { return sess.state() == Recording })
	drain(t, sub)

	sess.Stop()
	if sess.state() != Stopped {
		t.Fatalf("expected STOPPED after Stop(), got %s", sess.state())
	}
	msgs := drain(t, sub)
	if len(msgs) != 1 || msgs[0]["type"] != "state" || msgs[0]["recording"] != "STOPPED" {
		t.Fatalf("expected one STOPPED state broadcast, got %+v", msgs)
	}

	// idempotent: a second Stop() must not broadcast again
	sess.Stop()
	if again := drain(t, sub); len(again) != 0 {
		t.Fatalf("expected no additional broadcast from a repeated Stop(), got %+v", again)
	}

	// STOPPED is one-way: start must be rejected with an error, not a
	// transition back to RECORDING
	sess.Dispatch(sub, []byte(`{"type":"start"}`))
	waitFor(t, time.Second, func() bool {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return len(sub.queue) > 0
	})
	rejected := drain(t, sub)
	if len(rejected) != 1 || rejected[0]["type"] != "error" || rejected[0]["kind"] != "invalid_transition" {
		t.Fatalf("expected start to be rejected once stopped, got %+v", rejected)
	}
	if sess.state() != Stopped {
		t.Fatalf("expected to remain STOPPED, got %s", sess.state())
	}
}

func TestBroadcastTranscriptionReachesAllSubscribers(t *testing.T) {
	sess, cancel := newTestSession(t)
	defer cancel()

	sub1 := sess.AddSubscriber(nil)
	sub2 := sess.AddSubscriber(nil)
	drain(t, sub1)
	drain(t, sub2)

	sess.BroadcastTranscription(transcript.Transcription{BatchSeq: 7, Text: "hello world"})

	for _, sub := range []*subscriber{sub1, sub2} {
		msgs := drain(t, sub)
		if len(msgs) != 1 || msgs[0]["type"] != "transcription" || msgs[0]["batch_seq"] != float64(7) {
			t.Fatalf("expected a transcription event to reach every subscriber, got %+v", msgs)
		}
	}
}
