package hub

import (
	"time"

	"github.com/lokutor-ai/live-transcripts/pkg/contextmgr"
	"github.com/lokutor-ai/live-transcripts/pkg/ticker"
)

// RecordingState is the session's three-state recording lifecycle, per
// spec.md §4.7: PAUSED ⇄ RECORDING, and terminal STOPPED. Aliased from
// pkg/ticker so the tickers' StateFunc and the hub agree on one type
// without pkg/ticker importing pkg/hub.
type RecordingState = ticker.RecordingState

const (
	Paused    = ticker.Paused
	Recording = ticker.Recording
	Stopped   = ticker.Stopped
)

// clientMessage is the closed sum type over every client→server
// message, per spec.md §6. Fields unused by a given Type are left
// zero.
type clientMessage struct {
	Type      string              `json:"type"`
	Focus     string              `json:"focus,omitempty"`
	Items     []knowledgeItemWire `json:"items,omitempty"`
	Question  string              `json:"question,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

type knowledgeItemWire struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Text string `json:"text"`
}

func (w knowledgeItemWire) toKnowledgeItem() contextmgr.KnowledgeItem {
	return contextmgr.KnowledgeItem{ID: w.ID, Name: w.Name, Text: w.Text}
}

// Server→client event payloads, one struct per spec.md §6 message
// type. Each is marshaled independently (no shared envelope beyond the
// type field each carries itself).

type transcriptionEvent struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	BatchSeq uint64 `json:"batch_seq"`
	TS       string `json:"ts"`
	Error    bool   `json:"error,omitempty"`
}

type answerEvent struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Answer    string `json:"answer"`
	LatencyMS int64  `json:"latency_ms"`
	Error     bool   `json:"error,omitempty"`
}

type insightEvent struct {
	Type string `json:"type"`
	Kind string `json:"kind"`
	Text string `json:"text"`
	TS   string `json:"ts"`
}

type suggestedQuestionsEvent struct {
	Type         string   `json:"type"`
	Questions    []string `json:"questions"`
	RotatedIndex int      `json:"rotated_index"`
}

type stateEvent struct {
	Type      string `json:"type"`
	Recording string `json:"recording"`
	Focus     string `json:"focus"`
}

type errorEvent struct {
	Type      string `json:"type"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type pongEvent struct {
	Type string `json:"type"`
}

type ackEvent struct {
	Type string `json:"type"`
}

func nowISO8601() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
