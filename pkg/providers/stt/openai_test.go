package stt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lokutor-ai/live-transcripts/pkg/dispatcher"
)

func TestOpenAISTT(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		resp := struct {
			Text string `json:"text"`
		}{Text: "transcribed text"}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s := &OpenAISTT{apiKey: "test-key", url: server.URL, model: "whisper-1"}

	text, _, err := s.Transcribe(context.Background(), []byte{0, 0, 0, 0}, 44100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "transcribed text" {
		t.Errorf("expected 'transcribed text', got '%s'", text)
	}
	if s.Name() != "openai/whisper-1" {
		t.Errorf("expected openai/whisper-1, got %s", s.Name())
	}
}

func TestOpenAISTTClassifiesRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	s := &OpenAISTT{apiKey: "test-key", url: server.URL, model: "whisper-1"}
	_, _, err := s.Transcribe(context.Background(), []byte{0, 0}, 44100)
	if err == nil {
		t.Fatalf("expected an error")
	}
	te, ok := err.(*dispatcher.TranscribeError)
	if !ok {
		t.Fatalf("expected *dispatcher.TranscribeError, got %T", err)
	}
	if te.Kind != dispatcher.KindRateLimited {
		t.Errorf("expected KindRateLimited, got %v", te.Kind)
	}
	if te.RetryAfter != 2_000_000_000 { // 2s in nanoseconds
		t.Errorf("expected retry-after of 2s, got %v", te.RetryAfter)
	}
}
