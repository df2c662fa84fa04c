// Package stt adapts the speech-to-text HTTP APIs the teacher already
// spoke (Groq, OpenAI, Deepgram, AssemblyAI) behind the dispatcher's
// Transcriber port, classifying HTTP failures into the typed error
// kinds spec.md §4.4 requires instead of returning bare error strings.
package stt

import (
	"net/http"
	"strconv"
	"time"

	"github.com/lokutor-ai/live-transcripts/pkg/dispatcher"
)

// classifyStatus maps an HTTP response status to a dispatcher error
// kind, reading Retry-After for 429s.
func classifyStatus(model string, resp *http.Response, body string) *dispatcher.TranscribeError {
	status := resp.StatusCode
	switch {
	case status == http.StatusTooManyRequests:
		return dispatcher.NewTranscribeError(model, dispatcher.KindRateLimited, retryAfter(resp), errorf(status, body))
	case status >= 500:
		return dispatcher.NewTranscribeError(model, dispatcher.KindServerError, 0, errorf(status, body))
	case status >= 400:
		return dispatcher.NewTranscribeError(model, dispatcher.KindClientError, 0, errorf(status, body))
	default:
		return dispatcher.NewTranscribeError(model, dispatcher.KindUnknown, 0, errorf(status, body))
	}
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func errorf(status int, body string) error {
	return &statusError{status: status, body: body}
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return "status " + strconv.Itoa(e.status) + ": " + e.body
}

// networkErr wraps a transport-level failure (DNS, connection reset,
// context deadline at the round-tripper) as a KindNetwork error,
// except when timedOut is set (callers pass whether the request
// context has ended, by deadline or cancellation), which is classified
// KindTimeout.
func networkErr(model string, err error, timedOut bool) *dispatcher.TranscribeError {
	if timedOut {
		return dispatcher.NewTranscribeError(model, dispatcher.KindTimeout, 0, err)
	}
	return dispatcher.NewTranscribeError(model, dispatcher.KindNetwork, 0, err)
}
