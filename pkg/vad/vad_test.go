package vad

import "testing"

func constFrame(v int16, n int) []int16 {
	frame := make([]int16, n)
	for i := range frame {
		frame[i] = v
	}
	return frame
}

func TestFrameRMS(t *testing.T) {
	if got := FrameRMS(nil); got != 0 {
		t.Fatalf("expected 0 for empty frame, got %f", got)
	}
	frame := constFrame(1000, 10)
	if got := FrameRMS(frame); got != 1000 {
		t.Fatalf("expected RMS 1000 for constant frame, got %f", got)
	}
}

func TestDetectorEntersImmediatelyAboveThreshold(t *testing.T) {
	d := New(Config{EnterThreshold: 500, ExitThreshold: 300, MinUnvoiceFrames: 3})

	loud := constFrame(1000, 20)
	if !d.Process(loud) {
		t.Fatalf("expected immediate entry above enterThreshold")
	}
}

func TestDetectorHysteresisHoldsThroughBriefDip(t *testing.T) {
	d := New(Config{EnterThreshold: 500, ExitThreshold: 300, MinUnvoiceFrames: 3})

	loud := constFrame(1000, 20)
	quiet := constFrame(100, 20)

	if !d.Process(loud) {
		t.Fatalf("expected entry")
	}
	// Two brief quiet frames should not exit yet.
	if !d.Process(quiet) {
		t.Fatalf("expected still voiced after 1 quiet frame")
	}
	if !d.Process(quiet) {
		t.Fatalf("expected still voiced after 2 quiet frames")
	}
	// A loud frame resets the unvoiced run.
	if !d.Process(loud) {
		t.Fatalf("expected still voiced after resuming loud")
	}
	if !d.Process(quiet) || !d.Process(quiet) {
		t.Fatalf("expected still voiced, unvoiced run should have reset")
	}
	if d.Process(quiet) {
		t.Fatalf("expected exit after 3 consecutive quiet frames")
	}
	if d.Voiced() {
		t.Fatalf("detector should report unvoiced after exit")
	}
}

func TestDetectorReset(t *testing.T) {
	d := New(Config{EnterThreshold: 500, ExitThreshold: 300, MinUnvoiceFrames: 1})
	d.Process(constFrame(1000, 20))
	if !d.Voiced() {
		t.Fatalf("expected voiced before reset")
	}
	d.Reset()
	if d.Voiced() {
		t.Fatalf("expected unvoiced after reset")
	}
}

func TestDetectorClone(t *testing.T) {
	d := New(Config{EnterThreshold: 500, ExitThreshold: 300, MinUnvoiceFrames: 1})
	d.Process(constFrame(1000, 20))

	clone := d.Clone()
	if clone.Voiced() {
		t.Fatalf("clone should start with fresh state")
	}
}
