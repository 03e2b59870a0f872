package bus

import (
	"context"
	"testing"
	"time"
)

func drain(t *testing.T, b *Bus) []Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var got []Event
	for ev := range b.Stream(ctx) {
		got = append(got, ev)
	}
	return got
}

func TestStreamEmitsInEnqueueOrder(t *testing.T) {
	b := New()
	b.RegisterComponent("text_generation")

	b.SendStatus(StatusStarting, "")
	b.SendData(EventAnswerChunk, ContentData{Content: "hi"})
	b.MarkComponentComplete("text_generation")

	events := drain(t, b)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventStatus || events[1].Type != EventAnswerChunk {
		t.Errorf("unexpected ordering: %+v", events)
	}
}

func TestStreamWaitsForAllRegisteredComponents(t *testing.T) {
	b := New()
	b.RegisterComponent("text_generation")
	b.RegisterComponent("tts_processing")
	b.MarkComponentComplete("text_generation")

	done := make(chan struct{})
	go func() {
		drain(t, b)
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("stream terminated before all components were complete")
	case <-time.After(150 * time.Millisecond):
	}

	b.MarkComponentComplete("tts_processing")
	<-done
}

func TestStreamTerminatesOnErrorEvenIfComponentsIncomplete(t *testing.T) {
	b := New()
	b.RegisterComponent("text_generation")
	b.SendError("boom")
	b.MarkAllComplete()

	events := drain(t, b)
	if len(events) != 1 || events[0].Type != EventError {
		t.Errorf("expected a single error event, got %+v", events)
	}
}

func TestMarkComponentCompleteIsIdempotent(t *testing.T) {
	b := New()
	b.RegisterComponent("text_generation")
	b.MarkComponentComplete("text_generation")
	b.MarkComponentComplete("text_generation")

	events := drain(t, b)
	if len(events) != 0 {
		t.Errorf("expected no events, got %+v", events)
	}
}
