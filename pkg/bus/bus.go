// Package bus implements the per-request Streaming Event Bus: a
// multi-producer/single-consumer ordered queue paired with a
// component-completion registry that gates the terminal event.
package bus

import (
	"context"
	"encoding/base64"
	"sync"
	"time"
)

const pollInterval = 50 * time.Millisecond

// Bus serializes events produced by one request's orchestrator into a
// single ordered stream for its HTTP consumer. It is created per
// request and discarded with it.
type Bus struct {
	mu       sync.Mutex
	queue    []Event
	registry map[string]bool
	errored  bool
}

// New creates a Bus with an empty completion registry.
func New() *Bus {
	return &Bus{registry: make(map[string]bool)}
}

// RegisterComponent declares a subsystem whose completion gates the
// terminal event. Registering twice is harmless.
func (b *Bus) RegisterComponent(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.registry[name]; !ok {
		b.registry[name] = false
	}
}

// MarkComponentComplete marks a component done. Idempotent: marking an
// already-complete or never-registered component is a no-op beyond
// recording it complete.
func (b *Bus) MarkComponentComplete(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registry[name] = true
}

// MarkAllComplete releases the consumer unconditionally; used on the
// error path per the propagation policy.
func (b *Bus) MarkAllComplete() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name := range b.registry {
		b.registry[name] = true
	}
}

func (b *Bus) allCompleteLocked() bool {
	for _, done := range b.registry {
		if !done {
			return false
		}
	}
	return true
}

// Send enqueues a fully-formed event, stamping its timestamp.
func (b *Bus) Send(ev Event) {
	ev.Timestamp = stamp()
	b.mu.Lock()
	b.queue = append(b.queue, ev)
	b.mu.Unlock()
}

// SendStatus enqueues a status event.
func (b *Bus) SendStatus(status Status, message string) {
	b.Send(Event{Type: EventStatus, Status: status, Message: message})
}

// SendData enqueues an event carrying a typed data payload.
func (b *Bus) SendData(t EventType, data interface{}) {
	b.Send(Event{Type: t, Data: data})
}

// SendError enqueues an error event and flags the bus as errored; the
// caller is still responsible for marking components complete to
// release the consumer.
func (b *Bus) SendError(message string) {
	ev := Event{Type: EventError, Message: message, Timestamp: stamp()}
	b.mu.Lock()
	b.errored = true
	b.queue = append(b.queue, ev)
	b.mu.Unlock()
}

// SendComplete enqueues the terminal complete event.
func (b *Bus) SendComplete(message string) {
	b.Send(Event{Type: EventComplete, Status: StatusComplete, Message: message})
}

// PlayAudio enqueues a prerecorded audio asset as a base64 "audio" event.
func (b *Bus) PlayAudio(raw []byte, format string) {
	b.SendData(EventAudio, AudioData{
		AudioData:   base64.StdEncoding.EncodeToString(raw),
		AudioSize:   len(raw),
		AudioFormat: format,
	})
}

// Stream returns a channel that yields events in enqueue order until
// either every registered component is complete and the queue is
// drained, or an error was recorded and the queue is drained. The
// consumer polls the queue on a short interval to avoid busy-waiting,
// per the bus's concurrency contract.
func (b *Bus) Stream(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			b.mu.Lock()
			var next *Event
			if len(b.queue) > 0 {
				ev := b.queue[0]
				b.queue = b.queue[1:]
				next = &ev
			}
			drained := len(b.queue) == 0
			finished := drained && (b.allCompleteLocked() || b.errored)
			b.mu.Unlock()

			if next != nil {
				select {
				case out <- *next:
				case <-ctx.Done():
					return
				}
				continue
			}
			if finished {
				return
			}
			select {
			case <-time.After(pollInterval):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
