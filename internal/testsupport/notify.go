package testsupport

import (
	"context"
	"encoding/json"
	"sync"
)

// RecordedEvent is one broadcast captured by Recorder.
type RecordedEvent struct {
	Name    string
	Scope   string
	Payload json.RawMessage
}

// Recorder is a Broadcaster that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []RecordedEvent
	notify chan struct{}
}

func (r *Recorder) Broadcast(_ context.Context, event string, payload any, scope string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.events = append(r.events, RecordedEvent{Name: event, Scope: scope, Payload: data})
	ch := r.notify
	r.mu.Unlock()
	if ch != nil {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedEvent(nil), r.events...)
}

// Signal returns a channel that receives after each broadcast.
func (r *Recorder) Signal() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.notify == nil {
		r.notify = make(chan struct{}, 64)
	}
	return r.notify
}
