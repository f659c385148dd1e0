package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const defaultHubCapacity = 256

// Event is one broadcast as buffered by the Hub.
type Event struct {
	Sequence  uint64          `json:"seq"`
	Timestamp time.Time       `json:"ts"`
	Name      string          `json:"event"`
	Scope     string          `json:"scope"`
	Payload   json.RawMessage `json:"payload"`
}

// Hub stores recent events per scope and wakes waiters when new ones arrive.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	scopes   map[string]*scopeBuffer
}

type scopeBuffer struct {
	events  []Event
	nextSeq uint64
}

// NewHub constructs a hub keeping at most capacity events per scope.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = defaultHubCapacity
	}
	h := &Hub{capacity: capacity, scopes: make(map[string]*scopeBuffer)}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Broadcast snapshots payload as JSON and appends it to the scope's buffer.
func (h *Hub) Broadcast(_ context.Context, event string, payload any, scope string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	h.Publish(Event{Name: event, Scope: scope, Payload: data})
	return nil
}

// Publish appends evt to its scope, assigning the next sequence number.
func (h *Hub) Publish(evt Event) Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	buf := h.scopes[evt.Scope]
	if buf == nil {
		buf = &scopeBuffer{}
		h.scopes[evt.Scope] = buf
	}
	buf.nextSeq++
	evt.Sequence = buf.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(buf.events) == h.capacity {
		copy(buf.events, buf.events[1:])
		buf.events = buf.events[:h.capacity-1]
	}
	buf.events = append(buf.events, evt)
	h.cond.Broadcast()
	return evt
}

// Fetch returns the scope's events with a sequence greater than since, along
// with the latest sequence. When wait is true it blocks until at least one
// such event exists or ctx ends. Sequences restart at 1 with each process, so
// a since beyond the scope's latest sequence is a cursor from an earlier run
// and is treated as 0.
func (h *Hub) Fetch(ctx context.Context, scope string, since uint64, wait bool) ([]Event, uint64, error) {
	cancelWait := make(chan struct{})
	if wait && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		events, last := h.snapshotLocked(scope, since)
		if len(events) > 0 || !wait {
			return events, last, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, last, err
		}
		h.cond.Wait()
	}
}

// Latest reports the newest sequence number of scope, or 0.
func (h *Hub) Latest(scope string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if buf := h.scopes[scope]; buf != nil {
		return buf.nextSeq
	}
	return 0
}

func (h *Hub) snapshotLocked(scope string, since uint64) ([]Event, uint64) {
	buf := h.scopes[scope]
	if buf == nil {
		return nil, 0
	}
	if since > buf.nextSeq {
		since = 0
	}
	for i, evt := range buf.events {
		if evt.Sequence > since {
			out := make([]Event, len(buf.events)-i)
			copy(out, buf.events[i:])
			return out, buf.nextSeq
		}
	}
	return nil, buf.nextSeq
}
