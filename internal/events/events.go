// Package events is a small in-process pub/sub bus. Publication never
// blocks the caller: each event is queued onto a buffered channel and a
// single dispatch goroutine fans it out to subscribers. When the queue is
// full the event is dropped and counted, never stalls the pipeline.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"cortex/internal/logging"
)

const defaultQueueSize = 256

// Event is one published occurrence.
type Event struct {
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// Handler receives events. Handlers run on the dispatch goroutine, so they
// must be quick and must not call back into Publish synchronously forever.
type Handler func(Event)

// Bus fans published events out to subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler // event type -> handlers; "" subscribes to all

	queue   chan Event
	done    chan struct{}
	wg      sync.WaitGroup
	closed  atomic.Bool
	dropped atomic.Int64
}

// NewBus starts a bus with the default queue size.
func NewBus() *Bus {
	return NewBusSize(defaultQueueSize)
}

// NewBusSize starts a bus with an explicit queue size.
func NewBusSize(size int) *Bus {
	if size <= 0 {
		size = defaultQueueSize
	}
	b := &Bus{
		handlers: make(map[string][]Handler),
		queue:    make(chan Event, size),
		done:     make(chan struct{}),
	}
	b.wg.Add(1)
	go b.dispatch()
	return b
}

func (b *Bus) dispatch() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			// Drain what is already queued before exiting.
			for {
				select {
				case ev := <-b.queue:
					b.deliver(ev)
				default:
					return
				}
			}
		case ev := <-b.queue:
			b.deliver(ev)
		}
	}
}

func (b *Bus) deliver(ev Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[ev.Type]...)
	handlers = append(handlers, b.handlers[""]...)
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}

// Subscribe registers a handler for one event type. An empty type
// subscribes to every event.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
	b.mu.Unlock()
}

// Publish queues an event. Non-blocking: a full queue drops the event.
func (b *Bus) Publish(eventType string, payload map[string]any) {
	if b.closed.Load() {
		return
	}
	ev := Event{Type: eventType, Payload: payload, Timestamp: time.Now()}
	select {
	case b.queue <- ev:
	default:
		b.dropped.Add(1)
		logging.Get(logging.CategoryEvents).Warnf("event queue full, dropped %s", eventType)
	}
}

// Dropped reports how many events were discarded on a full queue.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }

// Close stops accepting events, delivers what is queued, and waits for the
// dispatch goroutine to exit.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	close(b.done)
	b.wg.Wait()
}
