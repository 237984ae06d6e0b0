package events

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// subscriberBuffer is the per-subscriber channel depth. A slow subscriber
// loses events beyond this rather than stalling publishers.
const subscriberBuffer = 64

// Filter selects which events a subscriber receives. Empty slices match
// everything for that dimension.
type Filter struct {
	Types       []Type
	Severities  []Severity
	ProviderIDs []string
}

func (f Filter) matches(e Event) bool {
	if len(f.Types) > 0 && !containsType(f.Types, e.Type) {
		return false
	}
	if len(f.Severities) > 0 && !containsSeverity(f.Severities, e.Severity) {
		return false
	}
	if len(f.ProviderIDs) > 0 && !containsString(f.ProviderIDs, e.ProviderID) {
		return false
	}
	return true
}

type subscriber struct {
	filter Filter
	ch     chan Event
}

// Bus is the in-process publish/subscribe channel. Publish is non-blocking;
// events for subscribers with full buffers are dropped and counted.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscriber
	nextID  uint64
	dropped atomic.Int64
	onDrop  func()
	log     zerolog.Logger
}

func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[uint64]*subscriber),
		log:  log,
	}
}

// OnDrop registers a hook invoked once per dropped event, used to feed the
// drop metric without the domain depending on the metrics registry.
func (b *Bus) OnDrop(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDrop = fn
}

// Publish fans the event out to all matching subscribers without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if !sub.filter.matches(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			b.dropped.Add(1)
			if b.onDrop != nil {
				b.onDrop()
			}
			b.log.Debug().
				Str("event_type", string(e.Type)).
				Str("provider_id", e.ProviderID).
				Msg("dropping coordination event for slow subscriber")
		}
	}
}

// Subscribe registers a filtered subscriber and returns its channel plus an
// unsubscribe function. The channel is closed on unsubscribe.
func (b *Bus) Subscribe(filter Filter) (<-chan Event, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	sub := &subscriber{filter: filter, ch: make(chan Event, subscriberBuffer)}
	b.subs[id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

// Dropped reports how many events have been discarded since startup.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// SubscriberCount reports the number of live subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func containsType(list []Type, v Type) bool {
	for _, t := range list {
		if t == v {
			return true
		}
	}
	return false
}

func containsSeverity(list []Severity, v Severity) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
