package bridge

import (
	"sync"
	"sync/atomic"

	"github.com/foomo/catalogserver/catalog"
	"github.com/foomo/catalogserver/pkg/metrics"
	"go.uber.org/zap"
)

type (
	// Source the store side of the bridge
	Source interface {
		Snapshot() *catalog.Node
		OnChange(fn func(catalog.Event))
	}
	Handler func(event catalog.Event)
	// Bridge fans store change events out to any number of subscribers.
	// Delivery is synchronous: Publish returns once every subscriber ran.
	Bridge struct {
		l           *zap.Logger
		source      Source
		mu          sync.Mutex
		nextID      uint64
		subscribers atomic.Pointer[[]*subscriber]
	}
	subscriber struct {
		id     uint64
		fn     Handler
		active atomic.Bool
	}
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

// New creates a bridge and registers it as the change callback of source
func New(l *zap.Logger, source Source) *Bridge {
	inst := &Bridge{
		l:      l.Named("bridge"),
		source: source,
	}
	inst.subscribers.Store(&[]*subscriber{})
	source.OnChange(inst.Publish)
	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Snapshot pulls the current tree from the source
func (b *Bridge) Snapshot() *catalog.Node {
	return b.source.Snapshot()
}

// Subscribe registers fn for every following event. It is safe to call from
// within a handler; the new subscriber sees events published after the call.
func (b *Bridge) Subscribe(fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscriber{id: b.nextID, fn: fn}
	sub.active.Store(true)

	current := *b.subscribers.Load()
	next := make([]*subscriber, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, sub)
	b.subscribers.Store(&next)
	metrics.SubscribersGauge.WithLabelValues().Set(float64(len(next)))
	b.l.Debug("subscribed", zap.Uint64("id", sub.id), zap.Int("subscribers", len(next)))

	var once sync.Once
	return func() {
		once.Do(func() {
			b.unsubscribe(sub)
		})
	}
}

// Subscribers number of active subscribers
func (b *Bridge) Subscribers() int {
	return len(*b.subscribers.Load())
}

// Publish delivers event to every active subscriber in registration order.
// A panicking handler is logged and does not keep the others from running.
func (b *Bridge) Publish(event catalog.Event) {
	metrics.EventsCounter.WithLabelValues(string(event.Operation)).Inc()
	for _, sub := range *b.subscribers.Load() {
		if !sub.active.Load() {
			continue
		}
		b.deliver(sub, event)
	}
}

// Close detaches the bridge from its source and drops all subscribers
func (b *Bridge) Close() {
	b.source.OnChange(nil)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range *b.subscribers.Load() {
		sub.active.Store(false)
	}
	b.subscribers.Store(&[]*subscriber{})
	metrics.SubscribersGauge.WithLabelValues().Set(0)
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (b *Bridge) unsubscribe(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub.active.Store(false)
	current := *b.subscribers.Load()
	next := make([]*subscriber, 0, len(current))
	for _, s := range current {
		if s.id != sub.id {
			next = append(next, s)
		}
	}
	b.subscribers.Store(&next)
	metrics.SubscribersGauge.WithLabelValues().Set(float64(len(next)))
	b.l.Debug("unsubscribed", zap.Uint64("id", sub.id), zap.Int("subscribers", len(next)))
}

func (b *Bridge) deliver(sub *subscriber, event catalog.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.l.Error("subscriber panicked",
				zap.Uint64("id", sub.id),
				zap.String("operation", string(event.Operation)),
				zap.Any("panic", r),
			)
		}
	}()
	sub.fn(event)
}
