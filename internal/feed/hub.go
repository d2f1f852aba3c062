package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

const DefaultHubBuffer = 256

// Hub is an in-process Feed and Publisher for single-node deployments.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]chan Event
	buffer int
	closed bool
	log    logrus.FieldLogger
}

func NewHub(buffer int, logger logrus.FieldLogger) *Hub {
	if buffer <= 0 {
		buffer = DefaultHubBuffer
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]chan Event),
		buffer: buffer,
		log:    logger,
	}
}

func (h *Hub) Subscribe(ctx context.Context, scope Scope, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, &SubscriptionError{Scope: scope, Err: errors.New("nil handler")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &SubscriptionError{Scope: scope, Err: err}
	}

	key := scope.String()
	ch := make(chan Event, h.buffer)
	sub := newSubscription(scope)
	sub.stop = func() { h.remove(key, sub) }

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, &SubscriptionError{Scope: scope, Err: ErrTransportClosed}
	}
	if h.subs[key] == nil {
		h.subs[key] = make(map[*Subscription]chan Event)
	}
	h.subs[key][sub] = ch
	h.mu.Unlock()

	go h.run(ctx, sub, ch, handler)
	return sub, nil
}

func (h *Hub) run(ctx context.Context, sub *Subscription, ch <-chan Event, handler Handler) {
	defer sub.finished()
	for {
		select {
		case <-ctx.Done():
			sub.Release()
			return
		case <-sub.quit:
			return
		case ev := <-ch:
			sub.deliver(handler, ev)
		}
	}
}

// Publish hands ev to every subscriber of scope without blocking. A
// subscriber whose buffer is full is failed with ErrSlowConsumer.
func (h *Hub) Publish(_ context.Context, scope Scope, ev Event) error {
	key := scope.String()

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrTransportClosed
	}
	targets := make(map[*Subscription]chan Event, len(h.subs[key]))
	for sub, ch := range h.subs[key] {
		targets[sub] = ch
	}
	h.mu.RUnlock()

	for sub, ch := range targets {
		select {
		case ch <- ev:
		default:
			h.log.WithField("scope", key).WithField("subscription", sub.ID()).Warn("dropping slow feed subscriber")
			sub.fail(&SubscriptionError{Scope: scope, Err: ErrSlowConsumer})
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions for scope.
func (h *Hub) Subscribers(scope Scope) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[scope.String()])
}

// Close stops every subscription as a transport failure would.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var all []*Subscription
	for _, m := range h.subs {
		for sub := range m {
			all = append(all, sub)
		}
	}
	h.subs = make(map[string]map[*Subscription]chan Event)
	h.mu.Unlock()

	for _, sub := range all {
		sub.fail(&SubscriptionError{Scope: sub.Scope(), Err: ErrTransportClosed})
	}
}

func (h *Hub) remove(key string, sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.subs[key]; m != nil {
		delete(m, sub)
		if len(m) == 0 {
			delete(h.subs, key)
		}
	}
}
