package feed

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
)

var (
	ErrTransportClosed = errors.New("feed transport closed")
	ErrSlowConsumer    = errors.New("subscriber fell behind")
)

// SubscriptionError reports why delivery for a scope stopped or never started.
type SubscriptionError struct {
	Scope Scope
	Err   error
}

func (e *SubscriptionError) Error() string {
	return "subscription " + e.Scope.String() + ": " + e.Err.Error()
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// Subscription is the release token of one Subscribe call. The view that
// opened it owns it and must Release it on teardown.
type Subscription struct {
	id    string
	scope Scope

	quit     chan struct{}
	done     chan struct{}
	once     sync.Once
	doneOnce sync.Once
	stop     func()
	released atomic.Bool

	mu  sync.Mutex
	err error
}

func newSubscription(scope Scope) *Subscription {
	return &Subscription{
		id:    ulid.Make().String(),
		scope: scope,
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (s *Subscription) ID() string   { return s.id }
func (s *Subscription) Scope() Scope { return s.scope }

// Release stops delivery. It is safe to call any number of times, from any
// goroutine, including from inside the handler.
func (s *Subscription) Release() {
	s.shutdown(nil)
}

// Released reports whether Release was called.
func (s *Subscription) Released() bool {
	return s.released.Load()
}

// Done is closed once the delivery goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the transport failure that stopped delivery, if any. It is nil
// after a plain Release.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) fail(err error) {
	s.shutdown(err)
}

func (s *Subscription) shutdown(err error) {
	s.once.Do(func() {
		if err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		} else {
			s.released.Store(true)
		}
		close(s.quit)
		if s.stop != nil {
			s.stop()
		}
	})
}

func (s *Subscription) finished() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Subscription) stopped() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

func (s *Subscription) deliver(h Handler, ev Event) {
	if s.stopped() {
		return
	}
	h(ev)
}
