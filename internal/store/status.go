package store

import "sync"

type State int

const (
	Idle State = iota
	Loading
	Settled
	Errored
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Settled:
		return "settled"
	case Errored:
		return "errored"
	default:
		return "idle"
	}
}

// status is the loading flag and error slot shared by every store. Each
// operation moves it idle -> loading -> settled|errored -> idle.
type status struct {
	mu       sync.Mutex
	inflight int
	state    State
	err      error
	watchers []func(State)
}

func (s *status) begin() {
	s.mu.Lock()
	s.inflight++
	s.err = nil
	watchers := s.set(Loading)
	s.mu.Unlock()
	fire(watchers, Loading)
}

// settle records err (possibly nil) and returns it unchanged.
func (s *status) settle(err error) error {
	outcome := Settled
	if err != nil {
		outcome = Errored
	}
	s.mu.Lock()
	s.inflight--
	if err != nil {
		s.err = err
	}
	watchers := s.set(outcome)
	idle := s.inflight == 0
	if idle {
		s.set(Idle)
	}
	s.mu.Unlock()

	fire(watchers, outcome)
	if idle {
		fire(watchers, Idle)
	}
	return err
}

func (s *status) set(st State) []func(State) {
	s.state = st
	return s.watchers
}

func fire(watchers []func(State), st State) {
	for _, w := range watchers {
		w(st)
	}
}

func (s *status) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Loading reports whether any operation is in flight.
func (s *status) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// Err returns the error of the most recent failed operation since the last
// operation started.
func (s *status) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Message is the human readable form of Err, or "".
func (s *status) Message() string {
	if err := s.Err(); err != nil {
		return err.Error()
	}
	return ""
}

// OnState registers a callback for every state transition.
func (s *status) OnState(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}
