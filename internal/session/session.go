package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/kyccapture/internal/gate"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// eventBuffer bounds undelivered captures. One capture per reset means the
// consumer rarely sees more than one.
const eventBuffer = 4

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID        string    `json:"id"`
	Mode      gate.Mode `json:"mode"`
	State     State     `json:"state"`
	Stage     int       `json:"stage"`
	Stages    int       `json:"stages"`
	Count     int       `json:"count"`
	Required  int       `json:"required"`
	Captured  bool      `json:"captured"`
	Resets    int       `json:"resets"`
	Closed    bool      `json:"closed"`
	CreatedAt time.Time `json:"created_at"`
}

// Session owns one capture attempt: a gate, its trigger and the single
// analysis goroutine that feeds them.
type Session struct {
	id      string
	mode    gate.Mode
	created time.Time
	verbose bool

	mu       sync.Mutex // guards analyzer, resets, closed and sends on events
	analyzer *Analyzer
	resets   int
	closed   bool

	busy     atomic.Bool
	captured atomic.Bool

	mailbox chan *gate.Observation
	events  chan *Event
	done    chan struct{}
}

// New creates a session for mode.
func New(mode gate.Mode, opts gate.Options) (*Session, error) {
	g, err := gate.New(mode, opts)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	return &Session{
		id:       id,
		mode:     mode,
		created:  time.Now(),
		verbose:  opts.Verbose,
		analyzer: NewAnalyzer(id, g),
		mailbox:  make(chan *gate.Observation, 1),
		events:   make(chan *Event, eventBuffer),
		done:     make(chan struct{}),
	}, nil
}

func (s *Session) ID() string      { return s.id }
func (s *Session) Mode() gate.Mode { return s.mode }

// Events delivers captures. The channel is closed when the session closes.
func (s *Session) Events() <-chan *Event {
	return s.events
}

// Captured reports whether the session has fired since the last reset.
func (s *Session) Captured() bool {
	return s.captured.Load()
}

// Submit hands obs to the analysis goroutine without blocking. It returns
// false, leaving obs with the caller, when a frame is already in flight or
// the session is closed. On true the session owns obs and closes its frame.
func (s *Session) Submit(obs *gate.Observation) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	if !s.busy.CompareAndSwap(false, true) {
		return false
	}
	select {
	case s.mailbox <- obs:
		select {
		case <-s.done:
			// closed during the send
			select {
			case o := <-s.mailbox:
				releaseObservation(o)
			default:
			}
		default:
		}
		return true
	default:
		s.busy.Store(false)
		return false
	}
}

// Run analyzes submitted observations until ctx is done or the session is
// closed.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case obs := <-s.mailbox:
			s.process(obs)
			s.busy.Store(false)
		}
	}
}

func (s *Session) process(obs *gate.Observation) {
	defer releaseObservation(obs)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	out := s.analyzer.Step(obs)
	s.afterStep(obs, out)
}

// Step analyzes obs synchronously. The caller keeps ownership of obs. An
// event produced here is delivered on Events like any other.
func (s *Session) Step(obs *gate.Observation) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Outcome{}, ErrClosed
	}
	out := s.analyzer.Step(obs)
	s.afterStep(obs, out)
	return out, nil
}

// afterStep publishes the outcome. Caller holds s.mu.
func (s *Session) afterStep(obs *gate.Observation, out Outcome) {
	if s.verbose && !out.Skipped {
		log.Printf("[SESSION] %s frame %d stage %d count %d/%d %s",
			s.id, obs.Index, out.Stage, out.Count, s.analyzer.Trigger().Required(out.Stage), out.Verdict.Reason)
	}
	if out.Event == nil {
		return
	}

	s.captured.Store(true)
	log.Printf("[SESSION] %s captured %s on frame %d", s.id, s.mode, out.Event.FrameIndex)

	select {
	case s.events <- out.Event:
	default:
		log.Printf("[SESSION] %s: event buffer full, dropping capture %s", s.id, out.Event.ID)
		out.Event.Close()
	}
}

// State returns a snapshot of the session.
func (s *Session) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.analyzer.Trigger()
	return Snapshot{
		ID:        s.id,
		Mode:      s.mode,
		State:     t.State(),
		Stage:     t.Stage(),
		Stages:    t.Stages(),
		Count:     t.Count(),
		Required:  t.Required(t.Stage()),
		Captured:  t.State() == StateCaptured,
		Resets:    s.resets,
		Closed:    s.closed,
		CreatedAt: s.created,
	}
}

// Reset starts the capture over from the first stage, as for a retake.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.analyzer.Reset()
	s.resets++
	s.captured.Store(false)
	return nil
}

// Close stops the session. Pending observations are dropped and captures
// not yet received are released. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	close(s.events)
	s.analyzer.gate.Close()
	s.mu.Unlock()

	select {
	case obs := <-s.mailbox:
		releaseObservation(obs)
	default:
	}
	for ev := range s.events {
		ev.Close()
	}
	return nil
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) String() string {
	return fmt.Sprintf("session %s (%s)", s.id, s.mode)
}

func releaseObservation(obs *gate.Observation) {
	if obs != nil && obs.Frame != nil {
		obs.Frame.Close()
	}
}
