// Package feed maintains the live update channel: a one-way, per-subject
// push stream from the backend that signals asynchronous completions such
// as bank-statement processing. The subscription lifecycle is an explicit
// state machine with bounded-backoff reconnects; exhausting the attempts
// surfaces a terminal Down state instead of looping silently.
package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	tomin "github.com/tomin-app/tomin-web"
)

// State is the lifecycle position of a subscription.
type State string

const (
	StateUnsubscribed   State = "unsubscribed"
	StateSubscribing    State = "subscribing"
	StateOpen           State = "open"
	StateClosedError    State = "closed_error"
	StateClosedExplicit State = "closed_explicit"
	// StateDown is terminal: reconnect attempts are exhausted and the feed
	// is declared unavailable.
	StateDown State = "down"
)

// Closed reports whether the state is one a subscription cannot leave
// except by reconnecting (or at all, for the terminal ones).
func (s State) Closed() bool {
	return s == StateClosedError || s == StateClosedExplicit || s == StateDown
}

var transitions = map[State]map[State]struct{}{
	StateUnsubscribed: {
		StateSubscribing:    {},
		StateClosedExplicit: {},
	},
	StateSubscribing: {
		StateOpen:           {},
		StateClosedError:    {},
		StateClosedExplicit: {},
	},
	StateOpen: {
		StateClosedError:    {},
		StateClosedExplicit: {},
	},
	StateClosedError: {
		StateSubscribing:    {},
		StateClosedExplicit: {},
		StateDown:           {},
	},
	StateClosedExplicit: {},
	StateDown:           {},
}

// ErrInvalidTransition is returned when a requested state change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid feed state transition", goerrors.CategoryConflict).
	WithTextCode("INVALID_FEED_TRANSITION").
	WithCode(goerrors.CodeConflict)

// Event is one inbound frame on the live channel.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// EventUploadComplete is the only frame type with UI effect; everything
// else is received and discarded.
const EventUploadComplete = "UPLOAD_COMPLETE"

// Handler receives the acted-upon events for one subscription.
type Handler func(Event)

// Conn is one live connection; Next blocks until the next frame arrives.
type Conn interface {
	Next() (Event, error)
	Close() error
}

// Transport opens live connections for a subject.
type Transport interface {
	Connect(ctx context.Context, subject string) (Conn, error)
}

// Backoff is the reconnect policy: exponential with a cap and a bounded
// attempt count.
type Backoff struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

func (b Backoff) withDefaults() Backoff {
	if b.Base <= 0 {
		b.Base = 500 * time.Millisecond
	}
	if b.Cap <= 0 {
		b.Cap = 30 * time.Second
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = 6
	}
	return b
}

func (b Backoff) delay(attempt int) time.Duration {
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.Cap {
			return b.Cap
		}
	}
	if d > b.Cap {
		return b.Cap
	}
	return d
}

// Subscription is one open live channel for a subject. It owns exactly one
// receive goroutine; Close is idempotent and always wins over reconnects.
type Subscription struct {
	subject   string
	transport Transport
	handler   Handler
	backoff   Backoff
	logger    tomin.Logger
	onDown    func(error)

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	state  State
	conn   Conn
	closed bool
}

type Option func(*Subscription)

func WithLogger(logger tomin.Logger) Option {
	return func(s *Subscription) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithBackoff(b Backoff) Option {
	return func(s *Subscription) {
		s.backoff = b
	}
}

// WithOnDown registers a callback for the terminal feed-unavailable state.
func WithOnDown(fn func(error)) Option {
	return func(s *Subscription) {
		s.onDown = fn
	}
}

// Subscribe opens a live channel for the subject and dispatches
// upload-complete events to the handler until Close or terminal failure.
func Subscribe(ctx context.Context, transport Transport, subject string, handler Handler, opts ...Option) (*Subscription, error) {
	if subject == "" {
		return nil, fmt.Errorf("feed: subject identifier is required")
	}
	if transport == nil {
		return nil, fmt.Errorf("feed: transport is required")
	}
	if handler == nil {
		handler = func(Event) {}
	}

	s := &Subscription{
		subject:   subject,
		transport: transport,
		handler:   handler,
		logger:    tomin.DefaultLogger(),
		state:     StateUnsubscribed,
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.backoff = s.backoff.withDefaults()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if err := s.transition(StateSubscribing); err != nil {
		cancel()
		return nil, err
	}

	go s.run(runCtx)
	return s, nil
}

// Subject returns the identifier the channel is scoped to.
func (s *Subscription) Subject() string {
	return s.subject
}

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the subscription has fully stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close explicitly ends the subscription and waits until the receive loop
// has stopped, so a successor for the same subject can open safely.
func (s *Subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	s.cancel()
	if conn != nil {
		conn.Close()
	}
	<-s.done
	return nil
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)

	attempt := 0
	for {
		conn, err := s.transport.Connect(ctx, s.subject)
		if err != nil {
			if s.exiting(ctx) {
				s.finish(StateClosedExplicit)
				return
			}
			s.transitionLogged(StateClosedError)
			attempt++
			if attempt > s.backoff.MaxAttempts {
				s.goDown(err)
				return
			}
			if !s.waitRetry(ctx, attempt, err) {
				return
			}
			continue
		}

		s.setConn(conn)
		if s.exiting(ctx) {
			conn.Close()
			s.finish(StateClosedExplicit)
			return
		}
		s.transitionLogged(StateOpen)
		attempt = 0

		err = s.receive(conn)
		conn.Close()
		s.setConn(nil)

		if s.exiting(ctx) {
			s.finish(StateClosedExplicit)
			return
		}

		// Transport error: close explicitly, then reconnect.
		s.transitionLogged(StateClosedError)
		attempt++
		if attempt > s.backoff.MaxAttempts {
			s.goDown(err)
			return
		}
		if !s.waitRetry(ctx, attempt, err) {
			return
		}
	}
}

func (s *Subscription) receive(conn Conn) error {
	for {
		event, err := conn.Next()
		if err != nil {
			return err
		}
		if event.Type != EventUploadComplete {
			s.logger.Debug("Feed for %s discarding %q frame", s.subject, event.Type)
			continue
		}
		s.handler(event)
	}
}

// waitRetry sleeps out the backoff for the attempt and re-enters
// Subscribing. Returns false when the subscription was closed meanwhile.
func (s *Subscription) waitRetry(ctx context.Context, attempt int, cause error) bool {
	delay := s.backoff.delay(attempt)
	s.logger.Warn(
		"Feed for %s lost (%s), reconnect attempt %d/%d in %s",
		s.subject, cause, attempt, s.backoff.MaxAttempts, delay,
	)

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		s.finish(StateClosedExplicit)
		return false
	}

	if s.exiting(ctx) {
		s.finish(StateClosedExplicit)
		return false
	}
	s.transitionLogged(StateSubscribing)
	return true
}

func (s *Subscription) goDown(cause error) {
	s.transitionLogged(StateDown)
	err := tomin.ErrFeedUnavailable.Clone().WithMetadata(map[string]any{
		"subject": s.subject,
		"cause":   fmt.Sprint(cause),
	})
	s.logger.Error("Feed for %s is down after %d attempts: %s", s.subject, s.backoff.MaxAttempts, cause)
	if s.onDown != nil {
		s.onDown(err)
	}
}

func (s *Subscription) transition(target State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == target {
		return nil
	}
	if allowed, ok := transitions[s.state]; ok {
		if _, ok := allowed[target]; ok {
			s.state = target
			return nil
		}
	}
	return ErrInvalidTransition.Clone().WithMetadata(map[string]any{
		"from": s.state,
		"to":   target,
	})
}

// transitionLogged applies a transition the run loop believes is legal; a
// rejection indicates a lifecycle bug and is logged, never panicked on.
func (s *Subscription) transitionLogged(target State) {
	if err := s.transition(target); err != nil {
		s.logger.Error("Feed for %s rejected transition to %s: %s", s.subject, target, err)
	}
}

func (s *Subscription) finish(target State) {
	s.mu.Lock()
	if !s.state.Closed() {
		s.state = target
	}
	s.mu.Unlock()
}

func (s *Subscription) setConn(conn Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func (s *Subscription) exiting(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
