/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Seednode/pointbox/internal/poker"
	"github.com/Seednode/pointbox/internal/protocol"
	"github.com/Seednode/pointbox/internal/roster"
	"github.com/Seednode/pointbox/internal/transport"
)

var (
	ErrClosed         = errors.New("session closed")
	ErrStarted        = errors.New("session already started")
	ErrNotStarted     = errors.New("session not started")
	ErrConnectionLost = errors.New("connection to room lost")
)

// ConnectionError means the room could not be joined, or the connection to
// it ended. It is fatal; the session does not reconnect.
type ConnectionError struct {
	RoomID string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("room %s: %v", e.RoomID, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

type action struct {
	fn    func(*Engine) (protocol.Message, error)
	reply chan error
}

type dialResult struct {
	conn transport.Conn
	err  error
}

// Session is one live room membership. All state changes happen on a single
// goroutine started by Start; the other methods are safe to call from
// anywhere.
type Session struct {
	engine *Engine
	dialer transport.Dialer
	logf   func(format string, args ...any)

	actions chan action
	updates chan struct{}

	mu       sync.RWMutex
	snapshot Snapshot

	startOnce sync.Once
	started   bool
	cancel    context.CancelFunc
	done      chan struct{}

	// owned by the loop
	conn       transport.Conn
	connecting bool
	err        error
}

func New(dialer transport.Dialer, id Identity, mode Mode, logf func(format string, args ...any)) *Session {
	if logf == nil {
		logf = func(string, ...any) {}
	}

	s := &Session{
		engine:     NewEngine(id, mode, logf),
		dialer:     dialer,
		logf:       logf,
		actions:    make(chan action),
		updates:    make(chan struct{}, 1),
		done:       make(chan struct{}),
		connecting: true,
	}

	s.snapshot = s.build()

	return s
}

// Start joins the room in the background. The session runs until ctx is
// canceled or Close is called.
func (s *Session) Start(ctx context.Context) error {
	err := ErrStarted

	s.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)

		s.mu.Lock()
		s.started = true
		s.cancel = cancel
		s.mu.Unlock()

		go s.run(ctx)

		err = nil
	})

	if err != nil {
		s.mu.RLock()
		defer s.mu.RUnlock()

		if !s.started {
			return ErrClosed
		}
	}

	return err
}

// Close leaves the room and waits for the loop to stop. Closing a session
// that was never started stops it for good.
func (s *Session) Close() error {
	s.startOnce.Do(func() {
		close(s.updates)
		close(s.done)
	})

	s.mu.RLock()
	started, cancel := s.started, s.cancel
	s.mu.RUnlock()

	if !started {
		return nil
	}

	cancel()
	<-s.done

	return nil
}

// Done is closed once the session has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot
}

// Updates receives a value whenever the snapshot changes. Notifications
// coalesce, so readers should always fetch the latest Snapshot. The channel is
// closed when the session stops.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

func (s *Session) Vote(card poker.Card) error {
	return s.do(func(e *Engine) (protocol.Message, error) { return e.Vote(card) })
}

func (s *Session) SetTask(text string) error {
	return s.do(func(e *Engine) (protocol.Message, error) { return e.SetTask(text) })
}

func (s *Session) Reveal() error {
	return s.do((*Engine).Reveal)
}

func (s *Session) NextTask() error {
	return s.do((*Engine).NextTask)
}

func (s *Session) DisableParticipant(id string) error {
	return s.do(func(e *Engine) (protocol.Message, error) { return e.DisableParticipant(id) })
}

func (s *Session) EnableParticipant(id string) error {
	return s.do(func(e *Engine) (protocol.Message, error) { return e.EnableParticipant(id) })
}

func (s *Session) SetSliderValue(v float64) error {
	return s.do(func(e *Engine) (protocol.Message, error) { return e.SetSliderValue(v) })
}

func (s *Session) SetTheme(left, right string) error {
	return s.do(func(e *Engine) (protocol.Message, error) { return e.SetTheme(left, right) })
}

func (s *Session) SetLocked(locked bool) error {
	return s.do(func(e *Engine) (protocol.Message, error) { return e.SetLocked(locked) })
}

func (s *Session) SetComment(text string) error {
	return s.do(func(e *Engine) (protocol.Message, error) {
		e.SetComment(text)

		return nil, nil
	})
}

func (s *Session) do(fn func(*Engine) (protocol.Message, error)) error {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	if !started {
		return ErrNotStarted
	}

	a := action{fn: fn, reply: make(chan error, 1)}

	select {
	case s.actions <- a:
		return <-a.reply
	case <-s.done:
		return ErrClosed
	}
}

func (s *Session) run(ctx context.Context) {
	defer func() {
		close(s.updates)
		close(s.done)
	}()

	id := s.engine.Identity()

	dialed := make(chan dialResult, 1)

	go func() {
		conn, err := s.dialFor(ctx, id)
		dialed <- dialResult{conn: conn, err: err}
	}()

	var events <-chan transport.Event

	for {
		select {
		case <-ctx.Done():
			s.teardown(dialed)

			return
		case r := <-dialed:
			dialed = nil
			s.connecting = false

			if r.err != nil {
				s.fail(&ConnectionError{RoomID: id.RoomID, Err: r.err})

				break
			}

			s.conn = r.conn
			events = r.conn.Events()
			s.engine.Seed(r.conn.LocalID(), r.conn.Peers())
		case ev, ok := <-events:
			if !ok {
				events = nil
				_ = s.conn.Close()
				s.conn = nil
				s.fail(&ConnectionError{RoomID: id.RoomID, Err: ErrConnectionLost})

				break
			}

			s.handle(ctx, ev)
		case a := <-s.actions:
			err := s.apply(ctx, a.fn)
			s.publish()
			a.reply <- err

			continue
		}

		s.publish()
	}
}

func (s *Session) dialFor(ctx context.Context, id Identity) (transport.Conn, error) {
	meta, err := roster.EncodeMetadata(id.metadata())
	if err != nil {
		return nil, err
	}

	s.logf("SESSION: Joining room %s", id.RoomID)

	return s.dialer.Dial(ctx, id.RoomID, meta)
}

// teardown releases the connection. A dial still in flight is drained in the
// background and its connection closed, so it never touches the session.
func (s *Session) teardown(dialed <-chan dialResult) {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}

	if dialed != nil {
		go func() {
			if r := <-dialed; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
	}

	s.logf("SESSION: Left room %s", s.engine.Identity().RoomID)
}

func (s *Session) fail(err error) {
	s.err = err

	s.logf("SESSION: %v", err)
}

func (s *Session) handle(ctx context.Context, ev transport.Event) {
	switch ev.Kind {
	case transport.EventData:
		s.engine.Receive(ev.Peer.ID, ev.Data)
	case transport.EventPeerJoined:
		for _, m := range s.engine.PeerJoined(ev.Peer) {
			s.send(ctx, m)
		}
	case transport.EventPeerLeft:
		s.engine.PeerLeft(ev.Peer.ID)
	}
}

func (s *Session) apply(ctx context.Context, fn func(*Engine) (protocol.Message, error)) error {
	if s.err != nil {
		return s.err
	}

	m, err := fn(s.engine)
	if err != nil {
		return err
	}

	if m != nil {
		s.send(ctx, m)
	}

	return nil
}

// send broadcasts m. Sending before the room is joined only logs.
func (s *Session) send(ctx context.Context, m protocol.Message) {
	if s.conn == nil {
		s.logf("SESSION: Not connected, %s not sent", m.Type())

		return
	}

	data, err := protocol.Encode(m)
	if err != nil {
		s.logf("SESSION: Failed to encode %s: %v", m.Type(), err)

		return
	}

	ctx, cancel := context.WithTimeout(ctx, transport.WriteTimeout)
	defer cancel()

	if err := s.conn.Send(ctx, data); err != nil {
		s.logf("SESSION: Failed to send %s: %v", m.Type(), err)
	}
}

func (s *Session) build() Snapshot {
	snap := s.engine.Snapshot()
	snap.Connecting = s.connecting
	snap.Err = s.err

	return snap
}

func (s *Session) publish() {
	snap := s.build()

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	select {
	case s.updates <- struct{}{}:
	default:
	}
}
