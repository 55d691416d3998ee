/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package session coordinates one room: it owns the transport connection, feeds
// transport events and local actions through a single loop, and publishes
// read-only snapshots for the UI.
package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Seednode/pointbox/internal/poker"
	"github.com/Seednode/pointbox/internal/protocol"
	"github.com/Seednode/pointbox/internal/roster"
	"github.com/Seednode/pointbox/internal/tradeoff"
	"github.com/Seednode/pointbox/internal/transport"
	"github.com/google/uuid"
)

var (
	ErrNotFacilitator     = errors.New("only the facilitator can do that")
	ErrWrongMode          = errors.New("not available in this room mode")
	ErrRevealed           = errors.New("votes are already revealed")
	ErrUnknownParticipant = errors.New("no such participant")
	ErrEmptyTask          = errors.New("task text must not be empty")
	ErrTooLong            = errors.New("text is too long to send")
)

// Engine is the state of one room, driven synchronously. Every method runs to
// completion and none of them touch the network; actions return the message
// to broadcast, if any.
type Engine struct {
	id   Identity
	mode Mode

	roster *roster.Roster
	table  *poker.Table
	slider *tradeoff.State

	comment string

	logf func(format string, args ...any)
}

func NewEngine(id Identity, mode Mode, logf func(format string, args ...any)) *Engine {
	if logf == nil {
		logf = func(string, ...any) {}
	}

	return &Engine{
		id:     id,
		mode:   mode,
		roster: roster.New(id.metadata()),
		table:  poker.NewTable(),
		slider: tradeoff.New(),
		logf:   logf,
	}
}

func (e *Engine) Identity() Identity {
	return e.id
}

func (e *Engine) Mode() Mode {
	return e.mode
}

// Seed records the local transport id and the members already in the room.
func (e *Engine) Seed(localPeer string, peers []transport.Peer) {
	e.roster.SetLocalPeer(localPeer)

	members := make([]roster.Member, 0, len(peers))
	for _, p := range peers {
		members = append(members, roster.Member{PeerID: p.ID, Metadata: p.Metadata})
	}

	added, err := e.roster.Seed(members)
	if err != nil {
		e.logf("SESSION: Skipped unreadable members in %s: %v", e.id.RoomID, err)
	}

	e.logf("SESSION: Joined %s as %s with %d existing participant(s)", e.id.RoomID, e.id.UserID, len(added))
}

// PeerJoined adds the peer to the roster and returns the messages that bring
// it up to date. Every message is idempotent for peers that already have the
// same state.
func (e *Engine) PeerJoined(p transport.Peer) []protocol.Message {
	joined, added, err := e.roster.Join(p.ID, p.Metadata)
	if err != nil {
		e.logf("SESSION: Peer %s sent unreadable metadata, using %q: %v", p.ID, joined.ID, err)
	}

	if added {
		e.logf("SESSION: %s (%s) joined %s", joined.Nickname, joined.ID, e.id.RoomID)
	}

	return e.resync()
}

func (e *Engine) PeerLeft(peerID string) {
	left, ok := e.roster.Leave(peerID)
	if !ok {
		return
	}

	e.slider.Forget(left.ID)

	e.logf("SESSION: %s (%s) left %s", left.Nickname, left.ID, e.id.RoomID)
}

// Receive decodes and applies one inbound payload. Bad payloads are logged
// and dropped.
func (e *Engine) Receive(peerID string, data []byte) {
	m, err := protocol.Decode(data)
	if err != nil {
		e.logf("SESSION: Dropped message from %s: %v", peerID, err)

		return
	}

	if u, ok := m.(protocol.Unknown); ok {
		e.logf("SESSION: Ignored message of unknown type %q from %s", u.Kind, peerID)

		return
	}

	e.Apply(m)
}

// Apply folds a decoded message into the state. Facilitator-only messages are
// accepted from any sender.
func (e *Engine) Apply(m protocol.Message) {
	switch m := m.(type) {
	case protocol.Vote:
		if r := e.table.Vote(m.UserID, m.Point, m.TaskID); r != poker.Applied {
			e.logf("SESSION: Vote from %s for task %q was %s", m.UserID, m.TaskID, r)
		}
	case protocol.Task:
		e.table.Start(m.TaskID, m.Text)
	case protocol.Reveal:
		if err := e.table.Reveal(); err != nil {
			e.logf("SESSION: Ignored reveal: %v", err)
		}
	case protocol.NextTask:
		e.table.Clear()
	case protocol.Disable:
		if !e.roster.SetEnabled(m.UserID, false) {
			e.logf("SESSION: Ignored disable for unknown participant %s", m.UserID)
		}
	case protocol.Enable:
		if !e.roster.SetEnabled(m.UserID, true) {
			e.logf("SESSION: Ignored enable for unknown participant %s", m.UserID)
		}
	case protocol.Slide:
		if err := e.slider.Slide(m.UserID, m.Value); err != nil {
			e.logf("SESSION: Ignored slide from %s: %v", m.UserID, err)
		}
	case protocol.Theme:
		e.slider.SetTheme(tradeoff.Theme{Left: m.Left, Right: m.Right})
	case protocol.Lock:
		e.slider.SetLocked(m.Locked)
	case protocol.Unknown:
	}
}

// Vote plays a card for the active task.
func (e *Engine) Vote(card poker.Card) (protocol.Message, error) {
	if err := e.require(ModePoker, false); err != nil {
		return nil, err
	}

	card, err := poker.ParseCard(string(card))
	if err != nil {
		return nil, err
	}

	task, ok := e.table.Task()
	if !ok {
		return nil, poker.ErrNoTask
	}

	if task.Revealed {
		return nil, ErrRevealed
	}

	return e.local(protocol.Vote{UserID: e.id.UserID, Point: card, TaskID: task.ID}), nil
}

// SetTask starts a new task under a fresh task id.
func (e *Engine) SetTask(text string) (protocol.Message, error) {
	if err := e.require(ModePoker, true); err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyTask
	}

	if len(text) > protocol.MaxTextLen {
		return nil, ErrTooLong
	}

	return e.local(protocol.Task{Text: text, TaskID: uuid.NewString()}), nil
}

func (e *Engine) Reveal() (protocol.Message, error) {
	if err := e.require(ModePoker, true); err != nil {
		return nil, err
	}

	if e.table.Phase() == poker.Idle {
		return nil, poker.ErrNoTask
	}

	return e.local(protocol.Reveal{}), nil
}

func (e *Engine) NextTask() (protocol.Message, error) {
	if err := e.require(ModePoker, true); err != nil {
		return nil, err
	}

	return e.local(protocol.NextTask{}), nil
}

func (e *Engine) DisableParticipant(id string) (protocol.Message, error) {
	return e.toggle(id, false)
}

func (e *Engine) EnableParticipant(id string) (protocol.Message, error) {
	return e.toggle(id, true)
}

func (e *Engine) toggle(id string, enabled bool) (protocol.Message, error) {
	if err := e.require(ModePoker, true); err != nil {
		return nil, err
	}

	if _, ok := e.roster.Get(id); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
	}

	if enabled {
		return e.local(protocol.Enable{UserID: id}), nil
	}

	return e.local(protocol.Disable{UserID: id}), nil
}

// SetSliderValue moves the local slider. The local value always changes; the
// returned message is nil while the room is locked for this participant.
func (e *Engine) SetSliderValue(v float64) (protocol.Message, error) {
	if err := e.require(ModeTradeoff, false); err != nil {
		return nil, err
	}

	m := protocol.Slide{UserID: e.id.UserID, Value: v}

	if err := e.slider.Slide(m.UserID, m.Value); err != nil {
		return nil, err
	}

	if !e.slider.ShouldBroadcast(e.id.Facilitator) {
		e.logf("SESSION: Slider is locked, keeping %v local", v)

		return nil, nil
	}

	return m, nil
}

func (e *Engine) SetTheme(left, right string) (protocol.Message, error) {
	if err := e.require(ModeTradeoff, true); err != nil {
		return nil, err
	}

	t, err := tradeoff.NewTheme(left, right)
	if err != nil {
		return nil, err
	}

	if len(t.Left) > protocol.MaxTextLen || len(t.Right) > protocol.MaxTextLen {
		return nil, ErrTooLong
	}

	return e.local(protocol.Theme{Left: t.Left, Right: t.Right}), nil
}

func (e *Engine) SetLocked(locked bool) (protocol.Message, error) {
	if err := e.require(ModeTradeoff, true); err != nil {
		return nil, err
	}

	return e.local(protocol.Lock{Locked: locked}), nil
}

// SetComment stores a private note. It is never sent to the room.
func (e *Engine) SetComment(text string) {
	e.comment = text
}

// Snapshot copies the state for the UI. Connection fields are left to the caller.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		Identity: e.id,
		Mode:     e.mode,
		Theme:    e.slider.Theme(),
		Locked:   e.slider.Locked(),
		Comment:  e.comment,
	}

	for _, p := range e.roster.List() {
		card, voted := e.table.VoteOf(p.ID)

		snap.Participants = append(snap.Participants, Row{
			ID:          p.ID,
			Nickname:    p.Nickname,
			Facilitator: p.Facilitator,
			Enabled:     p.Enabled,
			Self:        p.ID == e.id.UserID,
			HasVoted:    voted,
			Vote:        card,
			Value:       e.slider.Value(p.ID),
			Moved:       e.slider.Moved(p.ID),
		})
	}

	if task, ok := e.table.Task(); ok {
		snap.Task = &TaskView{ID: task.ID, Text: task.Text, Revealed: task.Revealed}
		snap.CanVote = !task.Revealed
	}

	if avg, ok := e.table.Average(e.roster.IDs()); ok {
		snap.Average = &avg
	}

	snap.AllVoted = e.table.AllVoted(e.roster.EnabledIDs())
	snap.CanReveal = snap.AllVoted && snap.Task != nil && !snap.Task.Revealed

	return snap
}

func (e *Engine) require(mode Mode, facilitator bool) error {
	if e.mode != mode {
		return fmt.Errorf("%w: %s", ErrWrongMode, e.mode)
	}

	if facilitator && !e.id.Facilitator {
		return ErrNotFacilitator
	}

	return nil
}

// local applies m as if it had been received, so the local view never waits
// for a round trip.
func (e *Engine) local(m protocol.Message) protocol.Message {
	e.Apply(m)

	return m
}

func (e *Engine) resync() []protocol.Message {
	var out []protocol.Message

	switch e.mode {
	case ModePoker:
		task, ok := e.table.Task()

		if e.id.Facilitator {
			for _, p := range e.roster.List() {
				if !p.Enabled {
					out = append(out, protocol.Disable{UserID: p.ID})
				}
			}
		}

		if e.id.Facilitator && ok && task.ID != "" {
			out = append(out, protocol.Task{Text: task.Text, TaskID: task.ID})

			if task.Revealed {
				out = append(out, protocol.Reveal{})
			}
		}

		if card, voted := e.table.VoteOf(e.id.UserID); ok && voted {
			out = append(out, protocol.Vote{UserID: e.id.UserID, Point: card, TaskID: task.ID})
		}
	case ModeTradeoff:
		if e.id.Facilitator {
			t := e.slider.Theme()
			out = append(out,
				protocol.Theme{Left: t.Left, Right: t.Right},
				protocol.Lock{Locked: e.slider.Locked()},
			)
		}

		if e.slider.Moved(e.id.UserID) && e.slider.ShouldBroadcast(e.id.Facilitator) {
			out = append(out, protocol.Slide{UserID: e.id.UserID, Value: e.slider.Value(e.id.UserID)})
		}
	}

	return out
}
