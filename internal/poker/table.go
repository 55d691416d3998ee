/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package poker

import (
	"errors"
	"maps"
)

const (
	maxPendingTasks = 8
	maxRetiredTasks = 64
)

var ErrNoTask = errors.New("no active task")

// Phase is the lifecycle state of the table.
type Phase int

const (
	Idle Phase = iota
	Collecting
	Revealed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Collecting:
		return "collecting"
	case Revealed:
		return "revealed"
	default:
		return "unknown"
	}
}

// Task is a copy of the active task and the votes cast for it.
type Task struct {
	ID       string
	Text     string
	Revealed bool
	Votes    map[string]Card
}

// VoteResult describes what happened to a vote handed to the table.
type VoteResult int

const (
	// Applied votes are visible immediately.
	Applied VoteResult = iota
	// Deferred votes name a task that has not arrived yet.
	Deferred
	// Stale votes name a task that has already been replaced or cleared.
	Stale
)

func (r VoteResult) String() string {
	switch r {
	case Applied:
		return "applied"
	case Deferred:
		return "deferred"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

type activeTask struct {
	id       string
	text     string
	revealed bool
}

// Table holds the active task and the ballot, keyed by logical participant id.
//
// Votes that name a task id are matched against the active task. Since votes
// from different peers are not ordered against the facilitator's task message,
// a vote may arrive before the task it belongs to; those are held until the
// task starts. Votes for tasks that have already been replaced are dropped.
// Votes without a task id always apply to the current ballot.
type Table struct {
	task   *activeTask
	ballot map[string]Card

	pending      map[string]map[string]Card
	pendingOrder []string

	retired      map[string]struct{}
	retiredOrder []string
}

func NewTable() *Table {
	return &Table{
		ballot:  make(map[string]Card),
		pending: make(map[string]map[string]Card),
		retired: make(map[string]struct{}),
	}
}

// Phase reports the current lifecycle state.
func (t *Table) Phase() Phase {
	switch {
	case t.task == nil:
		return Idle
	case t.task.revealed:
		return Revealed
	default:
		return Collecting
	}
}

// Task returns a copy of the active task.
func (t *Table) Task() (Task, bool) {
	if t.task == nil {
		return Task{}, false
	}

	return Task{
		ID:       t.task.id,
		Text:     t.task.text,
		Revealed: t.task.revealed,
		Votes:    maps.Clone(t.ballot),
	}, true
}

// Start replaces the active task and resets every vote. Starting the task that
// is already active, or one that was retired, changes nothing and returns false.
func (t *Table) Start(id, text string) bool {
	if id != "" {
		if t.task != nil && t.task.id == id {
			return false
		}

		if _, ok := t.retired[id]; ok {
			return false
		}
	}

	t.retireActive()

	t.task = &activeTask{
		id:   id,
		text: text,
	}
	t.ballot = make(map[string]Card)

	if held, ok := t.pending[id]; ok && id != "" {
		maps.Copy(t.ballot, held)
		t.dropPending(id)
	}

	return true
}

// Vote records a card for user. An empty taskID applies to the current ballot
// whatever the phase, including after reveal.
func (t *Table) Vote(user string, card Card, taskID string) VoteResult {
	switch {
	case taskID == "":
	case t.task != nil && t.task.id == taskID:
	case t.isRetired(taskID):
		return Stale
	default:
		t.hold(taskID, user, card)

		return Deferred
	}

	t.ballot[user] = card

	return Applied
}

// Reveal marks the active task as revealed. Revealing twice is harmless.
func (t *Table) Reveal() error {
	if t.task == nil {
		return ErrNoTask
	}

	t.task.revealed = true

	return nil
}

// Clear drops the active task and every vote.
func (t *Table) Clear() {
	t.retireActive()
	t.task = nil
	t.ballot = make(map[string]Card)
}

// VoteOf returns the card user has on the current ballot.
func (t *Table) VoteOf(user string) (Card, bool) {
	c, ok := t.ballot[user]

	return c, ok
}

// AllVoted reports whether every id in users has voted. It is false for an
// empty list.
func (t *Table) AllVoted(users []string) bool {
	if len(users) == 0 {
		return false
	}

	for _, u := range users {
		if _, ok := t.ballot[u]; !ok {
			return false
		}
	}

	return true
}

// Average returns the rounded mean of the numeric votes cast by users. It is
// only defined once the task is revealed.
func (t *Table) Average(users []string) (float64, bool) {
	if t.task == nil || !t.task.revealed {
		return 0, false
	}

	cards := make([]Card, 0, len(users))
	for _, u := range users {
		if c, ok := t.ballot[u]; ok {
			cards = append(cards, c)
		}
	}

	return Average(cards)
}

func (t *Table) retireActive() {
	if t.task == nil || t.task.id == "" {
		return
	}

	t.retired[t.task.id] = struct{}{}
	t.retiredOrder = append(t.retiredOrder, t.task.id)

	if len(t.retiredOrder) > maxRetiredTasks {
		delete(t.retired, t.retiredOrder[0])
		t.retiredOrder = t.retiredOrder[1:]
	}

	t.dropPending(t.task.id)
}

func (t *Table) isRetired(id string) bool {
	_, ok := t.retired[id]

	return ok
}

func (t *Table) hold(taskID, user string, card Card) {
	held, ok := t.pending[taskID]
	if !ok {
		held = make(map[string]Card)
		t.pending[taskID] = held
		t.pendingOrder = append(t.pendingOrder, taskID)

		if len(t.pendingOrder) > maxPendingTasks {
			t.dropPending(t.pendingOrder[0])
		}
	}

	held[user] = card
}

func (t *Table) dropPending(id string) {
	if _, ok := t.pending[id]; !ok {
		return
	}

	delete(t.pending, id)

	for i, p := range t.pendingOrder {
		if p == id {
			t.pendingOrder = append(t.pendingOrder[:i], t.pendingOrder[i+1:]...)

			break
		}
	}
}
