/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"github.com/Seednode/pointbox/internal/poker"
	"github.com/Seednode/pointbox/internal/tradeoff"
)

// Row is one participant as the UI sees it.
type Row struct {
	ID          string
	Nickname    string
	Facilitator bool
	Enabled     bool
	Self        bool

	HasVoted bool
	Vote     poker.Card

	Value float64
	Moved bool
}

type TaskView struct {
	ID       string
	Text     string
	Revealed bool
}

// Snapshot is a read-only copy of a session's state.
type Snapshot struct {
	Identity Identity
	Mode     Mode

	Participants []Row
	Task         *TaskView

	Theme  tradeoff.Theme
	Locked bool

	Connecting bool
	Err        error

	// Average is nil until the task is revealed, and when no numeric card was played.
	Average   *float64
	AllVoted  bool
	CanVote   bool
	CanReveal bool

	Comment string
}

// Self returns the local participant's row.
func (s Snapshot) Self() Row {
	for _, r := range s.Participants {
		if r.Self {
			return r
		}
	}

	return Row{}
}

// Find returns the row for a logical id.
func (s Snapshot) Find(id string) (Row, bool) {
	for _, r := range s.Participants {
		if r.ID == id {
			return r, true
		}
	}

	return Row{}, false
}
