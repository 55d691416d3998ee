/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package protocol defines the closed set of messages peers broadcast to each
// other, and their JSON encoding.
//
// Every message is a JSON object with a required "type" field:
//
//	vote      userId, point, taskId?   sender's card for the current task
//	task      taskText, taskId?        start a new task and reset all votes
//	reveal                             reveal the current task's votes
//	nextTask                           clear the task and reset all votes
//	disable   userId                   mark a participant inactive
//	enable    userId                   reactivate a participant
//	slide     userId, value            sender's slider position, 0-100
//	theme     leftLabel, rightLabel    replace the slider labels
//	lock      locked                   lock or unlock the slider
//
// Facilitator-only types are accepted from any sender; roles are self-declared.
package protocol

import (
	"github.com/Seednode/pointbox/internal/poker"
	"github.com/Seednode/pointbox/internal/tradeoff"
)

// MaxTextLen caps task text and theme labels, in bytes. JSON may escape a
// byte into as many as seven once the message is wrapped in a relay frame, and
// two labels at this size still fit in one frame.
const MaxTextLen = 4096

// Type is the message discriminator.
type Type string

const (
	TypeVote     Type = "vote"
	TypeTask     Type = "task"
	TypeReveal   Type = "reveal"
	TypeNextTask Type = "nextTask"
	TypeDisable  Type = "disable"
	TypeEnable   Type = "enable"
	TypeSlide    Type = "slide"
	TypeTheme    Type = "theme"
	TypeLock     Type = "lock"
)

func (t Type) known() bool {
	switch t {
	case TypeVote, TypeTask, TypeReveal, TypeNextTask, TypeDisable, TypeEnable, TypeSlide, TypeTheme, TypeLock:
		return true
	}

	return false
}

// Message is implemented only by the types in this package.
type Message interface {
	Type() Type
	validate() error
}

type Vote struct {
	UserID string
	Point  poker.Card
	TaskID string
}

type Task struct {
	Text   string
	TaskID string
}

type Reveal struct{}

type NextTask struct{}

type Disable struct {
	UserID string
}

type Enable struct {
	UserID string
}

type Slide struct {
	UserID string
	Value  float64
}

type Theme struct {
	Left  string
	Right string
}

type Lock struct {
	Locked bool
}

// Unknown is decoded from a message whose type this version does not know.
// Receivers ignore it.
type Unknown struct {
	Kind string
}

func (Vote) Type() Type     { return TypeVote }
func (Task) Type() Type     { return TypeTask }
func (Reveal) Type() Type   { return TypeReveal }
func (NextTask) Type() Type { return TypeNextTask }
func (Disable) Type() Type  { return TypeDisable }
func (Enable) Type() Type   { return TypeEnable }
func (Slide) Type() Type    { return TypeSlide }
func (Theme) Type() Type    { return TypeTheme }
func (Lock) Type() Type     { return TypeLock }

func (u Unknown) Type() Type { return Type(u.Kind) }

func (m Vote) validate() error {
	if m.UserID == "" {
		return missing(TypeVote, "userId")
	}

	if _, err := poker.ParseCard(string(m.Point)); err != nil {
		return violation(TypeVote, err)
	}

	return nil
}

func (m Task) validate() error {
	if m.Text == "" {
		return missing(TypeTask, "taskText")
	}

	return nil
}

func (Reveal) validate() error   { return nil }
func (NextTask) validate() error { return nil }

func (m Disable) validate() error {
	if m.UserID == "" {
		return missing(TypeDisable, "userId")
	}

	return nil
}

func (m Enable) validate() error {
	if m.UserID == "" {
		return missing(TypeEnable, "userId")
	}

	return nil
}

func (m Slide) validate() error {
	if m.UserID == "" {
		return missing(TypeSlide, "userId")
	}

	if err := tradeoff.ValidValue(m.Value); err != nil {
		return violation(TypeSlide, err)
	}

	return nil
}

func (m Theme) validate() error {
	if m.Left == "" {
		return missing(TypeTheme, "leftLabel")
	}

	if m.Right == "" {
		return missing(TypeTheme, "rightLabel")
	}

	return nil
}

func (Lock) validate() error { return nil }

func (u Unknown) validate() error {
	return ErrUnknownType
}
