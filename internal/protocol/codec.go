/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Seednode/pointbox/internal/poker"
)

var (
	// ErrMalformed means the payload could not be read as a message at all.
	ErrMalformed = errors.New("malformed message")

	// ErrViolation means the payload declared a known type but is missing or
	// misusing the fields that type requires.
	ErrViolation = errors.New("protocol violation")

	ErrUnknownType = errors.New("unknown message type")
)

type envelope struct {
	Type       string   `json:"type"`
	UserID     *string  `json:"userId,omitempty"`
	Point      *string  `json:"point,omitempty"`
	TaskID     *string  `json:"taskId,omitempty"`
	TaskText   *string  `json:"taskText,omitempty"`
	Value      *float64 `json:"value,omitempty"`
	LeftLabel  *string  `json:"leftLabel,omitempty"`
	RightLabel *string  `json:"rightLabel,omitempty"`
	Locked     *bool    `json:"locked,omitempty"`
}

func missing(t Type, field string) error {
	return fmt.Errorf("%w: %s requires %s", ErrViolation, t, field)
}

func violation(t Type, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrViolation, t, err)
}

func ptr[T any](v T) *T {
	return &v
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}

	return *p
}

// Encode validates m and renders it as JSON.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil message", ErrViolation)
	}

	if err := m.validate(); err != nil {
		return nil, err
	}

	env := envelope{Type: string(m.Type())}

	switch msg := m.(type) {
	case Vote:
		env.UserID = ptr(msg.UserID)
		env.Point = ptr(string(msg.Point))
		if msg.TaskID != "" {
			env.TaskID = ptr(msg.TaskID)
		}
	case Task:
		env.TaskText = ptr(msg.Text)
		if msg.TaskID != "" {
			env.TaskID = ptr(msg.TaskID)
		}
	case Reveal, NextTask:
	case Disable:
		env.UserID = ptr(msg.UserID)
	case Enable:
		env.UserID = ptr(msg.UserID)
	case Slide:
		env.UserID = ptr(msg.UserID)
		env.Value = ptr(msg.Value)
	case Theme:
		env.LeftLabel = ptr(msg.Left)
		env.RightLabel = ptr(msg.Right)
	case Lock:
		env.Locked = ptr(msg.Locked)
	}

	return json.Marshal(env)
}

// Decode parses one message. Unknown types decode to Unknown with a nil error.
// Errors wrap ErrMalformed or ErrViolation; either way the message should be
// dropped and processing should continue with the next one.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if head.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	// Fields of unknown types may not match the envelope.
	if !Type(head.Type).known() {
		return Unknown{Kind: head.Type}, nil
	}

	var env envelope

	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var m Message

	switch Type(env.Type) {
	case TypeVote:
		m = Vote{
			UserID: deref(env.UserID),
			Point:  poker.Card(deref(env.Point)),
			TaskID: deref(env.TaskID),
		}
	case TypeTask:
		m = Task{
			Text:   deref(env.TaskText),
			TaskID: deref(env.TaskID),
		}
	case TypeReveal:
		m = Reveal{}
	case TypeNextTask:
		m = NextTask{}
	case TypeDisable:
		m = Disable{UserID: deref(env.UserID)}
	case TypeEnable:
		m = Enable{UserID: deref(env.UserID)}
	case TypeSlide:
		if env.Value == nil {
			return nil, missing(TypeSlide, "value")
		}

		m = Slide{
			UserID: deref(env.UserID),
			Value:  *env.Value,
		}
	case TypeTheme:
		m = Theme{
			Left:  deref(env.LeftLabel),
			Right: deref(env.RightLabel),
		}
	case TypeLock:
		if env.Locked == nil {
			return nil, missing(TypeLock, "locked")
		}

		m = Lock{Locked: *env.Locked}
	default:
		return Unknown{Kind: env.Type}, nil
	}

	if err := m.validate(); err != nil {
		return nil, err
	}

	return m, nil
}
