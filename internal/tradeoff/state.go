/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package tradeoff holds the shared state of a tradeoff slider room: the two
// theme labels, the facilitator's lock, and one slider value per participant.
package tradeoff

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	MinValue     float64 = 0
	MaxValue     float64 = 100
	DefaultValue float64 = 50
)

var (
	ErrValueRange = errors.New("slider value out of range")
	ErrEmptyLabel = errors.New("theme labels must not be empty")
)

// Theme names the two ends of the slider.
type Theme struct {
	Left  string
	Right string
}

// DefaultTheme is the theme every room starts with.
var DefaultTheme = Theme{Left: "Speed", Right: "Quality"}

// NewTheme trims both labels and rejects empty ones.
func NewTheme(left, right string) (Theme, error) {
	t := Theme{
		Left:  strings.TrimSpace(left),
		Right: strings.TrimSpace(right),
	}

	if t.Left == "" || t.Right == "" {
		return Theme{}, ErrEmptyLabel
	}

	return t, nil
}

// ValidValue checks that v is a finite number within [MinValue, MaxValue].
func ValidValue(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < MinValue || v > MaxValue {
		return fmt.Errorf("%w: %v", ErrValueRange, v)
	}

	return nil
}

// State is one peer's copy of the tradeoff room.
type State struct {
	theme  Theme
	locked bool
	values map[string]float64
}

func New() *State {
	return &State{
		theme:  DefaultTheme,
		values: make(map[string]float64),
	}
}

func (s *State) Theme() Theme {
	return s.theme
}

// SetTheme replaces both labels at once.
func (s *State) SetTheme(t Theme) {
	s.theme = t
}

func (s *State) Locked() bool {
	return s.locked
}

func (s *State) SetLocked(locked bool) {
	s.locked = locked
}

// Slide stores the slider position for user.
func (s *State) Slide(user string, v float64) error {
	if err := ValidValue(v); err != nil {
		return err
	}

	s.values[user] = v

	return nil
}

// Value returns the slider position for user, or DefaultValue if none was seen.
func (s *State) Value(user string) float64 {
	if v, ok := s.values[user]; ok {
		return v
	}

	return DefaultValue
}

// Moved reports whether user has a slider position other than the default.
func (s *State) Moved(user string) bool {
	_, ok := s.values[user]

	return ok
}

// Forget drops the stored position of a participant who left.
func (s *State) Forget(user string) {
	delete(s.values, user)
}

// ShouldBroadcast reports whether a local slider change may be sent to the
// room. Only the facilitator moves freely while the room is locked.
func (s *State) ShouldBroadcast(facilitator bool) bool {
	return !s.locked || facilitator
}
