/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Seednode/pointbox/internal/poker"
	"github.com/Seednode/pointbox/internal/session"
	"github.com/Seednode/pointbox/internal/tradeoff"
)

const helpText = `Commands:
  vote, v <card>         play a card (0 1 2 3 5 8 13 21 ? ☕), or just type the card
  task, t <text>         start a new task (facilitator)
  reveal, r              reveal the votes (facilitator)
  clear                  clear the task and votes (facilitator)
  next                   start the next agenda task, or clear (facilitator)
  disable <name|id>      exclude a participant from the vote (facilitator)
  enable <name|id>       include a participant again (facilitator)
  slide, s <0-100>       move your slider
  theme <left> | <right> rename the slider ends (facilitator)
  lock, unlock           freeze everyone else's slider (facilitator)
  comment, note <text>   keep a private note
  help, h                show this help
  quit, q                leave the room`

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
	ErrNoParticipant   = errors.New("no such participant")
	ErrAmbiguous       = errors.New("more than one participant matches")
)

// Command is one parsed line of input.
type Command struct {
	Name string

	Card   poker.Card
	Text   string
	Value  float64
	Locked bool
	Theme  tradeoff.Theme
}

// Room is the part of a session that commands drive.
type Room interface {
	Snapshot() session.Snapshot
	Vote(card poker.Card) error
	SetTask(text string) error
	Reveal() error
	NextTask() error
	DisableParticipant(id string) error
	EnableParticipant(id string) error
	SetSliderValue(v float64) error
	SetTheme(left, right string) error
	SetLocked(locked bool) error
	SetComment(text string) error
}

func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, fmt.Errorf("%w: empty line", ErrUnknownCommand)
	}

	if card, err := poker.ParseCard(line); err == nil {
		return Command{Name: "vote", Card: card}, nil
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "vote", "v":
		if rest == "" {
			return Command{}, fmt.Errorf("%w: vote needs a card", ErrMissingArgument)
		}

		card, err := poker.ParseCard(rest)
		if err != nil {
			return Command{}, err
		}

		return Command{Name: "vote", Card: card}, nil
	case "task", "t":
		if rest == "" {
			return Command{}, fmt.Errorf("%w: task needs a description", ErrMissingArgument)
		}

		return Command{Name: "task", Text: rest}, nil
	case "reveal", "r":
		return Command{Name: "reveal"}, nil
	case "clear":
		return Command{Name: "clear"}, nil
	case "next", "n":
		return Command{Name: "next"}, nil
	case "disable", "enable":
		if rest == "" {
			return Command{}, fmt.Errorf("%w: %s needs a name or id", ErrMissingArgument, name)
		}

		return Command{Name: strings.ToLower(name), Text: rest}, nil
	case "slide", "s":
		v, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return Command{}, fmt.Errorf("%w: slide needs a number", ErrMissingArgument)
		}

		if err := tradeoff.ValidValue(v); err != nil {
			return Command{}, err
		}

		return Command{Name: "slide", Value: v}, nil
	case "theme":
		theme, err := parseTheme(rest)
		if err != nil {
			return Command{}, err
		}

		return Command{Name: "theme", Theme: theme}, nil
	case "lock":
		return Command{Name: "lock", Locked: true}, nil
	case "unlock":
		return Command{Name: "lock", Locked: false}, nil
	case "comment", "note":
		return Command{Name: "comment", Text: rest}, nil
	case "help", "h":
		return Command{Name: "help"}, nil
	case "quit", "q", "exit":
		return Command{Name: "quit"}, nil
	}

	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

// parseTheme accepts "Left | Right", or exactly two words.
func parseTheme(s string) (tradeoff.Theme, error) {
	left, right, ok := strings.Cut(s, "|")
	if !ok {
		fields := strings.Fields(s)
		if len(fields) != 2 {
			return tradeoff.Theme{}, fmt.Errorf("%w: theme needs two labels, as in Speed | Quality", ErrMissingArgument)
		}

		left, right = fields[0], fields[1]
	}

	return tradeoff.NewTheme(left, right)
}

// Run applies the command to r and returns a line of feedback for the user.
func (c Command) Run(r Room, agenda *Agenda) (string, error) {
	switch c.Name {
	case "vote":
		return "Voted " + string(c.Card), r.Vote(c.Card)
	case "task":
		return "Task: " + c.Text, r.SetTask(c.Text)
	case "reveal":
		return "Revealed", r.Reveal()
	case "clear":
		return "Cleared", r.NextTask()
	case "next":
		if task, ok := agenda.Peek(); ok {
			if err := r.SetTask(task); err != nil {
				return "", err
			}

			agenda.Advance()

			return fmt.Sprintf("Task: %s (%d left)", task, agenda.Remaining()), nil
		}

		return "Cleared", r.NextTask()
	case "disable", "enable":
		row, err := resolveParticipant(r.Snapshot(), c.Text)
		if err != nil {
			return "", err
		}

		if c.Name == "disable" {
			return "Disabled " + row.Nickname, r.DisableParticipant(row.ID)
		}

		return "Enabled " + row.Nickname, r.EnableParticipant(row.ID)
	case "slide":
		return fmt.Sprintf("Slider at %g", c.Value), r.SetSliderValue(c.Value)
	case "theme":
		return fmt.Sprintf("Theme: %s | %s", c.Theme.Left, c.Theme.Right), r.SetTheme(c.Theme.Left, c.Theme.Right)
	case "lock":
		if c.Locked {
			return "Sliders locked", r.SetLocked(true)
		}

		return "Sliders unlocked", r.SetLocked(false)
	case "comment":
		return "Noted", r.SetComment(c.Text)
	case "help":
		return helpText, nil
	case "quit":
		return "Bye", nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, c.Name)
}

// resolveParticipant finds a row by logical id, or else by nickname.
func resolveParticipant(snap session.Snapshot, who string) (session.Row, error) {
	if row, ok := snap.Find(who); ok {
		return row, nil
	}

	var matches []session.Row
	for _, row := range snap.Participants {
		if strings.EqualFold(row.Nickname, who) {
			matches = append(matches, row)
		}
	}

	switch len(matches) {
	case 0:
		return session.Row{}, fmt.Errorf("%w: %q", ErrNoParticipant, who)
	case 1:
		return matches[0], nil
	default:
		return session.Row{}, fmt.Errorf("%w %q, use the id instead", ErrAmbiguous, who)
	}
}
