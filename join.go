/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Seednode/pointbox/internal/poker"
	"github.com/Seednode/pointbox/internal/relay"
	"github.com/Seednode/pointbox/internal/session"
	"github.com/Seednode/pointbox/internal/transport"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// Join enters a room as described by cfg.join and runs until the user quits,
// ctx ends, or the connection is lost.
func Join(ctx context.Context, cfg *Config) error {
	j := cfg.join

	roomID, mode, err := resolveRoom(j)
	if err != nil {
		return err
	}

	var agenda *Agenda
	if j.agenda != "" {
		if !j.facilitator {
			return errors.New("--agenda requires --facilitator")
		}

		agenda, err = LoadAgenda(j.agenda)
		if err != nil {
			return err
		}
	}

	interactive := !j.plain &&
		term.IsTerminal(int(os.Stdin.Fd())) &&
		term.IsTerminal(int(os.Stdout.Fd()))

	if interactive && cfg.verbose {
		f, err := tea.LogToFile(j.logFile, "")
		if err != nil {
			return err
		}
		defer f.Close()
	}

	var dialer transport.Dialer
	if j.offline {
		dialer = transport.NewNetwork()
	} else {
		dialer = &transport.WebSocketDialer{BaseURL: j.relay}
	}

	id := session.NewIdentity(roomID, j.nickname, j.facilitator)

	logf(cfg, "SESSION: Joining room %s as %s (%s)", roomID, id.Nickname, mode)

	sess := session.New(dialer, id, mode, logger(cfg))
	if err := sess.Start(ctx); err != nil {
		return err
	}
	defer sess.Close()

	if interactive {
		return runTUI(ctx, sess, agenda, shareURL(j, roomID))
	}

	return runPlain(ctx, sess, agenda, os.Stdin, os.Stdout)
}

// resolveRoom picks the room id and mode. Facilitators without a room get a
// freshly generated one.
func resolveRoom(j JoinConfig) (string, session.Mode, error) {
	mode := session.ModeForRoom(j.room)

	if j.mode != "" {
		m, err := session.ParseMode(j.mode)
		if err != nil {
			return "", "", err
		}

		mode = m
	}

	roomID := j.room
	if roomID == "" {
		roomID = relay.RandomRoomID()
		if mode == session.ModeTradeoff {
			roomID = session.TradeoffPrefix + roomID
		}
	}

	if !relay.ValidRoomID(roomID) {
		return "", "", fmt.Errorf("invalid room id %q", roomID)
	}

	return roomID, mode, nil
}

func shareURL(j JoinConfig, roomID string) string {
	if j.offline {
		return ""
	}

	return strings.TrimSuffix(j.relay, "/") + "/rooms/" + roomID
}

// runPlain drives the session from line input, printing the room whenever it
// changes.
func runPlain(ctx context.Context, sess *session.Session, agenda *Agenda, in io.Reader, out io.Writer) error {
	lines := make(chan string)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-sess.Done():
				return
			}
		}
	}()

	fmt.Fprintln(out, `Type "help" for commands.`)

	var last string
	updates := sess.Updates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-updates:
			snap := sess.Snapshot()

			if view := renderPlain(snap); view != last {
				fmt.Fprint(out, view)
				last = view
			}

			if snap.Err != nil {
				return snap.Err
			}

			if !ok {
				return nil
			}
		case line, ok := <-lines:
			if !ok {
				return nil
			}

			if strings.TrimSpace(line) == "" {
				continue
			}

			c, err := ParseCommand(line)
			if err != nil {
				fmt.Fprintln(out, "error:", err)

				continue
			}

			msg, err := c.Run(sess, agenda)
			if err != nil {
				fmt.Fprintln(out, "error:", err)

				continue
			}

			fmt.Fprintln(out, msg)

			if c.Name == "quit" {
				return nil
			}
		}
	}
}

func renderPlain(snap session.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\n== %s (%s) ==\n", snap.Identity.RoomID, snap.Mode)

	switch {
	case snap.Err != nil:
		fmt.Fprintf(&b, "Connection error: %v\n", snap.Err)

		return b.String()
	case snap.Connecting:
		b.WriteString("Connecting...\n")

		return b.String()
	}

	if snap.Mode == session.ModeTradeoff {
		locked := ""
		if snap.Locked {
			locked = " [locked]"
		}

		fmt.Fprintf(&b, "%s <-> %s%s\n", snap.Theme.Left, snap.Theme.Right, locked)
	} else {
		switch snap.Task {
		case nil:
			b.WriteString("No task\n")
		default:
			state := "voting"
			if snap.Task.Revealed {
				state = "revealed"
			}

			fmt.Fprintf(&b, "Task: %s (%s)\n", snap.Task.Text, state)
		}
	}

	for _, row := range snap.Participants {
		fmt.Fprintf(&b, "  %-20s %s\n", rowLabel(row), rowValue(snap, row))
	}

	if snap.Mode == session.ModePoker && snap.Task != nil && snap.Task.Revealed {
		if snap.Average != nil {
			fmt.Fprintf(&b, "Average: %s\n", strconv.FormatFloat(*snap.Average, 'f', 1, 64))
		} else {
			b.WriteString("Average: n/a\n")
		}
	}

	if snap.Comment != "" {
		fmt.Fprintf(&b, "Note: %s\n", snap.Comment)
	}

	return b.String()
}

func rowLabel(row session.Row) string {
	label := row.Nickname

	if row.Facilitator {
		label += " *"
	}

	if row.Self {
		label += " (you)"
	}

	return label
}

// rowValue is what a participant's column shows: their card once revealed, a
// check mark while hidden, or their slider position.
func rowValue(snap session.Snapshot, row session.Row) string {
	if snap.Mode == session.ModeTradeoff {
		return strconv.FormatFloat(row.Value, 'f', -1, 64)
	}

	switch {
	case !row.Enabled:
		return "(disabled)"
	case !row.HasVoted:
		return "..."
	case snap.Task != nil && snap.Task.Revealed, row.Self:
		return string(row.Vote)
	default:
		return "voted"
	}
}

// cardHint lists the deck for prompts.
func cardHint() string {
	cards := make([]string, len(poker.Deck))
	for i, c := range poker.Deck {
		cards[i] = string(c)
	}

	return strings.Join(cards, " ")
}
