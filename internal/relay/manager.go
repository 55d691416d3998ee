/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package relay is the room server peers connect to over websockets. It
// forwards every data frame to the other members of the room and tells them
// when peers come and go; it never looks inside the data.
package relay

import (
	"context"
	"crypto/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	roomIDLength  = 8
	roomIDLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxRoomIDLen  = 64

	// TradeoffPrefix marks rooms that run the tradeoff slider.
	TradeoffPrefix = "tradeoff-"
)

type Options struct {
	// IdleTimeout is how long an empty room is kept. Zero keeps rooms forever.
	IdleTimeout time.Duration

	// PeerLimit caps the members of one room. Zero means no limit.
	PeerLimit int

	// Metrics defaults to collectors on a private registry.
	Metrics *Metrics
	Logf    func(format string, args ...any)
}

// Manager holds the open rooms, keyed by room id.
type Manager struct {
	mu    sync.Mutex
	rooms map[string]*Room

	idleTimeout time.Duration
	limit       int
	metrics     *Metrics
	logf        func(format string, args ...any)
}

func NewManager(opts Options) *Manager {
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}

	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(prometheus.NewRegistry())
	}

	return &Manager{
		rooms:       make(map[string]*Room),
		idleTimeout: opts.IdleTimeout,
		limit:       opts.PeerLimit,
		metrics:     opts.Metrics,
		logf:        opts.Logf,
	}
}

// Room returns the room with the given id, opening it if needed.
func (m *Manager) Room(id string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rooms[id]; ok {
		return r
	}

	r := newRoom(id, m.limit, m.metrics, m.logf)
	m.rooms[id] = r
	m.metrics.rooms.Inc()

	go r.run()

	m.logf("ROOMS: Opened room %s", id)

	return r
}

// Rooms lists the ids of the open rooms.
func (m *Manager) Rooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// NewRoomID generates a random room id that is not currently open.
func (m *Manager) NewRoomID(tradeoff bool) string {
	prefix := ""
	if tradeoff {
		prefix = TradeoffPrefix
	}

	for {
		id := prefix + RandomRoomID()

		m.mu.Lock()
		_, exists := m.rooms[id]
		m.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// RandomRoomID returns 8 characters from A-Z and 0-9.
func RandomRoomID() string {
	// largest multiple of len(roomIDLetters) below 256, so every letter is equally likely
	const ceiling = 256 - 256%len(roomIDLetters)

	out := make([]byte, 0, roomIDLength)
	buf := make([]byte, roomIDLength*2)

	for len(out) < roomIDLength {
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}

		for _, b := range buf {
			if int(b) >= ceiling || len(out) == roomIDLength {
				continue
			}

			out = append(out, roomIDLetters[int(b)%len(roomIDLetters)])
		}
	}

	return string(out)
}

// ValidRoomID reports whether id may name a room.
func ValidRoomID(id string) bool {
	if id == "" || len(id) > maxRoomIDLen {
		return false
	}

	return strings.IndexFunc(id, func(c rune) bool {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			return false
		default:
			return true
		}
	}) == -1
}

// Run closes empty rooms that have been idle longer than the idle timeout,
// until ctx ends. Every room still open is then closed.
func (m *Manager) Run(ctx context.Context) error {
	defer m.closeAll()

	if m.idleTimeout <= 0 {
		<-ctx.Done()

		return nil
	}

	ticker := time.NewTicker(m.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.reap(time.Now().Add(-m.idleTimeout))
		}
	}
}

func (m *Manager) reap(cutoff time.Time) int {
	var idle []*Room

	m.mu.Lock()
	for id, r := range m.rooms {
		last, empty := r.idleSince()

		if empty && last.Before(cutoff) {
			delete(m.rooms, id)
			idle = append(idle, r)
		}
	}
	m.mu.Unlock()

	for _, r := range idle {
		r.close()

		m.metrics.rooms.Dec()
		m.metrics.roomsReaped.Inc()

		m.logf("ROOMS: Closed idle room %s", r.id)
	}

	return len(idle)
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	rooms := m.rooms
	m.rooms = make(map[string]*Room)
	m.mu.Unlock()

	for _, r := range rooms {
		r.close()
		m.metrics.rooms.Dec()
	}
}
