/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package transport

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Network is an in-process room substrate. Every connection gets its own
// unbounded, ordered mailbox, so a slow reader never blocks a sender.
type Network struct {
	mu    sync.Mutex
	seq   int
	rooms map[string]map[string]*memConn
}

func NewNetwork() *Network {
	return &Network{
		rooms: make(map[string]map[string]*memConn),
	}
}

func (n *Network) Dial(ctx context.Context, roomID, metadata string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.seq++

	c := &memConn{
		net:  n,
		seq:  n.seq,
		room: roomID,
		self: Peer{ID: fmt.Sprintf("peer-%d", n.seq), Metadata: metadata},
		box:  newMailbox(),
	}

	members := n.rooms[roomID]
	if members == nil {
		members = make(map[string]*memConn)
		n.rooms[roomID] = members
	}

	for _, other := range n.ordered(members) {
		c.peers = append(c.peers, other.self)
		other.box.push(Event{Kind: EventPeerJoined, Peer: c.self})
	}

	members[c.self.ID] = c

	return c, nil
}

// Members returns the transport ids currently in a room.
func (n *Network) Members(roomID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	ids := make([]string, 0, len(n.rooms[roomID]))
	for id := range n.rooms[roomID] {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

// Disconnect drops a connection as if its network went away: the other
// members see it leave and its own event stream ends.
func (n *Network) Disconnect(peerID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, members := range n.rooms {
		if c, ok := members[peerID]; ok {
			n.removeLocked(c)

			return true
		}
	}

	return false
}

func (n *Network) ordered(members map[string]*memConn) []*memConn {
	out := make([]*memConn, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}

	slices.SortFunc(out, func(a, b *memConn) int {
		return a.seq - b.seq
	})

	return out
}

func (n *Network) removeLocked(c *memConn) {
	members := n.rooms[c.room]
	if _, ok := members[c.self.ID]; !ok {
		return
	}

	delete(members, c.self.ID)
	c.box.close()

	for _, other := range n.ordered(members) {
		other.box.push(Event{Kind: EventPeerLeft, Peer: Peer{ID: c.self.ID}})
	}

	if len(members) == 0 {
		delete(n.rooms, c.room)
	}
}

type memConn struct {
	net   *Network
	seq   int
	room  string
	self  Peer
	peers []Peer
	box   *mailbox
}

func (c *memConn) LocalID() string {
	return c.self.ID
}

func (c *memConn) Peers() []Peer {
	return slices.Clone(c.peers)
}

func (c *memConn) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.net.mu.Lock()
	defer c.net.mu.Unlock()

	members := c.net.rooms[c.room]
	if _, ok := members[c.self.ID]; !ok {
		return ErrClosed
	}

	for _, other := range c.net.ordered(members) {
		if other == c {
			continue
		}

		other.box.push(Event{
			Kind: EventData,
			Peer: Peer{ID: c.self.ID},
			Data: slices.Clone(data),
		})
	}

	return nil
}

func (c *memConn) Events() <-chan Event {
	return c.box.out
}

func (c *memConn) Close() error {
	c.net.mu.Lock()
	defer c.net.mu.Unlock()

	c.net.removeLocked(c)

	return nil
}

type mailbox struct {
	mu     sync.Mutex
	queue  []Event
	closed bool

	signal chan struct{}
	done   chan struct{}
	out    chan Event
}

func newMailbox() *mailbox {
	m := &mailbox{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan Event),
	}

	go m.pump()

	return m
}

func (m *mailbox) push(ev Event) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()

		return
	}
	m.queue = append(m.queue, ev)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.closed = true
	close(m.done)
}

func (m *mailbox) pump() {
	defer close(m.out)

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()

			return
		}

		if len(m.queue) == 0 {
			m.mu.Unlock()

			select {
			case <-m.signal:
			case <-m.done:
			}

			continue
		}

		ev := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		select {
		case m.out <- ev:
		case <-m.done:
			return
		}
	}
}
