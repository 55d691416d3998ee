/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Seednode/pointbox/internal/transport"
)

var (
	ErrRoomFull   = errors.New("room is full")
	ErrRoomClosed = errors.New("room is closed")
)

type registration struct {
	client *client
	reply  chan error
}

type publication struct {
	from *client
	data string
}

// Room is one broadcast group. A single goroutine owns the member list and
// writes every outgoing frame, so frames from one sender reach every other
// member in the order they were sent.
type Room struct {
	id      string
	limit   int
	metrics *Metrics
	logf    func(format string, args ...any)

	members []*client

	register chan registration
	unreg    chan *client
	publish  chan publication
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu         sync.RWMutex
	size       int
	lastActive time.Time
}

func newRoom(id string, limit int, metrics *Metrics, logf func(string, ...any)) *Room {
	return &Room{
		id:         id,
		limit:      limit,
		metrics:    metrics,
		logf:       logf,
		register:   make(chan registration),
		unreg:      make(chan *client),
		publish:    make(chan publication),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		lastActive: time.Now(),
	}
}

func (r *Room) ID() string {
	return r.id
}

// Size returns the number of connected members.
func (r *Room) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.size
}

// idleSince reports when the room last had activity, and whether it is empty.
func (r *Room) idleSince() (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lastActive, r.size == 0
}

func (r *Room) touch() {
	r.mu.Lock()
	r.lastActive = time.Now()
	r.size = len(r.members)
	r.mu.Unlock()
}

// join adds c to the room. On success the welcome frame is already queued on
// c.send, ahead of anything else the room will send it.
func (r *Room) join(c *client) error {
	reg := registration{client: c, reply: make(chan error, 1)}

	select {
	case r.register <- reg:
		return <-reg.reply
	case <-r.done:
		return ErrRoomClosed
	}
}

func (r *Room) leave(c *client) {
	select {
	case r.unreg <- c:
	case <-r.done:
	}
}

func (r *Room) broadcast(from *client, data string) {
	select {
	case r.publish <- publication{from: from, data: data}:
	case <-r.done:
	}
}

func (r *Room) close() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})

	<-r.done
}

func (r *Room) run() {
	defer close(r.done)

	for {
		select {
		case reg := <-r.register:
			reg.reply <- r.add(reg.client)
		case c := <-r.unreg:
			r.remove(c)
		case p := <-r.publish:
			r.relay(p)
		case <-r.stop:
			for _, c := range r.members {
				close(c.send)
			}

			r.metrics.peers.Sub(float64(len(r.members)))

			r.members = nil
			r.touch()

			return
		}

		r.touch()
	}
}

func (r *Room) add(c *client) error {
	if r.limit > 0 && len(r.members) >= r.limit {
		return ErrRoomFull
	}

	peers := make([]transport.Peer, 0, len(r.members))
	for _, m := range r.members {
		peers = append(peers, transport.Peer{ID: m.id, Metadata: m.metadata})
	}

	welcome, err := json.Marshal(transport.Frame{
		Kind:   transport.FrameWelcome,
		PeerID: c.id,
		Peers:  peers,
	})
	if err != nil {
		return err
	}

	c.send <- welcome

	r.fanout(transport.Frame{Kind: transport.FrameJoined, PeerID: c.id, Metadata: c.metadata}, nil)

	r.members = append(r.members, c)
	r.metrics.peers.Inc()

	r.logf("ROOMS: Peer %s joined %s (%d connected)", c.id, r.id, len(r.members))

	return nil
}

func (r *Room) remove(c *client) {
	for i, m := range r.members {
		if m != c {
			continue
		}

		r.members = append(r.members[:i], r.members[i+1:]...)
		close(c.send)
		r.metrics.peers.Dec()

		r.logf("ROOMS: Peer %s left %s (%d connected)", c.id, r.id, len(r.members))

		r.fanout(transport.Frame{Kind: transport.FrameLeft, PeerID: c.id}, nil)

		return
	}
}

func (r *Room) relay(p publication) {
	for _, m := range r.members {
		if m == p.from {
			start := time.Now()

			r.fanout(transport.Frame{Kind: transport.FrameData, PeerID: p.from.id, Data: p.data}, p.from)

			r.metrics.frameLatency.Observe(time.Since(start).Seconds())

			return
		}
	}
}

// fanout queues f for every member except skip. Members whose buffer is full
// are disconnected.
func (r *Room) fanout(f transport.Frame, skip *client) {
	data, err := json.Marshal(f)
	if err != nil {
		r.logf("ROOMS: Failed to encode %s frame: %v", f.Kind, err)

		return
	}

	var slow []*client

	for _, m := range r.members {
		if m == skip {
			continue
		}

		select {
		case m.send <- data:
			r.metrics.frames.WithLabelValues(string(f.Kind)).Inc()
		default:
			slow = append(slow, m)
		}
	}

	for _, m := range slow {
		r.metrics.dropped.Inc()
		r.logf("ROOMS: Dropping slow peer %s from %s", m.id, r.id)
		r.remove(m)
	}
}
