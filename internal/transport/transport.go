/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package transport is the room broadcast substrate a session runs on.
//
// A connection joins one room, learns the peers already present, and from
// then on receives broadcast data and join/leave notifications as events.
// Messages from one sender arrive in the order they were sent; there is no
// ordering between senders, and nothing sent before a peer joined is
// delivered to it. A failed dial is final; nothing here retries.
package transport

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("transport closed")

// Peer is another member of the room, identified by its transport id.
// Metadata is whatever the peer attached when it joined.
type Peer struct {
	ID       string `json:"id"`
	Metadata string `json:"metadata"`
}

type EventKind int

const (
	EventData EventKind = iota
	EventPeerJoined
	EventPeerLeft
)

func (k EventKind) String() string {
	switch k {
	case EventData:
		return "data"
	case EventPeerJoined:
		return "joined"
	case EventPeerLeft:
		return "left"
	default:
		return "unknown"
	}
}

// Event is one notification from the room. Data is set only for EventData;
// Peer.Metadata only for EventPeerJoined.
type Event struct {
	Kind EventKind
	Peer Peer
	Data []byte
}

// Conn is a live room membership.
type Conn interface {
	// LocalID is the transport id assigned to this connection.
	LocalID() string

	// Peers lists the members that were present when the room was joined.
	Peers() []Peer

	// Send broadcasts data to every other member. It does not wait for delivery.
	Send(ctx context.Context, data []byte) error

	// Events is closed when the connection ends, for whatever reason.
	Events() <-chan Event

	Close() error
}

// Dialer joins rooms.
type Dialer interface {
	Dial(ctx context.Context, roomID, metadata string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, roomID, metadata string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, roomID, metadata string) (Conn, error) {
	return f(ctx, roomID, metadata)
}
