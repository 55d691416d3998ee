/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package transport

import "time"

// Frames exchanged between a websocket peer and the relay.
//
//	client -> relay   hello    metadata
//	relay  -> client  welcome  peerId (the client's own), peers
//	relay  -> client  joined   peerId, metadata
//	relay  -> client  left     peerId
//	both ways         data     peerId (sender, relay -> client only), data
//	relay  -> client  error    error
type FrameKind string

const (
	FrameHello   FrameKind = "hello"
	FrameWelcome FrameKind = "welcome"
	FrameJoined  FrameKind = "joined"
	FrameLeft    FrameKind = "left"
	FrameData    FrameKind = "data"
	FrameError   FrameKind = "error"
)

type Frame struct {
	Kind     FrameKind `json:"kind"`
	PeerID   string    `json:"peerId,omitempty"`
	Metadata string    `json:"metadata,omitempty"`
	Peers    []Peer    `json:"peers,omitempty"`
	Data     string    `json:"data,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Connection limits shared by the relay and the websocket client.
const (
	WriteTimeout     = 10 * time.Second
	HandshakeTimeout = 10 * time.Second
	PingInterval     = 30 * time.Second
	PongTimeout      = 90 * time.Second
	MaxFrameSize     = 64 << 10
	SendBufferSize   = 256
)
